package rtc

import "context"

// EventKind names a room lifecycle or data event.
type EventKind string

const (
	EventParticipantJoined EventKind = "participant_joined"
	EventParticipantLeft   EventKind = "participant_left"
	EventData              EventKind = "data"
	EventDisconnected      EventKind = "disconnected"
)

// Event is one room occurrence delivered on the connection's channel.
// Participant carries the remote identity; Data is set for data events only.
type Event struct {
	Kind        EventKind
	Participant string
	Data        []byte
}

// Connection is a live attachment to a real-time room.
type Connection interface {
	// Events delivers room events in arrival order. The channel closes
	// after Disconnect or when the server drops the connection.
	Events() <-chan Event
	PublishData(ctx context.Context, payload []byte) error
	ParticipantCount() int
	Disconnect()
}

// Connector dials real-time rooms. The token scopes the room and the
// agent's identity.
type Connector interface {
	Connect(ctx context.Context, serverURL, token string) (Connection, error)
}
