package rtc

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	lksdk "github.com/livekit/server-sdk-go/v2"
)

const eventBuffer = 64

// LiveKitConnector attaches to LiveKit rooms using pre-minted access
// tokens. Each connection translates SDK callbacks into a single event
// channel so callers never run logic inside SDK callback goroutines.
type LiveKitConnector struct{}

func NewLiveKitConnector() *LiveKitConnector { return &LiveKitConnector{} }

type liveKitConnection struct {
	room *lksdk.Room

	mu     sync.Mutex
	closed bool
	events chan Event

	participants atomic.Int64
}

func (c *LiveKitConnector) Connect(ctx context.Context, serverURL, token string) (Connection, error) {
	if serverURL == "" || token == "" {
		return nil, errors.New("server URL and token are required")
	}

	conn := &liveKitConnection{
		events: make(chan Event, eventBuffer),
	}

	callback := &lksdk.RoomCallback{
		OnParticipantConnected: func(rp *lksdk.RemoteParticipant) {
			conn.participants.Add(1)
			conn.emit(Event{Kind: EventParticipantJoined, Participant: string(rp.Identity())})
		},
		OnParticipantDisconnected: func(rp *lksdk.RemoteParticipant) {
			conn.participants.Add(-1)
			conn.emit(Event{Kind: EventParticipantLeft, Participant: string(rp.Identity())})
		},
		OnDisconnected: func() {
			conn.emit(Event{Kind: EventDisconnected})
			conn.close()
		},
		ParticipantCallback: lksdk.ParticipantCallback{
			OnDataPacket: func(data lksdk.DataPacket, params lksdk.DataReceiveParams) {
				user, ok := data.(*lksdk.UserDataPacket)
				if !ok || len(user.Payload) == 0 {
					return
				}
				payload := make([]byte, len(user.Payload))
				copy(payload, user.Payload)
				conn.emit(Event{Kind: EventData, Participant: params.SenderIdentity, Data: payload})
			},
		},
	}

	room, err := lksdk.ConnectToRoomWithToken(serverURL, token, callback)
	if err != nil {
		return nil, fmt.Errorf("connect to room: %w", err)
	}
	conn.room = room
	conn.participants.Store(int64(len(room.GetRemoteParticipants())))
	return conn, nil
}

func (c *liveKitConnection) Events() <-chan Event { return c.events }

func (c *liveKitConnection) PublishData(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return errors.New("connection closed")
	}
	return c.room.LocalParticipant.PublishData(payload, lksdk.WithDataPublishReliable(true))
}

func (c *liveKitConnection) ParticipantCount() int {
	return int(c.participants.Load())
}

func (c *liveKitConnection) Disconnect() {
	c.close()
	c.room.Disconnect()
}

// emit drops the event when the buffer is full rather than blocking an
// SDK callback goroutine.
func (c *liveKitConnection) emit(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.events <- ev:
	default:
		log.Printf("rtc: dropping %s event, buffer full", ev.Kind)
	}
}

func (c *liveKitConnection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.events)
}
