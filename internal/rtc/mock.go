package rtc

import (
	"context"
	"errors"
	"sync"
)

// MockConnector hands out scripted connections for tests and local runs
// without a LiveKit deployment.
type MockConnector struct {
	mu          sync.Mutex
	connections []*MockConnection
	connectErr  error
}

func NewMockConnector() *MockConnector { return &MockConnector{} }

func (c *MockConnector) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectErr = err
}

func (c *MockConnector) Connect(_ context.Context, serverURL, token string) (Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectErr != nil {
		return nil, c.connectErr
	}
	if serverURL == "" || token == "" {
		return nil, errors.New("server URL and token are required")
	}
	conn := NewMockConnection()
	c.connections = append(c.connections, conn)
	return conn, nil
}

// Connections returns every connection handed out so far.
func (c *MockConnector) Connections() []*MockConnection {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*MockConnection, len(c.connections))
	copy(out, c.connections)
	return out
}

// MockConnection lets tests inject room events and capture published data.
type MockConnection struct {
	mu           sync.Mutex
	events       chan Event
	published    [][]byte
	participants int
	closed       bool
	publishErr   error
}

func NewMockConnection() *MockConnection {
	return &MockConnection{events: make(chan Event, eventBuffer)}
}

func (c *MockConnection) Events() <-chan Event { return c.events }

func (c *MockConnection) PublishData(_ context.Context, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	if c.publishErr != nil {
		return c.publishErr
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	c.published = append(c.published, buf)
	return nil
}

func (c *MockConnection) ParticipantCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.participants
}

func (c *MockConnection) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.events)
}

func (c *MockConnection) SetPublishError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishErr = err
}

// Join simulates a participant entering the room.
func (c *MockConnection) Join(identity string) {
	c.mu.Lock()
	c.participants++
	c.mu.Unlock()
	c.push(Event{Kind: EventParticipantJoined, Participant: identity})
}

// Leave simulates a participant leaving the room.
func (c *MockConnection) Leave(identity string) {
	c.mu.Lock()
	if c.participants > 0 {
		c.participants--
	}
	c.mu.Unlock()
	c.push(Event{Kind: EventParticipantLeft, Participant: identity})
}

// Send simulates an inbound data packet from a participant.
func (c *MockConnection) Send(identity string, payload []byte) {
	c.push(Event{Kind: EventData, Participant: identity, Data: payload})
}

// Drop simulates the server closing the connection.
func (c *MockConnection) Drop() {
	c.push(Event{Kind: EventDisconnected})
	c.Disconnect()
}

func (c *MockConnection) Published() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.published))
	copy(out, c.published)
	return out
}

func (c *MockConnection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *MockConnection) push(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.events <- ev:
	default:
	}
}
