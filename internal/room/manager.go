package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/laingfy/tutor-agent/internal/agent"
	"github.com/laingfy/tutor-agent/internal/observability"
	"github.com/laingfy/tutor-agent/internal/rtc"
)

type Status string

const (
	StatusConnecting          Status = "connecting"
	StatusAwaitingParticipant Status = "awaiting_participant"
	StatusActive              Status = "active"
	StatusClosed              Status = "closed"
)

var (
	ErrNotFound       = errors.New("room not found")
	ErrAlreadyRunning = errors.New("room already running")
)

// StartRequest describes one room the agent should join.
type StartRequest struct {
	RoomID    string `json:"room_id"`
	Language  string `json:"language"`
	Token     string `json:"token"`
	ServerURL string `json:"server_url,omitempty"`
}

// Info is the public snapshot of one hosted room.
type Info struct {
	RoomID    string    `json:"room_id"`
	Language  string    `json:"language"`
	Status    Status    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// inboundMessage is the data payload participants send into the room.
// Raw non-JSON payloads are treated as bare text.
type inboundMessage struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

// outboundReply is what the agent publishes back after each exchange.
type outboundReply struct {
	Type     string  `json:"type"`
	RoomID   string  `json:"room_id"`
	Language string  `json:"language"`
	Text     string  `json:"text"`
	AudioURL *string `json:"audio_url"`
}

type roomState struct {
	Info
	cancel context.CancelFunc
}

// Config tunes room supervision.
type Config struct {
	ServerURL          string
	ParticipantTimeout time.Duration
	PollInterval       time.Duration
}

// Manager hosts the agent inside real-time rooms. Each started room runs
// one supervising goroutine that owns the connection for its whole life.
type Manager struct {
	mu    sync.RWMutex
	rooms map[string]*roomState

	connector rtc.Connector
	svc       *agent.Service
	metrics   *observability.Metrics

	serverURL          string
	participantTimeout time.Duration
	pollInterval       time.Duration
}

func NewManager(connector rtc.Connector, svc *agent.Service, metrics *observability.Metrics, cfg Config) *Manager {
	if cfg.ParticipantTimeout <= 0 {
		cfg.ParticipantTimeout = 5 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &Manager{
		rooms:              make(map[string]*roomState),
		connector:          connector,
		svc:                svc,
		metrics:            metrics,
		serverURL:          cfg.ServerURL,
		participantTimeout: cfg.ParticipantTimeout,
		pollInterval:       cfg.PollInterval,
	}
}

// Start joins the requested room and begins supervising it. Starting a
// room that is already registered returns ErrAlreadyRunning without
// touching the live connection.
func (m *Manager) Start(ctx context.Context, req StartRequest) (*Info, error) {
	if req.RoomID == "" {
		return nil, errors.New("room_id is required")
	}
	if req.Token == "" {
		return nil, errors.New("token is required")
	}
	serverURL := req.ServerURL
	if serverURL == "" {
		serverURL = m.serverURL
	}
	if serverURL == "" {
		return nil, errors.New("no real-time server URL configured")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	st := &roomState{
		Info: Info{
			RoomID:    req.RoomID,
			Language:  req.Language,
			Status:    StatusConnecting,
			StartedAt: time.Now().UTC(),
		},
		cancel: cancel,
	}

	m.mu.Lock()
	if _, exists := m.rooms[req.RoomID]; exists {
		m.mu.Unlock()
		cancel()
		return nil, ErrAlreadyRunning
	}
	m.rooms[req.RoomID] = st
	m.mu.Unlock()

	conn, err := m.connector.Connect(ctx, serverURL, req.Token)
	if err != nil {
		m.deregister(req.RoomID)
		cancel()
		m.metrics.RoomEvents.WithLabelValues("connect_failed").Inc()
		return nil, fmt.Errorf("room %s: %w", req.RoomID, err)
	}

	m.metrics.ActiveRooms.Inc()
	m.metrics.RoomEvents.WithLabelValues("started").Inc()
	m.setStatus(req.RoomID, StatusAwaitingParticipant)

	go m.supervise(runCtx, req, conn)

	info := st.Info
	info.Status = StatusAwaitingParticipant
	return &info, nil
}

// Stop removes the registry entry; the supervising loop notices and
// tears the room down.
func (m *Manager) Stop(roomID string) error {
	m.mu.Lock()
	st, ok := m.rooms[roomID]
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	st.cancel()
	return nil
}

func (m *Manager) Get(roomID string) (*Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	info := st.Info
	return &info, nil
}

func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Info, 0, len(m.rooms))
	for _, st := range m.rooms {
		out = append(out, st.Info)
	}
	return out
}

// StopAll tears down every hosted room, used during shutdown.
func (m *Manager) StopAll() {
	for _, info := range m.List() {
		if err := m.Stop(info.RoomID); err != nil && !errors.Is(err, ErrNotFound) {
			log.Printf("room %s: stop: %v", info.RoomID, err)
		}
	}
}

// supervise owns the room from first wait to teardown. Teardown runs
// exactly once through the deferred cleanup, whichever state exits.
func (m *Manager) supervise(ctx context.Context, req StartRequest, conn rtc.Connection) {
	defer func() {
		conn.Disconnect()
		m.deregister(req.RoomID)
		m.metrics.ActiveRooms.Dec()
		m.metrics.RoomEvents.WithLabelValues("closed").Inc()
		log.Printf("room %s: closed", req.RoomID)
	}()

	if !m.awaitParticipant(ctx, req.RoomID, conn) {
		return
	}

	m.setStatus(req.RoomID, StatusActive)
	m.metrics.RoomEvents.WithLabelValues("active").Inc()
	m.serve(ctx, req, conn)
}

// awaitParticipant blocks until someone joins. A timeout or disconnect
// here is a normal teardown, not an error.
func (m *Manager) awaitParticipant(ctx context.Context, roomID string, conn rtc.Connection) bool {
	if conn.ParticipantCount() > 0 {
		return true
	}

	timer := time.NewTimer(m.participantTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			log.Printf("room %s: no participant within %s", roomID, m.participantTimeout)
			m.metrics.RoomEvents.WithLabelValues("participant_timeout").Inc()
			return false
		case ev, ok := <-conn.Events():
			if !ok || ev.Kind == rtc.EventDisconnected {
				return false
			}
			if ev.Kind == rtc.EventParticipantJoined {
				m.metrics.RoomEvents.WithLabelValues("participant_joined").Inc()
				log.Printf("room %s: participant %s joined", roomID, ev.Participant)
				return true
			}
		}
	}
}

// serve is the active phase: answer data messages, and poll the health
// conditions so an empty or dead room winds down.
func (m *Manager) serve(ctx context.Context, req StartRequest, conn rtc.Connection) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	sessionID := ""

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !m.registered(req.RoomID) || conn.ParticipantCount() == 0 {
				return
			}
		case ev, ok := <-conn.Events():
			if !ok || ev.Kind == rtc.EventDisconnected {
				return
			}
			switch ev.Kind {
			case rtc.EventParticipantJoined:
				m.metrics.RoomEvents.WithLabelValues("participant_joined").Inc()
			case rtc.EventParticipantLeft:
				m.metrics.RoomEvents.WithLabelValues("participant_left").Inc()
				log.Printf("room %s: participant %s left", req.RoomID, ev.Participant)
			case rtc.EventData:
				sessionID = m.handleData(ctx, req, conn, sessionID, ev)
			}
		}
	}
}

// handleData runs one exchange and publishes the reply. The session ID
// from the first exchange is carried forward so the room keeps one
// conversation.
func (m *Manager) handleData(ctx context.Context, req StartRequest, conn rtc.Connection, sessionID string, ev rtc.Event) string {
	msg := decodeInbound(ev.Data)
	if msg.Text == "" {
		return sessionID
	}
	lang := msg.Language
	if lang == "" {
		lang = req.Language
	}

	resp, err := m.svc.SubmitText(ctx, sessionID, lang, msg.Text)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return sessionID
		}
		log.Printf("room %s: exchange failed: %v", req.RoomID, err)
		m.metrics.RoomEvents.WithLabelValues("exchange_failed").Inc()
		return sessionID
	}

	payload, err := json.Marshal(outboundReply{
		Type:     "reply",
		RoomID:   req.RoomID,
		Language: resp.Language,
		Text:     resp.Text,
		AudioURL: resp.AudioURL,
	})
	if err != nil {
		log.Printf("room %s: encode reply: %v", req.RoomID, err)
		return resp.SessionID
	}
	if err := conn.PublishData(ctx, payload); err != nil {
		log.Printf("room %s: publish reply: %v", req.RoomID, err)
		m.metrics.RoomEvents.WithLabelValues("publish_failed").Inc()
	}
	return resp.SessionID
}

func decodeInbound(data []byte) inboundMessage {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err == nil && msg.Text != "" {
		msg.Text = strings.TrimSpace(msg.Text)
		return msg
	}
	return inboundMessage{Text: strings.TrimSpace(string(data))}
}

func (m *Manager) registered(roomID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.rooms[roomID]
	return ok
}

func (m *Manager) setStatus(roomID string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.rooms[roomID]; ok {
		st.Status = status
	}
}

func (m *Manager) deregister(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, roomID)
}
