package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/laingfy/tutor-agent/internal/agent"
	"github.com/laingfy/tutor-agent/internal/config"
	"github.com/laingfy/tutor-agent/internal/language"
	"github.com/laingfy/tutor-agent/internal/observability"
	"github.com/laingfy/tutor-agent/internal/protocol"
	"github.com/laingfy/tutor-agent/internal/room"
	"github.com/laingfy/tutor-agent/internal/session"
	"github.com/laingfy/tutor-agent/internal/transcript"
	"github.com/laingfy/tutor-agent/internal/voice"
)

const maxAudioUpload = 10 << 20

// Sweeper triggers one artifact retention pass on demand.
type Sweeper interface {
	Sweep(ctx context.Context, retention time.Duration) (int, error)
}

type Server struct {
	cfg         config.Config
	sessions    *session.Manager
	svc         *agent.Service
	rooms       *room.Manager
	sweeper     Sweeper
	transcripts transcript.Store
	metrics     *observability.Metrics
	upgrader    websocket.Upgrader
}

func New(cfg config.Config, sessions *session.Manager, svc *agent.Service, rooms *room.Manager, sweeper Sweeper, transcripts transcript.Store, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:         cfg,
		sessions:    sessions,
		svc:         svc,
		rooms:       rooms,
		sweeper:     sweeper,
		transcripts: transcripts,
		metrics:     metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only allow browser websocket connections from the
				// same origin, so other websites cannot drive a learner's
				// session if the service is ever exposed beyond localhost.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/sessions", s.handleCreateSession)
	r.Get("/v1/sessions/{id}", s.handleGetSession)
	r.Get("/v1/sessions/{id}/transcript", s.handleSessionTranscript)
	r.Post("/v1/sessions/{id}/end", s.handleEndSession)

	r.Post("/v1/chat", s.handleChat)
	r.Post("/v1/chat/audio", s.handleChatAudio)
	r.Get("/v1/chat/ws", s.handleChatWS)

	r.Get("/v1/languages", s.handleListLanguages)

	r.Post("/v1/rooms/{id}/start", s.handleStartRoom)
	r.Post("/v1/rooms/{id}/stop", s.handleStopRoom)
	r.Get("/v1/rooms/{id}", s.handleGetRoom)
	r.Get("/v1/rooms", s.handleListRooms)

	r.Post("/v1/artifacts/sweep", s.handleSweepArtifacts)
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"audio_artifacts": s.sweeper != nil,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"active_sessions": s.sessions.ActiveCount(),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req session.CreateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	profile, _ := language.Resolve(req.Language)

	sess := s.sessions.Create(profile.Code)
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))

	respondJSON(w, http.StatusCreated, session.CreateResponse{
		SessionID:       sess.ID,
		Language:        sess.Language,
		Status:          sess.Status,
		StartedAt:       sess.StartedAt,
		LastActivityAt:  sess.LastActivityAt,
		InactivityTTLMS: s.cfg.SessionInactivityTimeout.Milliseconds(),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSessionTranscript(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.sessions.Get(id); err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}

	limit := 50
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	turns, err := s.transcripts.Recent(r.Context(), id, limit)
	if err != nil {
		respondError(w, http.StatusBadGateway, "transcript_unavailable", err.Error())
		return
	}
	if turns == nil {
		turns = []transcript.Record{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"turns":      turns,
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	sess, err := s.sessions.End(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	respondJSON(w, http.StatusOK, sess)
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Language  string `json:"language"`
	Text      string `json:"text"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	resp, err := s.svc.SubmitText(r.Context(), req.SessionID, req.Language, req.Text)
	if err != nil {
		s.respondSubmitError(w, err)
		return
	}
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChatAudio(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxAudioUpload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_multipart", err.Error())
		return
	}
	file, _, err := r.FormFile("audio")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing_audio", "form file \"audio\" is required")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, maxAudioUpload))
	if err != nil {
		respondError(w, http.StatusBadRequest, "unreadable_audio", err.Error())
		return
	}

	resp, err := s.svc.SubmitAudio(r.Context(), r.FormValue("session_id"), r.FormValue("language"), audio)
	if err != nil {
		s.respondSubmitError(w, err)
		return
	}
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListLanguages(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"default":   language.DefaultCode,
		"languages": language.Codes(),
	})
}

func (s *Server) handleStartRoom(w http.ResponseWriter, r *http.Request) {
	var req room.StartRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req.RoomID = chi.URLParam(r, "id")

	info, err := s.rooms.Start(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, room.ErrAlreadyRunning):
			respondError(w, http.StatusConflict, "already_running", err.Error())
		default:
			respondError(w, http.StatusBadGateway, "room_start_failed", err.Error())
		}
		return
	}
	respondJSON(w, http.StatusCreated, info)
}

func (s *Server) handleStopRoom(w http.ResponseWriter, r *http.Request) {
	if err := s.rooms.Stop(chi.URLParam(r, "id")); err != nil {
		respondError(w, http.StatusNotFound, "room_not_found", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "stopping"})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	info, err := s.rooms.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "room_not_found", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleListRooms(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"rooms": s.rooms.List()})
}

func (s *Server) handleSweepArtifacts(w http.ResponseWriter, r *http.Request) {
	if s.sweeper == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "artifact storage not configured")
		return
	}
	deleted, err := s.sweeper.Sweep(r.Context(), s.cfg.AudioRetention)
	if err != nil {
		respondError(w, http.StatusBadGateway, "sweep_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"deleted":      deleted,
		"retention_ms": s.cfg.AudioRetention.Milliseconds(),
	})
}

func (s *Server) handlePerfLatency(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.metrics.PerfSnapshot())
}

func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 256)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
				if t, ok := messageTypeOf(msg); ok {
					s.metrics.WSMessages.WithLabelValues("outbound", string(t)).Inc()
				}
			}
		}
	}()

	conn.SetReadLimit(2 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	var pending sync.WaitGroup
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			send(outbound, protocol.ErrorEvent{
				Type:   protocol.TypeErrorEvent,
				Code:   "invalid_client_message",
				Source: "gateway",
				Detail: err.Error(),
			})
			continue
		}
		if t, ok := messageTypeOf(parsed); ok {
			s.metrics.WSMessages.WithLabelValues("inbound", string(t)).Inc()
		}

		switch msg := parsed.(type) {
		case protocol.UserText:
			pending.Add(1)
			go func() {
				defer pending.Done()
				s.runExchange(ctx, outbound, msg.SessionID, func(runCtx context.Context) (agent.Response, error) {
					return s.svc.SubmitText(runCtx, msg.SessionID, msg.Language, msg.Text)
				})
			}()
		case protocol.UserAudio:
			audio, decErr := base64.StdEncoding.DecodeString(msg.AudioBase64)
			if decErr != nil {
				send(outbound, protocol.ErrorEvent{
					Type:      protocol.TypeErrorEvent,
					SessionID: msg.SessionID,
					Code:      "invalid_audio_encoding",
					Source:    "gateway",
					Detail:    decErr.Error(),
				})
				continue
			}
			pending.Add(1)
			go func() {
				defer pending.Done()
				s.runExchange(ctx, outbound, msg.SessionID, func(runCtx context.Context) (agent.Response, error) {
					return s.svc.SubmitAudio(runCtx, msg.SessionID, msg.Language, audio)
				})
			}()
		case protocol.SetLanguage:
			profile, known := language.Resolve(msg.Language)
			if !known {
				send(outbound, protocol.ErrorEvent{
					Type:      protocol.TypeErrorEvent,
					SessionID: msg.SessionID,
					Code:      "unknown_language",
					Source:    "gateway",
					Detail:    "unknown language " + msg.Language,
				})
				continue
			}
			if _, err := s.sessions.SetLanguage(msg.SessionID, profile.Code); err != nil {
				send(outbound, protocol.ErrorEvent{
					Type:      protocol.TypeErrorEvent,
					SessionID: msg.SessionID,
					Code:      "session_not_found",
					Source:    "gateway",
					Detail:    err.Error(),
				})
				continue
			}
			send(outbound, protocol.SystemEvent{
				Type:      protocol.TypeSystemEvent,
				SessionID: msg.SessionID,
				Code:      "language_set",
				Detail:    profile.Code,
			})
		case protocol.EndSession:
			if _, err := s.sessions.End(msg.SessionID); err != nil {
				send(outbound, protocol.ErrorEvent{
					Type:      protocol.TypeErrorEvent,
					SessionID: msg.SessionID,
					Code:      "session_not_found",
					Source:    "gateway",
					Detail:    err.Error(),
				})
				continue
			}
			s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
			send(outbound, protocol.SystemEvent{
				Type:      protocol.TypeSystemEvent,
				SessionID: msg.SessionID,
				Code:      "session_ended",
			})
		}
	}

	cancel()
	pending.Wait()
	close(outbound)
	<-writerDone
}

// runExchange runs one submission and queues the reply or error event.
// Superseded runs finish silently; the newer exchange owns the reply.
func (s *Server) runExchange(ctx context.Context, outbound chan<- any, sessionID string, submit func(context.Context) (agent.Response, error)) {
	resp, err := submit(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		ev := protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: sessionID,
			Code:      "exchange_failed",
			Source:    "pipeline",
			Detail:    err.Error(),
		}
		var svcErr *voice.ServiceError
		if errors.As(err, &svcErr) {
			ev.Source = svcErr.Service
			ev.Retryable = svcErr.Retryable
		}
		send(outbound, ev)
		return
	}
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	send(outbound, protocol.Reply{
		Type:      protocol.TypeReply,
		SessionID: resp.SessionID,
		Language:  resp.Language,
		Text:      resp.Text,
		AudioURL:  resp.AudioURL,
	})
}

// send keeps websocket writes single threaded; drops when the outbound
// queue is saturated rather than blocking a read or pipeline goroutine.
func send(outbound chan<- any, msg any) {
	select {
	case outbound <- msg:
	default:
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func (s *Server) respondSubmitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, agent.ErrEmptyInput):
		respondError(w, http.StatusBadRequest, "empty_input", err.Error())
	case errors.Is(err, session.ErrNotFound):
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, context.Canceled):
		respondError(w, http.StatusConflict, "superseded", "a newer request took over this session")
	default:
		var svcErr *voice.ServiceError
		if errors.As(err, &svcErr) {
			respondError(w, http.StatusBadGateway, svcErr.Service+"_error", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.UserText:
		return m.Type, true
	case protocol.UserAudio:
		return m.Type, true
	case protocol.SetLanguage:
		return m.Type, true
	case protocol.EndSession:
		return m.Type, true
	case protocol.Reply:
		return m.Type, true
	case protocol.SystemEvent:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
