package agent

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/laingfy/tutor-agent/internal/language"
	"github.com/laingfy/tutor-agent/internal/observability"
	"github.com/laingfy/tutor-agent/internal/pipeline"
	"github.com/laingfy/tutor-agent/internal/session"
	"github.com/laingfy/tutor-agent/internal/voice"
)

var ErrEmptyInput = errors.New("empty input")

// Response is the result of one submitted exchange.
type Response struct {
	SessionID string  `json:"session_id"`
	Language  string  `json:"language"`
	Text      string  `json:"text"`
	AudioURL  *string `json:"audio_url"`
}

// Service is the core surface of the tutoring agent: text in, audio in,
// tutoring reply out. Each session processes one exchange at a time.
type Service struct {
	sessions    *session.Manager
	pipe        *pipeline.Pipeline
	transcriber voice.Transcriber
	metrics     *observability.Metrics
}

func New(sessions *session.Manager, pipe *pipeline.Pipeline, transcriber voice.Transcriber, metrics *observability.Metrics) *Service {
	return &Service{
		sessions:    sessions,
		pipe:        pipe,
		transcriber: transcriber,
		metrics:     metrics,
	}
}

// SubmitText runs one text exchange through the session's serialized slot.
func (s *Service) SubmitText(ctx context.Context, sessionID, languageLabel, text string) (Response, error) {
	if strings.TrimSpace(text) == "" {
		return Response{}, ErrEmptyInput
	}

	profile := s.resolveProfile(languageLabel)
	sess := s.sessions.Ensure(sessionID, profile.Code)
	if _, err := s.sessions.SetLanguage(sess.ID, profile.Code); err != nil {
		return Response{}, err
	}

	var result pipeline.Result
	err := s.sessions.Submit(ctx, sess.ID, func(runCtx context.Context) error {
		var runErr error
		result, runErr = s.pipe.Respond(runCtx, sess.ID, profile, text)
		return runErr
	})
	if err != nil {
		return Response{}, err
	}

	return Response{
		SessionID: sess.ID,
		Language:  profile.Code,
		Text:      result.ReplyText,
		AudioURL:  result.AudioURL,
	}, nil
}

// SubmitAudio transcribes the upload and runs the text exchange.
func (s *Service) SubmitAudio(ctx context.Context, sessionID, languageLabel string, audio []byte) (Response, error) {
	if len(audio) == 0 {
		return Response{}, ErrEmptyInput
	}
	if s.transcriber == nil {
		return Response{}, voice.NewServiceError("openai_stt", false, errors.New("transcription not configured"))
	}

	text, err := s.transcriber.Transcribe(ctx, audio)
	if err != nil {
		var svcErr *voice.ServiceError
		if errors.As(err, &svcErr) {
			s.metrics.ProviderErrors.WithLabelValues(svcErr.Service).Inc()
		}
		return Response{}, err
	}
	return s.SubmitText(ctx, sessionID, languageLabel, text)
}

func (s *Service) resolveProfile(label string) language.Profile {
	profile, ok := language.Resolve(label)
	if !ok && strings.TrimSpace(label) != "" {
		s.metrics.UnknownLanguages.Inc()
		log.Printf("unknown language %q, using default profile %s", label, profile.Code)
	}
	return profile
}
