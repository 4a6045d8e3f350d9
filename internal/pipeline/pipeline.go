package pipeline

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/laingfy/tutor-agent/internal/language"
	"github.com/laingfy/tutor-agent/internal/observability"
	"github.com/laingfy/tutor-agent/internal/transcript"
	"github.com/laingfy/tutor-agent/internal/voice"
)

// Result is the outcome of one pipeline run. AudioURL is nil when speech
// synthesis or artifact storage was unavailable; ReplyText is always set.
type Result struct {
	ReplyText string  `json:"text"`
	AudioURL  *string `json:"audio_url"`
}

// ArtifactStore uploads synthesized audio and returns its public URL.
type ArtifactStore interface {
	StoreAudio(ctx context.Context, audio []byte, language string) (string, error)
}

// Pipeline turns user input into a tutoring reply with optional audio.
type Pipeline struct {
	completer   voice.Completer
	synthesizer voice.Synthesizer
	artifacts   ArtifactStore
	transcripts transcript.Store
	metrics     *observability.Metrics
}

// New builds a Pipeline. artifacts may be nil when object storage is
// unreachable; the pipeline then runs in no-audio mode.
func New(completer voice.Completer, synthesizer voice.Synthesizer, artifacts ArtifactStore, transcripts transcript.Store, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		completer:   completer,
		synthesizer: synthesizer,
		artifacts:   artifacts,
		transcripts: transcripts,
		metrics:     metrics,
	}
}

// Respond runs the full pipeline for one user input.
func (p *Pipeline) Respond(ctx context.Context, sessionID string, profile language.Profile, userText string) (Result, error) {
	start := time.Now()

	p.saveTurn(ctx, sessionID, profile.Code, "user", userText, "")

	completeStart := time.Now()
	reply, err := p.completer.Complete(ctx, profile.SystemPrompt, userText)
	p.metrics.ObserveStage(observability.StageComplete, time.Since(completeStart))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			p.metrics.PipelineRuns.WithLabelValues("cancelled").Inc()
			return Result{}, err
		}
		p.observeServiceError(err)
		p.metrics.PipelineRuns.WithLabelValues("failed").Inc()
		return Result{}, err
	}

	extractStart := time.Now()
	speech := language.SpeechText(profile, reply)
	p.metrics.ObserveStage(observability.StageExtract, time.Since(extractStart))

	audioURL := p.generateAudio(ctx, profile, speech, reply)
	var urlValue string
	if audioURL != nil {
		urlValue = *audioURL
	}

	p.saveTurn(ctx, sessionID, profile.Code, "assistant", reply, urlValue)

	p.metrics.ObserveStage(observability.StageTotal, time.Since(start))
	p.metrics.PipelineRuns.WithLabelValues("ok").Inc()
	return Result{ReplyText: reply, AudioURL: audioURL}, nil
}

// generateAudio synthesizes and stores reply audio. Any failure degrades to
// a text-only result; a failed synthesis of the extracted speech is retried
// once with the full reply.
func (p *Pipeline) generateAudio(ctx context.Context, profile language.Profile, speech, reply string) *string {
	if p.synthesizer == nil || p.artifacts == nil {
		return nil
	}

	synthStart := time.Now()
	audio, err := p.synthesizer.Synthesize(ctx, speech, profile.VoiceID)
	if err != nil && speech != reply {
		p.metrics.ObserveIndicator("synth_retry_full_text")
		audio, err = p.synthesizer.Synthesize(ctx, reply, profile.VoiceID)
	}
	p.metrics.ObserveStage(observability.StageSynthesize, time.Since(synthStart))
	if err != nil {
		p.observeServiceError(err)
		log.Printf("speech synthesis failed, continuing without audio: %v", err)
		return nil
	}

	storeStart := time.Now()
	url, err := p.artifacts.StoreAudio(ctx, audio, profile.Code)
	p.metrics.ObserveStage(observability.StageStore, time.Since(storeStart))
	if err != nil {
		p.metrics.ProviderErrors.WithLabelValues("s3").Inc()
		log.Printf("artifact upload failed, continuing without audio: %v", err)
		return nil
	}
	p.metrics.ArtifactsStored.Inc()
	return &url
}

func (p *Pipeline) saveTurn(ctx context.Context, sessionID, lang, role, content, audioURL string) {
	if p.transcripts == nil {
		return
	}
	err := p.transcripts.SaveTurn(ctx, transcript.Record{
		SessionID: sessionID,
		Language:  lang,
		Role:      role,
		Content:   content,
		AudioURL:  audioURL,
	})
	if err != nil {
		log.Printf("transcript save failed: %v", err)
	}
}

func (p *Pipeline) observeServiceError(err error) {
	var svcErr *voice.ServiceError
	if errors.As(err, &svcErr) {
		p.metrics.ProviderErrors.WithLabelValues(svcErr.Service).Inc()
		return
	}
	p.metrics.ProviderErrors.WithLabelValues("unknown").Inc()
}
