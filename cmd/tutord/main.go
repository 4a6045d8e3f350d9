package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/laingfy/tutor-agent/internal/agent"
	"github.com/laingfy/tutor-agent/internal/artifact"
	"github.com/laingfy/tutor-agent/internal/config"
	"github.com/laingfy/tutor-agent/internal/httpapi"
	"github.com/laingfy/tutor-agent/internal/observability"
	"github.com/laingfy/tutor-agent/internal/pipeline"
	"github.com/laingfy/tutor-agent/internal/room"
	"github.com/laingfy/tutor-agent/internal/rtc"
	"github.com/laingfy/tutor-agent/internal/session"
	"github.com/laingfy/tutor-agent/internal/transcript"
	"github.com/laingfy/tutor-agent/internal/voice"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	transcripts, err := transcript.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("transcript store init failed: %v", err)
	}
	defer transcripts.Close()

	var provider voice.Provider
	if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		p, err := voice.NewOpenAIProvider(voice.OpenAIConfig{
			APIKey:          cfg.OpenAIAPIKey,
			ChatModel:       cfg.ChatModel,
			SpeechModel:     cfg.SpeechModel,
			TranscribeModel: cfg.TranscribeModel,
		})
		if err != nil {
			log.Fatalf("openai provider init failed: %v", err)
		}
		provider = p
		log.Printf("ai provider: openai (chat=%s tts=%s stt=%s)", cfg.ChatModel, cfg.SpeechModel, cfg.TranscribeModel)
	} else {
		provider = voice.NewMockProvider()
		log.Printf("ai provider: mock (OPENAI_API_KEY not set)")
	}

	artifacts := initArtifactStore(ctx, cfg)

	pipe := pipeline.New(provider, provider, pipelineArtifacts(artifacts), transcripts, metrics)

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(_ *session.Session) {
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})
	sessions.SetLanguageChangeHook(func(sessionID, lang string) {
		log.Printf("session %s switched language to %s", sessionID, lang)
	})

	svc := agent.New(sessions, pipe, provider, metrics)

	var connector rtc.Connector
	if strings.TrimSpace(cfg.LiveKitURL) != "" {
		connector = rtc.NewLiveKitConnector()
		log.Printf("rtc connector: livekit (%s)", cfg.LiveKitURL)
	} else {
		connector = rtc.NewMockConnector()
		log.Printf("rtc connector: mock (LIVEKIT_URL not set)")
	}
	rooms := room.NewManager(connector, svc, metrics, room.Config{
		ServerURL:          cfg.LiveKitURL,
		ParticipantTimeout: cfg.RoomParticipantTimeout,
		PollInterval:       cfg.RoomPollInterval,
	})

	api := httpapi.New(cfg, sessions, svc, rooms, httpSweeper(artifacts), transcripts, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, 5*time.Second)
	if artifacts != nil {
		artifacts.StartJanitor(runCtx, cfg.SweepInterval, cfg.AudioRetention, func(deleted int) {
			metrics.ArtifactsSwept.Add(float64(deleted))
		})
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	rooms.StopAll()
	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}

// initArtifactStore wires S3-backed audio storage. A missing bucket or
// unreachable endpoint degrades the service to text-only replies rather
// than failing startup.
func initArtifactStore(ctx context.Context, cfg config.Config) *artifact.Store {
	if strings.TrimSpace(cfg.AudioBucket) == "" {
		log.Printf("audio artifacts disabled (AWS_S3_BUCKET_AUDIO not set)")
		return nil
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}
	accessKey := strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID"))
	secretKey := strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY"))
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		log.Printf("aws config load failed, audio artifacts disabled: %v", err)
		return nil
	}

	store, err := artifact.NewStore(s3.NewFromConfig(awsCfg), artifact.Config{
		Bucket: cfg.AudioBucket,
		Region: cfg.AWSRegion,
		Prefix: cfg.AudioKeyPrefix,
	})
	if err != nil {
		log.Printf("artifact store init failed, audio artifacts disabled: %v", err)
		return nil
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := store.CheckBucket(checkCtx); err != nil {
		log.Printf("bucket %s unavailable, audio artifacts disabled: %v", cfg.AudioBucket, err)
		return nil
	}

	log.Printf("audio artifacts: s3://%s (%s, retention %s)", cfg.AudioBucket, cfg.AWSRegion, cfg.AudioRetention)
	return store
}

// pipelineArtifacts keeps the pipeline's nil check meaningful: a typed
// nil *artifact.Store must become an untyped nil interface.
func pipelineArtifacts(store *artifact.Store) pipeline.ArtifactStore {
	if store == nil {
		return nil
	}
	return store
}

func httpSweeper(store *artifact.Store) httpapi.Sweeper {
	if store == nil {
		return nil
	}
	return store
}
