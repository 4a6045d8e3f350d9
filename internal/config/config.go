package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the tutoring agent service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	OpenAIAPIKey   string
	ChatModel      string
	SpeechModel    string
	TranscribeModel string

	AWSRegion     string
	AudioBucket   string
	AudioKeyPrefix string
	AudioRetention time.Duration
	SweepInterval  time.Duration

	LiveKitURL             string
	RoomParticipantTimeout time.Duration
	RoomPollInterval       time.Duration

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:                 envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:         envOrDefault("APP_METRICS_NAMESPACE", "tutor"),
		AllowAnyOrigin:           false,
		OpenAIAPIKey:             stringsTrimSpace("OPENAI_API_KEY"),
		ChatModel:                envOrDefault("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		SpeechModel:              envOrDefault("OPENAI_SPEECH_MODEL", "tts-1"),
		TranscribeModel:          envOrDefault("OPENAI_TRANSCRIBE_MODEL", "whisper-1"),
		AWSRegion:                envOrDefault("AWS_REGION", "us-east-1"),
		AudioBucket:              stringsTrimSpace("AWS_S3_BUCKET_AUDIO"),
		AudioKeyPrefix:           envOrDefault("AUDIO_KEY_PREFIX", "audio/"),
		LiveKitURL:               stringsTrimSpace("LIVEKIT_URL"),
		DatabaseURL:              stringsTrimSpace("DATABASE_URL"),
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 10 * time.Minute,
		AudioRetention:           24 * time.Hour,
		SweepInterval:            time.Hour,
		RoomParticipantTimeout:   5 * time.Minute,
		RoomPollInterval:         5 * time.Second,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AudioRetention, err = durationFromEnv("AUDIO_RETENTION", cfg.AudioRetention)
	if err != nil {
		return Config{}, err
	}
	cfg.SweepInterval, err = durationFromEnv("AUDIO_SWEEP_INTERVAL", cfg.SweepInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.RoomParticipantTimeout, err = durationFromEnv("ROOM_PARTICIPANT_TIMEOUT", cfg.RoomParticipantTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.RoomPollInterval, err = durationFromEnv("ROOM_POLL_INTERVAL", cfg.RoomPollInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.AudioRetention < time.Minute {
		return Config{}, fmt.Errorf("AUDIO_RETENTION must be at least 1m")
	}
	if cfg.SweepInterval < time.Minute {
		return Config{}, fmt.Errorf("AUDIO_SWEEP_INTERVAL must be at least 1m")
	}
	if cfg.RoomParticipantTimeout < time.Second {
		return Config{}, fmt.Errorf("ROOM_PARTICIPANT_TIMEOUT must be at least 1s")
	}
	if cfg.RoomPollInterval < 100*time.Millisecond {
		return Config{}, fmt.Errorf("ROOM_POLL_INTERVAL must be at least 100ms")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
