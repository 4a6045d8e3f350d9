package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":9090" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":9090")
	}
	if cfg.ChatModel != "gpt-4o-mini" {
		t.Fatalf("ChatModel = %q, want %q", cfg.ChatModel, "gpt-4o-mini")
	}
	if cfg.AWSRegion != "us-east-1" {
		t.Fatalf("AWSRegion = %q, want default us-east-1", cfg.AWSRegion)
	}
	if cfg.AudioRetention != 24*time.Hour {
		t.Fatalf("AudioRetention = %v, want 24h", cfg.AudioRetention)
	}
	if cfg.RoomParticipantTimeout != 5*time.Minute {
		t.Fatalf("RoomParticipantTimeout = %v, want 5m", cfg.RoomParticipantTimeout)
	}
}

func TestLoadParsesDurations(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("AUDIO_RETENTION", "48h")
	t.Setenv("ROOM_PARTICIPANT_TIMEOUT", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AudioRetention != 48*time.Hour {
		t.Fatalf("AudioRetention = %v, want 48h", cfg.AudioRetention)
	}
	if cfg.RoomParticipantTimeout != 30*time.Second {
		t.Fatalf("RoomParticipantTimeout = %v, want 30s", cfg.RoomParticipantTimeout)
	}
}

func TestLoadRejectsTinyRetention(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("AUDIO_RETENTION", "5s")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() should reject AUDIO_RETENTION below 1m")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_SESSION_INACTIVITY_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"OPENAI_API_KEY",
		"OPENAI_CHAT_MODEL",
		"OPENAI_SPEECH_MODEL",
		"OPENAI_TRANSCRIBE_MODEL",
		"AWS_REGION",
		"AWS_S3_BUCKET_AUDIO",
		"AUDIO_KEY_PREFIX",
		"AUDIO_RETENTION",
		"AUDIO_SWEEP_INTERVAL",
		"LIVEKIT_URL",
		"ROOM_PARTICIPANT_TIMEOUT",
		"ROOM_POLL_INTERVAL",
		"DATABASE_URL",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
