package transcript

import (
	"context"
	"time"
)

// Record stores a single user or assistant turn of a tutoring session.
type Record struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Language  string    `json:"language"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	AudioURL  string    `json:"audio_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists and retrieves conversation transcripts.
type Store interface {
	SaveTurn(ctx context.Context, record Record) error
	Recent(ctx context.Context, sessionID string, limit int) ([]Record, error)
	Close() error
}
