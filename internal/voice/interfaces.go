package voice

import "context"

// Completer produces a tutoring reply for the given prompts.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userText string) (string, error)
}

// Synthesizer turns reply text into spoken audio (MP3 bytes).
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

// Transcriber converts recorded user audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Provider bundles the three AI services one backend exposes.
type Provider interface {
	Completer
	Synthesizer
	Transcriber
}
