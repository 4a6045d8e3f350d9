package voice

import (
	"context"
	"strings"
	"sync"
)

// MockProvider is a local fallback provider used when OpenAI is not
// configured. Replies echo the input so the service stays interactive
// in development.
type MockProvider struct {
	mu          sync.Mutex
	completions int
	syntheses   int
	transcripts int
}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Complete(_ context.Context, _ string, userText string) (string, error) {
	p.mu.Lock()
	p.completions++
	p.mu.Unlock()
	if strings.TrimSpace(userText) == "" {
		return "Tell me a bit more!", nil
	}
	return "You said: " + userText + "\n❓ What else would you like to practice?", nil
}

func (p *MockProvider) Synthesize(_ context.Context, text, _ string) ([]byte, error) {
	p.mu.Lock()
	p.syntheses++
	p.mu.Unlock()
	return []byte("mock-mp3:" + text), nil
}

func (p *MockProvider) Transcribe(_ context.Context, audio []byte) (string, error) {
	p.mu.Lock()
	p.transcripts++
	p.mu.Unlock()
	if len(audio) == 0 {
		return "", nil
	}
	return "simulated voice input", nil
}

// Counts reports how many calls each service received.
func (p *MockProvider) Counts() (completions, syntheses, transcripts int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completions, p.syntheses, p.transcripts
}
