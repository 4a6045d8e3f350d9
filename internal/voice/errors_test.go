package voice

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestServiceErrorWrapping(t *testing.T) {
	inner := errors.New("boom")
	err := NewServiceError("openai_tts", true, inner)

	if !errors.Is(err, inner) {
		t.Fatalf("errors.Is should see the wrapped error")
	}
	var svcErr *ServiceError
	if !errors.As(error(err), &svcErr) {
		t.Fatalf("errors.As should match *ServiceError")
	}
	if svcErr.Service != "openai_tts" || !svcErr.Retryable {
		t.Fatalf("unexpected fields: %+v", svcErr)
	}
	if !strings.Contains(err.Error(), "openai_tts") {
		t.Fatalf("Error() = %q, want service name included", err.Error())
	}
}

func TestMockProviderRoundTrip(t *testing.T) {
	p := NewMockProvider()
	ctx := context.Background()

	reply, err := p.Complete(ctx, "system", "hallo")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if !strings.Contains(reply, "hallo") {
		t.Fatalf("reply = %q, want echo of input", reply)
	}

	audio, err := p.Synthesize(ctx, reply, "shimmer")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if len(audio) == 0 {
		t.Fatalf("Synthesize() returned empty audio")
	}

	text, err := p.Transcribe(ctx, []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text == "" {
		t.Fatalf("Transcribe() returned empty text")
	}

	c, s, tr := p.Counts()
	if c != 1 || s != 1 || tr != 1 {
		t.Fatalf("Counts() = (%d,%d,%d), want (1,1,1)", c, s, tr)
	}
}
