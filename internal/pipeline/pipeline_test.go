package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/laingfy/tutor-agent/internal/language"
	"github.com/laingfy/tutor-agent/internal/observability"
	"github.com/laingfy/tutor-agent/internal/transcript"
	"github.com/laingfy/tutor-agent/internal/voice"
)

var testMetrics = observability.NewMetrics("pipelinetest")

type fakeCompleter struct {
	reply string
	err   error
}

func (f *fakeCompleter) Complete(_ context.Context, _, _ string) (string, error) {
	return f.reply, f.err
}

type fakeSynthesizer struct {
	failTexts map[string]bool
	calls     []string
	err       error
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, text, _ string) ([]byte, error) {
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	if f.failTexts[text] {
		return nil, voice.NewServiceError("openai_tts", true, errors.New("synthesis refused"))
	}
	return []byte("mp3:" + text), nil
}

type fakeArtifacts struct {
	url string
	err error
}

func (f *fakeArtifacts) StoreAudio(_ context.Context, _ []byte, _ string) (string, error) {
	return f.url, f.err
}

func germanProfile(t *testing.T) language.Profile {
	t.Helper()
	p, ok := language.Resolve("de")
	if !ok {
		t.Fatalf("Resolve(de) failed")
	}
	return p
}

func TestRespondReturnsReplyAndAudioURL(t *testing.T) {
	reply := "🇩🇪 Hallo! 🇺🇸 Hello!"
	synth := &fakeSynthesizer{}
	store := transcript.NewInMemoryStore()
	p := New(&fakeCompleter{reply: reply}, synth, &fakeArtifacts{url: "https://b.s3.us-east-1.amazonaws.com/audio/audio_1_x.mp3"}, store, testMetrics)

	res, err := p.Respond(context.Background(), "s1", germanProfile(t), "hi")
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if res.ReplyText != reply {
		t.Fatalf("ReplyText = %q, want full reply", res.ReplyText)
	}
	if res.AudioURL == nil || *res.AudioURL == "" {
		t.Fatalf("AudioURL = %v, want stored URL", res.AudioURL)
	}
	if len(synth.calls) != 1 || synth.calls[0] != "Hallo!" {
		t.Fatalf("synth calls = %v, want extracted speech text", synth.calls)
	}

	turns, err := store.Recent(context.Background(), "s1", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(turns) != 2 || turns[0].Role != "user" || turns[1].Role != "assistant" {
		t.Fatalf("transcript turns = %+v, want user then assistant", turns)
	}
	if turns[1].AudioURL == "" {
		t.Fatalf("assistant turn should carry the audio URL")
	}
}

func TestRespondRetriesSynthesisWithFullReply(t *testing.T) {
	reply := "🇩🇪 Guten Tag! 🇺🇸 Good day!"
	synth := &fakeSynthesizer{failTexts: map[string]bool{"Guten Tag!": true}}
	p := New(&fakeCompleter{reply: reply}, synth, &fakeArtifacts{url: "https://x/audio.mp3"}, nil, testMetrics)

	res, err := p.Respond(context.Background(), "s1", germanProfile(t), "hi")
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if len(synth.calls) != 2 || synth.calls[1] != reply {
		t.Fatalf("synth calls = %v, want retry with full reply", synth.calls)
	}
	if res.AudioURL == nil {
		t.Fatalf("AudioURL = nil, want retry to succeed")
	}
}

func TestRespondDegradesToTextOnSynthesisFailure(t *testing.T) {
	synth := &fakeSynthesizer{err: voice.NewServiceError("openai_tts", true, errors.New("down"))}
	p := New(&fakeCompleter{reply: "🇩🇪 Hallo! 🇺🇸 Hi!"}, synth, &fakeArtifacts{url: "https://x/audio.mp3"}, nil, testMetrics)

	res, err := p.Respond(context.Background(), "s1", germanProfile(t), "hi")
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if res.ReplyText == "" {
		t.Fatalf("ReplyText should survive synthesis failure")
	}
	if res.AudioURL != nil {
		t.Fatalf("AudioURL = %v, want nil after synthesis failure", res.AudioURL)
	}
}

func TestRespondDegradesToTextOnStorageFailure(t *testing.T) {
	p := New(&fakeCompleter{reply: "hi there"}, &fakeSynthesizer{}, &fakeArtifacts{err: errors.New("bucket gone")}, nil, testMetrics)

	res, err := p.Respond(context.Background(), "s1", germanProfile(t), "hi")
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if res.AudioURL != nil {
		t.Fatalf("AudioURL = %v, want nil after storage failure", res.AudioURL)
	}
}

func TestRespondNoAudioModeWithoutArtifactStore(t *testing.T) {
	synth := &fakeSynthesizer{}
	p := New(&fakeCompleter{reply: "hello"}, synth, nil, nil, testMetrics)

	res, err := p.Respond(context.Background(), "s1", germanProfile(t), "hi")
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if res.AudioURL != nil {
		t.Fatalf("AudioURL = %v, want nil in no-audio mode", res.AudioURL)
	}
	if len(synth.calls) != 0 {
		t.Fatalf("synthesizer should not run without an artifact store")
	}
}

func TestRespondFailsWhenCompletionFails(t *testing.T) {
	wantErr := voice.NewServiceError("openai_chat", true, errors.New("rate limited"))
	p := New(&fakeCompleter{err: wantErr}, &fakeSynthesizer{}, &fakeArtifacts{}, nil, testMetrics)

	_, err := p.Respond(context.Background(), "s1", germanProfile(t), "hi")
	if err == nil {
		t.Fatalf("Respond() should fail when completion fails")
	}
	var svcErr *voice.ServiceError
	if !errors.As(err, &svcErr) || svcErr.Service != "openai_chat" {
		t.Fatalf("err = %v, want the completion ServiceError", err)
	}
}
