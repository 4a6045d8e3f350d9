package protocol

import (
	"errors"
	"testing"
)

func TestParseClientMessageUserText(t *testing.T) {
	raw := []byte(`{"type":"user_text","session_id":"s1","language":"de","text":"Hallo"}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	text, ok := msg.(UserText)
	if !ok {
		t.Fatalf("message type = %T, want UserText", msg)
	}
	if text.SessionID != "s1" || text.Language != "de" || text.Text != "Hallo" {
		t.Fatalf("unexpected user text: %+v", text)
	}
}

func TestParseClientMessageUserTextWithoutSession(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"type":"user_text","text":"hi"}`))
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	if text := msg.(UserText); text.SessionID != "" {
		t.Fatalf("SessionID = %q, want empty for new sessions", text.SessionID)
	}
}

func TestParseClientMessageUserAudio(t *testing.T) {
	raw := []byte(`{"type":"user_audio","session_id":"s1","language":"en","audio_base64":"AQID"}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	audio, ok := msg.(UserAudio)
	if !ok {
		t.Fatalf("message type = %T, want UserAudio", msg)
	}
	if audio.AudioBase64 != "AQID" {
		t.Fatalf("unexpected user audio: %+v", audio)
	}
}

func TestParseClientMessageSetLanguage(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"type":"set_language","session_id":"s1","language":"zh"}`))
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	if set := msg.(SetLanguage); set.Language != "zh" {
		t.Fatalf("unexpected set language: %+v", set)
	}
}

func TestParseClientMessageEndSession(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"type":"end_session","session_id":"s1"}`))
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	if end := msg.(EndSession); end.SessionID != "s1" {
		t.Fatalf("unexpected end session: %+v", end)
	}
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"wat"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseClientMessageRejectsInvalidPayloads(t *testing.T) {
	cases := []string{
		`{"type":"user_text","session_id":"s1","text":""}`,
		`{"type":"user_audio","session_id":"s1","audio_base64":""}`,
		`{"type":"set_language","session_id":"","language":"de"}`,
		`{"type":"set_language","session_id":"s1","language":""}`,
		`{"type":"end_session","session_id":""}`,
		`not json`,
	}
	for _, raw := range cases {
		if _, err := ParseClientMessage([]byte(raw)); err == nil {
			t.Fatalf("ParseClientMessage(%s) should fail", raw)
		}
	}
}

func BenchmarkParseClientMessageUserText(b *testing.B) {
	raw := []byte(`{"type":"user_text","session_id":"s1","language":"de","text":"Wie geht es dir heute?"}`)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		msg, err := ParseClientMessage(raw)
		if err != nil {
			b.Fatalf("ParseClientMessage() error = %v", err)
		}
		if _, ok := msg.(UserText); !ok {
			b.Fatalf("message type = %T, want UserText", msg)
		}
	}
}
