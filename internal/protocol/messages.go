package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeUserText    MessageType = "user_text"
	TypeUserAudio   MessageType = "user_audio"
	TypeSetLanguage MessageType = "set_language"
	TypeEndSession  MessageType = "end_session"
	TypeReply       MessageType = "reply"
	TypeSystemEvent MessageType = "system_event"
	TypeErrorEvent  MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// UserText carries one typed learner message.
type UserText struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	Language  string      `json:"language,omitempty"`
	Text      string      `json:"text"`
}

// UserAudio carries one recorded learner utterance, base64 encoded.
type UserAudio struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id,omitempty"`
	Language    string      `json:"language,omitempty"`
	AudioBase64 string      `json:"audio_base64"`
}

type SetLanguage struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Language  string      `json:"language"`
}

type EndSession struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
}

// Reply is the tutor's answer to one exchange. AudioURL is nil when the
// service degraded to text only.
type Reply struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Language  string      `json:"language"`
	Text      string      `json:"text"`
	AudioURL  *string     `json:"audio_url"`
}

type SystemEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail,omitempty"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	Code      string      `json:"code"`
	Source    string      `json:"source,omitempty"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeUserText:
		var msg UserText
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Text == "" {
			return nil, errors.New("invalid user_text")
		}
		return msg, nil
	case TypeUserAudio:
		var msg UserAudio
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.AudioBase64 == "" {
			return nil, errors.New("invalid user_audio")
		}
		return msg, nil
	case TypeSetLanguage:
		var msg SetLanguage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.Language == "" {
			return nil, errors.New("invalid set_language")
		}
		return msg, nil
	case TypeEndSession:
		var msg EndSession
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("invalid end_session")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
