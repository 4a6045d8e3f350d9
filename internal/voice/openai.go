package voice

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIConfig selects the models used for each service.
type OpenAIConfig struct {
	APIKey          string
	ChatModel       string
	SpeechModel     string
	TranscribeModel string
}

// OpenAIProvider implements Completer, Synthesizer and Transcriber on the
// OpenAI API.
type OpenAIProvider struct {
	client          *openai.Client
	chatModel       string
	speechModel     string
	transcribeModel string
}

func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	client := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	p := &OpenAIProvider{
		client:          &client,
		chatModel:       cfg.ChatModel,
		speechModel:     cfg.SpeechModel,
		transcribeModel: cfg.TranscribeModel,
	}
	if p.chatModel == "" {
		p.chatModel = "gpt-4o-mini"
	}
	if p.speechModel == "" {
		p.speechModel = "tts-1"
	}
	if p.transcribeModel == "" {
		p.transcribeModel = "whisper-1"
	}
	return p, nil
}

func (p *OpenAIProvider) Complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.chatModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userText),
		},
		Temperature: openai.Float(0.7),
		MaxTokens:   openai.Int(700),
	})
	if err != nil {
		return "", NewServiceError("openai_chat", true, err)
	}
	if len(resp.Choices) == 0 {
		return "", NewServiceError("openai_chat", false, errors.New("empty completion response"))
	}
	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return "", NewServiceError("openai_chat", false, errors.New("blank completion text"))
	}
	return text, nil
}

func (p *OpenAIProvider) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, NewServiceError("openai_tts", false, errors.New("empty text for synthesis"))
	}
	resp, err := p.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model: openai.SpeechModel(p.speechModel),
		Voice: openai.AudioSpeechNewParamsVoice(voiceID),
		Input: text,
	})
	if err != nil {
		return nil, NewServiceError("openai_tts", true, err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewServiceError("openai_tts", true, err)
	}
	if len(audio) == 0 {
		return nil, NewServiceError("openai_tts", false, errors.New("empty audio response"))
	}
	return audio, nil
}

func (p *OpenAIProvider) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", NewServiceError("openai_stt", false, errors.New("empty audio upload"))
	}
	resp, err := p.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: openai.AudioModel(p.transcribeModel),
		File:  openai.File(bytes.NewReader(audio), "audio.wav", "application/octet-stream"),
	})
	if err != nil {
		return "", NewServiceError("openai_stt", true, err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", NewServiceError("openai_stt", false, errors.New("empty transcription"))
	}
	return text, nil
}
