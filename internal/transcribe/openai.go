package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/voice-ledger/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultOpenAIChatModel          = openai.GPT4oMini
	DefaultOpenAITranscriptionModel = openai.Whisper1
)

// OpenAI transcribes with a Whisper-style endpoint and then post-processes
// the transcript with a chat model. Any OpenAI-compatible server works via
// BaseURL.
type OpenAI struct {
	client    *openai.Client
	chatModel string
	sttModel  string
	language  string
	timeout   time.Duration
	now       func() time.Time
}

// OpenAIOptions configures NewOpenAI.
type OpenAIOptions struct {
	APIKey             string
	BaseURL            string
	Model              string
	TranscriptionModel string
	Timeout            time.Duration
}

func NewOpenAI(opts OpenAIOptions) (*OpenAI, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("NewOpenAI: %w", ErrMissingCredential)
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	o := &OpenAI{
		client:    openai.NewClientWithConfig(cfg),
		chatModel: opts.Model,
		sttModel:  opts.TranscriptionModel,
		language:  "vi",
		timeout:   opts.Timeout,
		now:       time.Now,
	}
	if o.chatModel == "" {
		o.chatModel = DefaultOpenAIChatModel
	}
	if o.sttModel == "" {
		o.sttModel = DefaultOpenAITranscriptionModel
	}
	return o, nil
}

func (o *OpenAI) TranscribeFreeform(ctx context.Context, audio []byte, mimeType string) (string, error) {
	ctx, cancel := o.withTimeout(ctx)
	defer cancel()

	text, err := o.transcribe(ctx, audio, mimeType)
	if err != nil {
		return "", fmt.Errorf("TranscribeFreeform: %w", err)
	}
	return text, nil
}

func (o *OpenAI) TranscribeStandardized(ctx context.Context, audio []byte, mimeType, fieldLabel string) (string, error) {
	ctx, cancel := o.withTimeout(ctx)
	defer cancel()

	text, err := o.transcribe(ctx, audio, mimeType)
	if err != nil {
		return "", fmt.Errorf("TranscribeStandardized: %w", err)
	}
	out, err := o.chat(ctx, standardizedPrompt(fieldLabel), text, false)
	if err != nil {
		return "", fmt.Errorf("TranscribeStandardized: %w", err)
	}
	return cleanStandardized(out), nil
}

func (o *OpenAI) ParseTransaction(ctx context.Context, audio []byte, mimeType string) (*ParsedTransaction, error) {
	ctx, cancel := o.withTimeout(ctx)
	defer cancel()

	text, err := o.transcribe(ctx, audio, mimeType)
	if err != nil {
		return nil, fmt.Errorf("ParseTransaction: %w", err)
	}
	raw, err := o.chat(ctx, parseTransactionPrompt(domain.Today(o.now())), text, true)
	if err != nil {
		return nil, fmt.Errorf("ParseTransaction: %w", err)
	}
	parsed, err := decodeParsedTransaction(raw)
	if err != nil {
		return nil, unavailable("ParseTransaction", err)
	}
	return parsed, nil
}

func (o *OpenAI) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.timeout > 0 {
		return context.WithTimeout(ctx, o.timeout)
	}
	return context.WithCancel(ctx)
}

func (o *OpenAI) transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model: o.sttModel,
		// The server sniffs the container from the file name.
		FilePath: "capture" + audioExtension(mimeType),
		Reader:   bytes.NewReader(audio),
		Language: o.language,
	})
	if err != nil {
		return "", unavailable("create transcription", err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", unavailable("create transcription", fmt.Errorf("empty transcript"))
	}
	return text, nil
}

func (o *OpenAI) chat(ctx context.Context, system, user string, jsonMode bool) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: o.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", unavailable("create chat completion", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", unavailable("create chat completion", fmt.Errorf("empty response from model"))
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func audioExtension(mimeType string) string {
	switch baseMIMEType(mimeType) {
	case "audio/mp4", "audio/x-m4a", "audio/m4a":
		return ".m4a"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	case "audio/flac":
		return ".flac"
	}
	return ".webm"
}

var _ Client = (*OpenAI)(nil)
