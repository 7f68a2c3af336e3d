package transcribe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/voice-ledger/internal/domain"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// Gemini sends audio inline to a Gemini model together with an instruction
// part, the same way statements are sent as inline PDF blobs.
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	now     func() time.Time
}

// GeminiOptions configures NewGemini.
type GeminiOptions struct {
	APIKey  string
	Model   string
	BaseURL string // override for tests or proxies
	Timeout time.Duration
}

// NewGemini creates a client for the Gemini Developer API.
func NewGemini(ctx context.Context, opts GeminiOptions) (*Gemini, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("NewGemini: %w", ErrMissingCredential)
	}
	model := opts.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			APIVersion: "v1",
			BaseURL:    opts.BaseURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGemini: create genai client: %w", err)
	}

	return &Gemini{client: client, model: model, timeout: opts.Timeout, now: time.Now}, nil
}

func (g *Gemini) TranscribeFreeform(ctx context.Context, audio []byte, mimeType string) (string, error) {
	text, err := g.generate(ctx, freeformPrompt(), audio, mimeType)
	if err != nil {
		return "", fmt.Errorf("TranscribeFreeform: %w", err)
	}
	return text, nil
}

func (g *Gemini) TranscribeStandardized(ctx context.Context, audio []byte, mimeType, fieldLabel string) (string, error) {
	text, err := g.generate(ctx, standardizedPrompt(fieldLabel), audio, mimeType)
	if err != nil {
		return "", fmt.Errorf("TranscribeStandardized: %w", err)
	}
	return cleanStandardized(text), nil
}

func (g *Gemini) ParseTransaction(ctx context.Context, audio []byte, mimeType string) (*ParsedTransaction, error) {
	raw, err := g.generate(ctx, parseTransactionPrompt(domain.Today(g.now())), audio, mimeType)
	if err != nil {
		return nil, fmt.Errorf("ParseTransaction: %w", err)
	}
	parsed, err := decodeParsedTransaction(raw)
	if err != nil {
		return nil, unavailable("ParseTransaction", err)
	}
	return parsed, nil
}

// generate runs one prompt+audio request and returns the trimmed text.
func (g *Gemini) generate(ctx context.Context, prompt string, audio []byte, mimeType string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
				{
					InlineData: &genai.Blob{
						MIMEType: baseMIMEType(mimeType),
						Data:     audio,
					},
				},
			},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	})
	if err != nil {
		return "", unavailable("generate content", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", unavailable("generate content", fmt.Errorf("empty response from model"))
	}
	return text, nil
}

var _ Client = (*Gemini)(nil)
