package transcribe

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/voice-ledger/internal/config"
)

// New builds the configured backend. Without an API key it returns
// Unconfigured, so every call fails fast with ErrMissingCredential.
func New(ctx context.Context, cfg config.AIConfig) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Unconfigured{}, nil
	}

	switch cfg.Provider {
	case "", "gemini":
		return NewGemini(ctx, GeminiOptions{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		})
	case "openai":
		return NewOpenAI(OpenAIOptions{
			APIKey:             cfg.APIKey,
			BaseURL:            cfg.BaseURL,
			Model:              cfg.Model,
			TranscriptionModel: cfg.TranscriptionModel,
			Timeout:            cfg.Timeout,
		})
	}
	return nil, fmt.Errorf("transcribe.New: unknown provider %q", cfg.Provider)
}
