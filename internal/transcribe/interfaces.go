// Package transcribe adapts recorded audio to an external AI service that
// either transcribes it or extracts ledger fields from it.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"
)

var (
	// ErrMissingCredential means no API key is configured for this process.
	// Calls fail fast with it, without touching the network.
	ErrMissingCredential = errors.New("no AI credential configured")

	// ErrServiceUnavailable covers every other failure: network, API error,
	// empty or undecodable model output. Retrying is left to the user.
	ErrServiceUnavailable = errors.New("AI service unavailable")
)

// DefaultMIMEType is assumed when the recorder did not report one.
const DefaultMIMEType = "audio/webm"

// Client is the narrow contract the capture pipeline needs from the AI
// service.
type Client interface {
	// TranscribeFreeform returns the plain transcript of the audio.
	TranscribeFreeform(ctx context.Context, audio []byte, mimeType string) (string, error)

	// TranscribeStandardized transcribes the audio and normalizes it to one
	// clean value for the named field (filler words removed, tax ids as
	// digits, ...).
	TranscribeStandardized(ctx context.Context, audio []byte, mimeType, fieldLabel string) (string, error)

	// ParseTransaction extracts date, description and amount from a single
	// spoken sentence. Fields the service did not return are nil.
	ParseTransaction(ctx context.Context, audio []byte, mimeType string) (*ParsedTransaction, error)
}

// ParsedTransaction is a structured guess. Nil means absent, not invalid.
type ParsedTransaction struct {
	Date        *string `json:"date,omitempty"`
	Description *string `json:"description,omitempty"`
	Amount      *int64  `json:"amount,omitempty"`
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrServiceUnavailable, err)
}

// baseMIMEType drops codec parameters ("audio/webm;codecs=opus" ->
// "audio/webm"); providers reject them.
func baseMIMEType(mimeType string) string {
	if strings.TrimSpace(mimeType) == "" {
		return DefaultMIMEType
	}
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return DefaultMIMEType
	}
	return mt
}

// Unconfigured is the Client used when no API key is set.
type Unconfigured struct{}

func (Unconfigured) TranscribeFreeform(ctx context.Context, audio []byte, mimeType string) (string, error) {
	return "", fmt.Errorf("TranscribeFreeform: %w", ErrMissingCredential)
}

func (Unconfigured) TranscribeStandardized(ctx context.Context, audio []byte, mimeType, fieldLabel string) (string, error) {
	return "", fmt.Errorf("TranscribeStandardized: %w", ErrMissingCredential)
}

func (Unconfigured) ParseTransaction(ctx context.Context, audio []byte, mimeType string) (*ParsedTransaction, error) {
	return nil, fmt.Errorf("ParseTransaction: %w", ErrMissingCredential)
}

var _ Client = Unconfigured{}
