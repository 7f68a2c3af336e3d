package transcribe

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/voice-ledger/internal/domain"
)

// cleanModelJSON strips Markdown fences and surrounding chatter so that only
// the outermost JSON object remains.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```json")
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = s[start : end+1]
		}
	}
	return strings.TrimSpace(s)
}

// decodeParsedTransaction turns the model's JSON object into a
// ParsedTransaction. Missing, null and empty fields become nil; amounts may
// arrive as numbers or digit strings.
func decodeParsedTransaction(raw string) (*ParsedTransaction, error) {
	clean := cleanModelJSON(raw)
	if clean == "" {
		return nil, fmt.Errorf("decodeParsedTransaction: empty model output")
	}

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(clean), &obj); err != nil {
		return nil, fmt.Errorf("decodeParsedTransaction: unmarshal JSON: %w (raw response: %q)", err, raw)
	}

	out := &ParsedTransaction{}
	var err error
	if out.Date, err = getOptionalStringField(obj, "date"); err != nil {
		return nil, fmt.Errorf("decodeParsedTransaction: %w", err)
	}
	if out.Date != nil {
		d := domain.DisplayDate(*out.Date)
		out.Date = &d
	}
	if out.Description, err = getOptionalStringField(obj, "description"); err != nil {
		return nil, fmt.Errorf("decodeParsedTransaction: %w", err)
	}
	if out.Amount, err = getOptionalAmountField(obj, "amount"); err != nil {
		return nil, fmt.Errorf("decodeParsedTransaction: %w", err)
	}
	return out, nil
}

func getOptionalStringField(m map[string]interface{}, key string) (*string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil, nil
		}
		return &s, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want string or null", key, v)
	}
}

func getOptionalAmountField(m map[string]interface{}, key string) (*int64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	var amount int64
	switch val := v.(type) {
	case float64:
		amount = domain.AmountFromNumber(val)
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		amount = domain.SanitizeAmount(val)
	default:
		return nil, fmt.Errorf("field %q has type %T, want number, string or null", key, v)
	}
	return &amount, nil
}

// cleanStandardized trims whitespace, wrapping quotes and a trailing period
// models like to add around a single value.
func cleanStandardized(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i != -1 {
		s = strings.TrimSpace(s[:i])
	}
	s = strings.Trim(s, "\"'“”`")
	s = strings.TrimSuffix(s, ".")
	return strings.TrimSpace(s)
}
