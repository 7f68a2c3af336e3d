package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/voice-ledger/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnconfigured(t *testing.T) {
	ctx := context.Background()
	var c Client = Unconfigured{}

	_, err := c.TranscribeFreeform(ctx, []byte("x"), "audio/webm")
	assert.ErrorIs(t, err, ErrMissingCredential)
	_, err = c.TranscribeStandardized(ctx, []byte("x"), "audio/webm", "Mã số thuế")
	assert.ErrorIs(t, err, ErrMissingCredential)
	_, err = c.ParseTransaction(ctx, []byte("x"), "audio/webm")
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	c, err := New(ctx, config.AIConfig{Provider: "gemini"})
	require.NoError(t, err)
	assert.IsType(t, Unconfigured{}, c)

	c, err = New(ctx, config.AIConfig{Provider: "openai", APIKey: "sk-test"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAI{}, c)

	_, err = New(ctx, config.AIConfig{Provider: "clippy", APIKey: "k"})
	assert.Error(t, err)
}

// fakeOpenAI serves the two endpoints the OpenAI backend uses.
type fakeOpenAI struct {
	mu          sync.Mutex
	transcript  string
	chatReply   string
	fail        bool
	lastFile    string
	lastSystem  string
	lastJSONReq bool
}

func (f *fakeOpenAI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/audio/transcriptions"):
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			if _, hdr, err := r.FormFile("file"); err == nil {
				f.lastFile = hdr.Filename
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"text": f.transcript})
	case strings.HasSuffix(r.URL.Path, "/chat/completions"):
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			ResponseFormat *struct {
				Type string `json:"type"`
			} `json:"response_format"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) > 0 {
			f.lastSystem = req.Messages[0].Content
		}
		f.lastJSONReq = req.ResponseFormat != nil && req.ResponseFormat.Type == "json_object"
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]string{"role": "assistant", "content": f.chatReply},
				},
			},
		})
	default:
		http.NotFound(w, r)
	}
}

func newTestOpenAI(t *testing.T, fake *fakeOpenAI) *OpenAI {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := NewOpenAI(OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Timeout: 5 * time.Second})
	require.NoError(t, err)
	c.now = func() time.Time { return time.Date(2023, 10, 5, 9, 0, 0, 0, time.UTC) }
	return c
}

func TestOpenAI_TranscribeFreeform(t *testing.T) {
	fake := &fakeOpenAI{transcript: " bán năm ký gạo "}
	c := newTestOpenAI(t, fake)

	text, err := c.TranscribeFreeform(context.Background(), []byte("audio"), "audio/mp4")
	require.NoError(t, err)
	assert.Equal(t, "bán năm ký gạo", text)
	assert.Equal(t, "capture.m4a", fake.lastFile)
}

func TestOpenAI_TranscribeStandardized(t *testing.T) {
	fake := &fakeOpenAI{transcript: "mã số thuế là không ba một hai", chatReply: "\"0312\""}
	c := newTestOpenAI(t, fake)

	text, err := c.TranscribeStandardized(context.Background(), []byte("audio"), "audio/webm", "Mã số thuế")
	require.NoError(t, err)
	assert.Equal(t, "0312", text)
	assert.Contains(t, fake.lastSystem, "Mã số thuế")
	assert.False(t, fake.lastJSONReq)
}

func TestOpenAI_ParseTransaction(t *testing.T) {
	fake := &fakeOpenAI{transcript: "hôm nay bán được 5 triệu", chatReply: `{"date":null,"description":null,"amount":5000000}`}
	c := newTestOpenAI(t, fake)

	got, err := c.ParseTransaction(context.Background(), []byte("audio"), "audio/webm")
	require.NoError(t, err)
	assert.Nil(t, got.Date)
	assert.Nil(t, got.Description)
	require.NotNil(t, got.Amount)
	assert.Equal(t, int64(5000000), *got.Amount)
	assert.True(t, fake.lastJSONReq)
	assert.Contains(t, fake.lastSystem, "05/10/2023")
}

func TestOpenAI_ServiceError(t *testing.T) {
	c := newTestOpenAI(t, &fakeOpenAI{fail: true})

	_, err := c.TranscribeFreeform(context.Background(), []byte("audio"), "audio/webm")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.False(t, errors.Is(err, ErrMissingCredential))
}

func TestOpenAI_GarbageJSONIsUnavailable(t *testing.T) {
	c := newTestOpenAI(t, &fakeOpenAI{transcript: "ừm", chatReply: "sorry, no idea"})

	_, err := c.ParseTransaction(context.Background(), []byte("audio"), "audio/webm")
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

// fakeGemini answers generateContent calls with a fixed text.
func fakeGemini(t *testing.T, status int, text string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"error":{"code":503,"message":"unavailable","status":"UNAVAILABLE"}}`)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{
				{
					"content": map[string]interface{}{
						"role":  "model",
						"parts": []map[string]string{{"text": text}},
					},
				},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGemini_ParseTransaction(t *testing.T) {
	srv := fakeGemini(t, http.StatusOK, "```json\n{\"date\":\"05/10/2023\",\"description\":\"Bán hàng\",\"amount\":1000000}\n```")

	c, err := NewGemini(context.Background(), GeminiOptions{APIKey: "test-key", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	got, err := c.ParseTransaction(context.Background(), []byte("audio"), "audio/webm;codecs=opus")
	require.NoError(t, err)
	require.NotNil(t, got.Date)
	assert.Equal(t, "05/10/2023", *got.Date)
	require.NotNil(t, got.Amount)
	assert.Equal(t, int64(1000000), *got.Amount)
}

func TestGemini_TranscribeStandardized(t *testing.T) {
	srv := fakeGemini(t, http.StatusOK, "  \"Quý 3/2023\"  ")

	c, err := NewGemini(context.Background(), GeminiOptions{APIKey: "test-key", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	got, err := c.TranscribeStandardized(context.Background(), []byte("audio"), "audio/webm", "Kỳ kê khai")
	require.NoError(t, err)
	assert.Equal(t, "Quý 3/2023", got)
}

func TestGemini_ServiceError(t *testing.T) {
	srv := fakeGemini(t, http.StatusServiceUnavailable, "")

	c, err := NewGemini(context.Background(), GeminiOptions{APIKey: "test-key", BaseURL: srv.URL + "/", Timeout: 5 * time.Second})
	require.NoError(t, err)

	_, err = c.TranscribeFreeform(context.Background(), []byte("audio"), "audio/webm")
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestNewGemini_RequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), GeminiOptions{})
	assert.ErrorIs(t, err, ErrMissingCredential)
}
