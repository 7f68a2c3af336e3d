package transcribe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", `{"amount": 1}`, `{"amount": 1}`},
		{"fenced json", "```json\n{\"amount\": 1}\n```", `{"amount": 1}`},
		{"fenced bare", "```\n{\"amount\": 1}\n```", `{"amount": 1}`},
		{"chatter", "Here you go: {\"amount\": 1} hope it helps", `{"amount": 1}`},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanModelJSON(tt.raw))
		})
	}
}

func TestDecodeParsedTransaction(t *testing.T) {
	t.Run("amount only", func(t *testing.T) {
		got, err := decodeParsedTransaction(`{"date": null, "description": null, "amount": 5000000}`)
		require.NoError(t, err)
		assert.Nil(t, got.Date)
		assert.Nil(t, got.Description)
		require.NotNil(t, got.Amount)
		assert.Equal(t, int64(5000000), *got.Amount)
	})

	t.Run("all fields", func(t *testing.T) {
		got, err := decodeParsedTransaction("```json\n{\"date\":\"05/10/2023\",\"description\":\" Bán hàng \",\"amount\":\"1.000.000\"}\n```")
		require.NoError(t, err)
		require.NotNil(t, got.Date)
		assert.Equal(t, "05/10/2023", *got.Date)
		require.NotNil(t, got.Description)
		assert.Equal(t, "Bán hàng", *got.Description)
		require.NotNil(t, got.Amount)
		assert.Equal(t, int64(1000000), *got.Amount)
	})

	t.Run("iso date rewritten to ledger layout", func(t *testing.T) {
		got, err := decodeParsedTransaction(`{"date": "2023-10-05", "amount": 1}`)
		require.NoError(t, err)
		require.NotNil(t, got.Date)
		assert.Equal(t, "05/10/2023", *got.Date)
	})

	t.Run("missing keys are absent", func(t *testing.T) {
		got, err := decodeParsedTransaction(`{}`)
		require.NoError(t, err)
		assert.Equal(t, &ParsedTransaction{}, got)
	})

	t.Run("negative amount coerces to zero", func(t *testing.T) {
		got, err := decodeParsedTransaction(`{"amount": -300}`)
		require.NoError(t, err)
		require.NotNil(t, got.Amount)
		assert.Equal(t, int64(0), *got.Amount)
	})

	t.Run("wrong type", func(t *testing.T) {
		_, err := decodeParsedTransaction(`{"description": 12}`)
		assert.Error(t, err)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := decodeParsedTransaction(`I could not hear anything`)
		assert.Error(t, err)
	})
}

func TestCleanStandardized(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"  0312345678  ", "0312345678"},
		{"\"Nguyễn Văn A\"", "Nguyễn Văn A"},
		{"Quý 3/2023.", "Quý 3/2023"},
		{"Chợ Bến Thành\nNote: unclear audio", "Chợ Bến Thành"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanStandardized(tt.raw))
		})
	}
}

func TestBaseMIMEType(t *testing.T) {
	assert.Equal(t, "audio/webm", baseMIMEType("audio/webm;codecs=opus"))
	assert.Equal(t, "audio/mp4", baseMIMEType("audio/mp4"))
	assert.Equal(t, DefaultMIMEType, baseMIMEType(""))
	assert.Equal(t, ".m4a", audioExtension("audio/mp4"))
	assert.Equal(t, ".webm", audioExtension("audio/webm;codecs=opus"))
}
