package logx

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologAdapter(t *testing.T) {
	t.Run("StructuredFields", func(t *testing.T) {
		var buf bytes.Buffer
		logger := Zerolog(zerolog.New(&buf))

		logger.Error("rebuild failed", "key", "cache:shop:1", "attempt", 3)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "error", entry["level"])
		assert.Equal(t, "rebuild failed", entry["message"])
		assert.Equal(t, "cache:shop:1", entry["key"])
		assert.Equal(t, float64(3), entry["attempt"])
	})

	t.Run("NonStringKeysSkipped", func(t *testing.T) {
		var buf bytes.Buffer
		logger := Zerolog(zerolog.New(&buf))

		logger.Debug("probe", 42, "dropped", "key", "kept")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "kept", entry["key"])
	})

	t.Run("DanglingValueIgnored", func(t *testing.T) {
		var buf bytes.Buffer
		logger := Zerolog(zerolog.New(&buf))

		logger.Error("probe", "only-a-key")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "probe", entry["message"])
	})
}

func TestDefault(t *testing.T) {
	assert.NotNil(t, Default())
}
