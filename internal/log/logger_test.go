package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel(" error "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("chatty"))
}

func TestJSONComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOptions(Options{Level: "warn", Format: "json", Out: &buf})

	hubLog := Component(logger, "hub")
	hubLog.Info().Msg("filtered out")
	hubLog.Warn().Str("user_id", "7").Msg("slow consumer")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hub", entry["component"])
	assert.Equal(t, "7", entry["user_id"])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "slow consumer", entry["message"])
}
