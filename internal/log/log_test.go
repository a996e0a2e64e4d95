package log

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/olusolaa/cost-parker/internal/errors"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"debug", LevelDebug, true},
		{" WARN ", LevelWarn, true},
		{"", LevelInfo, true},
		{"loud", "", false},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseLevel(tc.in)
			if !tc.ok {
				assert.True(t, apperrors.Is(err, apperrors.CodeConfigValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNewLoggerTo_RejectsUnknownFormat(t *testing.T) {
	_, err := NewLoggerTo(Config{Level: LevelInfo, Format: "xml"}, &bytes.Buffer{})
	assert.True(t, apperrors.Is(err, apperrors.CodeConfigValidation))
}

func TestLogger_JSONFieldsAndErrors(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLoggerTo(Config{Level: LevelDebug, Format: FormatJSON}, &buf)
	require.NoError(t, err)

	logger = logger.WithFields(map[string]any{"resource_id": "clicks", "session_token": "abc"})
	cause := apperrors.WrapWithCode(stderrors.New("rate exceeded"), apperrors.CodeThrottled, "UpdateShardCount failed")
	logger.Errorf(context.Background(), cause, "scale %s", "clicks")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "scale clicks", line["msg"])
	assert.Equal(t, "clicks", line["resource_id"])
	assert.Equal(t, "[REDACTED]", line["session_token"])
	assert.Equal(t, "THROTTLED", line["error_code"])
	assert.Equal(t, true, line["error_retryable"])
	assert.Equal(t, "UpdateShardCount failed: rate exceeded", line["error"])
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLoggerTo(Config{Level: LevelWarn, Format: FormatText}, &buf)
	require.NoError(t, err)

	logger.Infof(context.Background(), "hidden")
	assert.Zero(t, buf.Len())

	logger.Warnf(context.Background(), "shown %d", 1)
	assert.Contains(t, buf.String(), "shown 1")
}
