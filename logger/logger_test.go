package logger

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestGetLogLevel(t *testing.T) {
	os.Unsetenv("LOG_LEVEL")
	os.Setenv("PEPPER_ENVIRONMENT", "production")
	assert.Equal(t, zerolog.InfoLevel, getLogLevel())

	os.Setenv("PEPPER_ENVIRONMENT", "development")
	assert.Equal(t, zerolog.DebugLevel, getLogLevel())

	os.Setenv("LOG_LEVEL", "warn")
	assert.Equal(t, zerolog.WarnLevel, getLogLevel())

	os.Setenv("LOG_LEVEL", "not-a-level")
	assert.Equal(t, zerolog.InfoLevel, getLogLevel())

	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("PEPPER_ENVIRONMENT")
}

func TestComponentLoggerWritesFields(t *testing.T) {
	os.Setenv("LOG_LEVEL", "debug")
	defer os.Unsetenv("LOG_LEVEL")

	var buf bytes.Buffer
	InitWithWriter(&buf)

	ForMatcher().Info().Str("query", "rtx 4070").Msg("sweep started")
	LogError("store", errors.New("disk full"), "failed to mark %d keys", 3)

	out := buf.String()
	assert.Contains(t, out, "matcher")
	assert.Contains(t, out, "query=")
	assert.Contains(t, out, "sweep started")
	assert.Contains(t, out, "failed to mark 3 keys")
	assert.Contains(t, out, "disk full")
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}
