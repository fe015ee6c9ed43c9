package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestScopedLoggers(t *testing.T) {
	var buf bytes.Buffer
	l := New(zerolog.New(&buf))

	l.ForComponent("scheduler").ForSearch("pubs").Info().Int("found", 3).Msg("page done")

	out := buf.String()
	assert.Contains(t, out, `"component":"scheduler"`)
	assert.Contains(t, out, `"search":"pubs"`)
	assert.Contains(t, out, `"found":3`)
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(zerolog.New(&buf)).WithFields(Fields{"run": "r1"})
	l.Warn().Msg("hello")
	assert.Contains(t, buf.String(), `"run":"r1"`)
}

func TestParseLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("nonsense"))

	t.Setenv("LOG_LEVEL", "warn")
	assert.Equal(t, zerolog.WarnLevel, parseLevel(""))
}

func TestInitWritesToOutput(t *testing.T) {
	var buf bytes.Buffer
	prev := Default
	defer func() { Default = prev }()

	l := Init("debug", &buf)
	assert.True(t, l.IsDebugEnabled())
	assert.Contains(t, buf.String(), "Logger initialized")
	assert.False(t, Nop().IsDebugEnabled())
}
