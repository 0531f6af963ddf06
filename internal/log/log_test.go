package log

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"TRACE":   LevelDebug,
		"info":    LevelInfo,
		"":        LevelInfo,
		"unknown": LevelInfo,
		"error":   LevelError,
		" fatal ": LevelError,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelInfo)
	t.Cleanup(func() { SetLevel(LevelInfo) })

	Debug("hidden", "k", 1)
	assert.Empty(t, buf.String())

	Info("expand: halted", "cap", 5, "dangling")
	out := buf.String()
	assert.Contains(t, out, `"message":"expand: halted"`)
	assert.Contains(t, out, `"cap":5`)
	assert.NotContains(t, out, "dangling")

	buf.Reset()
	Error("boom", errors.New("bad timing"), "id", "standup")
	out = buf.String()
	assert.Contains(t, out, `"level":"error"`)
	assert.Contains(t, out, `"error":"bad timing"`)
	assert.Contains(t, out, `"id":"standup"`)

	buf.Reset()
	SetLevel(LevelDebug)
	Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}
