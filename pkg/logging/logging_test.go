package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"warn":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"info":    LevelInfo,
		"bogus":   LevelInfo,
	}
	for input, want := range cases {
		assert.Equal(t, want, ParseLevel(input), "input %q", input)
	}
}

func TestInitFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelWarn, &buf)
	defer Init(LevelInfo, nil)

	Info("Runtime", "service %s started", "T1")
	require.Empty(t, buf.String())

	Warn("Runtime", "service %s slow to start", "T1")
	assert.True(t, strings.Contains(buf.String(), "service T1 slow to start"))
}

func TestErrorIncludesErrAttribute(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelDebug, &buf)
	defer Init(LevelInfo, nil)

	Error("Orchestrator", assert.AnError, "group %s failed", "web")
	out := buf.String()
	assert.Contains(t, out, "group web failed")
	assert.Contains(t, out, assert.AnError.Error())
}
