package logging

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggerWritesToOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	l.Info().Str("name", "a.txt").Msg("transfer registered")

	out := buf.String()
	if !strings.Contains(out, "transfer registered") {
		t.Errorf("output %q missing message", out)
	}
	if !strings.Contains(out, "a.txt") {
		t.Errorf("output %q missing field value", out)
	}
}

func TestLoggerSetOutput(t *testing.T) {
	var first, second bytes.Buffer
	l := NewLogger(&first)
	l.SetOutput(&second)

	l.Warnf("paused %d transfers", 2)

	if first.Len() != 0 {
		t.Errorf("old writer should not receive output, got %q", first.String())
	}
	if !strings.Contains(second.String(), "paused 2 transfers") {
		t.Errorf("new writer output = %q", second.String())
	}
	if l.Output() != &second {
		t.Error("Output() should return the writer passed to SetOutput")
	}
}

func TestLoggerDebugHonoursGlobalLevel(t *testing.T) {
	defer SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	l := NewLogger(&buf)

	SetGlobalLevel(zerolog.InfoLevel)
	l.Debugf("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug message written at info level: %q", buf.String())
	}

	SetGlobalLevel(zerolog.DebugLevel)
	l.Debugf("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("debug message missing at debug level: %q", buf.String())
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Error().Msg("discarded")
	l.Infof("discarded %s", "too")
}

func TestLoggerDebugEnabled(t *testing.T) {
	defer SetGlobalLevel(zerolog.InfoLevel)

	l := NewLogger(io.Discard)
	SetGlobalLevel(zerolog.InfoLevel)
	if l.DebugEnabled() {
		t.Error("DebugEnabled() = true at info level")
	}
	SetGlobalLevel(zerolog.DebugLevel)
	if !l.DebugEnabled() {
		t.Error("DebugEnabled() = false at debug level")
	}
	if NewNopLogger().DebugEnabled() {
		t.Error("nop logger should never enable debug")
	}
}
