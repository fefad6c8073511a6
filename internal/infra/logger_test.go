package infra

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		env   string
		level string
		want  zerolog.Level
	}{
		{env: "production", want: zerolog.InfoLevel},
		{env: "development", want: zerolog.DebugLevel},
		{env: "production", level: "WARN", want: zerolog.WarnLevel},
		{env: "development", level: "error", want: zerolog.ErrorLevel},
		{env: "production", level: "loud", want: zerolog.InfoLevel},
	}
	for _, tc := range tests {
		got := newLogger(&bytes.Buffer{}, tc.env, tc.level).GetLevel()
		if got != tc.want {
			t.Fatalf("newLogger(%q, %q) level = %v, want %v", tc.env, tc.level, got, tc.want)
		}
	}
}

func TestNewLoggerJSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "production", "")
	logger.Info().Str("kit_id", "k1").Msg("kit created")

	line := buf.String()
	for _, want := range []string{`"service":"partykit"`, `"kit_id":"k1"`, `"message":"kit created"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("log line %s missing %s", line, want)
		}
	}
}
