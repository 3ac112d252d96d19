package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	log := New("debug")
	if log.GetLevel() != zerolog.DebugLevel {
		t.Errorf("level = %v, want debug", log.GetLevel())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Str("account_id", "a1").Msg("balance updated")

	output := buf.String()
	if !strings.Contains(output, "balance updated") {
		t.Errorf("expected output to contain message, got: %s", output)
	}
	if !strings.Contains(output, `"account_id":"a1"`) {
		t.Errorf("expected output to contain field, got: %s", output)
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf))

	log := FromContext(ctx)
	log.Info().Msg("test")

	if buf.Len() == 0 {
		t.Error("expected log output from retrieved logger")
	}
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())
	if log.GetLevel() == zerolog.Disabled {
		t.Error("expected default logger to be enabled")
	}
}
