package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]logrus.Level{
		"debug": logrus.DebugLevel,
		"warn":  logrus.WarnLevel,
		"error": logrus.ErrorLevel,
		"":      logrus.InfoLevel,
		"loud":  logrus.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFromContext_CarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	original := Logger.Out
	Logger.SetOutput(&buf)
	defer Logger.SetOutput(original)

	ctx := WithRequestID(context.Background(), "req-123")
	FromContext(ctx).Info("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("Expected JSON log line, got %q: %v", buf.String(), err)
	}
	if line["request_id"] != "req-123" {
		t.Errorf("Expected request_id field, got %v", line)
	}
}

func TestFromContext_WithoutRequestID(t *testing.T) {
	if entry := FromContext(context.Background()); entry == nil {
		t.Fatal("Expected a usable entry")
	}
}

func TestRequestID(t *testing.T) {
	if got := RequestID(context.Background()); got != "" {
		t.Errorf("Expected empty id, got %q", got)
	}
	if got := RequestID(WithRequestID(context.Background(), "abc")); got != "abc" {
		t.Errorf("RequestID = %q, want abc", got)
	}
}
