package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewProvidesJSONLogger(t *testing.T) {
	l := New()
	if l == nil {
		t.Fatal("expected logger, got nil")
	}

	if !l.Enabled(context.Background(), slog.LevelInfo) {
		t.Errorf("expected info level to be enabled")
	}
	if l.Enabled(context.Background(), slog.LevelDebug) {
		t.Errorf("did not expect debug level to be enabled")
	}

	if _, ok := l.Handler().(*slog.JSONHandler); !ok {
		t.Fatalf("expected JSON handler, got %T", l.Handler())
	}
}

func TestNewTagsServiceName(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf).Info("probe", slog.String("order_id", "ord_1"))
	out := buf.String()
	if !strings.Contains(out, `"service":"payrecon"`) {
		t.Fatalf("expected service attribute in %s", out)
	}
	if !strings.Contains(out, `"order_id":"ord_1"`) {
		t.Fatalf("expected call attributes in %s", out)
	}
}
