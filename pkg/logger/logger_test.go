package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoggerFormats(t *testing.T) {
	ctx := context.Background()
	for _, format := range []string{FormatText, FormatJSON, FormatPretty} {
		var buf bytes.Buffer
		if err := Init(WithFormat(format), WithWriter(&buf)); err != nil {
			t.Fatalf("init %s: %v", format, err)
		}
		Get().Info(ctx, "feedback ingested", String("feedback_id", "f-1"))
		if !strings.Contains(buf.String(), "feedback ingested") {
			t.Errorf("%s output missing message: %q", format, buf.String())
		}
	}

	if err := Init(WithFormat("xml")); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestLoggerLevels(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	if err := Init(WithFormat(FormatJSON), WithWriter(&buf)); err != nil {
		t.Fatalf("init json: %v", err)
	}
	Get().Debug(ctx, "hidden")
	if buf.Len() != 0 {
		t.Errorf("debug should be filtered at info level, got %q", buf.String())
	}
	if err := SetLevelString("debug"); err != nil {
		t.Fatal(err)
	}
	Get().Debug(ctx, "shown")
	if !strings.Contains(buf.String(), `"msg":"shown"`) {
		t.Errorf("expected debug line in json output, got %q", buf.String())
	}
	if err := SetLevelString("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
	if err := SetLevelString("WARNING"); err != nil {
		t.Errorf("level names are case-insensitive: %v", err)
	}
}

func TestContextFields(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithFormat(FormatJSON), WithWriter(&buf)); err != nil {
		t.Fatal(err)
	}

	ctx := With(context.Background(), String("request_id", "r-1"))
	ctx = With(ctx, String("ticket_id", "t-9"))
	if got := len(FieldsFrom(ctx)); got != 2 {
		t.Fatalf("expected 2 scoped fields, got %d", got)
	}

	Named("pipeline").Named("scoring").Warn(ctx, "judge omitted fields", Int("missing", 2))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	want := map[string]any{
		"component":  "pipeline.scoring",
		"request_id": "r-1",
		"ticket_id":  "t-9",
		"missing":    float64(2),
		"level":      "WARN",
	}
	for k, v := range want {
		if line[k] != v {
			t.Errorf("%s = %v, want %v", k, line[k], v)
		}
	}
	if src, _ := line["source"].(string); !strings.Contains(src, "logger_test.go:") {
		t.Errorf("source should point at the call site, got %q", src)
	}
}

func TestWithLeavesParentUntouched(t *testing.T) {
	parent := With(context.Background(), String("a", "1"))
	_ = With(parent, String("b", "2"))
	if got := len(FieldsFrom(parent)); got != 1 {
		t.Errorf("parent gained fields: %d", got)
	}
	if FieldsFrom(context.Background()) != nil {
		t.Error("empty context should carry no fields")
	}
	if With(parent) != parent {
		t.Error("With without fields should return ctx unchanged")
	}
}

func TestGetPanicsBeforeInit(t *testing.T) {
	saved := global
	global = nil
	defer func() {
		global = saved
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	Get()
}
