package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestNewJSONLoggerCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentWorker, Output: &buf})

	l.Info("stored", FieldUserID, "u1")
	l.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec[FieldComponent] != ComponentWorker || rec[FieldUserID] != "u1" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestWithComponentReplacesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "json", Output: &buf}).WithComponent(ComponentHTTP)
	l.Info("x")
	if strings.Count(buf.String(), `"component"`) != 1 || !strings.Contains(buf.String(), `"component":"http"`) {
		t.Fatalf("unexpected output: %s", buf.String())
	}
	if l.Component() != ComponentHTTP {
		t.Fatalf("Component() = %q", l.Component())
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected fallback logger")
	}
	l := New(DefaultConfig()).With(FieldRequestID, "req_1")
	if got := FromContext(WithLogger(context.Background(), l)); got != l {
		t.Fatal("expected stored logger")
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().WithUser("u1").WithDiagnostics(3, 1, 0).WithError(errors.New("boom")).WithRequestID("")
	if f[FieldUserID] != "u1" || f[FieldMalformed] != 1 || f[FieldError] != "boom" {
		t.Fatalf("unexpected fields: %v", f)
	}
	if _, ok := f[FieldRequestID]; ok {
		t.Fatal("empty request id should be omitted")
	}
	if len(f.ToSlice()) != 2*len(f) {
		t.Fatalf("ToSlice length mismatch")
	}
}
