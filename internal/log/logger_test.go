package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{
		Component: component,
		Handler:   slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func TestLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, ComponentLedger)
	l.Info("hello", FieldUserID, "u1")

	out := buf.String()
	if !strings.Contains(out, "component=ledger") || !strings.Contains(out, "user_id=u1") {
		t.Fatalf("unexpected log line: %s", out)
	}

	buf.Reset()
	l.WithComponent(ComponentVoice).Warn("degraded")
	if !strings.Contains(buf.String(), "component=voice") {
		t.Fatalf("component not switched: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFromContextFallsBack(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != "unknown" {
		t.Fatalf("expected default logger, got %+v", l)
	}
}

func TestRequestIDMiddlewareEnrichesLogger(t *testing.T) {
	var buf bytes.Buffer
	base := newBufferLogger(&buf, ComponentHTTP)

	h := Middleware(base)(RequestIDMiddleware(func(*http.Request) string { return "req-42" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).Info("inside")
		}),
	))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(buf.String(), "request_id=req-42") {
		t.Fatalf("request id missing: %s", buf.String())
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf, ComponentLedger))

	sl.LogLedgerMutation(context.Background(), OpCreate, "u1", "cash_001", 7, 20000)
	out := buf.String()
	for _, want := range []string{"operation=create", "source_id=cash_001", "expense_id=7", "amount_paise=20000"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %s", want, out)
		}
	}

	buf.Reset()
	sl.LogError(context.Background(), "boom", errors.New("disk full"), OpDeposit, nil)
	if !strings.Contains(buf.String(), "level=ERROR") || !strings.Contains(buf.String(), "disk full") {
		t.Fatalf("unexpected error log: %s", buf.String())
	}

	buf.Reset()
	req := httptest.NewRequest(http.MethodPost, "/api/expenses", nil)
	sl.LogHTTPEnd(context.Background(), req, http.StatusUnprocessableEntity, 3, "10.0.0.1")
	if !strings.Contains(buf.String(), "level=WARN") {
		t.Fatalf("4xx should log at warn: %s", buf.String())
	}
}
