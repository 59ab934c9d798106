package httpadapter

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newLoggedRouter(t *testing.T, svc *testServices) (http.Handler, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	return NewRouter(testConfig(), svc.services(), nil, logger).Handler(), &buf
}

func accessLogLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var line map[string]any
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			t.Fatalf("decode log line %q: %v", raw, err)
		}
		if line["msg"] == "http_request" {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestRequestIDIsPropagatedOrMinted(t *testing.T) {
	handler, _ := newLoggedRouter(t, newTestServices())

	cases := map[string]bool{
		"req-42":                 true,
		"":                       false,
		"has space":              false,
		strings.Repeat("x", 200): false,
		"tab\tinside":            false,
	}
	for incoming, kept := range cases {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set(requestIDHeader, incoming)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)

		got := res.Header().Get(requestIDHeader)
		if got == "" {
			t.Fatalf("%q: response carries no request id", incoming)
		}
		if kept && got != incoming {
			t.Fatalf("%q: expected request id to be kept, got %q", incoming, got)
		}
		if !kept && got == incoming {
			t.Fatalf("%q: expected a fresh request id", incoming)
		}
	}
}

func TestAccessLogCarriesRouteAndDocumentID(t *testing.T) {
	handler, buf := newLoggedRouter(t, newTestServices())

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1", nil)
	req.Header.Set(requestIDHeader, "req-7")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	lines := accessLogLines(t, buf)
	if len(lines) != 1 {
		t.Fatalf("expected one access log line, got %d", len(lines))
	}
	line := lines[0]
	if line["route"] != "/v1/documents/{id}" || line["document_id"] != "doc-1" || line["request_id"] != "req-7" {
		t.Fatalf("unexpected access log line %v", line)
	}
	if line["level"] != "INFO" || line["status"] != float64(http.StatusOK) {
		t.Fatalf("unexpected level or status in %v", line)
	}
}

func TestAccessLogLevels(t *testing.T) {
	handler, buf := newLoggedRouter(t, newTestServices())

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if lines := accessLogLines(t, buf); len(lines) != 0 {
		t.Fatalf("health probes must log below info, got %v", lines)
	}

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/documents/missing", nil))
	lines := accessLogLines(t, buf)
	if len(lines) != 1 || lines[0]["level"] != "WARN" {
		t.Fatalf("expected one warn line for 404, got %v", lines)
	}
}

func TestRecoverPanicsReturnsJSON500(t *testing.T) {
	var buf bytes.Buffer
	rt := NewRouter(testConfig(), newTestServices().services(), nil, slog.New(slog.NewJSONHandler(&buf, nil)))
	handler := rt.recoverPanics(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents", nil))
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	body := decodeBody[errorBody](t, res)
	if body.Code != "internal" {
		t.Fatalf("unexpected body %+v", body)
	}
	if !strings.Contains(buf.String(), "http_panic_recovered") || !strings.Contains(buf.String(), "boom") {
		t.Fatalf("expected panic to be logged, got %s", buf.String())
	}
}

func TestRecoverPanicsRethrowsAbortHandler(t *testing.T) {
	rt := NewRouter(testConfig(), newTestServices().services(), nil, slog.New(slog.DiscardHandler))
	handler := rt.recoverPanics(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Fatalf("expected ErrAbortHandler to propagate, got %v", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}
