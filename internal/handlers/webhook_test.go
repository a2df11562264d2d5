package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/chathubhq/chathub/internal/webhook"
)

type fakeProcessor struct {
	deliveries []webhook.Delivery
	err        error
}

func (f *fakeProcessor) Process(_ context.Context, d webhook.Delivery) error {
	f.deliveries = append(f.deliveries, d)
	return f.err
}

func newWebhookTestContext(method, target string, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestWebhookVerifyEchoesChallenge(t *testing.T) {
	t.Parallel()

	h := NewWebhookHandler("secret", &fakeProcessor{}, slog.Default())
	c, rec := newWebhookTestContext(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=secret&hub.challenge=12345", "")

	if err := h.Verify(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if got := rec.Body.String(); got != "12345" {
		t.Fatalf("challenge must be echoed verbatim, got %q", got)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); strings.Contains(ct, "json") {
		t.Fatalf("challenge must not be JSON encoded, got content type %q", ct)
	}
}

func TestWebhookVerifyRejectsBadToken(t *testing.T) {
	t.Parallel()

	h := NewWebhookHandler("secret", &fakeProcessor{}, slog.Default())
	c, _ := newWebhookTestContext(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", "")

	err := h.Verify(c)
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
}

func TestWebhookReceiveNoEntry(t *testing.T) {
	t.Parallel()

	proc := &fakeProcessor{}
	h := NewWebhookHandler("secret", proc, slog.Default())
	c, rec := newWebhookTestContext(http.MethodPost, "/webhook", `{"object":"unknown_thing"}`)

	if err := h.Receive(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "no_entry") {
		t.Fatalf("expected no_entry status, got %s", rec.Body.String())
	}
	if len(proc.deliveries) != 0 {
		t.Fatalf("pipeline must not run for bodies without entries")
	}
}

func TestWebhookReceiveProcessed(t *testing.T) {
	t.Parallel()

	proc := &fakeProcessor{}
	h := NewWebhookHandler("secret", proc, slog.Default())
	body := `{"object":"whatsapp_business_account","entry":[{"changes":[{"value":{"messages":[{"from":"573001112233","type":"text","text":{"body":"hola"}}]}}]}]}`
	c, rec := newWebhookTestContext(http.MethodPost, "/webhook", body)

	if err := h.Receive(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "received") {
		t.Fatalf("expected received status, got %s", rec.Body.String())
	}
	if len(proc.deliveries) != 1 {
		t.Fatalf("expected one delivery, got %d", len(proc.deliveries))
	}
}

func TestWebhookReceivePipelineErrorIs500(t *testing.T) {
	t.Parallel()

	proc := &fakeProcessor{err: errors.New("mongo down")}
	h := NewWebhookHandler("secret", proc, slog.Default())
	body := `{"object":"whatsapp_business_account","entry":[{"changes":[{"value":{"messages":[{"from":"573001112233","type":"text","text":{"body":"hola"}}]}}]}]}`
	c, _ := newWebhookTestContext(http.MethodPost, "/webhook", body)

	err := h.Receive(c)
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 so the vendor retries, got %v", err)
	}
}
