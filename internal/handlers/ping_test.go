package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(context.Context, *readpref.ReadPref) error {
	return f.err
}

func TestPingReportsServiceAndDatabase(t *testing.T) {
	t.Parallel()

	h := NewPingHandler(&fakePinger{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()

	if err := h.Ping(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" || body["service"] != "chathub" || body["mongo"] != "ok" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestPingStaysUpWhenDatabaseIsDown(t *testing.T) {
	t.Parallel()

	h := NewPingHandler(&fakePinger{err: errors.New("server selection timeout")})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()

	if err := h.Ping(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("liveness must not fail with the database, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["mongo"] != "unreachable" {
		t.Fatalf("database state must be reported, got %v", body)
	}
}
