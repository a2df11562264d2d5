package relay

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/chathubhq/chathub/internal/channel"
	"github.com/chathubhq/chathub/internal/config"
)

func TestForwardPostsEvent(t *testing.T) {
	t.Parallel()

	received := make(chan channel.Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type: %q", ct)
		}
		var ev channel.Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			t.Errorf("decode event: %v", err)
		}
		received <- ev
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := New(nil, config.RelayConfig{WhatsAppURL: srv.URL, TimeoutSeconds: 2})
	r.Forward(channel.Event{
		UserID:    "573001112233",
		Platform:  channel.PlatformWhatsApp,
		Type:      channel.ContentText,
		Content:   "hola",
		Direction: channel.DirectionInbound,
	})

	select {
	case ev := <-received:
		if ev.UserID != "573001112233" || ev.Content != "hola" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event never delivered")
	}
}

func TestForwardSkipsDisabledPlatform(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
	}))
	defer srv.Close()

	// Only WhatsApp is configured; instagram events must go nowhere.
	r := New(nil, config.RelayConfig{WhatsAppURL: srv.URL, TimeoutSeconds: 1})
	r.Forward(channel.Event{UserID: "ig-77", Platform: channel.PlatformInstagram, Content: "hola"})

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Fatalf("disabled platform must not be forwarded, got %d calls", calls)
	}
}
