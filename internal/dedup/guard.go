// Package dedup suppresses repeat webhook deliveries with an in-memory,
// time-windowed fingerprint set. It is deliberately single-process and
// best-effort: it does not survive restarts and does not coordinate across
// instances. Outside the TTL window, at-least-once duplicates are accepted.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"
	"time"
)

// DefaultTTL bounds how long a fingerprint keeps suppressing replays.
const DefaultTTL = time.Hour

// Guard tracks recently-seen message fingerprints. Safe for concurrent use.
type Guard struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

// NewGuard creates a guard with the given TTL; ttl <= 0 uses DefaultTTL.
func NewGuard(ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Guard{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// IsDuplicate reports whether this (userID, content, vendorTS) signature was
// already seen inside the TTL window. First sightings are recorded; expired
// entries are evicted opportunistically on each call.
func (g *Guard) IsDuplicate(userID, content, vendorTS string) bool {
	key := Fingerprint(userID, content, vendorTS)

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.sweepLocked(now)

	if at, ok := g.seen[key]; ok && now.Sub(at) < g.ttl {
		return true
	}
	g.seen[key] = now
	return false
}

// Forget removes a recorded fingerprint. The normalizer calls this when
// processing fails after the dedup check, so the vendor's redelivery of the
// same event is not suppressed.
func (g *Guard) Forget(userID, content, vendorTS string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, Fingerprint(userID, content, vendorTS))
}

// Sweep evicts expired fingerprints. Also run on a schedule so the map does
// not grow unbounded during quiet periods.
func (g *Guard) Sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sweepLocked(g.now())
}

// Len returns the number of live fingerprints.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}

func (g *Guard) sweepLocked(now time.Time) {
	for key, at := range g.seen {
		if now.Sub(at) >= g.ttl {
			delete(g.seen, key)
		}
	}
}

// Fingerprint derives the dedup key for a message signature. When the vendor
// supplies no timestamp, callers pass a minute bucket of arrival time so that
// retries landing shortly after the original still collide.
func Fingerprint(userID, content, vendorTS string) string {
	h := sha256.New()
	h.Write([]byte(userID))
	h.Write([]byte{0})
	h.Write([]byte(content))
	h.Write([]byte{0})
	h.Write([]byte(vendorTS))
	return hex.EncodeToString(h.Sum(nil))
}

// MinuteBucket formats t as a minute-resolution bucket for fingerprinting
// deliveries that carry no vendor timestamp.
func MinuteBucket(t time.Time) string {
	return strconv.FormatInt(t.UTC().Unix()/60, 10)
}
