// Package gate enforces the messaging-channel whitelist.
package gate

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chronicle-ai/chronicle/pkg/config"
	"github.com/chronicle-ai/chronicle/pkg/telemetry"
)

// Lookup is the store-side check the gate consults.
type Lookup interface {
	IsActive(ctx context.Context, phoneNumber string) (bool, error)
}

// Gate authorizes inbound sender identities. Lookups are cached with a
// short TTL; store failures fail closed.
type Gate struct {
	lookup  Lookup
	enabled bool
	ttl     time.Duration
	events  *telemetry.Log
	logger  *slog.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry

	// now is replaceable in tests.
	now func() time.Time
}

type cacheEntry struct {
	active  bool
	expires time.Time
}

// New builds the gate from configuration.
func New(lookup Lookup, cfg *config.WhitelistConfig, events *telemetry.Log) *Gate {
	return &Gate{
		lookup:  lookup,
		enabled: cfg.IsEnabled(),
		ttl:     cfg.CacheTTL(),
		events:  events,
		logger:  slog.Default().With("component", "gate"),
		cache:   make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// NormalizePhone strips spaces, dashes, plus variants, and leading
// zeros, then re-emits canonical +<digits>. Idempotent.
func NormalizePhone(s string) string {
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	out := strings.TrimLeft(digits.String(), "0")
	if out == "" {
		return ""
	}
	return "+" + out
}

// IsAuthorized reports whether the identity may query the assistant.
// With the gate disabled every caller is allowed; with the store down
// every caller is denied.
func (g *Gate) IsAuthorized(ctx context.Context, identity string) bool {
	if !g.enabled {
		return true
	}
	normalized := NormalizePhone(identity)
	if normalized == "" {
		g.deny(normalized, "unparseable identity")
		return false
	}

	if active, ok := g.cached(normalized); ok {
		if !active {
			g.deny(normalized, "not whitelisted")
		}
		return active
	}

	if g.lookup == nil {
		g.deny(normalized, "whitelist store unavailable")
		return false
	}
	active, err := g.lookup.IsActive(ctx, normalized)
	if err != nil {
		g.logger.Error("Whitelist lookup failed, denying", "error", err)
		g.events.Append(telemetry.Event{
			SessionID: normalized,
			Event:     telemetry.EventError,
			Outcome:   telemetry.OutcomeFailed,
			Payload:   map[string]any{"op": "whitelist.lookup", "error": err.Error()},
		})
		return false
	}
	g.store(normalized, active)
	if !active {
		g.deny(normalized, "not whitelisted")
	}
	return active
}

func (g *Gate) cached(identity string) (bool, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	entry, ok := g.cache[identity]
	if !ok || g.now().After(entry.expires) {
		return false, false
	}
	return entry.active, true
}

func (g *Gate) store(identity string, active bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache[identity] = cacheEntry{active: active, expires: g.now().Add(g.ttl)}
}

func (g *Gate) deny(identity, reason string) {
	g.events.Append(telemetry.Event{
		SessionID: identity,
		Event:     telemetry.EventQueryAttempt,
		Outcome:   telemetry.OutcomeDenied,
		Payload:   map[string]any{"reason": reason},
	})
}
