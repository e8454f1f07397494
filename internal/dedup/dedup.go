// Package dedup suppresses repeats of the same notification or lead submission
// within a short window. It is best effort: a store error never blocks a send.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const DefaultWindow = 5 * time.Minute

type Deduplicator struct {
	store  Store
	window time.Duration
	now    func() time.Time
	log    *zap.Logger
}

func New(store Store, window time.Duration, log *zap.Logger) *Deduplicator {
	if window <= 0 {
		window = DefaultWindow
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Deduplicator{store: store, window: window, now: time.Now, log: log}
}

// WithClock replaces the clock used to stamp marks and to age them.
func (d *Deduplicator) WithClock(now func() time.Time) *Deduplicator {
	d.now = now
	return d
}

// ShouldSuppress reports whether key was marked within the window. The store's
// TTL only bounds retention; the window is measured against the stamp.
func (d *Deduplicator) ShouldSuppress(ctx context.Context, key string) bool {
	v, ok, err := d.store.Get(ctx, key)
	if err != nil {
		d.log.Warn("dedup lookup failed, not suppressing", zap.String("key", key), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return true
	}
	return d.now().Sub(time.UnixMilli(ms)) < d.window
}

func (d *Deduplicator) MarkSent(ctx context.Context, key string) {
	stamp := strconv.FormatInt(d.now().UnixMilli(), 10)
	if err := d.store.SetTTL(ctx, key, stamp, d.window); err != nil {
		d.log.Warn("dedup mark failed", zap.String("key", key), zap.Error(err))
	}
}

// Key derives a fixed-length dedup key from its parts.
func Key(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:16])
}

// ContentPrefix trims content to the first n runes for use in a key.
func ContentPrefix(content string, n int) string {
	r := []rune(content)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}
