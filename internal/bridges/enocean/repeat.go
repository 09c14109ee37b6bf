package enocean

import (
	"encoding/hex"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// repeatFilter drops repeater copies of a sender's latest telegram.
//
// Eltako repeaters (FRP, FAM14 in repeater mode) forward telegrams with
// the STATUS repeater counter incremented. The filter remembers the last
// telegram of each sender for the window. A copy is dropped only when its
// counter is non-zero and it matches that last telegram, so press, release,
// press still yields two presses even if the second only arrives repeated.
type repeatFilter struct {
	last       *ttlcache.Cache[Address, string]
	suppressed atomic.Uint64
}

func newRepeatFilter(window time.Duration) *repeatFilter {
	f := &repeatFilter{
		last: ttlcache.New(
			ttlcache.WithTTL[Address, string](window),
			ttlcache.WithDisableTouchOnHit[Address, string](),
		),
	}
	go f.last.Start()
	return f
}

// Allow reports whether t should be dispatched.
func (f *repeatFilter) Allow(t Telegram) bool {
	sig := telegramSignature(t)
	if t.RepeatCount() > 0 {
		if prev := f.last.Get(t.Sender); prev != nil && prev.Value() == sig {
			f.suppressed.Add(1)
			return false
		}
	}
	f.last.Set(t.Sender, sig, ttlcache.DefaultTTL)
	return true
}

// Suppressed returns how many telegrams were dropped.
func (f *repeatFilter) Suppressed() uint64 {
	return f.suppressed.Load()
}

// Stop halts the cache's expiry loop.
func (f *repeatFilter) Stop() {
	f.last.Stop()
}

func telegramSignature(t Telegram) string {
	return t.ORG.String() + ":" + hex.EncodeToString(t.Data)
}
