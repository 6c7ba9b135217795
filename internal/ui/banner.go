package ui

import (
	"sync"
	"time"
)

// DefaultBannerDuration is how long a banner stays visible.
const DefaultBannerDuration = 3000 * time.Millisecond

// BannerKind selects the banner styling.
type BannerKind string

const (
	BannerSuccess BannerKind = "success"
	BannerError   BannerKind = "error"
)

// BannerMessage is the visible banner content.
type BannerMessage struct {
	Kind BannerKind
	Text string
}

// timer is the part of *time.Timer the banner needs.
type timer interface {
	Stop() bool
}

// afterFunc matches time.AfterFunc.
type afterFunc func(d time.Duration, f func()) timer

func realAfterFunc(d time.Duration, f func()) timer {
	return time.AfterFunc(d, f)
}

// Banner holds at most one transient message. Each Show schedules its own
// clear and cancels the clear scheduled by the previous Show.
type Banner struct {
	mu        sync.Mutex
	msg       *BannerMessage
	duration  time.Duration
	afterFunc afterFunc
	pending   timer
	gen       uint64
}

func newBanner(d time.Duration, af afterFunc) *Banner {
	if d <= 0 {
		d = DefaultBannerDuration
	}
	if af == nil {
		af = realAfterFunc
	}
	return &Banner{duration: d, afterFunc: af}
}

// Show replaces the current banner.
func (b *Banner) Show(kind BannerKind, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pending != nil {
		b.pending.Stop()
	}
	b.gen++
	gen := b.gen
	b.msg = &BannerMessage{Kind: kind, Text: text}

	// A fired-but-stale clear must not hide a newer message.
	b.pending = b.afterFunc(b.duration, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.gen == gen {
			b.msg = nil
			b.pending = nil
		}
	})
}

// Current returns the visible message, if any.
func (b *Banner) Current() (BannerMessage, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.msg == nil {
		return BannerMessage{}, false
	}
	return *b.msg, true
}

// Duration returns the configured display time.
func (b *Banner) Duration() time.Duration {
	return b.duration
}

// Close cancels any pending clear.
func (b *Banner) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending != nil {
		b.pending.Stop()
		b.pending = nil
	}
}
