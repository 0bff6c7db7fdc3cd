// Package buffer accumulates conversation events in arrival order and decides
// when the accumulated window should be flushed for extraction: after a
// configured silence, when the event count reaches a volume threshold, or when
// the estimated token total reaches a cap.
package buffer

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Origin string

const (
	OriginIncoming Origin = "incoming"
	OriginOutgoing Origin = "outgoing"
	OriginObserved Origin = "observed"
)

type Event struct {
	Content    string
	AuthorId   string
	AuthorName string
	ChannelId  string
	Timestamp  time.Time
	Origin     Origin
	Bot        bool
}

// Buffer is the single process-wide event window, shared across channels.
// One mutex guards append, trigger evaluation, and snapshot-and-clear, so a
// silence timer firing concurrently with an append can never double-drain.
type Buffer struct {
	options Options

	mtx    sync.Mutex
	events []Event
	tokens int
	timer  *time.Timer
}

// Append adds an event, re-arms the silence timer, and evaluates the volume
// and token-cap triggers. A triggered flush dispatches on a detached
// goroutine; the caller never waits for extraction.
func (b *Buffer) Append(event Event) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	b.events = append(b.events, event)
	b.tokens += EstimateTokens(event.AuthorName + ": " + event.Content)

	b.armTimerLocked()

	if b.options.VolumeThreshold > 0 && len(b.events) >= b.options.VolumeThreshold {
		b.flushLocked("volume")
		return
	}

	if b.options.TokenCap > 0 && b.tokens >= b.options.TokenCap {
		b.flushLocked("tokens")
	}
}

// Flush drains the buffer if it holds anything. Called by the silence timer
// and exposed for shutdown draining.
func (b *Buffer) Flush(reason string) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	b.flushLocked(reason)
}

func (b *Buffer) Len() int {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	return len(b.events)
}

// Close stops the silence timer. Buffered events are left in place; callers
// that want them extracted should Flush first.
func (b *Buffer) Close() {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *Buffer) flushLocked(reason string) {
	if len(b.events) == 0 {
		return
	}

	snapshot := b.events
	b.events = nil
	b.tokens = 0

	if b.timer != nil {
		b.timer.Stop()
	}

	slog.Debug("flushing buffered events", "reason", reason, "count", len(snapshot))

	if b.options.OnFlush == nil {
		return
	}

	go func(onFlush OnFlush, events []Event) {
		if err := onFlush(context.Background(), events); err != nil {
			slog.Error("flush handler failed; buffered events are lost", "reason", reason, "count", len(events), "error", err)
		}
	}(b.options.OnFlush, snapshot)
}

func (b *Buffer) armTimerLocked() {
	if b.options.SilenceWindow <= 0 {
		return
	}

	if b.timer == nil {
		b.timer = time.AfterFunc(b.options.SilenceWindow, func() {
			b.Flush("silence")
		})
		return
	}

	b.timer.Reset(b.options.SilenceWindow)
}

// EstimateTokens is the cheap character-count heuristic used for the token
// cap trigger, roughly four characters per token.
func EstimateTokens(text string) int {
	return len(text) / 4
}

func NewBuffer(opts ...Option) *Buffer {
	options := NewOptions(opts...)

	b := &Buffer{
		options: options,
	}

	return b
}
