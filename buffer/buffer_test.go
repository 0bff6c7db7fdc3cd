package buffer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(author string, content string) Event {
	return Event{
		Content:    content,
		AuthorId:   "1",
		AuthorName: author,
		ChannelId:  "general",
		Timestamp:  time.Now().UTC(),
		Origin:     OriginIncoming,
	}
}

func TestVolumeTriggerFlushesExactlyOnce(t *testing.T) {
	var flushes atomic.Int32
	var got []Event
	done := make(chan struct{})

	b := NewBuffer(
		WithSilenceWindow(time.Hour),
		WithVolumeThreshold(5),
		WithTokenCap(1_000_000),
		WithOnFlush(func(ctx context.Context, events []Event) error {
			flushes.Add(1)
			got = events
			close(done)
			return nil
		}),
	)
	defer b.Close()

	for i := 0; i < 5; i++ {
		b.Append(event("alice", fmt.Sprintf("message %d", i)))
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected a flush")
	}

	assert.Equal(t, int32(1), flushes.Load())
	assert.Len(t, got, 5)
	assert.Equal(t, 0, b.Len())
}

func TestTokenCapTrigger(t *testing.T) {
	done := make(chan struct{})

	b := NewBuffer(
		WithSilenceWindow(time.Hour),
		WithVolumeThreshold(1000),
		WithTokenCap(50),
		WithOnFlush(func(ctx context.Context, events []Event) error {
			close(done)
			return nil
		}),
	)
	defer b.Close()

	// "alice: " plus 193 characters is exactly 200 chars, i.e. 50 tokens
	b.Append(event("alice", strings.Repeat("x", 193)))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected a token-cap flush")
	}

	assert.Equal(t, 0, b.Len())
}

func TestSilenceTriggerFlushes(t *testing.T) {
	done := make(chan struct{})

	b := NewBuffer(
		WithSilenceWindow(20*time.Millisecond),
		WithVolumeThreshold(1000),
		WithTokenCap(1_000_000),
		WithOnFlush(func(ctx context.Context, events []Event) error {
			close(done)
			return nil
		}),
	)
	defer b.Close()

	b.Append(event("alice", "hello"))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected a silence flush")
	}

	assert.Equal(t, 0, b.Len())
}

func TestSilenceTimeoutOnEmptyBufferIsNoop(t *testing.T) {
	var flushes atomic.Int32

	b := NewBuffer(
		WithOnFlush(func(ctx context.Context, events []Event) error {
			flushes.Add(1)
			return nil
		}),
	)
	defer b.Close()

	b.Flush("silence")
	b.Flush("silence")

	assert.Equal(t, int32(0), flushes.Load())
}

func TestOrderPreservedAcrossChannels(t *testing.T) {
	var got []Event
	done := make(chan struct{})

	b := NewBuffer(
		WithSilenceWindow(time.Hour),
		WithVolumeThreshold(3),
		WithOnFlush(func(ctx context.Context, events []Event) error {
			got = events
			close(done)
			return nil
		}),
	)
	defer b.Close()

	b.Append(Event{Content: "first", AuthorName: "a", ChannelId: "one"})
	b.Append(Event{Content: "second", AuthorName: "b", ChannelId: "two"})
	b.Append(Event{Content: "third", AuthorName: "c", ChannelId: "one"})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected a flush")
	}

	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].Content)
	assert.Equal(t, "second", got[1].Content)
	assert.Equal(t, "third", got[2].Content)
}

func TestConcurrentAppendsNeverDoubleDrain(t *testing.T) {
	var flushed atomic.Int32

	b := NewBuffer(
		WithSilenceWindow(time.Millisecond),
		WithVolumeThreshold(10),
		WithTokenCap(1_000_000),
		WithOnFlush(func(ctx context.Context, events []Event) error {
			flushed.Add(int32(len(events)))
			return nil
		}),
	)
	defer b.Close()

	const total = 200

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < total/4; j++ {
				b.Append(event("bob", "hi"))
			}
		}()
	}
	wg.Wait()

	b.Flush("drain")
	assert.Eventually(t, func() bool {
		return flushed.Load() == int32(total)
	}, time.Second, 10*time.Millisecond)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 25, EstimateTokens(strings.Repeat("x", 100)))
}
