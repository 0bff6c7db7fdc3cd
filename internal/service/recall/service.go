// Package recall wires the ingestion buffer, extraction pipeline, memory
// bank, relationship ledger, and retention sweeper into one service.
package recall

import (
	"context"
	"log/slog"

	"github.com/w-h-a/recall/buffer"
	"github.com/w-h-a/recall/extractor"
	"github.com/w-h-a/recall/memory"
	"github.com/w-h-a/recall/relationship"
	"github.com/w-h-a/recall/retention"
)

type Service struct {
	buffer    *buffer.Buffer
	extractor *extractor.Extractor
	bank      *memory.Bank
	ledger    relationship.Ledger
	sweeper   *retention.Sweeper
}

// Observe appends one conversation event. If that append tips a trigger the
// extraction cycle runs on a detached worker; the caller never waits.
func (s *Service) Observe(ctx context.Context, event buffer.Event) {
	s.buffer.Append(event)
}

// Context returns the memory context block for an incoming message. Any
// failure on the retrieval path degrades to an empty block so the reply is
// never blocked on memory.
func (s *Service) Context(ctx context.Context, userId string, message string) string {
	block, err := s.bank.Recall(ctx, userId, message)
	if err != nil {
		slog.Error("memory recall failed; replying without context", "user_id", userId, "error", err)
		return ""
	}

	return block
}

func (s *Service) Relationship(ctx context.Context, userId string) (relationship.Entry, bool, error) {
	return s.ledger.Get(ctx, userId)
}

func (s *Service) Sweep(ctx context.Context) retention.Report {
	return s.sweeper.Sweep(ctx)
}

func (s *Service) Start(ctx context.Context) error {
	return s.sweeper.Start(ctx)
}

// Drain flushes whatever the buffer still holds, e.g. on shutdown.
func (s *Service) Drain() {
	s.buffer.Flush("drain")
}

func (s *Service) Close() {
	s.buffer.Close()
	s.sweeper.Stop()
}

// handleFlush is the detached extraction worker. The snapshot it receives is
// already cleared from the buffer, so an error here drops the whole cycle.
func (s *Service) handleFlush(ctx context.Context, events []buffer.Event) error {
	extraction, err := s.extractor.Extract(ctx, events)
	if err != nil {
		return err
	}

	if err := s.bank.Save(ctx, extraction.Memories); err != nil {
		return err
	}

	names := map[string]string{}
	for _, event := range events {
		names[event.AuthorId] = event.AuthorName
	}

	for _, delta := range extraction.Deltas {
		if _, err := s.ledger.Apply(ctx, delta.UserId, names[delta.UserId], delta.Delta); err != nil {
			slog.Error("relationship update failed", "user_id", delta.UserId, "error", err)
		}
	}

	if len(extraction.Memories) > 0 || len(extraction.Deltas) > 0 {
		slog.Info("extraction cycle complete",
			"events", len(events),
			"memories", len(extraction.Memories),
			"relationship_updates", len(extraction.Deltas),
		)
	}

	return nil
}

func New(
	e *extractor.Extractor,
	bank *memory.Bank,
	ledger relationship.Ledger,
	sweeper *retention.Sweeper,
	bufferOpts ...buffer.Option,
) *Service {
	s := &Service{
		extractor: e,
		bank:      bank,
		ledger:    ledger,
		sweeper:   sweeper,
	}

	bufferOpts = append(bufferOpts, buffer.WithOnFlush(s.handleFlush))
	s.buffer = buffer.NewBuffer(bufferOpts...)

	return s
}
