// Package retention ages out low-value memories on a schedule. Records are
// tiered by importance; each tier has its own retention window and
// importance 10 is permanent.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	cron "github.com/robfig/cron/v3"
	"github.com/w-h-a/recall/store"
)

type Report struct {
	Deleted     int
	Kept        int
	Pages       int
	FailedPages int
}

type Sweeper struct {
	options Options
	cron    *cron.Cron
}

// TierWindow maps an importance to its retention window. The second return
// is false for the permanent tier.
func TierWindow(importance int, windows Windows) (time.Duration, bool) {
	switch {
	case importance >= 10:
		return 0, false
	case importance >= 8:
		return windows.High, true
	case importance >= 5:
		return windows.Medium, true
	default:
		return windows.Low, true
	}
}

// Sweep pages through the full collection, deleting records older than their
// tier's window. A failed page is counted and skipped; the sweep carries on
// and the report covers completed pages only.
func (s *Sweeper) Sweep(ctx context.Context) Report {
	report := Report{}
	now := time.Now().UTC()
	cursor := ""

	for {
		records, next, err := s.options.Store.Scroll(
			ctx,
			store.WithScrollLimit(s.options.PageSize),
			store.WithScrollCursor(cursor),
		)
		if err != nil {
			// without a next cursor there is nothing left to walk
			slog.Error("retention scroll failed", "cursor", cursor, "error", err)
			report.FailedPages++
			break
		}

		if len(records) == 0 {
			break
		}

		expired := []string{}

		for _, rec := range records {
			window, expires := TierWindow(rec.Importance, s.options.Windows)
			if expires && now.Sub(rec.Timestamp) > window {
				expired = append(expired, rec.Id)
			}
		}

		if len(expired) > 0 {
			if err := s.options.Store.Delete(ctx, expired); err != nil {
				slog.Error("retention delete failed; skipping page", "count", len(expired), "error", err)
				report.FailedPages++
				report.Pages++
				cursor = next
				if len(cursor) == 0 {
					break
				}
				continue
			}
		}

		report.Deleted += len(expired)
		report.Kept += len(records) - len(expired)
		report.Pages++

		cursor = next
		if len(cursor) == 0 {
			break
		}
	}

	slog.Info("retention sweep complete",
		"deleted", report.Deleted,
		"kept", report.Kept,
		"pages", report.Pages,
		"failed_pages", report.FailedPages,
	)

	return report
}

// Start runs one sweep immediately and then schedules sweeps on the
// configured interval.
func (s *Sweeper) Start(ctx context.Context) error {
	s.Sweep(ctx)

	s.cron = cron.New()

	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.options.Interval), func() {
		s.Sweep(ctx)
	}); err != nil {
		return err
	}

	s.cron.Start()

	return nil
}

func (s *Sweeper) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

func NewSweeper(opts ...Option) *Sweeper {
	options := NewOptions(opts...)

	s := &Sweeper{
		options: options,
	}

	return s
}
