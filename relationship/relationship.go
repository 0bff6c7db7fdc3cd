// Package relationship keeps a durable running sentiment ledger per user.
// The affinity score is only ever composed from deltas; it is never
// overwritten except by reloading persisted state at startup.
package relationship

import (
	"context"
	"time"
)

type Entry struct {
	UserId          string    `json:"user_id"`
	DisplayName     string    `json:"display_name"`
	Affinity        int       `json:"affinity"`
	LastInteraction time.Time `json:"last_interaction"`
	Interactions    int       `json:"interactions"`
}

type Ledger interface {
	Apply(ctx context.Context, userId string, displayName string, delta int) (Entry, error)
	Get(ctx context.Context, userId string) (Entry, bool, error)
}
