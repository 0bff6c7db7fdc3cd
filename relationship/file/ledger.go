package file

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/w-h-a/recall/relationship"
)

type fileLedger struct {
	options relationship.Options

	mtx     sync.Mutex
	loaded  bool
	entries map[string]relationship.Entry
}

func (l *fileLedger) Apply(ctx context.Context, userId string, displayName string, delta int) (relationship.Entry, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	l.loadLocked()

	entry, exists := l.entries[userId]
	if !exists {
		entry = relationship.Entry{
			UserId: userId,
		}
	}

	if len(displayName) > 0 {
		entry.DisplayName = displayName
	}
	entry.Affinity += delta
	entry.Interactions++
	entry.LastInteraction = time.Now().UTC()

	l.entries[userId] = entry

	if err := l.persistLocked(); err != nil {
		return relationship.Entry{}, err
	}

	return entry, nil
}

func (l *fileLedger) Get(ctx context.Context, userId string) (relationship.Entry, bool, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	l.loadLocked()

	entry, exists := l.entries[userId]
	return entry, exists, nil
}

func (l *fileLedger) loadLocked() {
	if l.loaded {
		return
	}
	l.loaded = true
	l.entries = map[string]relationship.Entry{}

	bs, err := os.ReadFile(l.options.Location)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("failed to read relationship ledger; starting empty", "path", l.options.Location, "error", err)
		}
		return
	}

	if err := json.Unmarshal(bs, &l.entries); err != nil {
		// corrupted ledger: prior history is discarded rather than crashing
		slog.Warn("corrupted relationship ledger; starting empty", "path", l.options.Location, "error", err)
		l.entries = map[string]relationship.Entry{}
	}
}

func (l *fileLedger) persistLocked() error {
	bs, err := json.MarshalIndent(l.entries, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(l.options.Location); len(dir) > 0 {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	return os.WriteFile(l.options.Location, bs, 0o644)
}

func NewLedger(opts ...relationship.Option) relationship.Ledger {
	options := relationship.NewOptions(opts...)

	if len(options.Location) == 0 {
		panic("missing location for file ledger")
	}

	l := &fileLedger{
		options: options,
	}

	return l
}
