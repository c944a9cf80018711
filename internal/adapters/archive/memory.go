package archive

import (
	"context"
	"sync"

	"github.com/0xcro3dile/searchchat-go/internal/domain/entities"
)

// MemoryArchive keeps the most recent entries in memory.
// Used when no archive path is configured; nothing survives the process.
type MemoryArchive struct {
	mu      sync.RWMutex
	entries []entities.ChatEntry
	max     int
}

// NewMemoryArchive creates an archive holding at most max entries.
func NewMemoryArchive(max int) *MemoryArchive {
	if max <= 0 {
		max = 500
	}
	return &MemoryArchive{
		entries: make([]entities.ChatEntry, 0, 64),
		max:     max,
	}
}

// Record stores one entry, dropping the oldest when full.
func (a *MemoryArchive) Record(ctx context.Context, sessionID string, e entities.ChatEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	e.ImagePreview = "" // previews can be large; the name is enough for history
	a.entries = append(a.entries, e)
	if over := len(a.entries) - a.max; over > 0 {
		a.entries = append(a.entries[:0], a.entries[over:]...)
	}
	return nil
}

// Recent returns up to limit entries, oldest first.
func (a *MemoryArchive) Recent(ctx context.Context, limit int) ([]entities.ChatEntry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	start := 0
	if limit > 0 && len(a.entries) > limit {
		start = len(a.entries) - limit
	}
	cp := make([]entities.ChatEntry, len(a.entries)-start)
	copy(cp, a.entries[start:])
	return cp, nil
}
