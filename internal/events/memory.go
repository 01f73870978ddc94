package events

import (
	"context"
	"maps"
	"sync"
)

// MemoryLog keeps entries in insertion order. It is safe for concurrent use.
type MemoryLog struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (l *MemoryLog) Append(_ context.Context, e Entry) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.ID = int64(len(l.entries) + 1)
	e.Payload = maps.Clone(e.Payload)
	l.entries = append(l.entries, e)
	return e, nil
}

func (l *MemoryLog) Find(_ context.Context, f Filter) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var res []Entry
	for i := range l.entries {
		idx := i
		if f.Newest {
			idx = len(l.entries) - 1 - i
		}
		e := l.entries[idx]
		if !f.Match(e) {
			continue
		}
		res = append(res, e)
		if f.Limit > 0 && len(res) == f.Limit {
			break
		}
	}
	return res, nil
}

func (l *MemoryLog) Exists(ctx context.Context, f Filter) (bool, error) {
	f.Limit = 1
	found, err := l.Find(ctx, f)
	return len(found) > 0, err
}

// Truncate drops entries appended after n. Used to roll back a failed unit of work.
func (l *MemoryLog) Truncate(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n < len(l.entries) {
		l.entries = l.entries[:n]
	}
}

// Len returns the number of stored entries.
func (l *MemoryLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
