package registry

import (
	"context"
	"sort"
	"sync"

	"peeringmatcher/internal/peering"
)

type memoEntry struct {
	done    chan struct{}
	infos   []peering.NetworkInfo
	records []peering.PresenceRecord
	err     error
}

// Memo runs each distinct lookup against the wrapped source at most once,
// including concurrent callers. It lives for a single run; nothing persists.
type Memo struct {
	Source

	mu      sync.Mutex
	entries map[string]*memoEntry
}

func NewMemo(src Source) *Memo {
	return &Memo{Source: src, entries: make(map[string]*memoEntry)}
}

func memoKey(op string, ids []peering.NetworkID) string {
	sorted := append([]peering.NetworkID(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return op + ":" + joinIDs(sorted, ",")
}

// claim returns the entry for key and whether the caller must fill it.
func (m *Memo) claim(key string) (*memoEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		return e, false
	}
	e := &memoEntry{done: make(chan struct{})}
	m.entries[key] = e
	return e, true
}

func (m *Memo) wait(ctx context.Context, e *memoEntry) error {
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Memo) ResolveNetworks(ctx context.Context, ids []peering.NetworkID) ([]peering.NetworkInfo, error) {
	e, owner := m.claim(memoKey("net", ids))
	if owner {
		e.infos, e.err = m.Source.ResolveNetworks(ctx, ids)
		close(e.done)
	} else if err := m.wait(ctx, e); err != nil {
		return nil, err
	}
	return e.infos, e.err
}

func (m *Memo) FetchPresence(ctx context.Context, ids []peering.NetworkID, kind peering.LocationKind) ([]peering.PresenceRecord, error) {
	e, owner := m.claim(memoKey(kind.String(), ids))
	if owner {
		e.records, e.err = m.Source.FetchPresence(ctx, ids, kind)
		close(e.done)
	} else if err := m.wait(ctx, e); err != nil {
		return nil, err
	}
	return e.records, e.err
}
