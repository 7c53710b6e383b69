package collection

import (
	"context"
	"fmt"
	"sync"

	"pkt.systems/threadpager/core"
	"pkt.systems/threadpager/internal/logx"
	"pkt.systems/threadpager/schema"
)

type failKey struct {
	stream    schema.StreamID
	direction schema.Direction
}

// MemorySource serves pages of in-memory stream histories. It stands in for
// the remote side of a fetch in replays and tests.
type MemorySource struct {
	mu      sync.Mutex
	streams map[schema.StreamID][]schema.Entry
	fail    map[failKey][]error
	calls   int
}

// NewMemorySource constructs an empty source.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		streams: make(map[schema.StreamID][]schema.Entry),
		fail:    make(map[failKey][]error),
	}
}

// Put adds entries to the history of stream.
func (m *MemorySource) Put(stream schema.StreamID, entries ...schema.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams[stream] = core.SortEntries(append(m.streams[stream], entries...))
}

// FailNext makes the next page load of stream in direction d return err.
func (m *MemorySource) FailNext(stream schema.StreamID, d schema.Direction, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := failKey{stream: stream, direction: d}
	m.fail[key] = append(m.fail[key], err)
}

// Calls returns how many pages were requested.
func (m *MemorySource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LoadPage returns up to limit entries strictly older or newer than the
// request boundary. An empty or unknown boundary selects the newest page.
// A limit of zero or less returns the whole remaining range.
func (m *MemorySource) LoadPage(ctx context.Context, req schema.FetchRequest, limit int) ([]schema.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	key := failKey{stream: req.Stream, direction: req.Direction}
	if errs := m.fail[key]; len(errs) > 0 {
		m.fail[key] = errs[1:]
		logx.FromContext(ctx).Debug("collection source failure injected", "err", errs[0])
		return nil, errs[0]
	}
	entries, ok := m.streams[req.Stream]
	if !ok {
		return nil, fmt.Errorf("%w: %s", schema.ErrStreamNotFound, req.Stream)
	}
	idx := -1
	if req.BoundaryID != "" {
		for i := range entries {
			if entries[i].ID == req.BoundaryID {
				idx = i
				break
			}
		}
	}
	var from, to int
	switch {
	case idx < 0:
		from, to = len(entries)-pageLen(limit, len(entries)), len(entries)
	case req.Direction == schema.DirectionOlder:
		from, to = idx-pageLen(limit, idx), idx
	default:
		from = idx + 1
		to = from + pageLen(limit, len(entries)-from)
	}
	logx.FromContext(ctx).Trace("collection source page served", "from", from, "to", to)
	return append([]schema.Entry(nil), entries[from:to]...), nil
}

func pageLen(limit, available int) int {
	if limit <= 0 || limit > available {
		return available
	}
	return limit
}
