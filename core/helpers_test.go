package core

import (
	"context"
	"sync"
	"time"

	"pkt.systems/threadpager/schema"
)

var testBase = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func at(sec int) time.Time {
	return testBase.Add(time.Duration(sec) * time.Second)
}

func msg(id string, sec int) schema.Entry {
	return schema.Entry{ID: schema.EntryID(id), CreatedAt: at(sec), Kind: schema.KindMessage}
}

func created(id string, sec int) schema.Entry {
	return schema.Entry{ID: schema.EntryID(id), CreatedAt: at(sec), Kind: schema.KindCreated}
}

func contrib(id string, sec int) schema.Entry {
	return schema.Entry{
		ID:           schema.EntryID(id),
		CreatedAt:    at(sec),
		Kind:         schema.KindContribution,
		Contribution: &schema.Contribution{Type: schema.ContributionCreate, Amount: 1250, Currency: "USD"},
	}
}

func ids(entries []schema.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = string(e.ID)
	}
	return out
}

func equalIDs(a []schema.Entry, want ...string) bool {
	got := ids(a)
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

type recordingFetcher struct {
	mu    sync.Mutex
	older []schema.FetchBatch
	newer []schema.FetchBatch
}

func (f *recordingFetcher) FetchOlder(_ context.Context, batch schema.FetchBatch) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.older = append(f.older, batch)
}

func (f *recordingFetcher) FetchNewer(_ context.Context, batch schema.FetchBatch) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.newer = append(f.newer, batch)
}

func (f *recordingFetcher) olderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.older)
}

func (f *recordingFetcher) newerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.newer)
}

func (f *recordingFetcher) lastOlder() schema.FetchBatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.older[len(f.older)-1]
}

func (f *recordingFetcher) lastNewer() schema.FetchBatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.newer[len(f.newer)-1]
}

type recordingSink struct {
	mu     sync.Mutex
	states []schema.WindowState
}

func (s *recordingSink) OnWindow(_ schema.StreamID, state schema.WindowState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, state)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

func fixedExpected(n int) AggregateSource {
	return AggregateFunc(func(schema.StreamID) int { return n })
}
