package core

import (
	"context"

	"pkt.systems/threadpager/schema"
)

// WindowSink receives the window state after every recomputation that changed it.
type WindowSink interface {
	OnWindow(stream schema.StreamID, state schema.WindowState)
}

// Fetcher issues boundary fetches. Calls must not block; completion is
// reported back through Session.SettleFetch, one result per leg.
type Fetcher interface {
	FetchOlder(ctx context.Context, batch schema.FetchBatch)
	FetchNewer(ctx context.Context, batch schema.FetchBatch)
}

// ContributorPolicy classifies entries that contribute to a stream's total.
type ContributorPolicy interface {
	IsContributor(e schema.Entry) bool
	// SingleContributorView filters a log whose stream has exactly one contributor.
	SingleContributorView(entries []schema.Entry) []schema.Entry
}

// AggregateSource reports how many contributors a stream is expected to have.
type AggregateSource interface {
	ExpectedContributorCount(stream schema.StreamID) int
}
