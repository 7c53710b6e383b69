package core

import "pkt.systems/pslog"

// SessionDeps captures optional dependencies for a pagination session.
type SessionDeps struct {
	Fetcher    Fetcher
	Policy     ContributorPolicy
	Aggregates AggregateSource
	Sink       WindowSink
	Logger     pslog.Logger
}
