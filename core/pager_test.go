package core

import (
	"errors"
	"testing"

	"pkt.systems/threadpager/schema"
)

func olderBatch(gen uint64, streams ...schema.StreamID) schema.FetchBatch {
	batch := schema.FetchBatch{Direction: schema.DirectionOlder, Generation: gen}
	for _, s := range streams {
		batch.Legs = append(batch.Legs, schema.FetchRequest{Stream: s, Direction: schema.DirectionOlder, Generation: gen})
	}
	return batch
}

var fetchableOlder = OlderInput{HasOldest: true}

func TestPagerRejectsWhileInFlight(t *testing.T) {
	p := NewPaginationController(nil)
	if dec := p.DecideOlder(fetchableOlder); dec.Outcome != OutcomeFetched {
		t.Fatalf("expected fetch, got %+v", dec)
	}
	p.Begin(olderBatch(p.Generation(), "r1"))
	for _, force := range []bool{false, true} {
		in := fetchableOlder
		in.Force = force
		if dec := p.DecideOlder(in); dec.Outcome != OutcomeSkipped || dec.Reason != ReasonInFlight {
			t.Fatalf("force=%v: expected in-flight skip, got %+v", force, dec)
		}
	}
}

func TestPagerSuppressesAfterFailureUntilForced(t *testing.T) {
	p := NewPaginationController(nil)
	p.Begin(olderBatch(p.Generation(), "r1"))
	accepted, completed := p.Settle(schema.FetchResult{Stream: "r1", Direction: schema.DirectionOlder, Generation: p.Generation(), Err: errors.New("boom")})
	if !accepted || !completed {
		t.Fatalf("expected accepted completion, got %v %v", accepted, completed)
	}
	if p.State(schema.DirectionOlder) != StateSuppressed || p.Failures(schema.DirectionOlder) != 1 {
		t.Fatalf("expected suppressed after failure, got %s", p.State(schema.DirectionOlder))
	}
	if dec := p.DecideOlder(fetchableOlder); dec.Reason != ReasonSuppressed {
		t.Fatalf("expected suppressed skip, got %+v", dec)
	}
	forced := fetchableOlder
	forced.Force = true
	if dec := p.DecideOlder(forced); dec.Outcome != OutcomeFetched {
		t.Fatalf("expected forced retry, got %+v", dec)
	}
	p.Begin(olderBatch(p.Generation(), "r1"))
	p.Settle(schema.FetchResult{Stream: "r1", Direction: schema.DirectionOlder, Generation: p.Generation()})
	if p.State(schema.DirectionOlder) != StateIdle {
		t.Fatalf("expected idle after successful retry, got %s", p.State(schema.DirectionOlder))
	}
}

func TestPagerDirectionsAreIndependent(t *testing.T) {
	p := NewPaginationController(nil)
	p.Begin(olderBatch(p.Generation(), "r1"))
	p.Settle(schema.FetchResult{Stream: "r1", Direction: schema.DirectionOlder, Generation: p.Generation(), Err: errors.New("boom")})
	dec := p.DecideNewer(NewerInput{Focused: true, Linked: true, TargetResolved: true})
	if dec.Outcome != OutcomeFetched {
		t.Fatalf("older failure must not block newer, got %+v", dec)
	}
	if p.State(schema.DirectionNewer) != StateIdle {
		t.Fatalf("expected newer idle, got %s", p.State(schema.DirectionNewer))
	}
}

func TestPagerPairedLegsCompleteTogether(t *testing.T) {
	p := NewPaginationController(nil)
	gen := p.Generation()
	p.Begin(olderBatch(gen, "r1", "t1"))
	accepted, completed := p.Settle(schema.FetchResult{Stream: "t1", Direction: schema.DirectionOlder, Generation: gen})
	if !accepted || completed {
		t.Fatalf("expected partial settle, got %v %v", accepted, completed)
	}
	if p.State(schema.DirectionOlder) != StateFetchingOlder {
		t.Fatalf("expected still fetching, got %s", p.State(schema.DirectionOlder))
	}
	if accepted, _ = p.Settle(schema.FetchResult{Stream: "t1", Direction: schema.DirectionOlder, Generation: gen}); accepted {
		t.Fatalf("duplicate leg result must be ignored")
	}
	_, completed = p.Settle(schema.FetchResult{Stream: "r1", Direction: schema.DirectionOlder, Generation: gen})
	if !completed || p.State(schema.DirectionOlder) != StateIdle {
		t.Fatalf("expected batch completion, got %s", p.State(schema.DirectionOlder))
	}
}

func TestPagerPairedLegFailureSuppressesBatch(t *testing.T) {
	p := NewPaginationController(nil)
	gen := p.Generation()
	p.Begin(olderBatch(gen, "r1", "t1"))
	p.Settle(schema.FetchResult{Stream: "r1", Direction: schema.DirectionOlder, Generation: gen, Err: errors.New("boom")})
	p.Settle(schema.FetchResult{Stream: "t1", Direction: schema.DirectionOlder, Generation: gen})
	if p.State(schema.DirectionOlder) != StateSuppressed {
		t.Fatalf("expected suppressed, got %s", p.State(schema.DirectionOlder))
	}
}

func TestPagerIgnoresStaleGeneration(t *testing.T) {
	p := NewPaginationController(nil)
	old := p.Generation()
	p.Begin(olderBatch(old, "r1"))
	if next := p.Reset(); next == old {
		t.Fatalf("expected new generation")
	}
	if accepted, _ := p.Settle(schema.FetchResult{Stream: "r1", Direction: schema.DirectionOlder, Generation: old, Err: errors.New("late")}); accepted {
		t.Fatalf("stale result must be ignored")
	}
	if p.State(schema.DirectionOlder) != StateIdle {
		t.Fatalf("expected idle after reset, got %s", p.State(schema.DirectionOlder))
	}
}

func TestPagerNewerGuards(t *testing.T) {
	p := NewPaginationController(nil)
	base := NewerInput{Focused: true, Linked: true, TargetResolved: true}
	cases := []struct {
		name   string
		mutate func(*NewerInput)
		want   Decision
	}{
		{name: "unlinked", mutate: func(in *NewerInput) { in.Linked = false }, want: skip(ReasonNoTarget)},
		{name: "unfocused", mutate: func(in *NewerInput) { in.Focused = false }, want: skip(ReasonUnfocused)},
		{name: "loading", mutate: func(in *NewerInput) { in.LoadingInitial = true }, want: skip(ReasonLoading)},
		{name: "pending delete", mutate: func(in *NewerInput) { in.NewestPending = schema.PendingDelete }, want: skip(ReasonPendingDelete)},
		{name: "unresolved", mutate: func(in *NewerInput) { in.TargetResolved = false }, want: skip(ReasonTargetNotFound)},
		{name: "cached", mutate: func(in *NewerInput) { in.HasMoreCached = true }, want: Decision{Outcome: OutcomeWidened}},
		{name: "offline cached", mutate: func(in *NewerInput) { in.Offline = true; in.HasMoreCached = true }, want: Decision{Outcome: OutcomeWidened}},
		{name: "offline", mutate: func(in *NewerInput) { in.Offline = true }, want: skip(ReasonOffline)},
		{name: "forced offline", mutate: func(in *NewerInput) { in.Offline = true; in.Force = true }, want: skip(ReasonOffline)},
		{name: "fetch", mutate: func(*NewerInput) {}, want: Decision{Outcome: OutcomeFetched}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := base
			tc.mutate(&in)
			if got := p.DecideNewer(in); got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestPagerOlderGuards(t *testing.T) {
	p := NewPaginationController(nil)
	cases := []struct {
		name string
		in   OlderInput
		want Decision
	}{
		{name: "offline", in: OlderInput{Offline: true, HasOldest: true}, want: skip(ReasonOffline)},
		{name: "forced offline", in: OlderInput{Offline: true, Force: true, HasOldest: true}, want: Decision{Outcome: OutcomeFetched}},
		{name: "loading", in: OlderInput{LoadingInitial: true, HasOldest: true}, want: skip(ReasonLoading)},
		{name: "widen", in: OlderInput{WindowStart: 3, HasOldest: true}, want: Decision{Outcome: OutcomeWidened}},
		{name: "empty", in: OlderInput{}, want: skip(ReasonEmpty)},
		{name: "exhausted", in: OlderInput{HasOldest: true, HasCreationMarker: true}, want: skip(ReasonExhausted)},
		{name: "fetch", in: OlderInput{HasOldest: true}, want: Decision{Outcome: OutcomeFetched}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := p.DecideOlder(tc.in); got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestPageStateString(t *testing.T) {
	if StateSuppressed.String() != "suppressed" || PageState(42).String() != "unknown" {
		t.Fatalf("unexpected state names")
	}
}
