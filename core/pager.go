package core

import (
	"context"

	"pkt.systems/pslog"
	"pkt.systems/threadpager/schema"
)

// PageState is the state of one pagination direction.
type PageState int

const (
	// StateIdle accepts new requests.
	StateIdle PageState = iota
	// StateFetchingOlder has an older batch in flight.
	StateFetchingOlder
	// StateFetchingNewer has a newer batch in flight.
	StateFetchingNewer
	// StateSuppressed backs off after a failure until a forced retry.
	StateSuppressed
)

func (s PageState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetchingOlder:
		return "fetching_older"
	case StateFetchingNewer:
		return "fetching_newer"
	case StateSuppressed:
		return "suppressed"
	default:
		return "unknown"
	}
}

// Outcome describes what a pagination request did.
type Outcome string

const (
	// OutcomeFetched issued a network batch.
	OutcomeFetched Outcome = "fetched"
	// OutcomeWidened materialized cached entries without a network call.
	OutcomeWidened Outcome = "widened"
	// OutcomeSkipped did nothing.
	OutcomeSkipped Outcome = "skipped"
)

// Skip reasons reported with OutcomeSkipped.
const (
	ReasonOffline        = "offline"
	ReasonInFlight       = "in_flight"
	ReasonSuppressed     = "suppressed"
	ReasonLoading        = "loading_initial"
	ReasonEmpty          = "empty_log"
	ReasonExhausted      = "creation_marker_present"
	ReasonNoTarget       = "no_link_target"
	ReasonUnfocused      = "unfocused"
	ReasonPendingDelete  = "newest_pending_delete"
	ReasonTargetNotFound = "target_not_resolved"
)

// Decision is the result of evaluating a pagination request.
type Decision struct {
	Outcome Outcome
	Reason  string
}

func skip(reason string) Decision {
	return Decision{Outcome: OutcomeSkipped, Reason: reason}
}

// OlderInput is what the older-direction transition guards look at.
type OlderInput struct {
	Force             bool
	Offline           bool
	LoadingInitial    bool
	WindowStart       int
	HasOldest         bool
	HasCreationMarker bool
}

// NewerInput is what the newer-direction transition guards look at.
type NewerInput struct {
	Force          bool
	Offline        bool
	LoadingInitial bool
	Focused        bool
	Linked         bool
	TargetResolved bool
	NewestPending  schema.PendingState
	HasMoreCached  bool
}

type directionState struct {
	state    PageState
	inflight map[schema.StreamID]struct{}
	failed   bool
	failures int
}

// PaginationController tracks in-flight batches and back-off per direction.
// Directions are independent: a failure in one never blocks the other.
type PaginationController struct {
	older      directionState
	newer      directionState
	generation uint64
	log        pslog.Logger
}

// NewPaginationController constructs an idle controller.
func NewPaginationController(logger pslog.Logger) *PaginationController {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &PaginationController{generation: 1, log: logger}
}

func (p *PaginationController) dir(d schema.Direction) *directionState {
	if d == schema.DirectionNewer {
		return &p.newer
	}
	return &p.older
}

// Generation returns the token attached to batches issued now.
func (p *PaginationController) Generation() uint64 {
	return p.generation
}

// State returns the state of direction d.
func (p *PaginationController) State(d schema.Direction) PageState {
	return p.dir(d).state
}

// InFlight reports whether direction d has a batch outstanding.
func (p *PaginationController) InFlight(d schema.Direction) bool {
	st := p.State(d)
	return st == StateFetchingOlder || st == StateFetchingNewer
}

// Suppressed reports whether direction d is backing off.
func (p *PaginationController) Suppressed(d schema.Direction) bool {
	return p.State(d) == StateSuppressed
}

// Failures returns how many batches failed in direction d since the last reset.
func (p *PaginationController) Failures(d schema.Direction) int {
	return p.dir(d).failures
}

// DecideOlder evaluates the older-direction transition guards.
func (p *PaginationController) DecideOlder(in OlderInput) Decision {
	if p.InFlight(schema.DirectionOlder) {
		return skip(ReasonInFlight)
	}
	if !in.Force {
		switch {
		case in.Offline:
			return skip(ReasonOffline)
		case p.Suppressed(schema.DirectionOlder):
			return skip(ReasonSuppressed)
		case in.LoadingInitial:
			return skip(ReasonLoading)
		}
	}
	if in.WindowStart > 0 {
		return Decision{Outcome: OutcomeWidened}
	}
	if !in.HasOldest {
		return skip(ReasonEmpty)
	}
	if in.HasCreationMarker {
		return skip(ReasonExhausted)
	}
	return Decision{Outcome: OutcomeFetched}
}

// DecideNewer evaluates the newer-direction transition guards.
func (p *PaginationController) DecideNewer(in NewerInput) Decision {
	if p.InFlight(schema.DirectionNewer) {
		return skip(ReasonInFlight)
	}
	if !in.Force {
		switch {
		case !in.Linked:
			return skip(ReasonNoTarget)
		case !in.Focused:
			return skip(ReasonUnfocused)
		case in.LoadingInitial:
			return skip(ReasonLoading)
		case in.NewestPending == schema.PendingDelete:
			return skip(ReasonPendingDelete)
		}
	}
	if in.Linked && !in.TargetResolved {
		return skip(ReasonTargetNotFound)
	}
	if in.HasMoreCached {
		return Decision{Outcome: OutcomeWidened}
	}
	if !in.Force && p.Suppressed(schema.DirectionNewer) {
		return skip(ReasonSuppressed)
	}
	if in.Offline {
		return skip(ReasonOffline)
	}
	return Decision{Outcome: OutcomeFetched}
}

// Begin marks every leg of batch as in flight.
func (p *PaginationController) Begin(batch schema.FetchBatch) {
	st := p.dir(batch.Direction)
	st.inflight = make(map[schema.StreamID]struct{}, len(batch.Legs))
	for _, leg := range batch.Legs {
		st.inflight[leg.Stream] = struct{}{}
	}
	st.failed = false
	if batch.Direction == schema.DirectionNewer {
		st.state = StateFetchingNewer
	} else {
		st.state = StateFetchingOlder
	}
	p.log.Debug("pager fetch begin", "direction", batch.Direction, "legs", len(batch.Legs), "generation", batch.Generation)
}

// Settle records the completion of one leg. It reports whether the result
// was accepted and whether it completed its batch. Results from an older
// generation or for legs not in flight are ignored.
func (p *PaginationController) Settle(result schema.FetchResult) (accepted bool, completed bool) {
	if result.Generation != p.generation {
		p.log.Debug("pager result stale", "direction", result.Direction, "stream", result.Stream, "generation", result.Generation, "current", p.generation)
		return false, false
	}
	st := p.dir(result.Direction)
	if _, ok := st.inflight[result.Stream]; !ok {
		p.log.Debug("pager result unexpected", "direction", result.Direction, "stream", result.Stream)
		return false, false
	}
	delete(st.inflight, result.Stream)
	if result.Err != nil {
		st.failed = true
		p.log.Warn("pager fetch leg failed", "direction", result.Direction, "stream", result.Stream, "err", result.Err)
	}
	if len(st.inflight) > 0 {
		return true, false
	}
	if st.failed {
		st.failures++
		st.state = StateSuppressed
		p.log.Info("pager direction suppressed", "direction", result.Direction, "failures", st.failures)
	} else {
		st.state = StateIdle
	}
	st.failed = false
	return true, true
}

// Reset drops all in-flight and back-off state and starts a new generation.
func (p *PaginationController) Reset() uint64 {
	p.generation++
	p.older = directionState{}
	p.newer = directionState{}
	return p.generation
}
