package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/threadpager/internal/logx"
	"pkt.systems/threadpager/schema"
)

type streamInput struct {
	info    schema.StreamInfo
	entries []schema.Entry
}

type windowView struct {
	state schema.WindowState
	res   Resolution
}

// Session owns the merged log, link state and pagination state of one
// conversation view. Inputs are versioned; the merged log and the window
// are recomputed only when an input they depend on changed.
type Session struct {
	mu       sync.Mutex
	stream   schema.StreamID
	cfg      schema.PagerConfig
	log      pslog.Logger
	merger   *StreamMerger
	synth    *PlaceholderSynthesizer
	resolver LinkResolver
	pager    *PaginationController
	fetcher  Fetcher
	sink     WindowSink

	primary    ref[streamInput]
	satellite  ref[streamInput]
	loading    ref[bool]
	olderPages ref[int]
	linkRev    ref[struct{}]
	pagerRev   ref[struct{}]

	offline bool
	focused bool

	merged   memo[MergedLog]
	window   memo[windowView]
	notified uint64
}

// NewSession constructs a session for the primary stream.
func NewSession(cfg schema.PagerConfig, primary schema.StreamInfo, deps SessionDeps) (*Session, error) {
	normalized, err := schema.NormalizePagerConfig(cfg)
	if err != nil {
		return nil, err
	}
	id, err := schema.NormalizeStreamID(string(primary.ID))
	if err != nil {
		return nil, err
	}
	primary.ID = id
	if deps.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	logger = logx.WithStream(logger, primary.ID)
	s := &Session{
		stream:  primary.ID,
		cfg:     normalized,
		log:     logger,
		merger:  NewStreamMerger(logger),
		pager:   NewPaginationController(logger),
		fetcher: deps.Fetcher,
		sink:    deps.Sink,
		focused: true,
	}
	aggregates := deps.Aggregates
	if aggregates == nil {
		aggregates = AggregateFunc(s.expectedFromInfo)
	}
	s.synth = NewPlaceholderSynthesizer(normalized, deps.Policy, aggregates)
	s.primary.Set(streamInput{info: primary})
	return s, nil
}

// expectedFromInfo reads the expected contributor count from stream metadata.
// Called with s.mu held.
func (s *Session) expectedFromInfo(stream schema.StreamID) int {
	if info := s.primary.Get().info; info.ID == stream {
		return info.ExpectedContributors
	}
	return 0
}

// PrimaryStream returns the primary stream id.
func (s *Session) PrimaryStream() schema.StreamID {
	return s.stream
}

// SatelliteStream returns the configured satellite stream id, or "".
func (s *Session) SatelliteStream() schema.StreamID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.satellite.Get().info.ID
}

// Streams returns the primary stream followed by the satellite, if any.
func (s *Session) Streams() []schema.StreamID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamsLocked()
}

func (s *Session) streamsLocked() []schema.StreamID {
	streams := []schema.StreamID{s.primary.Get().info.ID}
	if sat := s.satellite.Get().info.ID; sat != "" {
		streams = append(streams, sat)
	}
	return streams
}

// SetSatellite configures, replaces or (with a zero info) removes the
// satellite stream. Changing the satellite stream drops its entries and any
// in-flight batches, since their legs target the previous stream.
func (s *Session) SetSatellite(info schema.StreamInfo) error {
	if info.ID != "" {
		id, err := schema.NormalizeStreamID(string(info.ID))
		if err != nil {
			return err
		}
		info.ID = id
	}
	s.mu.Lock()
	current := s.satellite.Get()
	if current.info.ID == info.ID {
		s.satellite.Set(streamInput{info: info, entries: current.entries})
	} else {
		if info.ID != "" && info.ID == s.primary.Get().info.ID {
			s.mu.Unlock()
			return fmt.Errorf("%w: satellite %s equals primary", schema.ErrInvalidStream, info.ID)
		}
		s.satellite.Set(streamInput{info: info})
		s.pager.Reset()
		s.pagerRev.Touch()
		s.log.Info("session satellite changed", "satellite", info.ID, "previous", current.info.ID)
	}
	state, changed := s.refreshLocked()
	s.mu.Unlock()
	s.emit(state, changed)
	return nil
}

// ApplyStreamInfo replaces the metadata of a configured stream.
func (s *Session) ApplyStreamInfo(info schema.StreamInfo) error {
	s.mu.Lock()
	switch {
	case info.ID == s.primary.Get().info.ID:
		s.primary.Set(streamInput{info: info, entries: s.primary.Get().entries})
	case info.ID != "" && info.ID == s.satellite.Get().info.ID:
		s.satellite.Set(streamInput{info: info, entries: s.satellite.Get().entries})
	default:
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", schema.ErrStreamNotFound, info.ID)
	}
	state, changed := s.refreshLocked()
	s.mu.Unlock()
	s.emit(state, changed)
	return nil
}

// ApplyCollection replaces the entry collection of a configured stream.
// This is the reactive update path: fetched pages and local mutations both
// arrive here.
func (s *Session) ApplyCollection(stream schema.StreamID, entries []schema.Entry) error {
	entries = append([]schema.Entry(nil), entries...)
	s.mu.Lock()
	switch {
	case stream == s.primary.Get().info.ID:
		s.primary.Set(streamInput{info: s.primary.Get().info, entries: entries})
	case stream != "" && stream == s.satellite.Get().info.ID:
		s.satellite.Set(streamInput{info: s.satellite.Get().info, entries: entries})
	default:
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", schema.ErrStreamNotFound, stream)
	}
	state, changed := s.refreshLocked()
	s.mu.Unlock()
	s.log.Trace("session collection applied", "collection", stream, "entries", len(entries), "window", len(state.Entries))
	s.emit(state, changed)
	return nil
}

// SetLinkTarget navigates to a deep-link target ("" clears it). A new target
// starts a new generation: late results of earlier batches are ignored and
// the first render anchors tightly at the target again.
func (s *Session) SetLinkTarget(id schema.EntryID) {
	s.mu.Lock()
	if !s.resolver.SetTarget(id) {
		s.mu.Unlock()
		return
	}
	gen := s.pager.Reset()
	s.olderPages.Set(0)
	s.linkRev.Touch()
	s.pagerRev.Touch()
	state, changed := s.refreshLocked()
	s.mu.Unlock()
	logx.WithTarget(s.log, id).Info("session link target set", "generation", gen, "target_index", state.AnchorIndex)
	s.emit(state, changed)
}

// SetLoadingInitial records whether the initial load of the primary stream is
// in progress. A log that becomes newly loading re-arms the first render of
// the active target.
func (s *Session) SetLoadingInitial(loading bool) {
	s.mu.Lock()
	if s.loading.Get() == loading {
		s.mu.Unlock()
		return
	}
	s.loading.Set(loading)
	if loading && s.resolver.Target() != "" {
		s.resolver.Rearm()
		s.pager.Reset()
		s.olderPages.Set(0)
		s.linkRev.Touch()
		s.pagerRev.Touch()
	}
	state, changed := s.refreshLocked()
	s.mu.Unlock()
	s.emit(state, changed)
}

// SetOffline records network availability.
func (s *Session) SetOffline(offline bool) {
	s.mu.Lock()
	s.offline = offline
	s.mu.Unlock()
}

// SetFocused records whether the view is focused.
func (s *Session) SetFocused(focused bool) {
	s.mu.Lock()
	s.focused = focused
	s.mu.Unlock()
}

// Snapshot returns the current window. The returned value is a copy.
func (s *Session) Snapshot() schema.WindowState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneWindow(s.view().state)
}

// MergedLog returns a copy of the current merged and synthesized log.
func (s *Session) MergedLog() MergedLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.mergedLog()
	log.Entries = append([]schema.Entry(nil), log.Entries...)
	return log
}

// State returns the pagination state of direction d.
func (s *Session) State(d schema.Direction) PageState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pager.State(d)
}

// RequestOlder signals proximity to the oldest visible entry. Calls are
// re-entrant: a request while a batch is in flight is rejected.
func (s *Session) RequestOlder(ctx context.Context, force bool) Decision {
	s.mu.Lock()
	view := s.view()
	state := view.state
	dec := s.pager.DecideOlder(OlderInput{
		Force:             force,
		Offline:           s.offline,
		LoadingInitial:    s.loading.Get(),
		WindowStart:       state.Start,
		HasOldest:         len(state.Entries) > 0,
		HasCreationMarker: state.HasCreationMarker,
	})
	var batch schema.FetchBatch
	switch dec.Outcome {
	case OutcomeWidened:
		s.olderPages.Set(s.olderPages.Get() + 1)
	case OutcomeFetched:
		batch = s.batchLocked(schema.DirectionOlder, state.Routes)
		s.pager.Begin(batch)
		s.pagerRev.Touch()
		if s.resolver.Target() != "" {
			s.olderPages.Set(s.olderPages.Get() + 1)
		}
	}
	target := s.resolver.Target()
	next, changed := s.refreshLocked()
	s.mu.Unlock()
	s.logDecision(schema.DirectionOlder, force, dec)
	if dec.Outcome == OutcomeFetched {
		s.fetcher.FetchOlder(logx.ContextWithTarget(ctx, target), batch)
	}
	s.emit(next, changed)
	return dec
}

// RequestNewer signals proximity to the newest visible entry. Cached entries
// past the window are materialized before any network fetch is issued.
func (s *Session) RequestNewer(ctx context.Context, force bool) Decision {
	s.mu.Lock()
	view := s.view()
	state := view.state
	var newest schema.Entry
	if n := len(state.Entries); n > 0 {
		newest = state.Entries[n-1]
	}
	dec := s.pager.DecideNewer(NewerInput{
		Force:          force,
		Offline:        s.offline,
		LoadingInitial: s.loading.Get(),
		Focused:        s.focused,
		Linked:         s.resolver.Target() != "",
		TargetResolved: view.res.TargetIndex >= 0,
		NewestPending:  newest.Pending,
		HasMoreCached:  state.End < state.LogLength,
	})
	var batch schema.FetchBatch
	switch dec.Outcome {
	case OutcomeWidened:
		s.resolver.Advance(newest.ID)
		s.linkRev.Touch()
	case OutcomeFetched:
		s.resolver.Advance(newest.ID)
		s.linkRev.Touch()
		batch = s.batchLocked(schema.DirectionNewer, state.Routes)
		s.pager.Begin(batch)
		s.pagerRev.Touch()
	}
	target := s.resolver.Target()
	next, changed := s.refreshLocked()
	s.mu.Unlock()
	s.logDecision(schema.DirectionNewer, force, dec)
	if dec.Outcome == OutcomeFetched {
		s.fetcher.FetchNewer(logx.ContextWithTarget(ctx, target), batch)
	}
	s.emit(next, changed)
	return dec
}

// Retry forces a request in direction d, leaving back-off.
func (s *Session) Retry(ctx context.Context, d schema.Direction) Decision {
	if d == schema.DirectionNewer {
		return s.RequestNewer(ctx, true)
	}
	return s.RequestOlder(ctx, true)
}

// SettleFetch reports the completion of one leg of a batch. It returns
// false when the result was stale or unexpected and therefore ignored.
func (s *Session) SettleFetch(result schema.FetchResult) bool {
	s.mu.Lock()
	accepted, completed := s.pager.Settle(result)
	if accepted {
		s.pagerRev.Touch()
	}
	state, changed := s.refreshLocked()
	s.mu.Unlock()
	if completed {
		s.log.Debug("session fetch completed", "direction", result.Direction, "window", len(state.Entries))
	}
	s.emit(state, changed)
	return accepted
}

func (s *Session) batchLocked(d schema.Direction, routes []schema.Route) schema.FetchBatch {
	gen := s.pager.Generation()
	batch := schema.FetchBatch{Direction: d, Generation: gen}
	for _, stream := range s.streamsLocked() {
		batch.Legs = append(batch.Legs, schema.FetchRequest{
			Stream:     stream,
			Direction:  d,
			BoundaryID: BoundaryID(routes, stream, d),
			Generation: gen,
		})
	}
	return batch
}

func (s *Session) mergedLog() MergedLog {
	return s.merged.Get(func() MergedLog {
		primary := s.primary.Get()
		satellite := s.satellite.Get()
		log := s.merger.Merge(primary.info, primary.entries, satellite.info, satellite.entries)
		log.Entries = s.synth.Apply(primary.info, satellite.info.ID != "", log.Entries)
		return log
	}, s.primary.Version(), s.satellite.Version())
}

func (s *Session) view() windowView {
	log := s.mergedLog()
	return s.window.Get(func() windowView {
		linked := s.resolver.Target() != ""
		linkLoading := linked && s.loading.Get()
		res := s.resolver.Resolve(log, linkLoading)
		w := computeBounds(windowInput{
			total:       log.Len(),
			linked:      linked,
			loading:     linkLoading,
			targetIdx:   res.TargetIndex,
			pivotIdx:    res.PivotIndex,
			firstRender: res.IsFirstRender,
			pageSize:    s.cfg.PageSize,
			olderPages:  s.olderPages.Get(),
		})
		state := project(projection{
			log:        log,
			window:     w,
			res:        res,
			linked:     linked,
			primary:    s.primary.Get().info,
			satellite:  s.satellite.Get().info,
			older:      s.pager.State(schema.DirectionOlder),
			newer:      s.pager.State(schema.DirectionNewer),
			generation: s.pager.Generation(),
		})
		return windowView{state: state, res: res}
	}, s.merged.Version(), s.linkRev.Version(), s.loading.Version(), s.pagerRev.Version(), s.olderPages.Version())
}

// refreshLocked recomputes the window and reports whether it changed since
// the last notification.
func (s *Session) refreshLocked() (schema.WindowState, bool) {
	state := s.view().state
	if s.window.Version() == s.notified {
		return schema.WindowState{}, false
	}
	s.notified = s.window.Version()
	return cloneWindow(state), true
}

func (s *Session) emit(state schema.WindowState, changed bool) {
	if !changed || s.sink == nil {
		return
	}
	s.sink.OnWindow(s.stream, state)
}

func (s *Session) logDecision(d schema.Direction, force bool, dec Decision) {
	switch dec.Outcome {
	case OutcomeSkipped:
		s.log.Trace("session pagination skipped", "direction", d, "force", force, "reason", dec.Reason)
	default:
		s.log.Debug("session pagination", "direction", d, "force", force, "outcome", dec.Outcome)
	}
}

func cloneWindow(state schema.WindowState) schema.WindowState {
	state.Entries = append([]schema.Entry(nil), state.Entries...)
	state.Routes = append([]schema.Route(nil), state.Routes...)
	if state.ParentRef != nil {
		parent := *state.ParentRef
		state.ParentRef = &parent
	}
	return state
}
