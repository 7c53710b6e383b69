package threadpager

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/threadpager/core"
	"pkt.systems/threadpager/internal/collection"
	"pkt.systems/threadpager/internal/dispatch"
	"pkt.systems/threadpager/internal/eventbus"
	"pkt.systems/threadpager/internal/logx"
	"pkt.systems/threadpager/schema"
)

// Config configures a Host.
type Config struct {
	StateDir string
	Pager    schema.PagerConfig
	Dispatch dispatch.Config
	BusDepth int
}

// Deps captures dependencies required to build a Host.
type Deps struct {
	// Loader serves pages for fetch batches.
	Loader     dispatch.Loader
	Policy     core.ContributorPolicy
	Aggregates core.AggregateSource
	Sinks      []core.WindowSink
	Logger     pslog.Logger
}

// Host wires the collection store, the event bus and the fetch dispatcher
// to pagination sessions. Collection changes reach the sessions through the
// bus as change signals; settled fetches are handed over directly by the
// dispatcher since a lost one would leave a direction in flight. Window
// updates leave through the sinks.
type Host struct {
	cfg        Config
	deps       Deps
	log        pslog.Logger
	bus        *eventbus.Bus
	store      *collection.Store
	dispatcher *dispatch.Dispatcher
	sinks      *windowFanout

	events      <-chan eventbus.Event
	unsubscribe func()

	mu       sync.Mutex
	sessions map[schema.StreamID]*core.Session
	closed   bool
}

// New constructs a Host.
func New(cfg Config, deps Deps) (*Host, error) {
	if deps.Loader == nil {
		return nil, errors.New("loader dependency is required")
	}
	pager, err := schema.NormalizePagerConfig(cfg.Pager)
	if err != nil {
		return nil, err
	}
	cfg.Pager = pager
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	bus := eventbus.NewWithDepth(logger, cfg.BusDepth)
	store, err := collection.NewStoreWithLogger(cfg.StateDir, logger, bus)
	if err != nil {
		return nil, err
	}
	h := &Host{
		cfg:      cfg,
		deps:     deps,
		log:      logger,
		bus:      bus,
		store:    store,
		sinks:    &windowFanout{},
		sessions: make(map[schema.StreamID]*core.Session),
	}
	h.dispatcher, err = dispatch.New(cfg.Dispatch, deps.Loader, store, settleRouter{h: h}, logger)
	if err != nil {
		return nil, err
	}
	for _, sink := range deps.Sinks {
		h.sinks.add(sink)
	}
	h.events, h.unsubscribe = bus.Subscribe(eventbus.AllStreams)
	return h, nil
}

// Store returns the collection store backing the host.
func (h *Host) Store() *collection.Store {
	return h.store
}

// AddSink registers another window sink.
func (h *Host) AddSink(sink core.WindowSink) {
	h.sinks.add(sink)
}

// Open starts a session for a primary stream, seeded from the store. Opening
// an already open stream returns the existing session.
func (h *Host) Open(stream schema.StreamID) (*core.Session, error) {
	id, err := schema.NormalizeStreamID(string(stream))
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, errors.New("host closed")
	}
	if s, ok := h.sessions[id]; ok {
		h.mu.Unlock()
		return s, nil
	}
	snap, _, err := h.store.Load(id)
	if err != nil {
		h.mu.Unlock()
		return nil, err
	}
	info := snap.Info
	info.ID = id
	s, err := core.NewSession(h.cfg.Pager, info, core.SessionDeps{
		Fetcher:    h.dispatcher,
		Policy:     h.deps.Policy,
		Aggregates: h.deps.Aggregates,
		Sink:       h.sinks,
		Logger:     h.log,
	})
	if err != nil {
		h.mu.Unlock()
		return nil, err
	}
	h.sessions[id] = s
	h.mu.Unlock()
	if err := s.ApplyCollection(id, snap.Entries); err != nil {
		return nil, err
	}
	logx.WithStream(h.log, id).Info("host session open", "entries", len(snap.Entries))
	return s, nil
}

// Attach configures satellite as the satellite stream of the session for
// primary, seeded from the store. An empty satellite detaches.
func (h *Host) Attach(primary, satellite schema.StreamID) error {
	s, ok := h.Session(primary)
	if !ok {
		return fmt.Errorf("%w: %s", schema.ErrStreamNotFound, primary)
	}
	if satellite == "" {
		return s.SetSatellite(schema.StreamInfo{})
	}
	snap, _, err := h.store.Load(satellite)
	if err != nil {
		return err
	}
	info := snap.Info
	info.ID = satellite
	if err := s.SetSatellite(info); err != nil {
		return err
	}
	return s.ApplyCollection(info.ID, snap.Entries)
}

// Session returns the open session for primary.
func (h *Host) Session(primary schema.StreamID) (*core.Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[primary]
	return s, ok
}

// CloseSession forgets the session for primary. Late events for it are dropped.
func (h *Host) CloseSession(primary schema.StreamID) {
	h.mu.Lock()
	delete(h.sessions, primary)
	h.mu.Unlock()
}

// Run routes bus events to sessions until ctx is done.
func (h *Host) Run(ctx context.Context) error {
	h.log.Info("host run start")
	for {
		select {
		case <-ctx.Done():
			h.log.Info("host run stop")
			return nil
		case ev, ok := <-h.events:
			if !ok {
				return nil
			}
			h.route(ev)
		}
	}
}

// Settle waits for every dispatched fetch to finish and routes the
// resulting events. It is the synchronous alternative to Run.
func (h *Host) Settle() {
	h.dispatcher.Wait()
	for {
		select {
		case ev, ok := <-h.events:
			if !ok {
				return
			}
			h.route(ev)
		default:
			return
		}
	}
}

// Close stops event delivery after in-flight fetches finished.
func (h *Host) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.mu.Unlock()
	h.dispatcher.Wait()
	h.unsubscribe()
}

func (h *Host) route(ev eventbus.Event) {
	for _, s := range h.sessionsFor(ev.Stream) {
		var err error
		switch ev.Type {
		case eventbus.EventCollection:
			err = h.resync(s, ev.Stream)
		case eventbus.EventStreamInfo:
			err = s.ApplyStreamInfo(ev.Info)
		}
		if err != nil {
			h.log.Warn("host event rejected", "type", ev.Type, "stream", ev.Stream, "session", s.PrimaryStream(), "err", err)
		}
	}
}

// settle hands a finished fetch leg to every session paging its stream. A
// successful leg resyncs the collection first so the session never goes idle
// on a page it has not seen.
func (h *Host) settle(result schema.FetchResult) {
	for _, s := range h.sessionsFor(result.Stream) {
		if result.Err == nil {
			if err := h.resync(s, result.Stream); err != nil {
				h.log.Warn("host resync failed", "stream", result.Stream, "session", s.PrimaryStream(), "err", err)
			}
		}
		s.SettleFetch(result)
	}
	h.bus.OnFetchSettled(result)
}

// resync applies the stored collection of stream to s. Bus events only
// signal that a stream changed, so a dropped or late event cannot leave a
// session on an older snapshot.
func (h *Host) resync(s *core.Session, stream schema.StreamID) error {
	snap, _, err := h.store.Load(stream)
	if err != nil {
		return err
	}
	return s.ApplyCollection(stream, snap.Entries)
}

func (h *Host) sessionsFor(stream schema.StreamID) []*core.Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	targets := make([]*core.Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		for _, id := range s.Streams() {
			if id == stream {
				targets = append(targets, s)
				break
			}
		}
	}
	return targets
}

// settleRouter reports dispatcher results to the host.
type settleRouter struct {
	h *Host
}

func (r settleRouter) OnFetchSettled(result schema.FetchResult) {
	r.h.settle(result)
}
