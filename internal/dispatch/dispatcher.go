package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"pkt.systems/pslog"
	"pkt.systems/threadpager/internal/logx"
	"pkt.systems/threadpager/schema"
)

// Loader loads one page of a stream relative to the request boundary.
type Loader interface {
	LoadPage(ctx context.Context, req schema.FetchRequest, limit int) ([]schema.Entry, error)
}

// Store receives loaded pages.
type Store interface {
	Merge(stream schema.StreamID, entries []schema.Entry) (int, error)
}

// Reporter is told about every settled leg.
type Reporter interface {
	OnFetchSettled(result schema.FetchResult)
}

// Config tunes the dispatcher.
type Config struct {
	PageLimit     int
	RatePerSecond float64
	Burst         int
	Timeout       time.Duration
}

// Dispatcher runs fetch batches in the background. Legs of one batch run
// concurrently; every leg is reported exactly once, success or failure.
type Dispatcher struct {
	cfg      Config
	loader   Loader
	store    Store
	reporter Reporter
	limiter  *rate.Limiter
	log      pslog.Logger
	wg       sync.WaitGroup
}

// New constructs a dispatcher. A non-positive rate disables rate limiting.
func New(cfg Config, loader Loader, store Store, reporter Reporter, logger pslog.Logger) (*Dispatcher, error) {
	if loader == nil {
		return nil, errors.New("loader is required")
	}
	if store == nil {
		return nil, errors.New("store is required")
	}
	if reporter == nil {
		return nil, errors.New("reporter is required")
	}
	if cfg.PageLimit < 0 || cfg.Burst < 0 || cfg.RatePerSecond < 0 || cfg.Timeout < 0 {
		return nil, fmt.Errorf("%w: negative dispatch setting", schema.ErrInvalidConfig)
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	limit := rate.Inf
	burst := cfg.Burst
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
		if burst == 0 {
			burst = 1
		}
	}
	return &Dispatcher{
		cfg:      cfg,
		loader:   loader,
		store:    store,
		reporter: reporter,
		limiter:  rate.NewLimiter(limit, burst),
		log:      logger,
	}, nil
}

// FetchOlder dispatches an older-direction batch.
func (d *Dispatcher) FetchOlder(ctx context.Context, batch schema.FetchBatch) {
	d.dispatch(ctx, batch)
}

// FetchNewer dispatches a newer-direction batch.
func (d *Dispatcher) FetchNewer(ctx context.Context, batch schema.FetchBatch) {
	d.dispatch(ctx, batch)
}

// Wait blocks until every dispatched batch settled.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) dispatch(ctx context.Context, batch schema.FetchBatch) {
	if ctx == nil {
		ctx = context.Background()
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.Run(ctx, batch); err != nil {
			d.log.Debug("dispatch batch failed", "direction", batch.Direction, "generation", batch.Generation, "err", err)
		}
	}()
}

// Run executes batch synchronously and returns the first leg error.
// Legs do not cancel each other: a failed leg still lets its sibling land.
func (d *Dispatcher) Run(ctx context.Context, batch schema.FetchBatch) error {
	var g errgroup.Group
	for _, leg := range batch.Legs {
		g.Go(func() error {
			return d.runLeg(ctx, leg)
		})
	}
	return g.Wait()
}

func (d *Dispatcher) runLeg(ctx context.Context, leg schema.FetchRequest) error {
	log := logx.WithRequest(d.log, leg)
	legCtx := logx.ContextWithLogger(ctx, log)
	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		legCtx, cancel = context.WithTimeout(legCtx, d.cfg.Timeout)
		defer cancel()
	}
	err := d.load(legCtx, leg, log)
	if err != nil {
		err = fmt.Errorf("%w: %s %s: %w", schema.ErrFetchFailed, leg.Stream, leg.Direction, err)
		log.Warn("dispatch leg failed", "err", err)
	}
	d.reporter.OnFetchSettled(schema.FetchResult{
		Stream:     leg.Stream,
		Direction:  leg.Direction,
		Generation: leg.Generation,
		Err:        err,
	})
	return err
}

func (d *Dispatcher) load(ctx context.Context, leg schema.FetchRequest, log pslog.Logger) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	start := time.Now()
	entries, err := d.loader.LoadPage(ctx, leg, d.cfg.PageLimit)
	if err != nil {
		return err
	}
	added, err := d.store.Merge(leg.Stream, entries)
	if err != nil {
		return err
	}
	log.Debug("dispatch leg ok", "entries", len(entries), "added", added, "elapsed", time.Since(start))
	return nil
}
