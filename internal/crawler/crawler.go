package crawler

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"nixtract/internal/derivation"
	"nixtract/internal/narinfo"
	"nixtract/internal/nix"
)

// Evaluator is the slice of the nix driver the crawl needs. It is satisfied
// by *nix.Driver and by in-memory fakes in tests.
type Evaluator interface {
	RunFinder(ctx context.Context, onFound func(nix.FoundDrv)) error
	Describe(ctx context.Context, attributePath string) (*derivation.Record, error)
}

// Config tunes one crawl.
type Config struct {
	// Workers is the pool size; <= 0 means one worker per CPU.
	Workers int
	// AttributeRoot, when non-empty, seeds the crawl with a single path
	// instead of running the finder; the describer's edge output exposes the
	// rest of the graph.
	AttributeRoot string
	// SkipPrefixes lists attribute-path prefixes (bootstrap packages and the
	// like) that are never described.
	SkipPrefixes []string
	// Observer receives status events; nil drops them.
	Observer Observer
	// NarInfo, when set, probes binary caches for each described output path
	// and attaches the result to the record.
	NarInfo *narinfo.Fetcher
}

// Crawler explores the derivation graph: the finder seeds top-level paths,
// workers describe paths and feed newly seen dependencies back into the pool,
// and completed records flow to the records channel in completion order.
type Crawler struct {
	eval    Evaluator
	records chan<- *derivation.Record
	cfg     Config

	visited *VisitedSet
	pool    *Pool
	stats   Stats

	finderMu  sync.Mutex
	finderErr error
}

// New creates a crawler that sends completed records to the given channel.
// The caller owns the channel and closes it after Run returns.
func New(eval Evaluator, records chan<- *derivation.Record, cfg Config) *Crawler {
	return &Crawler{
		eval:    eval,
		records: records,
		cfg:     cfg,
		visited: NewVisitedSet(),
		pool:    NewPool(cfg.Workers),
	}
}

// Stats returns a snapshot of the crawl counters.
func (c *Crawler) Stats() Snapshot {
	return c.stats.Snapshot()
}

// Run performs the crawl and blocks until the graph has been fully described
// or the context is cancelled. Per-node failures are contained and reported
// through the observer; only finder-level failures are returned.
func (c *Crawler) Run(ctx context.Context) error {
	if c.cfg.AttributeRoot != "" {
		c.enqueueExternal(c.cfg.AttributeRoot)
		c.pool.FinderDone()
	} else {
		go c.runFinder(ctx)
	}

	c.pool.Run(ctx, c.describeOne)
	c.observe(Event{Kind: EventDrained})

	if err := ctx.Err(); err != nil {
		return err
	}

	c.finderMu.Lock()
	defer c.finderMu.Unlock()
	return c.finderErr
}

// runFinder consumes the finder stream on a dedicated goroutine, seeding the
// pool with every newly seen top-level path.
func (c *Crawler) runFinder(ctx context.Context) {
	err := c.eval.RunFinder(ctx, func(drv nix.FoundDrv) {
		c.enqueueExternal(drv.AttributePath)
	})
	if err != nil {
		slog.Error("finder failed", "error", err)
		c.finderMu.Lock()
		c.finderErr = err
		c.finderMu.Unlock()
	}
	c.observe(Event{Kind: EventFinderDone})
	c.pool.FinderDone()
}

func (c *Crawler) enqueueExternal(path string) {
	if path == "" || !c.visited.TryInsert(path) {
		return
	}
	c.stats.Queued.Add(1)
	c.observe(Event{Kind: EventQueued, Path: path})
	c.pool.Submit(path)
}

// describeOne is the per-unit description pipeline: describe the path, queue
// its unseen dependencies, then hand the record downstream. One bad node must
// not poison the crawl, so failures are logged and counted but never
// propagated.
func (c *Crawler) describeOne(ctx context.Context, worker int, path string) {
	if c.skipped(path) {
		c.stats.Skipped.Add(1)
		c.observe(Event{Kind: EventSkipped, Path: path})
		return
	}

	c.observe(Event{Kind: EventStarted, Path: path})

	record, err := c.eval.Describe(ctx, path)
	if err != nil {
		slog.Warn("failed to describe derivation", "attributePath", path, "error", err)
		c.stats.Failed.Add(1)
		c.observe(Event{Kind: EventFailed, Path: path, Err: err})
		return
	}

	// Dependencies are submitted before the record is emitted, so a consumer
	// that rebuilds the graph downstream never sees an edge to a path the
	// crawl does not know about.
	for _, edge := range record.BuildInputs {
		if edge.AttributePath == nil {
			continue
		}
		target := *edge.AttributePath
		if target == "" || !c.visited.TryInsert(target) {
			continue
		}
		c.stats.Queued.Add(1)
		c.observe(Event{Kind: EventQueued, Path: target})
		c.pool.SubmitLocal(worker, target)
	}

	if c.cfg.NarInfo != nil && record.OutputPath != nil {
		info, err := c.cfg.NarInfo.Fetch(ctx, *record.OutputPath)
		if err != nil {
			slog.Warn("narinfo probe failed", "outputPath", *record.OutputPath, "error", err)
		} else {
			record.NarInfo = info
		}
	}

	select {
	case c.records <- record:
	case <-ctx.Done():
		return
	}

	c.stats.Described.Add(1)
	c.observe(Event{Kind: EventDescribed, Path: path})
}

func (c *Crawler) skipped(path string) bool {
	for _, prefix := range c.cfg.SkipPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+".") {
			return true
		}
	}
	return false
}

func (c *Crawler) observe(e Event) {
	if c.cfg.Observer != nil {
		c.cfg.Observer(e)
	}
}
