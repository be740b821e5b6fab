// Package extract wires the nix driver, the crawler and the output sink into
// a single extraction run. It is the library entry point the CLI sits on.
package extract

import (
	"context"
	"io"
	"log/slog"

	"nixtract/internal/config"
	"nixtract/internal/crawler"
	"nixtract/internal/derivation"
	"nixtract/internal/narinfo"
	"nixtract/internal/nix"
	"nixtract/internal/output"
)

// Only probed when the local nix configuration yields no substituters.
const defaultBinaryCache = "https://cache.nixos.org"

// recordBuffer bounds the channel between workers and the sink.
const recordBuffer = 64

// Options configures one extraction run.
type Options struct {
	Config *config.Config
	// Out receives the JSONL stream.
	Out io.Writer
	// Observer receives status events; may be nil.
	Observer crawler.Observer
}

// Run extracts the derivation graph and streams records to opts.Out. It
// returns the crawl counters together with the first fatal error: a finder
// failure, a sink write failure, or context cancellation. Per-node
// description failures are contained and only counted.
func Run(ctx context.Context, opts Options) (crawler.Snapshot, error) {
	cfg := opts.Config

	driver, err := nix.NewDriver(nix.Options{
		FlakeRef:    cfg.FlakeRef,
		System:      cfg.System,
		RuntimeOnly: cfg.RuntimeOnly,
		Offline:     cfg.Offline,
	})
	if err != nil {
		return crawler.Snapshot{}, err
	}
	defer driver.Close()

	var fetcher *narinfo.Fetcher
	if cfg.NarInfo {
		fetcher, err = newFetcher(ctx, driver, cfg.BinaryCaches)
		if err != nil {
			return crawler.Snapshot{}, err
		}
	}

	records := make(chan *derivation.Record, recordBuffer)
	sink := output.NewSink(opts.Out, cfg.Pretty)
	sink.Start(records)

	c := crawler.New(driver, records, crawler.Config{
		Workers:       cfg.Workers,
		AttributeRoot: cfg.AttributePath,
		SkipPrefixes:  cfg.SkipPrefixes,
		Observer:      opts.Observer,
		NarInfo:       fetcher,
	})

	crawlErr := c.Run(ctx)
	close(records)
	sinkErr := sink.Wait()

	if crawlErr != nil {
		return c.Stats(), crawlErr
	}
	return c.Stats(), sinkErr
}

// newFetcher builds the narinfo prober from the configured binary caches,
// falling back to the substituters nix itself would use.
func newFetcher(ctx context.Context, driver *nix.Driver, caches []string) (*narinfo.Fetcher, error) {
	if len(caches) == 0 {
		discovered, err := driver.Substituters(ctx)
		if err != nil {
			slog.Warn("failed to discover substituters, using the default cache", "error", err)
			discovered = nil
		}
		caches = discovered
		if len(caches) == 0 {
			caches = []string{defaultBinaryCache}
		}
	}
	return narinfo.NewFetcher(caches)
}
