package runner

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/obsidianstack/promcheck/internal/config"
	"github.com/obsidianstack/promcheck/pkg/types"
)

// Validator validates one source. *validate.Validator satisfies it.
type Validator interface {
	ValidateSource(ctx context.Context, src config.Source) *types.Result
}

// Run validates every source with at most concurrency in flight and returns
// the results in source order. Each worker writes only its own slot.
func Run(ctx context.Context, v Validator, sources []config.Source, concurrency int) []*types.Result {
	if concurrency < 1 {
		concurrency = 1
	}
	start := time.Now()
	results := make([]*types.Result, len(sources))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			results[i] = v.ValidateSource(ctx, src)
			return nil
		})
	}
	_ = g.Wait()

	slog.Info("runner: validation complete",
		"sources", len(sources),
		"concurrency", concurrency,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return results
}

// Sources wraps bare endpoint URLs as sources without auth or TLS options.
func Sources(endpoints []string) []config.Source {
	out := make([]config.Source, len(endpoints))
	for i, e := range endpoints {
		out[i] = config.Source{Endpoint: e}
	}
	return out
}
