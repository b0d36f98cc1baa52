package index

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/metaedit/internal/metrics"
	"github.com/starford/metaedit/internal/models"
)

// DefaultWorkers bounds concurrent decodes during Build.
const DefaultWorkers = 4

// BuildOptions tunes Build.
type BuildOptions struct {
	Workers int
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Build decodes every path with load and assembles an index in the
// order of paths. A photo that fails to decode is logged and left out;
// it never stops the build. If ctx is cancelled Build returns ctx.Err()
// and no index.
func Build(ctx context.Context, paths []string, load Loader, opts BuildOptions) (*Index, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	start := time.Now()
	results := make([]*models.Record, len(paths))
	failed := make([]bool, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := load(p)
			if err != nil {
				failed[i] = true
				logger.Warn("index: decode failed, skipping",
					slog.String("path", p), slog.String("error", err.Error()))
				return nil
			}
			results[i] = r
			return nil
		})
	}
	waitErr := g.Wait()

	if err := ctx.Err(); err != nil {
		opts.Metrics.RecordBuild(0, 0, time.Since(start), err)
		logger.Info("index: build cancelled", slog.Int("paths", len(paths)))
		return nil, err
	}
	if waitErr != nil {
		opts.Metrics.RecordBuild(0, 0, time.Since(start), waitErr)
		return nil, waitErr
	}

	idx := New()
	nFailed := 0
	for i, p := range paths {
		if failed[i] {
			nFailed++
			continue
		}
		r := results[i]
		if r == nil {
			r = &models.Record{}
		}
		r = r.Clone()
		r.Path = p
		idx.order = append(idx.order, p)
		idx.records[p] = r
	}

	opts.Metrics.RecordBuild(idx.Len(), nFailed, time.Since(start), nil)
	logger.Info("index: built",
		slog.Int("photos", idx.Len()),
		slog.Int("failed", nFailed),
		slog.Duration("took", time.Since(start)))
	return idx, nil
}
