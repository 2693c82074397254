// Package dispatch fans region processing out over a list of region ids,
// either one after the other or on a bounded worker pool, and collects a
// per-region report. A failing region never stops its siblings.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/forest-guardian/cyp-cleaner/internal/region"
	"github.com/gammazero/workerpool"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

type Mode int

const (
	Sequential Mode = iota
	Parallel
)

func (m Mode) String() string {
	if m == Parallel {
		return "parallel"
	}
	return "sequential"
}

// Processor is the per-region unit of work.
type Processor interface {
	Process(ctx context.Context, id string) (region.Result, error)
}

type Options struct {
	Mode Mode
	// PoolSize is the number of workers in Parallel mode.
	PoolSize int
	// Parallelism divides the work further: ids are handed to workers in
	// chunks of len(ids) / (PoolSize * Parallelism).
	Parallelism int
	Logger      *zap.Logger
	Progress    bool
}

var errPanic = errors.New("region processing panicked")

type outcome struct {
	result region.Result
	err    error
}

// ChunkSize is max(n / (poolSize * parallelism), 1).
func ChunkSize(n, poolSize, parallelism int) int {
	return max(n/(max(poolSize, 1)*max(parallelism, 1)), 1)
}

// Run processes every id and reports the outcome of each. It returns once all
// regions have finished; regions not started when ctx is cancelled are
// reported as cancelled.
func Run(ctx context.Context, ids []string, proc Processor, opts Options) *Report {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var bar *progressbar.ProgressBar
	if opts.Progress {
		bar = progressbar.Default(int64(len(ids)), "Cleaning regions")
	} else {
		bar = progressbar.DefaultSilent(int64(len(ids)), "Cleaning regions")
	}

	start := time.Now()
	outcomes := make([]outcome, len(ids))
	runOne := func(i int) {
		outcomes[i] = processOne(ctx, proc, ids[i])
		logOutcome(logger, ids[i], outcomes[i])
		bar.Add(1)
	}

	switch opts.Mode {
	case Parallel:
		size := ChunkSize(len(ids), opts.PoolSize, opts.Parallelism)
		logger.Info("Dispatching regions",
			zap.Int("regions", len(ids)),
			zap.Int("workers", max(opts.PoolSize, 1)),
			zap.Int("chunk_size", size))

		wp := workerpool.New(max(opts.PoolSize, 1))
		for lo := 0; lo < len(ids); lo += size {
			hi := min(lo+size, len(ids))
			wp.Submit(func() {
				for i := lo; i < hi; i++ {
					runOne(i)
				}
			})
		}
		wp.StopWait()
	default:
		logger.Info("Processing regions sequentially", zap.Int("regions", len(ids)))
		for i := range ids {
			runOne(i)
		}
	}
	bar.Finish()

	report := &Report{Elapsed: time.Since(start)}
	for i, o := range outcomes {
		if o.err != nil {
			report.Failures = append(report.Failures, Failure{
				RegionID: ids[i],
				Kind:     ErrorKind(o.err),
				Error:    o.err.Error(),
			})
			continue
		}
		report.Results = append(report.Results, o.result)
	}
	return report
}

func processOne(ctx context.Context, proc Processor, id string) (o outcome) {
	if err := ctx.Err(); err != nil {
		return outcome{result: region.Result{RegionID: id}, err: err}
	}
	defer func() {
		if r := recover(); r != nil {
			o = outcome{
				result: region.Result{RegionID: id},
				err:    fmt.Errorf("%w: %v\n%s", errPanic, r, debug.Stack()),
			}
		}
	}()
	res, err := proc.Process(ctx, id)
	return outcome{result: res, err: err}
}

func logOutcome(logger *zap.Logger, id string, o outcome) {
	if o.err != nil {
		logger.Warn("Region failed",
			zap.String("region", id),
			zap.String("kind", ErrorKind(o.err)),
			zap.Error(o.err))
		return
	}
	logger.Info("Region processed",
		zap.String("region", id),
		zap.Int("years_written", len(o.result.Written)),
		zap.String("bytes", humanize.Bytes(uint64(o.result.Bytes))))
}
