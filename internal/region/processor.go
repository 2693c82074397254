package region

import (
	"context"
	"errors"
	"fmt"

	"github.com/forest-guardian/cyp-cleaner/internal/artifact"
	"github.com/forest-guardian/cyp-cleaner/internal/farmland"
	"github.com/forest-guardian/cyp-cleaner/internal/raster"
	"github.com/forest-guardian/cyp-cleaner/internal/timeseries"
	"github.com/forest-guardian/cyp-cleaner/internal/yield"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrPersist = errors.New("artifact write failed")

// Processor runs the cleaning pipeline for one region at a time. It holds no
// per-region state, so one Processor can serve any number of goroutines.
type Processor struct {
	reader         raster.Reader
	store          artifact.Store
	yields         *yield.Table
	numYears       int
	deleteWhenDone bool
	logger         *zap.Logger
}

type Option func(*Processor)

// WithDeleteWhenDone removes a region's source rasters after its artifacts
// have been written. The reader must implement raster.Remover.
func WithDeleteWhenDone(enabled bool) Option {
	return func(p *Processor) { p.deleteWhenDone = enabled }
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) { p.logger = logger }
}

func NewProcessor(reader raster.Reader, store artifact.Store, yields *yield.Table, numYears int, opts ...Option) *Processor {
	p := &Processor{
		reader:   reader,
		store:    store,
		yields:   yields,
		numYears: numYears,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Year is the masked tensor of one calendar year.
type Year struct {
	Key    yield.Key
	Tensor *raster.Stack
}

// Computed holds every year of a region, in chronological order.
type Computed struct {
	RegionID string
	Region   Key
	Years    []Year
}

// Result describes what Process persisted for a region.
type Result struct {
	RegionID string
	Region   Key
	Written  []yield.Key
	Bytes    int64
}

func (p *Processor) readSources(ctx context.Context, id string) (img, temp, mask *raster.Stack, err error) {
	g, gctx := errgroup.WithContext(ctx)
	read := func(kind raster.SourceKind, dst **raster.Stack) {
		g.Go(func() error {
			s, err := p.reader.Read(gctx, kind, id)
			if err != nil {
				return fmt.Errorf("read %s: %w", kind, err)
			}
			*dst = s
			return nil
		})
	}
	read(raster.Image, &img)
	read(raster.Temperature, &temp)
	read(raster.Mask, &mask)
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}

	if !img.SameSpatial(temp) || !img.SameSpatial(mask) {
		return nil, nil, nil, fmt.Errorf("image %dx%d, temperature %dx%d, mask %dx%d: %w",
			img.Height(), img.Width(), temp.Height(), temp.Width(), mask.Height(), mask.Width(), raster.ErrSpatialMismatch)
	}
	return img, temp, mask, nil
}

// Compute runs split, merge and mask for region id without persisting
// anything.
func (p *Processor) Compute(ctx context.Context, id string) (*Computed, error) {
	key, err := ParseRegionID(id)
	if err != nil {
		return nil, err
	}

	img, temp, landCover, err := p.readSources(ctx, id)
	if err != nil {
		return nil, err
	}

	imgYears, err := timeseries.Split(img, timeseries.ReflectanceSpec, p.numYears, false)
	if err != nil {
		return nil, fmt.Errorf("split image: %w", err)
	}
	tempYears, err := timeseries.Split(temp, timeseries.TemperatureSpec, p.numYears, false)
	if err != nil {
		return nil, fmt.Errorf("split temperature: %w", err)
	}
	maskYears, err := timeseries.Split(farmland.Binarize(landCover), timeseries.LandCoverSpec, p.numYears, true)
	if err != nil {
		return nil, fmt.Errorf("split mask: %w", err)
	}

	merged, err := timeseries.Merge(imgYears, timeseries.ReflectanceSpec.BandsPerObservation, tempYears, timeseries.TemperatureSpec.BandsPerObservation)
	if err != nil {
		return nil, fmt.Errorf("merge image and temperature: %w", err)
	}
	masked, err := farmland.Apply(merged, maskYears)
	if err != nil {
		return nil, fmt.Errorf("apply farmland mask: %w", err)
	}

	c := &Computed{RegionID: id, Region: key, Years: make([]Year, len(masked))}
	for i, tensor := range masked {
		c.Years[i] = Year{
			Key:    yield.Key{Year: StartYear + i, State: key.State, County: key.County},
			Tensor: tensor,
		}
	}
	p.logger.Debug("Region computed",
		zap.String("region", id),
		zap.Int("years", len(c.Years)),
		zap.Int("bands_first_year", masked[0].Bands()))
	return c, nil
}

// Process computes region id and writes the years present in the yield table.
// Either every qualifying year is written or, on any error or cancellation,
// none is. Rollback removes every key written by this call, including keys
// whose file an earlier run had already produced: after a failed re-run the
// region has no artifacts and must be processed again.
func (p *Processor) Process(ctx context.Context, id string) (Result, error) {
	c, err := p.Compute(ctx, id)
	if err != nil {
		return Result{RegionID: id}, err
	}

	var keep []Year
	for _, y := range c.Years {
		if p.yields.Has(y.Key) {
			keep = append(keep, y)
		}
	}

	res := Result{RegionID: id, Region: c.Region}
	if err := p.persist(ctx, keep, &res); err != nil {
		return Result{RegionID: id, Region: c.Region}, err
	}

	if p.deleteWhenDone {
		if remover, ok := p.reader.(raster.Remover); ok {
			if err := remover.Remove(id); err != nil {
				p.logger.Warn("Failed to delete region sources", zap.String("region", id), zap.Error(err))
			}
		}
	}
	return res, nil
}

func (p *Processor) persist(ctx context.Context, years []Year, res *Result) error {
	for _, y := range years {
		err := ctx.Err()
		if err == nil {
			var n int64
			n, err = p.store.Put(y.Key.String(), y.Tensor)
			if err != nil {
				err = fmt.Errorf("%w: %w", ErrPersist, err)
			}
			res.Bytes += n
		}
		if err != nil {
			return errors.Join(err, p.rollback(res.Written))
		}
		res.Written = append(res.Written, y.Key)
	}
	return nil
}

func (p *Processor) rollback(written []yield.Key) error {
	var errs []error
	for _, k := range written {
		if err := p.store.Remove(k.String()); err != nil {
			errs = append(errs, fmt.Errorf("rollback %s: %w", k, err))
		}
	}
	return errors.Join(errs...)
}
