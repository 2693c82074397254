package raster

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/airbusgeo/godal"
	"github.com/paulmach/orb"
)

// GDALReader reads region rasters named {state}_{county}.tif from one
// directory per source.
type GDALReader struct {
	dirs map[SourceKind]string
}

func NewGDALReader(imageDir, temperatureDir, maskDir string) *GDALReader {
	return &GDALReader{dirs: map[SourceKind]string{
		Image:       imageDir,
		Temperature: temperatureDir,
		Mask:        maskDir,
	}}
}

func ignoreWarnings(ec godal.ErrorCategory, code int, msg string) error {
	if ec <= godal.CE_Warning {
		return nil
	}
	return fmt.Errorf("GDAL error %d: %s", code, msg)
}

func (r *GDALReader) open(kind SourceKind, regionID string) (*godal.Dataset, error) {
	path, err := sourcePath(r.dirs, kind, regionID)
	if err != nil {
		return nil, err
	}
	ds, err := godal.Open(path, godal.ErrLogger(ignoreWarnings))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %v: %w", path, err, ErrSourceRead)
	}
	return ds, nil
}

// Read decodes the source band by band, as GDAL stores it, and moves the
// band axis last.
func (r *GDALReader) Read(ctx context.Context, kind SourceKind, regionID string) (*Stack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ds, err := r.open(kind, regionID)
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	structure := ds.Structure()
	width, height := structure.SizeX, structure.SizeY
	bands := ds.Bands()
	s, err := readBands(ctx, len(bands), height, width, func(b int, dst []uint16) error {
		return bands[b].Read(0, 0, dst, width, height)
	})
	if err != nil && ctx.Err() == nil {
		return nil, fmt.Errorf("failed to read %s raster of %s: %v: %w", kind, regionID, err, ErrSourceRead)
	}
	return s, err
}

// Remove deletes the three source files of a region. Files already missing
// are not an error.
func (r *GDALReader) Remove(regionID string) error {
	var errs []error
	for _, kind := range []SourceKind{Image, Temperature, Mask} {
		path, err := sourcePath(r.dirs, kind, regionID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Footprint returns the bounds of the region's image raster in its own
// coordinate reference system.
func (r *GDALReader) Footprint(regionID string) (orb.Bound, error) {
	ds, err := r.open(Image, regionID)
	if err != nil {
		return orb.Bound{}, err
	}
	defer ds.Close()

	gt, err := ds.GeoTransform()
	if err != nil {
		return orb.Bound{}, fmt.Errorf("failed to get GeoTransform: %w", err)
	}
	sx, sy := float64(ds.Structure().SizeX), float64(ds.Structure().SizeY)
	x0, y0 := gt[0], gt[3]
	x1 := gt[0] + sx*gt[1] + sy*gt[2]
	y1 := gt[3] + sx*gt[4] + sy*gt[5]
	return orb.Bound{
		Min: orb.Point{min(x0, x1), min(y0, y1)},
		Max: orb.Point{max(x0, x1), max(y0, y1)},
	}, nil
}
