package artifact

import (
	"fmt"

	"github.com/airbusgeo/godal"
	"github.com/forest-guardian/cyp-cleaner/internal/raster"
)

// GTiffStore writes each tensor as a UInt16 GeoTIFF with one raster band per
// tensor band.
type GTiffStore struct {
	dir string
}

func (s *GTiffStore) Path(key string) string {
	return artifactPath(s.dir, key, ".tif")
}

func (s *GTiffStore) Put(key string, tensor *raster.Stack) (int64, error) {
	height, width, bands := tensor.Shape()
	if bands == 0 {
		return 0, fmt.Errorf("failed to write %s: GeoTIFF needs at least one band", key)
	}
	err := writeAtomic(s.Path(key), func(tmp string) error {
		ds, err := godal.Create(godal.GTiff, tmp, bands, godal.UInt16, width, height)
		if err != nil {
			return fmt.Errorf("failed to create GeoTIFF: %w", err)
		}
		// the buffer is pixel interleaved, godal's default layout
		if err := ds.Write(0, 0, tensor.Pixels(), width, height); err != nil {
			ds.Close()
			return fmt.Errorf("failed to write GeoTIFF: %w", err)
		}
		return ds.Close()
	})
	if err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", key, err)
	}
	return int64(2 * height * width * bands), nil
}

func (s *GTiffStore) Remove(key string) error {
	return removeFile(s.Path(key))
}
