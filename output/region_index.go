package output

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/forest-guardian/cyp-cleaner/internal/region"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// RegionFootprint is one processed region and where it lies.
type RegionFootprint struct {
	RegionID string
	Region   region.Key
	Bound    orb.Bound
	Years    []int
}

// WriteRegionIndex writes the footprints as a GeoJSON FeatureCollection, one
// polygon feature per region ordered by region id.
func WriteRegionIndex(path string, footprints []RegionFootprint) error {
	sorted := make([]RegionFootprint, len(footprints))
	copy(sorted, footprints)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RegionID < sorted[j].RegionID })

	fc := geojson.NewFeatureCollection()
	for _, fp := range sorted {
		poly := fp.Bound.ToPolygon()
		centroid, _ := planar.CentroidArea(poly)

		f := geojson.NewFeature(poly)
		f.Properties["region"] = fp.RegionID
		f.Properties["state"] = fp.Region.State
		f.Properties["county"] = fp.Region.County
		years := fp.Years
		if years == nil {
			years = []int{}
		}
		f.Properties["years"] = years
		f.Properties["centroid"] = []float64{centroid.X(), centroid.Y()}
		fc.Append(f)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode region index: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create index folder: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write region index: %w", err)
	}
	return nil
}
