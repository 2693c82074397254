// Package farmland restricts merged yearly stacks to cropland pixels of the
// MODIS land cover classification.
package farmland

import (
	"errors"
	"fmt"

	"github.com/forest-guardian/cyp-cleaner/internal/raster"
	"github.com/forest-guardian/cyp-cleaner/internal/timeseries"
)

// CroplandClass is the land cover class code of farmland.
const CroplandClass = 12

var ErrMaskShape = errors.New("mask year is not a single band")

// Binarize maps the cropland class to 1 and every other class to 0.
func Binarize(landCover *raster.Stack) *raster.Stack {
	return landCover.Map(func(v uint16) uint16 {
		if v == CroplandClass {
			return 1
		}
		return 0
	})
}

// Apply multiplies every band of each year by that year's binary mask, so
// pixels outside farmland are zero in every band.
func Apply(years, masks []*raster.Stack) ([]*raster.Stack, error) {
	if len(years) != len(masks) {
		return nil, fmt.Errorf("%d years vs %d masks: %w", len(years), len(masks), timeseries.ErrLengthMismatch)
	}

	masked := make([]*raster.Stack, 0, len(years))
	for i, year := range years {
		if masks[i].Bands() != 1 {
			return nil, fmt.Errorf("year %d mask has %d bands: %w", i, masks[i].Bands(), ErrMaskShape)
		}
		out, err := year.MultiplyPlane(masks[i])
		if err != nil {
			return nil, fmt.Errorf("year %d: %w", i, err)
		}
		masked = append(masked, out)
	}
	return masked, nil
}
