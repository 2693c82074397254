package timeseries

import (
	"fmt"

	"github.com/forest-guardian/cyp-cleaner/internal/raster"
)

// Merge combines two equally long sequences of year slices. Each year is
// laid out observation by observation, [a1 | b1 | a2 | b2 | ...], where a
// observations are bandsA wide and b observations bandsB wide.
//
// When one year holds more observations of one source than the other, the
// surplus observations are dropped. A year without any observation of either
// source is an error.
func Merge(a []*raster.Stack, bandsA int, b []*raster.Stack, bandsB int) ([]*raster.Stack, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("%d vs %d years: %w", len(a), len(b), ErrLengthMismatch)
	}

	merged := make([]*raster.Stack, 0, len(a))
	for i := range a {
		obsA, err := a[i].Groups(bandsA)
		if err != nil {
			return nil, fmt.Errorf("year %d of first source: %w", i, err)
		}
		obsB, err := b[i].Groups(bandsB)
		if err != nil {
			return nil, fmt.Errorf("year %d of second source: %w", i, err)
		}

		if len(obsA) == 0 || len(obsB) == 0 {
			return nil, fmt.Errorf("year %d has %d and %d observations: %w", i, len(obsA), len(obsB), raster.ErrNotDivisible)
		}

		n := min(len(obsA), len(obsB))
		parts := make([]*raster.Stack, 0, 2*n)
		for j := 0; j < n; j++ {
			parts = append(parts, obsA[j], obsB[j])
		}
		year, err := raster.Concat(parts...)
		if err != nil {
			return nil, fmt.Errorf("year %d: %w", i, err)
		}
		merged = append(merged, year)
	}
	return merged, nil
}
