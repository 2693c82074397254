// Package timeseries splits multi-year composite band stacks into calendar
// years and merges the yearly stacks of two sources observation by
// observation.
package timeseries

import (
	"errors"
	"fmt"

	"github.com/forest-guardian/cyp-cleaner/internal/raster"
)

const daysPerYear = 365

var (
	ErrLengthMismatch = errors.New("year slice counts differ")
	ErrInvalidSpec    = errors.New("invalid composite spec")
)

// CompositeSpec describes how a source packs its observations: BandsPerObservation
// bands per composite, one composite every PeriodDays days.
type CompositeSpec struct {
	BandsPerObservation int
	PeriodDays          int
}

// Sources as exported by the MODIS collections.
var (
	ReflectanceSpec = CompositeSpec{BandsPerObservation: 7, PeriodDays: 8}
	TemperatureSpec = CompositeSpec{BandsPerObservation: 2, PeriodDays: 8}
	LandCoverSpec   = CompositeSpec{BandsPerObservation: 1, PeriodDays: 365}
)

func (c CompositeSpec) Validate() error {
	if c.BandsPerObservation <= 0 || c.PeriodDays <= 0 {
		return fmt.Errorf("bands per observation %d, period %d days: %w", c.BandsPerObservation, c.PeriodDays, ErrInvalidSpec)
	}
	return nil
}

// ObservationsPerYear is ceil(365 / PeriodDays).
func (c CompositeSpec) ObservationsPerYear() int {
	return (daysPerYear + c.PeriodDays - 1) / c.PeriodDays
}

func (c CompositeSpec) BandsPerYear() int {
	return c.BandsPerObservation * c.ObservationsPerYear()
}

// Extend pads s to at least BandsPerYear()*numYears bands by repeating its
// final observation. A stack that is already long enough is returned as is.
func Extend(s *raster.Stack, spec CompositeSpec, numYears int) (*raster.Stack, error) {
	need := spec.BandsPerYear() * numYears
	if s.Bands() >= need {
		return s, nil
	}
	if s.Bands() == 0 {
		return nil, fmt.Errorf("cannot extend to %d bands: %w", need, raster.ErrEmptyStack)
	}

	// The group repeated is the current last observation, not the one
	// before it.
	for s.Bands() < need {
		tail, err := s.Slice(max(s.Bands()-spec.BandsPerObservation, 0), s.Bands())
		if err != nil {
			return nil, err
		}
		if s, err = raster.Concat(s, tail); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Split cuts s into numYears consecutive year slices of BandsPerYear() bands.
// The final slice takes every band left over, so it can be wider or narrower
// than the others, and the slices always cover the whole (extended) stack.
func Split(s *raster.Stack, spec CompositeSpec, numYears int, extend bool) ([]*raster.Stack, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if numYears < 1 {
		return nil, fmt.Errorf("num years %d: %w", numYears, ErrInvalidSpec)
	}

	if extend {
		var err error
		if s, err = Extend(s, spec, numYears); err != nil {
			return nil, err
		}
	}

	perYear := spec.BandsPerYear()
	total := s.Bands()
	years := make([]*raster.Stack, 0, numYears)
	cur := 0
	for i := 0; i < numYears-1; i++ {
		lo, hi := min(cur, total), min(cur+perYear, total)
		year, err := s.Slice(lo, hi)
		if err != nil {
			return nil, err
		}
		years = append(years, year)
		cur += perYear
	}
	last, err := s.Slice(min(cur, total), total)
	if err != nil {
		return nil, err
	}
	return append(years, last), nil
}
