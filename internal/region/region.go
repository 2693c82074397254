// Package region turns the image, temperature and mask rasters of one county
// into masked per-year tensors and persists the years that have ground truth.
package region

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// StartYear is the first year of the MODIS composites; year slice i is
// StartYear+i.
const StartYear = 2003

// region files are named {state}_{county}.tif
const suffixLen = len(".tif")

var ErrMalformedRegionID = errors.New("malformed region id")

// Key identifies a county by its ANSI codes.
type Key struct {
	State  int
	County int
}

// ParseRegionID strips the file suffix from id and reads the state and
// county codes from the remaining "{state}_{county}".
func ParseRegionID(id string) (Key, error) {
	if len(id) <= suffixLen {
		return Key{}, fmt.Errorf("%q: %w", id, ErrMalformedRegionID)
	}
	fields := strings.Split(id[:len(id)-suffixLen], "_")
	if len(fields) != 2 {
		return Key{}, fmt.Errorf("%q has %d fields, want state_county: %w", id, len(fields), ErrMalformedRegionID)
	}
	state, err := strconv.Atoi(fields[0])
	if err != nil {
		return Key{}, fmt.Errorf("%q state: %w", id, ErrMalformedRegionID)
	}
	county, err := strconv.Atoi(fields[1])
	if err != nil {
		return Key{}, fmt.Errorf("%q county: %w", id, ErrMalformedRegionID)
	}
	return Key{State: state, County: county}, nil
}
