package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/forest-guardian/cyp-cleaner/internal/farmland"
	"github.com/forest-guardian/cyp-cleaner/internal/raster"
	"github.com/forest-guardian/cyp-cleaner/internal/region"
	"github.com/forest-guardian/cyp-cleaner/internal/timeseries"
	"github.com/gocarina/gocsv"
)

// Failure is one failed region, as written to the failure report.
type Failure struct {
	RegionID string `csv:"region_id"`
	Kind     string `csv:"kind"`
	Error    string `csv:"error"`
}

type Report struct {
	Results  []region.Result
	Failures []Failure
	Elapsed  time.Duration
}

var kinds = []struct {
	err  error
	kind string
}{
	{context.Canceled, "Canceled"},
	{context.DeadlineExceeded, "Canceled"},
	{region.ErrMalformedRegionID, "MalformedRegionId"},
	{raster.ErrSourceRead, "SourceReadError"},
	{raster.ErrSpatialMismatch, "SpatialMismatch"},
	{timeseries.ErrLengthMismatch, "LengthMismatch"},
	{raster.ErrNotDivisible, "NotDivisible"},
	{farmland.ErrMaskShape, "MaskShape"},
	{raster.ErrEmptyStack, "EmptyStack"},
	{timeseries.ErrInvalidSpec, "InvalidSpec"},
	{region.ErrPersist, "ArtifactWrite"},
	{errPanic, "Panic"},
}

// ErrorKind names the failure class of err for reporting.
func ErrorKind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "Unknown"
}

func (r *Report) Written() int {
	n := 0
	for _, res := range r.Results {
		n += len(res.Written)
	}
	return n
}

func (r *Report) Bytes() int64 {
	var n int64
	for _, res := range r.Results {
		n += res.Bytes
	}
	return n
}

// KindCounts returns the number of failures per kind.
func (r *Report) KindCounts() map[string]int {
	counts := make(map[string]int)
	for _, f := range r.Failures {
		counts[f.Kind]++
	}
	return counts
}

// Summary is a plain-text account of the batch, one line per failure.
func (r *Report) Summary() string {
	s := fmt.Sprintf("%d regions processed, %d failed, %d artifacts written (%s) in %s",
		len(r.Results), len(r.Failures), r.Written(), humanize.Bytes(uint64(r.Bytes())), r.Elapsed.Round(time.Millisecond))
	for _, f := range r.Failures {
		s += fmt.Sprintf("\n- %s: %s", f.RegionID, f.Kind)
	}
	return s
}

// Print writes the summary to w, failures in red.
func (r *Report) Print(w io.Writer) {
	ok := color.New(color.FgGreen)
	bad := color.New(color.FgRed)

	ok.Fprintf(w, "%d regions processed, %d artifacts written (%s) in %s\n",
		len(r.Results), r.Written(), humanize.Bytes(uint64(r.Bytes())), r.Elapsed.Round(time.Millisecond))
	if len(r.Failures) == 0 {
		return
	}

	counts := r.KindCounts()
	names := make([]string, 0, len(counts))
	for k := range counts {
		names = append(names, k)
	}
	sort.Strings(names)
	bad.Fprintf(w, "%d regions failed:\n", len(r.Failures))
	for _, k := range names {
		bad.Fprintf(w, "  %s: %d\n", k, counts[k])
	}
	for _, f := range r.Failures {
		bad.Fprintf(w, "  - %s (%s)\n", f.RegionID, f.Kind)
	}
}

// WriteCSV writes the failures to path, replacing any previous report.
func (r *Report) WriteCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer file.Close()

	failures := r.Failures
	if failures == nil {
		failures = []Failure{}
	}
	if err := gocsv.MarshalFile(&failures, file); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
