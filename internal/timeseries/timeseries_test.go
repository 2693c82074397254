package timeseries

import (
	"testing"

	"github.com/forest-guardian/cyp-cleaner/internal/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// markers builds a 2x2 stack whose every pixel holds base+b in band b, so a
// band's provenance can be read back from any pixel.
func markers(t *testing.T, bands int, base uint16) *raster.Stack {
	t.Helper()
	const height, width = 2, 2
	data := make([]uint16, height*width*bands)
	for p := 0; p < height*width; p++ {
		for b := 0; b < bands; b++ {
			data[p*bands+b] = base + uint16(b)
		}
	}
	s, err := raster.FromPixelInterleaved(height, width, bands, data)
	require.NoError(t, err)
	return s
}

func bandValues(s *raster.Stack) []uint16 {
	out := make([]uint16, s.Bands())
	for b := range out {
		out[b] = s.At(1, 1, b)
	}
	return out
}

func seq(from, to uint16) []uint16 {
	var out []uint16
	for v := from; v < to; v++ {
		out = append(out, v)
	}
	return out
}

func TestCompositeSpec(t *testing.T) {
	assert.Equal(t, 46, ReflectanceSpec.ObservationsPerYear())
	assert.Equal(t, 322, ReflectanceSpec.BandsPerYear())
	assert.Equal(t, 92, TemperatureSpec.BandsPerYear())
	assert.Equal(t, 1, LandCoverSpec.BandsPerYear())
	assert.Equal(t, 23, CompositeSpec{BandsPerObservation: 1, PeriodDays: 16}.ObservationsPerYear())
	assert.Equal(t, 365, CompositeSpec{BandsPerObservation: 1, PeriodDays: 1}.ObservationsPerYear())
}

func TestSplitCoversWholeStack(t *testing.T) {
	tests := []struct {
		name     string
		spec     CompositeSpec
		bands    int
		numYears int
		widths   []int
	}{
		{"even", CompositeSpec{2, 122}, 18, 3, []int{6, 6, 6}},
		{"remainder in last year", CompositeSpec{2, 122}, 20, 3, []int{6, 6, 8}},
		{"short stack", CompositeSpec{2, 122}, 8, 3, []int{6, 2, 0}},
		{"single year", CompositeSpec{7, 8}, 330, 1, []int{330}},
		{"annual", LandCoverSpec, 4, 4, []int{1, 1, 1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			years, err := Split(markers(t, tt.bands, 0), tt.spec, tt.numYears, false)
			require.NoError(t, err)
			require.Len(t, years, tt.numYears)

			var widths []int
			var all []uint16
			for _, y := range years {
				widths = append(widths, y.Bands())
				all = append(all, bandValues(y)...)
			}
			assert.Equal(t, tt.widths, widths)
			assert.Equal(t, seq(0, uint16(tt.bands)), all)
		})
	}
}

func TestSplitFourteenYearsOfReflectance(t *testing.T) {
	s := markers(t, 322*14, 0)
	years, err := Split(s, ReflectanceSpec, 14, false)
	require.NoError(t, err)
	require.Len(t, years, 14)
	for i, y := range years {
		require.Equal(t, 322, y.Bands())
		assert.Equal(t, uint16(i*322), y.At(0, 0, 0))
		assert.Equal(t, uint16(i*322+321), y.At(0, 0, 321))
	}
}

func TestSplitExtendsWithFinalObservation(t *testing.T) {
	years, err := Split(markers(t, 3, 10), LandCoverSpec, 5, true)
	require.NoError(t, err)
	require.Len(t, years, 5)
	var got []uint16
	for _, y := range years {
		require.Equal(t, 1, y.Bands())
		got = append(got, y.At(0, 0, 0))
	}
	assert.Equal(t, []uint16{10, 11, 12, 12, 12}, got)
}

func TestExtendRepeatsLastGroupNotSecondToLast(t *testing.T) {
	spec := CompositeSpec{BandsPerObservation: 2, PeriodDays: 365}
	out, err := Extend(markers(t, 4, 0), spec, 4)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0, 1, 2, 3, 2, 3, 2, 3}, bandValues(out))
}

func TestExtendLeavesLongStacksAlone(t *testing.T) {
	s := markers(t, 20, 0)
	out, err := Extend(s, LandCoverSpec, 14)
	require.NoError(t, err)
	assert.Same(t, s, out)

	years, err := Split(s, LandCoverSpec, 14, true)
	require.NoError(t, err)
	assert.Equal(t, 7, years[13].Bands())
}

func TestSplitWithoutExtendKeepsShortStackShort(t *testing.T) {
	years, err := Split(markers(t, 2, 0), LandCoverSpec, 4, false)
	require.NoError(t, err)
	assert.Equal(t, 1, years[1].Bands())
	assert.Equal(t, 0, years[2].Bands())
	assert.Equal(t, 0, years[3].Bands())
}

func TestSplitErrors(t *testing.T) {
	_, err := Split(markers(t, 4, 0), LandCoverSpec, 0, false)
	assert.ErrorIs(t, err, ErrInvalidSpec)
	_, err = Split(markers(t, 4, 0), CompositeSpec{0, 8}, 2, false)
	assert.ErrorIs(t, err, ErrInvalidSpec)
	_, err = Split(markers(t, 4, 0), CompositeSpec{1, 0}, 2, false)
	assert.ErrorIs(t, err, ErrInvalidSpec)
	_, err = Split(markers(t, 0, 0), LandCoverSpec, 2, true)
	assert.ErrorIs(t, err, raster.ErrEmptyStack)
}

func TestMergeInterleavesObservations(t *testing.T) {
	a := []*raster.Stack{markers(t, 14, 1000)}
	b := []*raster.Stack{markers(t, 4, 2000)}

	merged, err := Merge(a, 7, b, 2)
	require.NoError(t, err)
	require.Len(t, merged, 1)

	var want []uint16
	want = append(want, seq(1000, 1007)...)
	want = append(want, 2000, 2001)
	want = append(want, seq(1007, 1014)...)
	want = append(want, 2002, 2003)
	assert.Equal(t, want, bandValues(merged[0]))
}

func TestMergeKeepsYearOrder(t *testing.T) {
	imgYears, err := Split(markers(t, 2*7*3, 0), CompositeSpec{7, 183}, 3, false)
	require.NoError(t, err)
	tempYears, err := Split(markers(t, 2*2*3, 500), CompositeSpec{2, 183}, 3, false)
	require.NoError(t, err)

	merged, err := Merge(imgYears, 7, tempYears, 2)
	require.NoError(t, err)
	require.Len(t, merged, 3)
	for i, year := range merged {
		require.Equal(t, 18, year.Bands())
		got := bandValues(year)
		assert.Equal(t, uint16(i*14), got[0])
		assert.Equal(t, uint16(500+i*4), got[7])
		assert.Equal(t, uint16(i*14+7), got[9])
		assert.Equal(t, uint16(500+i*4+3), got[17])
	}
}

func TestMergeDropsSurplusObservations(t *testing.T) {
	merged, err := Merge(
		[]*raster.Stack{markers(t, 3, 0)}, 1,
		[]*raster.Stack{markers(t, 2, 100)}, 1,
	)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0, 100, 1, 101}, bandValues(merged[0]))
}

func TestMergeErrors(t *testing.T) {
	_, err := Merge(
		[]*raster.Stack{markers(t, 7, 0), markers(t, 7, 0)}, 7,
		[]*raster.Stack{markers(t, 2, 0)}, 2,
	)
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = Merge(
		[]*raster.Stack{markers(t, 8, 0)}, 7,
		[]*raster.Stack{markers(t, 2, 0)}, 2,
	)
	assert.ErrorIs(t, err, raster.ErrNotDivisible)

	_, err = Merge(
		[]*raster.Stack{markers(t, 7, 0)}, 7,
		[]*raster.Stack{markers(t, 3, 0)}, 2,
	)
	assert.ErrorIs(t, err, raster.ErrNotDivisible)

	_, err = Merge(
		[]*raster.Stack{markers(t, 0, 0)}, 7,
		[]*raster.Stack{markers(t, 2, 0)}, 2,
	)
	assert.ErrorIs(t, err, raster.ErrNotDivisible)
}
