package farmland

import (
	"testing"

	"github.com/forest-guardian/cyp-cleaner/internal/raster"
	"github.com/forest-guardian/cyp-cleaner/internal/timeseries"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stack(t *testing.T, height, width, bands int, data []uint16) *raster.Stack {
	t.Helper()
	s, err := raster.FromPixelInterleaved(height, width, bands, data)
	require.NoError(t, err)
	return s
}

func TestBinarize(t *testing.T) {
	landCover := stack(t, 1, 6, 1, []uint16{12, 0, 11, 13, 12, 255})
	assert.Equal(t, []uint16{1, 0, 0, 0, 1, 0}, Binarize(landCover).Pixels())
}

func TestBinarizeOutputIsZeroOrOne(t *testing.T) {
	data := make([]uint16, 256)
	for i := range data {
		data[i] = uint16(i)
	}
	for _, v := range Binarize(stack(t, 16, 16, 1, data)).Pixels() {
		assert.Contains(t, []uint16{0, 1}, v)
	}
}

func TestApplyZeroesNonFarmlandInEveryBand(t *testing.T) {
	// 2x2 checkerboard of cropland / water
	mask := Binarize(stack(t, 2, 2, 1, []uint16{12, 0, 0, 12}))
	years := []*raster.Stack{
		stack(t, 2, 2, 3, []uint16{
			1, 2, 3, 4, 5, 6,
			7, 8, 9, 10, 11, 12,
		}),
		stack(t, 2, 2, 2, []uint16{
			100, 101, 102, 103,
			104, 105, 106, 107,
		}),
	}

	masked, err := Apply(years, []*raster.Stack{mask, mask})
	require.NoError(t, err)
	require.Len(t, masked, 2)
	assert.Equal(t, []uint16{
		1, 2, 3, 0, 0, 0,
		0, 0, 0, 10, 11, 12,
	}, masked[0].Pixels())
	assert.Equal(t, []uint16{
		100, 101, 0, 0,
		0, 0, 106, 107,
	}, masked[1].Pixels())
}

func TestApplyErrors(t *testing.T) {
	year := stack(t, 1, 2, 2, []uint16{1, 2, 3, 4})
	mask := stack(t, 1, 2, 1, []uint16{1, 0})

	_, err := Apply([]*raster.Stack{year, year}, []*raster.Stack{mask})
	assert.ErrorIs(t, err, timeseries.ErrLengthMismatch)

	_, err = Apply([]*raster.Stack{year}, []*raster.Stack{stack(t, 1, 2, 2, []uint16{1, 1, 0, 0})})
	assert.ErrorIs(t, err, ErrMaskShape)

	_, err = Apply([]*raster.Stack{year}, []*raster.Stack{stack(t, 2, 1, 1, []uint16{1, 0})})
	assert.ErrorIs(t, err, raster.ErrSpatialMismatch)
}
