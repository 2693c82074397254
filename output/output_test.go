package output

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/forest-guardian/cyp-cleaner/internal/raster"
	"github.com/forest-guardian/cyp-cleaner/internal/region"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rgb(t *testing.T, r, g, b uint32) [3]uint32 {
	t.Helper()
	return [3]uint32{r, g, b}
}

func TestValueToColor(t *testing.T) {
	assert.Equal(t, uint8(255), valueToColor(0).B)
	assert.Equal(t, uint8(255), valueToColor(0.5).G)
	assert.Equal(t, uint8(255), valueToColor(1).R)
	assert.Equal(t, 0.0, normalize(5, 3, 3))
	assert.Equal(t, 1.0, normalize(9, 0, 4))
}

func TestRenderPreview(t *testing.T) {
	// one band, masked pixel at (0, 0)
	tensor, err := raster.FromPixelInterleaved(2, 2, 2, []uint16{
		0, 7, 10, 7,
		20, 7, 30, 7,
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "previews", "2003_17_19.png")
	require.NoError(t, RenderPreview(tensor, 0, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)

	assert.Equal(t, 160, img.Bounds().Dx())
	assert.Equal(t, 2+legendHeight, img.Bounds().Dy())

	at := func(x, y int) [3]uint32 {
		r, g, b, _ := img.At(x, y).RGBA()
		return [3]uint32{r >> 8, g >> 8, b >> 8}
	}
	assert.Equal(t, rgb(t, 0, 0, 0), at(0, 0))
	assert.Equal(t, rgb(t, 0, 0, 255), at(1, 0))
	assert.Equal(t, rgb(t, 255, 0, 0), at(1, 1))
}

func TestRenderPreviewRejectsMissingBand(t *testing.T) {
	tensor := raster.New(1, 1, 1)
	err := RenderPreview(tensor, 3, filepath.Join(t.TempDir(), "x.png"))
	assert.ErrorIs(t, err, raster.ErrOutOfBounds)
}

func TestWriteRegionIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "regions.geojson")
	err := WriteRegionIndex(path, []RegionFootprint{
		{
			RegionID: "17_21.tif",
			Region:   region.Key{State: 17, County: 21},
			Bound:    orb.Bound{Min: orb.Point{2, 2}, Max: orb.Point{4, 6}},
		},
		{
			RegionID: "17_19.tif",
			Region:   region.Key{State: 17, County: 19},
			Bound:    orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{2, 2}},
			Years:    []int{2003, 2010},
		},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)

	first := fc.Features[0]
	assert.Equal(t, "17_19.tif", first.Properties.MustString("region"))
	assert.Equal(t, 17, first.Properties.MustInt("state"))
	assert.Equal(t, 19, first.Properties.MustInt("county"))
	assert.Equal(t, []interface{}{2003.0, 2010.0}, first.Properties["years"])
	assert.Equal(t, []interface{}{1.0, 1.0}, first.Properties["centroid"])
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{2, 2}}, first.Geometry.Bound())

	second := fc.Features[1]
	assert.Equal(t, "17_21.tif", second.Properties.MustString("region"))
	assert.Equal(t, []interface{}{3.0, 4.0}, second.Properties["centroid"])
	// a region with no qualifying year still lists its years as an array
	assert.Equal(t, []interface{}{}, second.Properties["years"])
	assert.Contains(t, string(data), `"years":[]`)
}
