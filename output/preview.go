package output

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"
	"github.com/forest-guardian/cyp-cleaner/internal/raster"
)

const legendHeight = 30

func normalize(value, min, max float64) float64 {
	if max == min {
		return 0
	}
	norm := (value - min) / (max - min)
	if norm < 0 {
		return 0
	}
	if norm > 1 {
		return 1
	}
	return norm
}

func valueToColor(norm float64) color.RGBA {
	var r, g, b uint8
	if norm <= 0.5 {
		// blue to green
		ratio := norm / 0.5
		g = uint8(255 * ratio)
		b = uint8(255 * (1 - ratio))
	} else {
		// green to red
		ratio := (norm - 0.5) / 0.5
		r = uint8(255 * ratio)
		g = uint8(255 * (1 - ratio))
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// bandRange returns the smallest and largest non-zero sample of a plane.
// Masked pixels are zero and stay out of the color scale.
func bandRange(plane []uint16) (lo, hi uint16, ok bool) {
	for _, v := range plane {
		if v == 0 {
			continue
		}
		if !ok {
			lo, hi, ok = v, v, true
			continue
		}
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi, ok
}

// RenderPreview draws one band of a year tensor as a false color image with
// a legend strip below it. Masked pixels are drawn black. The format follows
// the extension of path: .png, otherwise JPEG.
func RenderPreview(tensor *raster.Stack, band int, path string) error {
	plane, err := tensor.Band(band)
	if err != nil {
		return err
	}
	width, height := tensor.Width(), tensor.Height()
	if width == 0 || height == 0 {
		return fmt.Errorf("cannot render an empty %dx%d raster", width, height)
	}

	lo, hi, ok := bandRange(plane)
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := plane[y*width+x]
			if v == 0 || !ok {
				img.Set(x, y, color.Black)
				continue
			}
			img.Set(x, y, valueToColor(normalize(float64(v), float64(lo), float64(hi))))
		}
	}

	dc := gg.NewContext(max(width, 160), height+legendHeight)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.DrawImage(img, 0, 0)

	dc.SetRGB(0, 0, 0)
	label := fmt.Sprintf("band %d  min %d  max %d", band, lo, hi)
	if !ok {
		label = fmt.Sprintf("band %d  fully masked", band)
	}
	dc.DrawStringAnchored(label, 5, float64(height)+legendHeight/2, 0, 0.5)

	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create preview folder: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".png") {
		if err := dc.SavePNG(path); err != nil {
			return fmt.Errorf("failed to save preview: %w", err)
		}
		return nil
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()
	if err := jpeg.Encode(file, dc.Image(), &jpeg.Options{Quality: 90}); err != nil {
		return fmt.Errorf("failed to save preview: %w", err)
	}
	return nil
}
