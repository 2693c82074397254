package raster

import (
	"errors"
	"fmt"
)

var (
	ErrSpatialMismatch = errors.New("spatial dimensions differ")
	ErrNotDivisible    = errors.New("band count is not a multiple of the observation width")
	ErrEmptyStack      = errors.New("stack has no bands")
	ErrSourceRead      = errors.New("source raster could not be read")
	ErrOutOfBounds     = errors.New("band range out of bounds")
)

// Stack is a [height, width, bands] array of uint16 samples stored pixel
// interleaved. A Stack returned by Slice or Groups is a view sharing the
// parent's buffer; views are never written through.
type Stack struct {
	height int
	width  int
	stride int
	offset int
	bands  int
	data   []uint16
}

func New(height, width, bands int) *Stack {
	return &Stack{
		height: height,
		width:  width,
		stride: bands,
		bands:  bands,
		data:   make([]uint16, height*width*bands),
	}
}

// FromPixelInterleaved takes ownership of data laid out as [height][width][bands].
func FromPixelInterleaved(height, width, bands int, data []uint16) (*Stack, error) {
	if height < 0 || width < 0 || bands < 0 {
		return nil, fmt.Errorf("negative shape (%d, %d, %d)", height, width, bands)
	}
	if len(data) != height*width*bands {
		return nil, fmt.Errorf("buffer holds %d samples, shape (%d, %d, %d) needs %d", len(data), height, width, bands, height*width*bands)
	}
	return &Stack{height: height, width: width, stride: bands, bands: bands, data: data}, nil
}

// FromBandInterleaved reorients a [bands][height][width] buffer so the band
// axis is last.
func FromBandInterleaved(bands, height, width int, data []uint16) (*Stack, error) {
	if height < 0 || width < 0 || bands < 0 {
		return nil, fmt.Errorf("negative shape (%d, %d, %d)", bands, height, width)
	}
	if len(data) != height*width*bands {
		return nil, fmt.Errorf("buffer holds %d samples, shape (%d, %d, %d) needs %d", len(data), bands, height, width, height*width*bands)
	}
	s := New(height, width, bands)
	plane := height * width
	for b := 0; b < bands; b++ {
		src := data[b*plane : (b+1)*plane]
		for p, v := range src {
			s.data[p*bands+b] = v
		}
	}
	return s, nil
}

func (s *Stack) Shape() (height, width, bands int) {
	return s.height, s.width, s.bands
}

func (s *Stack) Height() int { return s.height }
func (s *Stack) Width() int  { return s.width }
func (s *Stack) Bands() int  { return s.bands }

// SameSpatial reports whether s and o cover the same [height, width] grid.
func (s *Stack) SameSpatial(o *Stack) bool {
	return s.height == o.height && s.width == o.width
}

func (s *Stack) At(y, x, b int) uint16 {
	if y < 0 || y >= s.height || x < 0 || x >= s.width || b < 0 || b >= s.bands {
		panic(fmt.Sprintf("raster: index (%d, %d, %d) out of shape (%d, %d, %d)", y, x, b, s.height, s.width, s.bands))
	}
	return s.data[(y*s.width+x)*s.stride+s.offset+b]
}

// Slice returns the view of bands [lo, hi).
func (s *Stack) Slice(lo, hi int) (*Stack, error) {
	if lo < 0 || hi < lo || hi > s.bands {
		return nil, fmt.Errorf("bands [%d, %d) of %d: %w", lo, hi, s.bands, ErrOutOfBounds)
	}
	return &Stack{
		height: s.height,
		width:  s.width,
		stride: s.stride,
		offset: s.offset + lo,
		bands:  hi - lo,
		data:   s.data,
	}, nil
}

// Groups splits the band axis into consecutive views of width bands each.
func (s *Stack) Groups(width int) ([]*Stack, error) {
	if width <= 0 {
		return nil, fmt.Errorf("group width %d: %w", width, ErrNotDivisible)
	}
	if s.bands%width != 0 {
		return nil, fmt.Errorf("%d bands into groups of %d: %w", s.bands, width, ErrNotDivisible)
	}
	groups := make([]*Stack, 0, s.bands/width)
	for lo := 0; lo < s.bands; lo += width {
		g, err := s.Slice(lo, lo+width)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// Concat joins stacks along the band axis into a newly allocated stack.
func Concat(stacks ...*Stack) (*Stack, error) {
	if len(stacks) == 0 {
		return nil, ErrEmptyStack
	}
	first := stacks[0]
	total := 0
	for _, st := range stacks {
		if !first.SameSpatial(st) {
			return nil, fmt.Errorf("(%d, %d) vs (%d, %d): %w", first.height, first.width, st.height, st.width, ErrSpatialMismatch)
		}
		total += st.bands
	}

	out := New(first.height, first.width, total)
	pixels := first.height * first.width
	for p := 0; p < pixels; p++ {
		dst := out.data[p*total : (p+1)*total]
		at := 0
		for _, st := range stacks {
			base := p*st.stride + st.offset
			at += copy(dst[at:], st.data[base:base+st.bands])
		}
	}
	return out, nil
}

// Pixels returns a pixel-interleaved copy of the view, C order
// [height][width][bands].
func (s *Stack) Pixels() []uint16 {
	out := make([]uint16, s.height*s.width*s.bands)
	if s.stride == s.bands && s.offset == 0 {
		copy(out, s.data)
		return out
	}
	for p := 0; p < s.height*s.width; p++ {
		base := p*s.stride + s.offset
		copy(out[p*s.bands:(p+1)*s.bands], s.data[base:base+s.bands])
	}
	return out
}

// Band returns a copy of one band as a [height][width] plane.
func (s *Stack) Band(b int) ([]uint16, error) {
	if b < 0 || b >= s.bands {
		return nil, fmt.Errorf("band %d of %d: %w", b, s.bands, ErrOutOfBounds)
	}
	out := make([]uint16, s.height*s.width)
	for p := range out {
		out[p] = s.data[p*s.stride+s.offset+b]
	}
	return out, nil
}

// Map builds a new stack of the same shape with fn applied to each sample.
func (s *Stack) Map(fn func(v uint16) uint16) *Stack {
	out := New(s.height, s.width, s.bands)
	for p := 0; p < s.height*s.width; p++ {
		base := p*s.stride + s.offset
		for b := 0; b < s.bands; b++ {
			out.data[p*s.bands+b] = fn(s.data[base+b])
		}
	}
	return out
}

// MultiplyPlane multiplies every band of s by the single-band plane weights
// and returns the product as a new stack.
func (s *Stack) MultiplyPlane(weights *Stack) (*Stack, error) {
	if !s.SameSpatial(weights) {
		return nil, fmt.Errorf("(%d, %d) vs (%d, %d): %w", s.height, s.width, weights.height, weights.width, ErrSpatialMismatch)
	}
	if weights.bands != 1 {
		return nil, fmt.Errorf("weights have %d bands, want 1", weights.bands)
	}
	out := New(s.height, s.width, s.bands)
	for p := 0; p < s.height*s.width; p++ {
		w := weights.data[p*weights.stride+weights.offset]
		base := p*s.stride + s.offset
		for b := 0; b < s.bands; b++ {
			out.data[p*s.bands+b] = s.data[base+b] * w
		}
	}
	return out, nil
}
