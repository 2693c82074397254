package raster

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/paulmach/orb"
)

// SourceKind names one of the three co-registered rasters of a region.
type SourceKind int

const (
	Image SourceKind = iota
	Temperature
	Mask
)

func (k SourceKind) String() string {
	switch k {
	case Image:
		return "image"
	case Temperature:
		return "temperature"
	case Mask:
		return "mask"
	default:
		return fmt.Sprintf("source(%d)", int(k))
	}
}

// Reader yields the band-last stack of one source of a region.
type Reader interface {
	Read(ctx context.Context, kind SourceKind, regionID string) (*Stack, error)
}

// Remover is implemented by readers that can delete a region's sources once
// they have been consumed.
type Remover interface {
	Remove(regionID string) error
}

// Locator is implemented by readers that know where a region lies.
type Locator interface {
	Footprint(regionID string) (orb.Bound, error)
}

// readBands fills a band-interleaved buffer one band plane at a time and
// reorients it band-last. It stops between bands once ctx is done.
func readBands(ctx context.Context, bands, height, width int, read func(b int, dst []uint16) error) (*Stack, error) {
	plane := height * width
	buf := make([]uint16, plane*bands)
	for b := 0; b < bands; b++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := read(b, buf[b*plane:(b+1)*plane]); err != nil {
			return nil, fmt.Errorf("band %d: %w", b+1, err)
		}
	}
	return FromBandInterleaved(bands, height, width, buf)
}

// ListRegions returns the names of the .tif files in dir, sorted.
func ListRegions(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list regions in %s: %w", dir, err)
	}
	var regions []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".tif") {
			continue
		}
		regions = append(regions, e.Name())
	}
	sort.Strings(regions)
	return regions, nil
}

func sourcePath(dirs map[SourceKind]string, kind SourceKind, regionID string) (string, error) {
	dir, ok := dirs[kind]
	if !ok {
		return "", fmt.Errorf("no directory configured for %s source: %w", kind, ErrSourceRead)
	}
	return filepath.Join(dir, regionID), nil
}

type memoryKey struct {
	kind     SourceKind
	regionID string
}

// MemoryReader serves stacks registered with Put. It is safe for concurrent use.
type MemoryReader struct {
	mu      sync.RWMutex
	stacks  map[memoryKey]*Stack
	removed map[string]bool
}

func NewMemoryReader() *MemoryReader {
	return &MemoryReader{
		stacks:  make(map[memoryKey]*Stack),
		removed: make(map[string]bool),
	}
}

func (m *MemoryReader) Put(kind SourceKind, regionID string, s *Stack) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stacks[memoryKey{kind, regionID}] = s
}

func (m *MemoryReader) Read(ctx context.Context, kind SourceKind, regionID string) (*Stack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stacks[memoryKey{kind, regionID}]
	if !ok {
		return nil, fmt.Errorf("%s source for %s not found: %w", kind, regionID, ErrSourceRead)
	}
	return s, nil
}

func (m *MemoryReader) Remove(regionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, kind := range []SourceKind{Image, Temperature, Mask} {
		delete(m.stacks, memoryKey{kind, regionID})
	}
	m.removed[regionID] = true
	return nil
}

// Removed reports whether Remove was called for regionID.
func (m *MemoryReader) Removed(regionID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.removed[regionID]
}
