package artifact

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/forest-guardian/cyp-cleaner/internal/raster"
)

var npyMagic = []byte("\x93NUMPY\x01\x00")

// maxNPYSamples bounds the shape ReadNPY accepts from a header.
const maxNPYSamples = 1 << 31

// NPYStore writes NumPy .npy files (format 1.0, little-endian uint16, C
// order, shape [height, width, bands]).
type NPYStore struct {
	dir string
}

func (s *NPYStore) Path(key string) string {
	return artifactPath(s.dir, key, ".npy")
}

func (s *NPYStore) Put(key string, tensor *raster.Stack) (int64, error) {
	var written int64
	err := writeAtomic(s.Path(key), func(tmp string) error {
		f, err := os.Create(tmp)
		if err != nil {
			return fmt.Errorf("failed to create artifact: %w", err)
		}
		n, err := WriteNPY(f, tensor)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		written = n
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", key, err)
	}
	return written, nil
}

func (s *NPYStore) Remove(key string) error {
	return removeFile(s.Path(key))
}

// npyHeader returns the header dict padded so the data starts on a 64 byte
// boundary, terminated by a newline.
func npyHeader(height, width, bands int) []byte {
	dict := fmt.Sprintf("{'descr': '<u2', 'fortran_order': False, 'shape': (%d, %d, %d), }", height, width, bands)
	prefix := len(npyMagic) + 2
	total := prefix + len(dict) + 1
	pad := (64 - total%64) % 64
	return []byte(dict + strings.Repeat(" ", pad) + "\n")
}

// WriteNPY encodes tensor to w and returns the number of bytes written.
func WriteNPY(w io.Writer, tensor *raster.Stack) (int64, error) {
	height, width, bands := tensor.Shape()
	header := npyHeader(height, width, bands)

	bw := bufio.NewWriter(w)
	var n int64
	m, err := bw.Write(npyMagic)
	n += int64(m)
	if err != nil {
		return n, err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint16(len(header))); err != nil {
		return n, err
	}
	n += 2
	m, err = bw.Write(header)
	n += int64(m)
	if err != nil {
		return n, err
	}

	samples := tensor.Pixels()
	buf := make([]byte, 2*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint16(buf[2*i:], v)
	}
	m, err = bw.Write(buf)
	n += int64(m)
	if err != nil {
		return n, err
	}
	return n, bw.Flush()
}

// ReadNPY decodes a file written by WriteNPY.
func ReadNPY(r io.Reader) (*raster.Stack, error) {
	prefix := make([]byte, len(npyMagic)+2)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, fmt.Errorf("failed to read npy preamble: %w", err)
	}
	if string(prefix[:len(npyMagic)]) != string(npyMagic) {
		return nil, fmt.Errorf("not a version 1.0 npy file")
	}
	header := make([]byte, binary.LittleEndian.Uint16(prefix[len(npyMagic):]))
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("failed to read npy header: %w", err)
	}
	if !strings.Contains(string(header), "'descr': '<u2'") || !strings.Contains(string(header), "'fortran_order': False") {
		return nil, fmt.Errorf("unsupported npy header %q", strings.TrimSpace(string(header)))
	}

	idx := strings.Index(string(header), "'shape':")
	if idx < 0 {
		return nil, fmt.Errorf("npy header has no shape: %q", strings.TrimSpace(string(header)))
	}
	var height, width, bands int
	if _, err := fmt.Sscanf(string(header[idx:]), "'shape': (%d, %d, %d)", &height, &width, &bands); err != nil {
		return nil, fmt.Errorf("unsupported npy shape: %w", err)
	}
	if height < 0 || width < 0 || bands < 0 {
		return nil, fmt.Errorf("negative npy shape (%d, %d, %d)", height, width, bands)
	}
	samples := int64(height) * int64(width)
	if height > maxNPYSamples || width > maxNPYSamples || bands > maxNPYSamples || samples > maxNPYSamples {
		return nil, fmt.Errorf("npy shape (%d, %d, %d) exceeds %d samples", height, width, bands, maxNPYSamples)
	}
	if samples *= int64(bands); samples > maxNPYSamples {
		return nil, fmt.Errorf("npy shape (%d, %d, %d) exceeds %d samples", height, width, bands, maxNPYSamples)
	}

	// the buffer only grows with the bytes actually present
	raw, err := io.ReadAll(io.LimitReader(r, 2*samples))
	if err != nil {
		return nil, fmt.Errorf("failed to read npy data: %w", err)
	}
	if int64(len(raw)) != 2*samples {
		return nil, fmt.Errorf("npy data holds %d bytes, shape (%d, %d, %d) needs %d", len(raw), height, width, bands, 2*samples)
	}
	data := make([]uint16, samples)
	for i := range data {
		data[i] = binary.LittleEndian.Uint16(raw[2*i:])
	}
	return raster.FromPixelInterleaved(height, width, bands, data)
}
