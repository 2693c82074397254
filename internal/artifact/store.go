package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/forest-guardian/cyp-cleaner/internal/raster"
)

var ErrUnknownFormat = errors.New("unknown artifact format")

// Store persists masked year tensors under keys of the form
// {year}_{state}_{county}. Put must either write the whole artifact or
// nothing.
type Store interface {
	Put(key string, tensor *raster.Stack) (int64, error)
	Remove(key string) error
}

type Format string

const (
	FormatNPY   Format = "npy"
	FormatGTiff Format = "gtiff"
)

// Open creates dir if needed and returns the store for format.
func Open(dir string, format Format) (Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	switch format {
	case FormatNPY, "":
		return &NPYStore{dir: dir}, nil
	case FormatGTiff:
		return &GTiffStore{dir: dir}, nil
	default:
		return nil, fmt.Errorf("%q: %w", format, ErrUnknownFormat)
	}
}

// writeAtomic hands write a temporary path next to path and renames it into
// place once write succeeds.
func writeAtomic(path string, write func(tmp string) error) error {
	tmp := path + ".tmp"
	if err := write(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename temp artifact: %w", err)
	}
	return nil
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func artifactPath(dir, key, ext string) string {
	return filepath.Join(dir, key+ext)
}
