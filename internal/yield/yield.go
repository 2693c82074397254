package yield

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
)

var (
	ErrMissingColumns = errors.New("yield data is missing key columns")
	ErrNoRecords      = errors.New("yield data has no usable records")
)

var keyColumns = []string{"Year", "State ANSI", "County ANSI"}

// Key identifies one county-year of ground truth.
type Key struct {
	Year   int
	State  int
	County int
}

func (k Key) String() string {
	return fmt.Sprintf("%d_%d_%d", k.Year, k.State, k.County)
}

// Row is the subset of the yield table columns the cleaner reads. Other
// columns are ignored.
type Row struct {
	Year       string `csv:"Year"`
	StateANSI  string `csv:"State ANSI"`
	CountyANSI string `csv:"County ANSI"`
}

// Table is the immutable set of county-years with a recorded yield. It is
// safe for concurrent reads.
type Table struct {
	keys map[Key]struct{}
}

func NewTable(keys ...Key) *Table {
	t := &Table{keys: make(map[Key]struct{}, len(keys))}
	for _, k := range keys {
		t.keys[k] = struct{}{}
	}
	return t
}

func (t *Table) Has(k Key) bool {
	_, ok := t.keys[k]
	return ok
}

func (t *Table) Len() int {
	return len(t.keys)
}

// Load reads the yield CSV at path.
func Load(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open yield data: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads yield rows from r. Rows with a blank or non-numeric year,
// state or county are skipped. A header missing one of the key columns, or
// data in which no row yields a key, is an error.
func Parse(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read yield data: %w", err)
	}
	if err := checkHeader(data); err != nil {
		return nil, err
	}

	var rows []*Row
	if err := gocsv.UnmarshalBytes(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yield data: %w", err)
	}

	t := NewTable()
	for _, row := range rows {
		k, ok := row.key()
		if !ok {
			continue
		}
		t.keys[k] = struct{}{}
	}
	if len(rows) > 0 && t.Len() == 0 {
		return nil, fmt.Errorf("none of %d rows has a numeric %s: %w", len(rows), strings.Join(keyColumns, ", "), ErrNoRecords)
	}
	return t, nil
}

func checkHeader(data []byte) error {
	header, err := csv.NewReader(bytes.NewReader(data)).Read()
	if err != nil {
		return fmt.Errorf("failed to read yield data header: %w", err)
	}
	present := make(map[string]bool, len(header))
	for _, name := range header {
		present[strings.TrimPrefix(name, "\ufeff")] = true
	}
	var missing []string
	for _, name := range keyColumns {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("columns %q: %w", missing, ErrMissingColumns)
	}
	return nil
}

func (r *Row) key() (Key, bool) {
	var fields [3]int
	for i, raw := range []string{r.Year, r.StateANSI, r.CountyANSI} {
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return Key{}, false
		}
		fields[i] = v
	}
	return Key{Year: fields[0], State: fields[1], County: fields[2]}, true
}
