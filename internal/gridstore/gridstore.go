// Package gridstore keeps regridded fields between jobs. Recently used
// entries stay in memory; every entry is also written to disk as zstd
// compressed msgpack so later runs can reuse it.
package gridstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/chrissnell/beringseaice/internal/seaice"
)

const suffix = ".msgpack.zst"

// DefaultMemoryEntries is the in-memory capacity when none is configured.
const DefaultMemoryEntries = 8

// ErrNotFound is returned by Get for names that were never stored.
var ErrNotFound = errors.New("grid not found")

var validName = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Entry is a stored field and the grid it lives on.
type Entry struct {
	Name    string    `msgpack:"name"`
	Created time.Time `msgpack:"created"`
	Steps   int       `msgpack:"steps"`
	Rows    int       `msgpack:"rows"`
	Cols    int       `msgpack:"cols"`
	Lat     []float64 `msgpack:"lat"`
	Lon     []float64 `msgpack:"lon"`
	Data    []float64 `msgpack:"data"`
}

// NewEntry captures f on g under name.
func NewEntry(name string, g *seaice.Grid, f *seaice.Field) (*Entry, error) {
	if err := f.CheckGrid(g); err != nil {
		return nil, err
	}
	return &Entry{
		Name:    name,
		Created: time.Now().UTC(),
		Steps:   f.Steps,
		Rows:    f.Rows,
		Cols:    f.Cols,
		Lat:     g.Lat,
		Lon:     g.Lon,
		Data:    f.Data,
	}, nil
}

// Grid rebuilds the entry's grid.
func (e *Entry) Grid() (*seaice.Grid, error) {
	return seaice.NewGrid(e.Rows, e.Cols, e.Lat, e.Lon)
}

// Field rebuilds the entry's field.
func (e *Entry) Field() (*seaice.Field, error) {
	return seaice.FieldFromData(e.Steps, e.Rows, e.Cols, e.Data)
}

// Store is a two-tier grid cache rooted at a directory.
type Store struct {
	dir    string
	mem    *lru.Cache[string, *Entry]
	logger *zap.SugaredLogger
}

// Open creates dir if needed and returns a store holding up to memEntries
// entries in memory.
func Open(dir string, memEntries int, logger *zap.SugaredLogger) (*Store, error) {
	if memEntries <= 0 {
		memEntries = DefaultMemoryEntries
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating grid store %s: %w", dir, err)
	}
	mem, err := lru.New[string, *Entry](memEntries)
	if err != nil {
		return nil, err
	}
	return &Store{dir: dir, mem: mem, logger: logger}, nil
}

func (s *Store) path(name string) (string, error) {
	if !validName.MatchString(name) {
		return "", &seaice.ConfigError{Field: "store_name", Reason: fmt.Sprintf("%q may only contain letters, digits, '.', '_' and '-'", name)}
	}
	return filepath.Join(s.dir, name+suffix), nil
}

// Put stores e in memory and on disk.
func (s *Store) Put(e *Entry) error {
	p, err := s.path(e.Name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".grid-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	zw, err := zstd.NewWriter(tmp, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		tmp.Close()
		return err
	}
	if err := msgpack.NewEncoder(zw).Encode(e); err != nil {
		zw.Close()
		tmp.Close()
		return fmt.Errorf("encoding grid %s: %w", e.Name, err)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return err
	}

	s.mem.Add(e.Name, e)
	s.logger.Debugf("stored grid %s (%dx%dx%d)", e.Name, e.Steps, e.Rows, e.Cols)
	return nil
}

// Get returns the named entry, reading it from disk on a memory miss.
func (s *Store) Get(name string) (*Entry, error) {
	if e, ok := s.mem.Get(name); ok {
		return e, nil
	}

	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return nil, &seaice.DataLoadError{Path: p, Err: err}
	}
	defer f.Close()

	zr, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(0))
	if err != nil {
		return nil, &seaice.DataLoadError{Path: p, Err: err}
	}
	defer zr.Close()

	var e Entry
	if err := msgpack.NewDecoder(zr).Decode(&e); err != nil {
		return nil, &seaice.DataLoadError{Path: p, Err: err}
	}
	if len(e.Data) != e.Steps*e.Rows*e.Cols {
		return nil, &seaice.DataLoadError{Path: p, Err: fmt.Errorf("corrupt entry: %d values for %dx%dx%d", len(e.Data), e.Steps, e.Rows, e.Cols)}
	}

	s.mem.Add(name, &e)
	return &e, nil
}

// Names lists the stored entries.
func (s *Store) Names() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, de := range entries {
		if !de.IsDir() && strings.HasSuffix(de.Name(), suffix) {
			names = append(names, strings.TrimSuffix(de.Name(), suffix))
		}
	}
	sort.Strings(names)
	return names, nil
}
