// Package series reads and writes flat numeric time series: one value per
// line, with optional '#' comment lines at the top.
package series

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chrissnell/beringseaice/internal/seaice"
)

// Series is a named sequence of values, one per time step.
type Series struct {
	Header []string
	Values []float64
}

// ReadOptions controls how a series file is interpreted.
type ReadOptions struct {
	// Scale multiplies every value; 0 means 1. NSIDC files are in km² and
	// are read with 1e-6 to get 10⁶ km².
	Scale float64
	// Column selects a column of delimited input. Defaults to the first.
	Column int
}

// ReadFile reads a series file.
func ReadFile(path string, opts ReadOptions) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &seaice.DataLoadError{Path: path, Err: err}
	}
	defer f.Close()

	s, err := Read(f, opts)
	if err != nil {
		return nil, &seaice.DataLoadError{Path: path, Err: err}
	}
	return s, nil
}

// Read parses a series from r. Comment lines become the header.
func Read(r io.Reader, opts ReadOptions) (*Series, error) {
	scale := opts.Scale
	if scale == 0 {
		scale = 1
	}

	br := bufio.NewReader(r)
	s := &Series{}

	// Header comments are kept; csv.Reader would silently drop them.
	for {
		peek, err := br.Peek(1)
		if err != nil || peek[0] != '#' {
			break
		}
		line, err := br.ReadString('\n')
		s.Header = append(s.Header, strings.TrimSpace(strings.TrimPrefix(strings.TrimRight(line, "\r\n"), "#")))
		if err != nil {
			break
		}
	}

	cr := csv.NewReader(br)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		fields := splitFields(record)
		if len(fields) == 0 {
			continue
		}
		if opts.Column >= len(fields) {
			return nil, fmt.Errorf("line has %d columns, need column %d", len(fields), opts.Column)
		}
		v, err := parseValue(fields[opts.Column])
		if err != nil {
			return nil, err
		}
		if !seaice.IsMissing(v) {
			v *= scale
		}
		s.Values = append(s.Values, v)
	}

	return s, nil
}

// splitFields also splits whitespace-delimited records, which csv sees as a single field.
func splitFields(record []string) []string {
	if len(record) == 1 {
		return strings.Fields(record[0])
	}
	var out []string
	for _, f := range record {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func parseValue(s string) (float64, error) {
	switch strings.ToLower(s) {
	case "nan", "-nan", "":
		return seaice.Missing(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing value %q: %w", s, err)
	}
	return v, nil
}

// Write writes the header as '# ' lines followed by one value per line.
func Write(w io.Writer, s *Series) error {
	bw := bufio.NewWriter(w)
	for _, h := range s.Header {
		if _, err := fmt.Fprintf(bw, "# %s\n", h); err != nil {
			return err
		}
	}
	for _, v := range s.Values {
		var line string
		if math.IsNaN(v) {
			line = "nan"
		} else {
			line = strconv.FormatFloat(v, 'e', 18, 64)
		}
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes s to path, creating parent directories.
func WriteFile(path string, s *Series) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := Write(f, s); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// Header builds the descriptive header lines for an output series.
func Header(variable, source string, span fmt.Stringer) []string {
	return []string{
		fmt.Sprintf("File contains %s from %s", variable, source),
		fmt.Sprintf("covering %s", span),
	}
}
