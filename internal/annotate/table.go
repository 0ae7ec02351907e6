package annotate

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/forPelevin/tapalign/internal/types"
)

var Columns = []string{
	"identifier",
	"timestamp_seconds",
	"explanation",
	"label",
	"start_time",
	"end_time",
	"action",
	"match_tier",
}

// Writer streams annotation rows as CSV. The header is written on creation
// so an empty run still yields a valid table.
type Writer struct {
	cw *csv.Writer
	n  int
}

func NewWriter(w io.Writer) (*Writer, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	return &Writer{cw: cw}, nil
}

func (w *Writer) Write(r types.AnnotationRow) error {
	rec := []string{
		r.Identifier,
		formatOpt(r.Timestamp),
		r.Explanation,
		string(r.Label),
		formatOpt(r.Start),
		formatOpt(r.End),
		"",
		string(r.Tier),
	}
	if r.Action != nil {
		rec[6] = *r.Action
	}
	if err := w.cw.Write(rec); err != nil {
		return fmt.Errorf("write row %d: %w", w.n+1, err)
	}
	w.n++
	return nil
}

func (w *Writer) Flush() error {
	w.cw.Flush()
	return w.cw.Error()
}

// Rows reports how many data rows were written.
func (w *Writer) Rows() int { return w.n }

func WriteFile(path string, rows []types.AnnotationRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	w, err := NewWriter(f)
	if err != nil {
		f.Close()
		return err
	}
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush table: %w", err)
	}
	return f.Close()
}

func ReadFile(path string) ([]types.AnnotationRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses a table produced by Writer. Columns are located by header
// name; match_tier is optional.
func Read(r io.Reader) ([]types.AnnotationRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("annotation table is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, c := range Columns[:len(Columns)-1] {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("annotation table is missing column %q", c)
		}
	}

	get := func(rec []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var out []types.AnnotationRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		row := types.AnnotationRow{
			Identifier:  get(rec, "identifier"),
			Explanation: get(rec, "explanation"),
			Label:       types.Label(get(rec, "label")),
			Tier:        types.MatchTier(get(rec, "match_tier")),
		}
		if row.Timestamp, err = parseOpt(get(rec, "timestamp_seconds")); err != nil {
			return nil, fmt.Errorf("line %d timestamp_seconds: %w", line, err)
		}
		if row.Start, err = parseOpt(get(rec, "start_time")); err != nil {
			return nil, fmt.Errorf("line %d start_time: %w", line, err)
		}
		if row.End, err = parseOpt(get(rec, "end_time")); err != nil {
			return nil, fmt.Errorf("line %d end_time: %w", line, err)
		}
		if a := get(rec, "action"); a != "" {
			row.Action = &a
		}
		out = append(out, row)
	}
	return out, nil
}

func formatOpt(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func parseOpt(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
