package eventlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/forPelevin/tapalign/internal/types"
)

const (
	ColStart = "start_time"
	ColEnd   = "end_time"
	ColType  = "type"

	Separator = ';'
)

// ErrMissingColumns means the log cannot be matched against at all.
var ErrMissingColumns = errors.New("event log is missing required columns")

// RawRow is one log row before numeric coercion.
type RawRow struct {
	Start string
	End   string
	Type  string
}

// Log is the normalized event set, partitioned once. Both slices keep the
// original log order.
type Log struct {
	Intervals []types.EventRecord
	Points    []types.EventRecord
}

func (l Log) Len() int { return len(l.Intervals) + len(l.Points) }

func Load(path string) (Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return Log{}, fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()
	lg, err := Read(f)
	if err != nil {
		return Log{}, fmt.Errorf("%s: %w", path, err)
	}
	return lg, nil
}

func Read(r io.Reader) (Log, error) {
	cr := csv.NewReader(r)
	cr.Comma = Separator
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Log{}, fmt.Errorf("%w: %s, %s, %s (empty file)", ErrMissingColumns, ColStart, ColEnd, ColType)
	}
	if err != nil {
		return Log{}, fmt.Errorf("read header: %w", err)
	}
	idx, err := columnIndex(header)
	if err != nil {
		return Log{}, err
	}

	var rows []RawRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Log{}, fmt.Errorf("read row %d: %w", len(rows)+2, err)
		}
		if blank(rec) {
			continue
		}
		rows = append(rows, RawRow{
			Start: field(rec, idx[ColStart]),
			End:   field(rec, idx[ColEnd]),
			Type:  field(rec, idx[ColType]),
		})
	}
	return Normalize(rows), nil
}

// Normalize coerces times and splits rows into interval and point events.
// A row is a point event iff its end time is missing or not a number.
func Normalize(rows []RawRow) Log {
	var lg Log
	for i, r := range rows {
		ev := types.EventRecord{
			Index: i,
			Start: ParseTime(r.Start),
			End:   ParseTime(r.End),
			Type:  r.Type,
		}
		if ev.IsPoint() {
			lg.Points = append(lg.Points, ev)
			continue
		}
		lg.Intervals = append(lg.Intervals, ev)
	}
	return lg
}

// ParseTime returns NaN for anything that is not a finite number.
func ParseTime(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	var missing []string
	for _, c := range []string{ColStart, ColEnd, ColType} {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return idx, nil
}

func field(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return rec[i]
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
