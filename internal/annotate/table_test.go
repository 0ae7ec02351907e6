package annotate

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forPelevin/tapalign/internal/types"
)

func f(v float64) *float64 { return &v }

func s(v string) *string { return &v }

func TestWriter_HeaderOnlyForZeroRows(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	want := "identifier,timestamp_seconds,explanation,label,start_time,end_time,action,match_tier\n"
	if buf.String() != want {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestWriter_NoMatchLeavesFieldsEmpty(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	rows := []types.AnnotationRow{
		{Identifier: "frame_a.jpg", Timestamp: f(12.5), Explanation: "hand on the left", Label: "left", Start: f(10), End: f(20), Action: s("move block"), Tier: types.TierContained},
		{Identifier: "frame_b.jpg", Timestamp: f(40), Explanation: "nobody", Label: "neither", Tier: types.TierNone},
		{Identifier: "frame.jpg", Label: "right", Tier: types.TierNone},
	}
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	if w.Rows() != 3 {
		t.Fatalf("expected 3 rows, got %d", w.Rows())
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header + 3 rows, got %d lines", len(lines))
	}
	if lines[1] != "frame_a.jpg,12.5,hand on the left,left,10,20,move block,contained" {
		t.Fatalf("unexpected matched row: %q", lines[1])
	}
	if lines[2] != "frame_b.jpg,40,nobody,neither,,,,none" {
		t.Fatalf("unexpected unmatched row: %q", lines[2])
	}
	if strings.Contains(lines[2], ",none,") {
		t.Fatalf("absent action must not be written as a category: %q", lines[2])
	}
	if lines[3] != "frame.jpg,,,right,,,,none" {
		t.Fatalf("unexpected row without timestamp: %q", lines[3])
	}
}

func TestWriteFileReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "logs.csv")
	rows := []types.AnnotationRow{
		{Identifier: "a.jpg", Timestamp: f(7.25), Explanation: "says \"left\", clearly", Label: "left", Start: f(7), Action: s("added shape to gallery"), Tier: types.TierPoint},
		{Identifier: "b.jpg", Timestamp: f(3), Label: "right", Tier: types.TierNone},
	}
	if err := WriteFile(path, rows); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].Explanation != rows[0].Explanation || got[0].End != nil || *got[0].Start != 7 || *got[0].Action != "added shape to gallery" {
		t.Fatalf("unexpected first row: %+v", got[0])
	}
	if got[1].Action != nil || got[1].Start != nil || got[1].Tier != types.TierNone {
		t.Fatalf("unexpected second row: %+v", got[1])
	}
}

func TestRead_Errors(t *testing.T) {
	tests := map[string]string{
		"empty":          "",
		"missing column": "identifier,label\nx,left\n",
		"bad number":     "identifier,timestamp_seconds,explanation,label,start_time,end_time,action\nx,abc,,left,,,\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Read(strings.NewReader(in)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestRead_WithoutTierColumn(t *testing.T) {
	in := "identifier,timestamp_seconds,explanation,label,start_time,end_time,action\nx,1,,left,0,5,move block\n"
	got, err := Read(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Tier != "" || *got[0].End != 5 {
		t.Fatalf("unexpected rows: %+v", got)
	}
}
