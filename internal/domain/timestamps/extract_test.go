package timestamps

import (
	"math"
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   float64
		wantOK bool
	}{
		{"clock with fraction", "cam_1h02.03.250", 3723.25, true},
		{"clock without fraction", "0h10.05", 605, true},
		{"seconds suffix", "frame_at_12s", 12, true},
		{"fractional seconds suffix", "frame_at_00012.500s", 12.5, true},
		{"clock wins over suffix", "0h01.00s", 60, true},
		{"last number fallback", "frame_000123", 123, true},
		{"last of several numbers", "take2_frame_45", 45, true},
		{"decimal fallback", "shot-3.75", 3.75, true},
		{"no digits", "frame", 0, false},
		{"empty", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Extract(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("Extract(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if ok && math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("Extract(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestObserve_UsesStem(t *testing.T) {
	obs := Observe("/tmp/frames/still.mp4")
	if obs.HasTimestamp {
		t.Fatalf("expected no timestamp from extension digits, got %v", obs.Timestamp)
	}
	if obs.Identifier != "still.mp4" {
		t.Fatalf("unexpected identifier: %q", obs.Identifier)
	}

	obs = Observe("frames/frame_at_00007.900s.jpg")
	sec, ok := obs.Second()
	if !ok || sec != 7 {
		t.Fatalf("expected second 7, got %d ok=%v", sec, ok)
	}
}
