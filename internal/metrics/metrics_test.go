package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/forPelevin/tapalign/internal/types"
)

func TestRun_Counters(t *testing.T) {
	r := NewRun()
	r.ObserveMatch(types.TierContained)
	r.ObserveMatch(types.TierContained)
	r.ObserveMatch(types.TierNone)
	r.ObserveLabel(types.LabelLeft, time.Second, nil)
	r.ObserveLabel("", 2*time.Second, errors.New("boom"))
	r.ObserveUntimed()
	r.SetFramesSampled(12)

	if got := testutil.ToFloat64(r.matches.WithLabelValues("contained")); got != 2 {
		t.Fatalf("contained = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.matches.WithLabelValues("none")); got != 1 {
		t.Fatalf("none = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.labels.WithLabelValues("left")); got != 1 {
		t.Fatalf("left = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.labelErrors); got != 1 {
		t.Fatalf("labeler errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.untimedFrames); got != 1 {
		t.Fatalf("untimed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.framesSampled); got != 12 {
		t.Fatalf("frames = %v, want 12", got)
	}
}

func TestRun_NilIsNoop(t *testing.T) {
	var r *Run
	r.ObserveMatch(types.TierPoint)
	r.ObserveLabel(types.LabelRight, time.Second, nil)
	r.ObserveUntimed()
	r.SetFramesSampled(3)
	r.Stage("annotate")()
}

func TestRun_WriteTextfile(t *testing.T) {
	r := NewRun()
	r.ObserveMatch(types.TierNearest)
	r.Stage("annotate")()

	path := filepath.Join(t.TempDir(), "metrics.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("write textfile: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(b)
	for _, want := range []string{
		`tapalign_matches_total{tier="nearest"} 1`,
		`tapalign_stage_duration_seconds{stage="annotate"}`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in textfile:\n%s", want, out)
		}
	}
}
