package sampling

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/forPelevin/tapalign/internal/domain/eventlog"
)

type Mode string

const (
	ModeMidpoint  Mode = "midpoint"
	ModeQuartiles Mode = "quartiles"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeMidpoint:
		return ModeMidpoint, nil
	case ModeQuartiles:
		return ModeQuartiles, nil
	default:
		return "", fmt.Errorf("unknown sample mode %q (want %s or %s)", s, ModeMidpoint, ModeQuartiles)
	}
}

// Times returns the frame sample times for every interval event, sorted and
// de-duplicated at millisecond precision. Point events carry no span and are
// never sampled.
func Times(lg eventlog.Log, mode Mode) []float64 {
	seen := make(map[int64]struct{})
	var out []float64
	add := func(t float64) {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return
		}
		if t < 0 {
			t = 0
		}
		ms := int64(math.Round(t * 1000))
		if _, ok := seen[ms]; ok {
			return
		}
		seen[ms] = struct{}{}
		out = append(out, float64(ms)/1000)
	}

	for _, ev := range lg.Intervals {
		span := ev.End - ev.Start
		switch mode {
		case ModeQuartiles:
			for i := 1; i <= 3; i++ {
				add(ev.Start + span*float64(i)/4)
			}
		default:
			add(ev.Start + span/2)
		}
	}
	sort.Float64s(out)
	return out
}

// FrameName encodes t so that lexicographic order matches time order and the
// "<number>s" timestamp form recovers t.
func FrameName(t float64) string {
	return fmt.Sprintf("frame_at_%09.3fs.jpg", t)
}
