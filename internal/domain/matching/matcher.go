package matching

import (
	"math"

	"github.com/forPelevin/tapalign/internal/domain/eventlog"
	"github.com/forPelevin/tapalign/internal/types"
)

// Matcher assigns observation seconds to log events. It holds the event set
// read-only, so one Matcher may be shared across goroutines.
type Matcher struct {
	intervals []types.EventRecord
	points    []types.EventRecord
}

func New(lg eventlog.Log) *Matcher {
	return &Matcher{intervals: lg.Intervals, points: lg.Points}
}

func (m *Matcher) MatchObservation(obs types.Observation) types.MatchResult {
	return m.Match(obs.Second())
}

// Match resolves one observation second. Tiers are tried in order:
// interval containment, point event on the same second, nearest interval.
// Within a tier the earliest event in log order wins.
func (m *Matcher) Match(sec int, ok bool) types.MatchResult {
	if !ok {
		return types.MatchResult{Tier: types.TierNone}
	}
	s := float64(sec)

	for i := range m.intervals {
		if contains(m.intervals[i], s) {
			return result(m.intervals[i], types.TierContained)
		}
	}

	for i := range m.points {
		if math.Floor(m.points[i].Start) == s {
			return result(m.points[i], types.TierPoint)
		}
	}

	if len(m.intervals) == 0 {
		return types.MatchResult{Tier: types.TierNone}
	}

	best := 0
	bestDist := distance(m.intervals[0], s)
	for i := 1; i < len(m.intervals); i++ {
		// strict less keeps the first occurrence on ties
		if d := distance(m.intervals[i], s); d < bestDist {
			best, bestDist = i, d
		}
	}
	return result(m.intervals[best], types.TierNearest)
}

func contains(ev types.EventRecord, s float64) bool {
	return ev.StartFloor() <= s && s < ev.EndCeil()
}

// distance is +Inf for records whose bounds are not numbers, so they only
// win when nothing else is comparable.
func distance(ev types.EventRecord, s float64) float64 {
	if contains(ev, s) {
		return 0
	}
	d := math.Min(math.Abs(s-ev.StartFloor()), math.Abs(s-ev.EndCeil()))
	if math.IsNaN(d) {
		return math.Inf(1)
	}
	return d
}

func result(ev types.EventRecord, tier types.MatchTier) types.MatchResult {
	return types.MatchResult{Event: &ev, Tier: tier, Action: DisplayAction(ev.Type)}
}
