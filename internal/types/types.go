package types

import "math"

// Observation is one sampled frame. Timestamp is only meaningful when
// HasTimestamp is set.
type Observation struct {
	Identifier   string
	Timestamp    float64
	HasTimestamp bool
}

// Second is the integer-second bin used for matching.
func (o Observation) Second() (int, bool) {
	if !o.HasTimestamp || math.IsNaN(o.Timestamp) || math.IsInf(o.Timestamp, 0) {
		return 0, false
	}
	return int(math.Floor(o.Timestamp)), true
}

// EventRecord is one row of the game log. Start and End are NaN when the
// source value was missing or not a number.
type EventRecord struct {
	Index int
	Start float64
	End   float64
	Type  string
}

func (e EventRecord) IsPoint() bool { return math.IsNaN(e.End) }

func (e EventRecord) StartFloor() float64 { return math.Floor(e.Start) }

func (e EventRecord) EndCeil() float64 { return math.Ceil(e.End) }

type MatchTier string

const (
	TierContained MatchTier = "contained"
	TierPoint     MatchTier = "point"
	TierNearest   MatchTier = "nearest"
	TierNone      MatchTier = "none"
)

type MatchResult struct {
	Event  *EventRecord
	Tier   MatchTier
	Action string
}

func (m MatchResult) Matched() bool { return m.Event != nil }

type Label string

const (
	LabelLeft    Label = "left"
	LabelRight   Label = "right"
	LabelNeither Label = "neither"
)

// AnnotationRow is the persisted join of an observation, its label and its
// matched event. Optional fields are nil when absent.
type AnnotationRow struct {
	Identifier  string
	Timestamp   *float64
	Explanation string
	Label       Label
	Start       *float64
	End         *float64
	Action      *string
	Tier        MatchTier
}

// NewAnnotationRow joins the three per-observation results.
func NewAnnotationRow(obs Observation, label Label, explanation string, m MatchResult) AnnotationRow {
	row := AnnotationRow{
		Identifier:  obs.Identifier,
		Explanation: explanation,
		Label:       label,
		Tier:        m.Tier,
	}
	if obs.HasTimestamp {
		row.Timestamp = floatPtr(obs.Timestamp)
	}
	if m.Event == nil {
		return row
	}
	row.Start = optional(m.Event.Start)
	row.End = optional(m.Event.End)
	action := m.Action
	row.Action = &action
	return row
}

type Manifest struct {
	RunID       string  `json:"run_id"`
	Input       string  `json:"input"`
	EventLog    string  `json:"event_log"`
	StartSec    float64 `json:"start_sec"`
	StartFound  bool    `json:"start_found"`
	CutVideo    string  `json:"cut_video"`
	FramesDir   string  `json:"frames_dir"`
	Frames      int     `json:"frames"`
	Table       string  `json:"table"`
	Database    string  `json:"database,omitempty"`
	Subtitles   string  `json:"subtitles"`
	Cues        int     `json:"cues"`
	OutputVideo string  `json:"output_video"`
	Metrics     string  `json:"metrics,omitempty"`
}

func optional(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return floatPtr(v)
}

func floatPtr(v float64) *float64 { return &v }
