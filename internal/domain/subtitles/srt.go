package subtitles

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/tapalign/internal/types"
)

const NeitherText = "Can't recognize action"

// Players names the two sides of the table as they should appear on screen.
type Players struct {
	Left  string
	Right string
}

type Cue struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Cues keeps rows that span an interval (both start and end present) and
// orders them by start time. Point-event and unmatched rows have no span and
// are dropped.
func Cues(rows []types.AnnotationRow, p Players) []Cue {
	out := make([]Cue, 0, len(rows))
	for _, r := range rows {
		if r.Start == nil || r.End == nil {
			continue
		}
		out = append(out, Cue{
			Start: dur(*r.Start),
			End:   dur(*r.End),
			Text:  p.Text(r.Label),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

func (p Players) Text(l types.Label) string {
	switch types.Label(strings.ToLower(strings.TrimSpace(string(l)))) {
	case types.LabelLeft:
		return p.Left + "'s Turn"
	case types.LabelRight:
		return p.Right + "'s Turn"
	default:
		return NeitherText
	}
}

func RenderSRT(cues []Cue) string {
	var b strings.Builder
	for i, c := range cues {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString("\n")
		b.WriteString(srtTime(c.Start))
		b.WriteString(" --> ")
		b.WriteString(srtTime(c.End))
		b.WriteString("\n")
		b.WriteString(sanitizeSRT(c.Text))
		b.WriteString("\n\n")
	}
	return b.String()
}

func srtTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hs := int(d / time.Hour)
	d -= time.Duration(hs) * time.Hour
	ms := int(d / time.Minute)
	d -= time.Duration(ms) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	milli := int(d / time.Millisecond)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hs, ms, s, milli)
}

// A blank line ends a cue in SRT, so text is kept on one line.
func sanitizeSRT(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

func dur(sec float64) time.Duration {
	return time.Duration(math.Round(sec*1000)) * time.Millisecond
}
