package startdetect

import (
	"context"
	"errors"
	"strings"
	"time"
)

const DefaultStep = 500 * time.Millisecond

var DefaultPhrases = []string{"welcome"}

// Probe returns the recognized text of the frame at the given offset.
type Probe func(ctx context.Context, at time.Duration) (string, error)

// Scan walks the video at a fixed step and returns the first offset whose
// text contains every phrase (case-insensitive). found is false when the
// phrases never appear before duration.
func Scan(ctx context.Context, duration, step time.Duration, phrases []string, probe Probe) (at time.Duration, found bool, err error) {
	if step <= 0 {
		step = DefaultStep
	}
	want := normalizePhrases(phrases)
	if len(want) == 0 {
		return 0, false, errors.New("start detection needs at least one phrase")
	}
	for at = 0; at < duration; at += step {
		if err := ctx.Err(); err != nil {
			return 0, false, err
		}
		text, err := probe(ctx, at)
		if err != nil {
			return 0, false, err
		}
		if ContainsAll(text, want) {
			return at, true, nil
		}
	}
	return 0, false, nil
}

func ContainsAll(text string, phrases []string) bool {
	text = strings.ToLower(text)
	for _, p := range phrases {
		if !strings.Contains(text, strings.ToLower(p)) {
			return false
		}
	}
	return true
}

func normalizePhrases(phrases []string) []string {
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
