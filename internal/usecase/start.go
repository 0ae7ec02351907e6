package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/forPelevin/tapalign/internal/domain/startdetect"
)

// detectStart finds the game start in the source video. A missing marker is
// not fatal: the whole video is used.
func (u Usecase) detectStart(ctx context.Context, in Input, logf Logf) (time.Duration, bool, error) {
	if in.StartAt != nil {
		logf("INFO start set to %.3fs, skipping detection", in.StartAt.Seconds())
		return *in.StartAt, true, nil
	}
	if u.d.OCR == nil {
		return 0, false, errors.New("start detection needs an OCR tool")
	}

	duration, err := u.d.Video.ProbeDuration(ctx, in.InputMP4)
	if err != nil {
		return 0, false, err
	}
	probeDir := filepath.Join(in.CacheDir, "start")
	if err := os.MkdirAll(probeDir, 0o755); err != nil {
		return 0, false, err
	}

	probe := func(ctx context.Context, at time.Duration) (string, error) {
		img := filepath.Join(probeDir, fmt.Sprintf("probe_%09.3f.jpg", at.Seconds()))
		if err := u.d.Video.ExtractFrame(ctx, in.InputMP4, at, img); err != nil {
			return "", err
		}
		defer os.Remove(img)
		return u.d.OCR.Text(ctx, img)
	}

	phrases := in.StartPhrases
	if len(phrases) == 0 {
		phrases = startdetect.DefaultPhrases
	}
	logf("INFO detecting start (%q every %s over %s)", phrases, in.StartStep, duration.Round(time.Second))
	at, found, err := startdetect.Scan(ctx, duration, in.StartStep, phrases, probe)
	if err != nil {
		return 0, false, fmt.Errorf("detect start: %w", err)
	}
	if !found {
		logf("WARN start marker %q not found, using the video from 0s", phrases)
		return 0, false, nil
	}
	logf("INFO start detected at %.3fs", at.Seconds())
	return at, true, nil
}
