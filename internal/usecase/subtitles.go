package usecase

import (
	"context"
	"os"
	"path/filepath"

	"github.com/forPelevin/tapalign/internal/annotate"
	"github.com/forPelevin/tapalign/internal/domain/subtitles"
)

type SubtitlesInput struct {
	TablePath string
	VideoMP4  string
	SRTPath   string
	// OutputMP4 empty writes the SRT only.
	OutputMP4 string
	Players   subtitles.Players
	Logf      Logf
}

type SubtitlesResult struct {
	Cues int
}

// Subtitles renders the annotation table on disk to SRT and burns it into
// the video.
func (u Usecase) Subtitles(ctx context.Context, in SubtitlesInput) (SubtitlesResult, error) {
	logf := in.Logf.orNop()
	defer u.d.Metrics.Stage("subtitles")()

	rows, err := annotate.ReadFile(in.TablePath)
	if err != nil {
		return SubtitlesResult{}, err
	}
	cues := subtitles.Cues(rows, in.Players)
	if err := os.MkdirAll(filepath.Dir(in.SRTPath), 0o755); err != nil {
		return SubtitlesResult{}, err
	}
	if err := os.WriteFile(in.SRTPath, []byte(subtitles.RenderSRT(cues)), 0o644); err != nil {
		return SubtitlesResult{}, err
	}
	logf("INFO subtitles written (%d cues): %s", len(cues), in.SRTPath)

	if in.OutputMP4 == "" {
		return SubtitlesResult{Cues: len(cues)}, nil
	}
	if err := u.d.Video.BurnSubtitles(ctx, in.VideoMP4, in.SRTPath, in.OutputMP4); err != nil {
		return SubtitlesResult{}, err
	}
	logf("INFO captioned video: %s", in.OutputMP4)
	return SubtitlesResult{Cues: len(cues)}, nil
}
