package ports

import (
	"context"
	"time"

	"github.com/forPelevin/tapalign/internal/types"
)

type VideoTool interface {
	ProbeDuration(ctx context.Context, inMP4 string) (time.Duration, error)
	ExtractFrame(ctx context.Context, inMP4 string, at time.Duration, outImage string) error
	Trim(ctx context.Context, inMP4 string, start time.Duration, outMP4 string) error
	BurnSubtitles(ctx context.Context, inMP4, srtPath, outMP4 string) error
}

// Labeler answers which side touched the screen in one frame. The label is
// expected to be left, right or neither but callers treat it as opaque.
type Labeler interface {
	Label(ctx context.Context, image []byte, mime string) (label types.Label, explanation string, err error)
}

type OCR interface {
	Text(ctx context.Context, imagePath string) (string, error)
}

type AnnotationStore interface {
	SaveRows(ctx context.Context, runID string, rows []types.AnnotationRow) error
}
