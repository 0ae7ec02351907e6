package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/forPelevin/tapalign/internal/domain/eventlog"
	"github.com/forPelevin/tapalign/internal/domain/sampling"
	"github.com/forPelevin/tapalign/internal/domain/subtitles"
	"github.com/forPelevin/tapalign/internal/metrics"
	"github.com/forPelevin/tapalign/internal/ports"
	"github.com/forPelevin/tapalign/internal/types"
)

// Deps are the collaborators of the pipeline. Store and Metrics are
// optional; OCR is only needed when the start has to be detected.
type Deps struct {
	Video   ports.VideoTool
	Labeler ports.Labeler
	OCR     ports.OCR
	Store   ports.AnnotationStore
	Metrics *metrics.Run
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase { return Usecase{d: d} }

type Logf func(format string, args ...any)

type Input struct {
	InputMP4 string
	EventLog string
	RunID    string
	OutDir   string
	CacheDir string

	Players    subtitles.Players
	SampleMode sampling.Mode
	Workers    int

	StartPhrases []string
	StartStep    time.Duration
	// StartAt skips detection when set.
	StartAt *time.Duration

	Logf Logf
}

type Result struct {
	Manifest types.Manifest
	Rows     []types.AnnotationRow
}

const (
	cutName    = "cut.mp4"
	framesName = "frames"
	tableName  = "annotations.csv"
	srtName    = "subtitles.srt"
	outName    = "video_with_subs.mp4"
)

// Run executes every stage: start detection, trim, frame sampling, labeling
// and matching, subtitle rendering and burn-in.
func (u Usecase) Run(ctx context.Context, in Input) (Result, error) {
	logf := in.Logf.orNop()

	// The event log is validated before any video work.
	lg, err := eventlog.Load(in.EventLog)
	if err != nil {
		return Result{}, err
	}
	logf("INFO event log: %d intervals, %d points", len(lg.Intervals), len(lg.Points))
	if err := os.MkdirAll(in.OutDir, 0o755); err != nil {
		return Result{}, err
	}

	stop := u.d.Metrics.Stage("start")
	start, found, err := u.detectStart(ctx, in, logf)
	stop()
	if err != nil {
		return Result{}, err
	}

	cut := filepath.Join(in.OutDir, cutName)
	stop = u.d.Metrics.Stage("trim")
	logf("INFO trimming from %.3fs", start.Seconds())
	err = u.d.Video.Trim(ctx, in.InputMP4, start, cut)
	stop()
	if err != nil {
		return Result{}, err
	}

	framesDir := filepath.Join(in.OutDir, framesName)
	stop = u.d.Metrics.Stage("sample")
	frames, err := u.sampleFrames(ctx, cut, framesDir, lg, in.SampleMode, logf)
	stop()
	if err != nil {
		return Result{}, err
	}

	tablePath := filepath.Join(in.OutDir, tableName)
	ar, err := u.Annotate(ctx, AnnotateInput{
		FramesDir: framesDir,
		Log:       lg,
		TablePath: tablePath,
		RunID:     in.RunID,
		Workers:   in.Workers,
		Logf:      logf,
	})
	if err != nil {
		return Result{}, err
	}

	srtPath := filepath.Join(in.OutDir, srtName)
	outMP4 := filepath.Join(in.OutDir, outName)
	sr, err := u.Subtitles(ctx, SubtitlesInput{
		TablePath: tablePath,
		VideoMP4:  cut,
		SRTPath:   srtPath,
		OutputMP4: outMP4,
		Players:   in.Players,
		Logf:      logf,
	})
	if err != nil {
		return Result{}, err
	}

	return Result{
		Rows: ar.Rows,
		Manifest: types.Manifest{
			RunID:       in.RunID,
			Input:       in.InputMP4,
			EventLog:    in.EventLog,
			StartSec:    start.Seconds(),
			StartFound:  found,
			CutVideo:    rel(in.OutDir, cut),
			FramesDir:   rel(in.OutDir, framesDir),
			Frames:      frames,
			Table:       rel(in.OutDir, tablePath),
			Subtitles:   rel(in.OutDir, srtPath),
			Cues:        sr.Cues,
			OutputVideo: rel(in.OutDir, outMP4),
		},
	}, nil
}

// sampleFrames extracts one image per sample time from the trimmed video.
// Log times are relative to the game start, which is t=0 of the cut.
func (u Usecase) sampleFrames(ctx context.Context, cut, dir string, lg eventlog.Log, mode sampling.Mode, logf Logf) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	times := sampling.Times(lg, mode)
	logf("INFO sampling %d frames (%s)", len(times), mode)
	for _, t := range times {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		at := time.Duration(t * float64(time.Second))
		if err := u.d.Video.ExtractFrame(ctx, cut, at, filepath.Join(dir, sampling.FrameName(t))); err != nil {
			return 0, fmt.Errorf("frame at %.3fs: %w", t, err)
		}
	}
	u.d.Metrics.SetFramesSampled(len(times))
	return len(times), nil
}

func (l Logf) orNop() Logf {
	if l == nil {
		return func(string, ...any) {}
	}
	return l
}

func rel(base, path string) string {
	r, err := filepath.Rel(base, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(r)
}
