package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/forPelevin/tapalign/internal/annotate"
	"github.com/forPelevin/tapalign/internal/domain/eventlog"
	"github.com/forPelevin/tapalign/internal/domain/matching"
	"github.com/forPelevin/tapalign/internal/domain/timestamps"
	"github.com/forPelevin/tapalign/internal/types"
)

const DefaultWorkers = 4

type AnnotateInput struct {
	FramesDir string
	Log       eventlog.Log
	TablePath string
	// RunID keys the rows in the annotation store. Empty skips the store.
	RunID   string
	Workers int
	Logf    Logf
}

type AnnotateResult struct {
	Rows []types.AnnotationRow
}

type labeled struct {
	label       types.Label
	explanation string
}

// Annotate labels every frame in FramesDir, matches it against the event
// log and writes one table row per frame in file name order.
func (u Usecase) Annotate(ctx context.Context, in AnnotateInput) (AnnotateResult, error) {
	logf := in.Logf.orNop()
	defer u.d.Metrics.Stage("annotate")()

	frames, err := ListFrames(in.FramesDir)
	if err != nil {
		return AnnotateResult{}, err
	}
	logf("INFO annotating %d frames", len(frames))

	labels, err := u.labelAll(ctx, in.FramesDir, frames, in.Workers, logf)
	if err != nil {
		return AnnotateResult{}, err
	}

	m := matching.New(in.Log)
	rows := make([]types.AnnotationRow, len(frames))
	for i, name := range frames {
		obs := timestamps.Observe(name)
		if !obs.HasTimestamp {
			logf("WARN no timestamp in %q", name)
			u.d.Metrics.ObserveUntimed()
		}
		res := m.MatchObservation(obs)
		u.d.Metrics.ObserveMatch(res.Tier)
		rows[i] = types.NewAnnotationRow(obs, labels[i].label, labels[i].explanation, res)
	}

	if err := annotate.WriteFile(in.TablePath, rows); err != nil {
		return AnnotateResult{}, err
	}
	logf("INFO table written (%d rows): %s", len(rows), in.TablePath)

	if u.d.Store != nil && in.RunID != "" {
		if err := u.d.Store.SaveRows(ctx, in.RunID, rows); err != nil {
			return AnnotateResult{}, err
		}
	}
	return AnnotateResult{Rows: rows}, nil
}

// labelAll runs the labeler over a bounded pool of workers. Results land at
// the frame's index so completion order does not matter. A failed frame is
// logged and keeps an empty label.
func (u Usecase) labelAll(ctx context.Context, dir string, frames []string, workers int, logf Logf) ([]labeled, error) {
	out := make([]labeled, len(frames))
	if len(frames) == 0 {
		return out, nil
	}
	if workers < 1 {
		workers = DefaultWorkers
	}
	if workers > len(frames) {
		workers = len(frames)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				out[i] = u.labelOne(ctx, filepath.Join(dir, frames[i]), logf)
			}
		}()
	}

dispatch:
	for i := range frames {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (u Usecase) labelOne(ctx context.Context, path string, logf Logf) labeled {
	img, err := os.ReadFile(path)
	if err != nil {
		logf("WARN read %s: %v", filepath.Base(path), err)
		u.d.Metrics.ObserveLabel("", 0, err)
		return labeled{}
	}
	began := time.Now()
	label, explanation, err := u.d.Labeler.Label(ctx, img, mimeType(path))
	u.d.Metrics.ObserveLabel(label, time.Since(began), err)
	if err != nil {
		logf("WARN label %s: %v", filepath.Base(path), err)
		return labeled{}
	}
	return labeled{label: label, explanation: explanation}
}

var frameExts = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

func mimeType(path string) string {
	if m, ok := frameExts[strings.ToLower(filepath.Ext(path))]; ok {
		return m
	}
	return "image/jpeg"
}

// ListFrames returns the image file names in dir, sorted lexicographically.
func ListFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := frameExts[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
