package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/forPelevin/tapalign/internal/types"
)

// fakeVideoTool writes each extracted frame with its offset as content so
// fakes downstream can tell frames apart.
type fakeVideoTool struct {
	duration time.Duration

	mu        sync.Mutex
	probes    int
	trims     []time.Duration
	extracted []string
	burned    []string
}

func (f *fakeVideoTool) ProbeDuration(context.Context, string) (time.Duration, error) {
	f.mu.Lock()
	f.probes++
	f.mu.Unlock()
	return f.duration, nil
}

func (f *fakeVideoTool) ExtractFrame(_ context.Context, _ string, at time.Duration, outImage string) error {
	f.mu.Lock()
	f.extracted = append(f.extracted, filepath.Base(outImage))
	f.mu.Unlock()
	return os.WriteFile(outImage, []byte(at.String()), 0o644)
}

func (f *fakeVideoTool) Trim(_ context.Context, _ string, start time.Duration, outMP4 string) error {
	f.mu.Lock()
	f.trims = append(f.trims, start)
	f.mu.Unlock()
	return os.WriteFile(outMP4, nil, 0o644)
}

func (f *fakeVideoTool) BurnSubtitles(_ context.Context, inMP4, srtPath, outMP4 string) error {
	if _, err := os.Stat(srtPath); err != nil {
		return err
	}
	f.mu.Lock()
	f.burned = append(f.burned, filepath.Base(inMP4))
	f.mu.Unlock()
	return os.WriteFile(outMP4, nil, 0o644)
}

// fakeOCR sees the marker from the given offset onwards.
type fakeOCR struct {
	from time.Duration
	text string
}

func (f fakeOCR) Text(_ context.Context, imagePath string) (string, error) {
	b, err := os.ReadFile(imagePath)
	if err != nil {
		return "", err
	}
	at, err := time.ParseDuration(string(b))
	if err != nil {
		return "", err
	}
	if at >= f.from {
		return f.text, nil
	}
	return "loading", nil
}

type fakeAnswer struct {
	label types.Label
	delay time.Duration
	err   error
}

// fakeLabeler answers by image content.
type fakeLabeler struct {
	answers map[string]fakeAnswer

	mu    sync.Mutex
	mimes []string
}

func (f *fakeLabeler) Label(ctx context.Context, image []byte, mime string) (types.Label, string, error) {
	f.mu.Lock()
	f.mimes = append(f.mimes, mime)
	f.mu.Unlock()

	a, ok := f.answers[string(image)]
	if !ok {
		return "", "", fmt.Errorf("unexpected image %q", image)
	}
	select {
	case <-ctx.Done():
		return "", "", ctx.Err()
	case <-time.After(a.delay):
	}
	if a.err != nil {
		return "", "", a.err
	}
	return a.label, "saw " + string(a.label), nil
}

type fakeStore struct {
	runID string
	rows  []types.AnnotationRow
	calls int
}

func (f *fakeStore) SaveRows(_ context.Context, runID string, rows []types.AnnotationRow) error {
	f.calls++
	f.runID = runID
	f.rows = append([]types.AnnotationRow(nil), rows...)
	return nil
}

var errLabeler = errors.New("model unavailable")

type logRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (l *logRecorder) logf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *logRecorder) has(prefix string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.lines {
		if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
