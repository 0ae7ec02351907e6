package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

type Adapter struct {
	ffmpeg  string
	ffprobe string
}

func New(ffmpegPath, ffprobePath string) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath}
}

// ExtractFrame writes the frame shown at offset at as a single image. Input
// seeking keeps this fast on long recordings.
func (a *Adapter) ExtractFrame(ctx context.Context, inMP4 string, at time.Duration, outImage string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg, frameArgs(inMP4, at, outImage)...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg extract frame at %s: %w\n%s", fmtSeconds(at), err, string(b))
	}
	return nil
}

func (a *Adapter) Trim(ctx context.Context, inMP4 string, start time.Duration, outMP4 string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg, trimArgs(inMP4, start, outMP4)...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg trim: %w\n%s", err, string(b))
	}
	return nil
}

func (a *Adapter) BurnSubtitles(ctx context.Context, inMP4, srtPath, outMP4 string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg, burnArgs(inMP4, srtPath, outMP4)...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg burn subtitles: %w\n%s", err, string(b))
	}
	return nil
}

func (a *Adapter) ProbeDuration(ctx context.Context, inMP4 string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inMP4,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w\n%s", err, string(b))
	}
	s := strings.TrimSpace(string(b))
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return time.Duration(sec * float64(time.Second)), nil
}

func frameArgs(inMP4 string, at time.Duration, outImage string) []string {
	return []string{
		"-y",
		"-ss", fmtSeconds(at),
		"-i", inMP4,
		"-frames:v", "1",
		"-q:v", "2",
		outImage,
	}
}

func trimArgs(inMP4 string, start time.Duration, outMP4 string) []string {
	return []string{
		"-y",
		"-ss", fmtSeconds(start),
		"-i", inMP4,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "18",
		"-c:a", "aac",
		"-b:a", "192k",
		outMP4,
	}
}

func burnArgs(inMP4, srtPath, outMP4 string) []string {
	return []string{
		"-y",
		"-i", inMP4,
		"-vf", "subtitles=" + escapeFilterPath(srtPath),
		"-c:a", "copy",
		outMP4,
	}
}

func fmtSeconds(d time.Duration) string {
	sec := float64(d) / float64(time.Second)
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

func escapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "\\\\")
	p = strings.ReplaceAll(p, ":", "\\:")
	p = strings.ReplaceAll(p, "'", "\\'")
	return p
}
