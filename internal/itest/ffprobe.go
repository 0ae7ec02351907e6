//go:build integration

package itest

import (
	"os/exec"
	"strconv"
	"strings"
	"testing"
)

func probeDurationSeconds(t *testing.T, mp4Path string) float64 {
	t.Helper()
	b, err := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		mp4Path,
	).CombinedOutput()
	if err != nil {
		t.Fatalf("ffprobe %s: %v\n%s", mp4Path, err, b)
	}
	sec, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
	if err != nil {
		t.Fatalf("parse duration %q: %v", b, err)
	}
	return sec
}

// makeGameVideo renders a test pattern with an optional on-screen marker
// shown from markerAt seconds on.
func makeGameVideo(t *testing.T, out string, seconds int, marker string, markerAt float64) {
	t.Helper()
	vf := "format=yuv420p"
	if marker != "" {
		vf = "drawtext=text='" + marker + "':fontsize=96:fontcolor=white:box=1:boxcolor=black" +
			":x=(w-text_w)/2:y=(h-text_h)/2:enable='gte(t," + strconv.FormatFloat(markerAt, 'f', -1, 64) + ")'," + vf
	}
	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", "testsrc2=s=1280x720:r=25:d="+strconv.Itoa(seconds),
		"-vf", vf,
		"-c:v", "libx264",
		out,
	)
	if b, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("ffmpeg fixture failed: %v\n%s", err, b)
	}
}
