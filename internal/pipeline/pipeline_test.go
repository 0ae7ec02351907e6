package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/tapalign/internal/types"
)

func TestBuildRunOutDir(t *testing.T) {
	now := time.Date(2026, 2, 12, 10, 30, 45, 1234, time.UTC)
	got := buildRunOutDir("out", "/tmp/Game Session.01.mp4", now)
	base := filepath.Base(got)
	if filepath.Dir(got) != "out" {
		t.Fatalf("unexpected parent dir: %s", got)
	}
	if !strings.HasPrefix(base, "game-session-01-20260212-103045Z-") {
		t.Fatalf("unexpected run dir format: %s", base)
	}
	if len(base) != len("game-session-01-20260212-103045Z-")+6 {
		t.Fatalf("unexpected run dir suffix length: %s", base)
	}
}

func TestBuildRunOutDir_EmptyName(t *testing.T) {
	got := filepath.Base(buildRunOutDir("out", "/tmp/___.mp4", time.Unix(0, 0)))
	if !strings.HasPrefix(got, "input-19700101-000000Z-") {
		t.Fatalf("expected fallback name, got %s", got)
	}
}

func TestNormalizePathSegment(t *testing.T) {
	tests := map[string]string{
		"  My Cool.Video  ": "my-cool-video",
		"___":               "",
		"abc123":            "abc123",
		"Name (v2)!":        "name-v2",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			if got := normalizePathSegment(in); got != want {
				t.Fatalf("normalizePathSegment(%q) = %q, want %q", in, got, want)
			}
		})
	}
}

func touch(t *testing.T, path string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func validConfig(t *testing.T) Config {
	t.Helper()
	tmp := t.TempDir()
	return Config{
		InputMP4:    touch(t, filepath.Join(tmp, "game.mp4")),
		EventLog:    touch(t, filepath.Join(tmp, "logsByGame.csv")),
		LeftPlayer:  "player1",
		RightPlayer: "player2",
		SampleMode:  "midpoint",
		Workers:     4,
		OpenRouter:  OpenRouterConfig{APIKey: "k"},
	}
}

func TestConfigValidate(t *testing.T) {
	neg := -time.Second
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "ok", mutate: func(*Config) {}},
		{name: "missing input", mutate: func(c *Config) { c.InputMP4 = "" }, want: "input is empty"},
		{name: "input not found", mutate: func(c *Config) { c.InputMP4 += ".nope" }, want: "stat input"},
		{name: "missing log", mutate: func(c *Config) { c.EventLog = "" }, want: "event log is empty"},
		{name: "blank player", mutate: func(c *Config) { c.RightPlayer = " " }, want: "player names"},
		{name: "bad mode", mutate: func(c *Config) { c.SampleMode = "thirds" }, want: "unknown sample mode"},
		{name: "negative workers", mutate: func(c *Config) { c.Workers = -1 }, want: "workers"},
		{name: "negative start", mutate: func(c *Config) { c.StartAt = &neg }, want: "start must be"},
		{name: "no api key", mutate: func(c *Config) { c.OpenRouter.APIKey = "" }, want: "OPENROUTER_API_KEY"},
		{name: "http base url", mutate: func(c *Config) { c.OpenRouter.BaseURL = "http://openrouter.ai" }, want: "http is only allowed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validConfig(t)
			tc.mutate(&c)
			err := c.Validate()
			if tc.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestAnnotateConfigValidate_FramesDirMustBeDir(t *testing.T) {
	tmp := t.TempDir()
	c := AnnotateConfig{
		FramesDir:  touch(t, filepath.Join(tmp, "frames")),
		EventLog:   touch(t, filepath.Join(tmp, "log.csv")),
		Table:      filepath.Join(tmp, "out.csv"),
		OpenRouter: OpenRouterConfig{APIKey: "k"},
	}
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "not a directory") {
		t.Fatalf("expected not-a-directory error, got %v", err)
	}
}

func TestSubtitlesConfigValidate_VideoOnlyForBurn(t *testing.T) {
	tmp := t.TempDir()
	c := SubtitlesConfig{
		Table:       touch(t, filepath.Join(tmp, "annotations.csv")),
		SRT:         filepath.Join(tmp, "out.srt"),
		LeftPlayer:  "a",
		RightPlayer: "b",
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("srt-only config should validate: %v", err)
	}
	c.Output = filepath.Join(tmp, "out.mp4")
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "video is required") {
		t.Fatalf("expected video requirement, got %v", err)
	}
}

func TestRunSubtitles_SRTOnly(t *testing.T) {
	tmp := t.TempDir()
	table := filepath.Join(tmp, "annotations.csv")
	body := "identifier,timestamp_seconds,explanation,label,start_time,end_time,action\n" +
		"frame_at_00002.000s.jpg,2,,left,1,3,move block\n"
	if err := os.WriteFile(table, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	srt := filepath.Join(tmp, "subs.srt")
	err := RunSubtitles(context.Background(), SubtitlesConfig{
		Table:       table,
		SRT:         srt,
		LeftPlayer:  "Ann",
		RightPlayer: "Ben",
	})
	if err != nil {
		t.Fatalf("run subtitles: %v", err)
	}
	b, err := os.ReadFile(srt)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "1\n00:00:01,000 --> 00:00:03,000\nAnn's Turn\n\n" {
		t.Fatalf("unexpected srt: %q", b)
	}
}

func TestWriteManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), manifestName)
	in := types.Manifest{RunID: "r1", Frames: 3, Cues: 2, Table: "annotations.csv"}
	if err := writeManifest(path, in); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got types.Manifest
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != in {
		t.Fatalf("manifest mismatch: %+v", got)
	}
	if strings.Contains(string(b), `"database"`) {
		t.Fatalf("empty database should be omitted: %s", b)
	}
}
