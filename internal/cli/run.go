package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/tapalign/internal/config"
	"github.com/forPelevin/tapalign/internal/pipeline"
	"github.com/forPelevin/tapalign/internal/ports/adapters/openrouter"
)

const runTimeout = 3 * time.Hour

func run(cmd *cobra.Command, input string) error {
	c, err := settings(cmd)
	if err != nil {
		return err
	}

	absIn, err := filepath.Abs(input)
	if err != nil {
		return err
	}
	logPath, _ := cmd.Flags().GetString("log")

	cfg := pipeline.Config{
		InputMP4: absIn,
		EventLog: logPath,
		OutDir:   c.Output.Dir,
		Logf:     newLogf(cmd.ErrOrStderr(), quiet(cmd)),

		LeftPlayer:  c.Players.Left,
		RightPlayer: c.Players.Right,
		SampleMode:  c.Sampling.Mode,
		Workers:     c.Labeler.Workers,

		StartPhrases: c.Start.Phrases,
		StartStep:    c.Start.Step,

		Database: c.Output.Database,
		Metrics:  c.Output.Metrics,

		FFmpegPath:    c.Tools.FFmpeg,
		FFprobePath:   c.Tools.FFprobe,
		TesseractPath: c.Tools.Tesseract,
		OCRLang:       c.Tools.OCRLang,

		OpenRouter: openRouterFromEnv(c.Labeler.Model),
	}
	if c.Start.At != nil {
		at := time.Duration(*c.Start.At * float64(time.Second))
		cfg.StartAt = &at
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	ctx, cancel := runContext()
	defer cancel()
	return pipeline.Run(ctx, cfg)
}

func runAnnotate(cmd *cobra.Command, framesDir string) error {
	c, err := fileConfig(cmd)
	if err != nil {
		return err
	}
	logPath, _ := cmd.Flags().GetString("log")
	table, _ := cmd.Flags().GetString("table")
	db, _ := cmd.Flags().GetString("db")
	workers := c.Labeler.Workers
	if cmd.Flags().Changed("workers") {
		workers, _ = cmd.Flags().GetInt("workers")
	}

	cfg := pipeline.AnnotateConfig{
		FramesDir:  framesDir,
		EventLog:   logPath,
		Table:      table,
		Workers:    workers,
		Database:   db,
		Logf:       newLogf(cmd.ErrOrStderr(), quiet(cmd)),
		OpenRouter: openRouterFromEnv(c.Labeler.Model),
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	ctx, cancel := runContext()
	defer cancel()
	return pipeline.RunAnnotate(ctx, cfg)
}

func runSubtitles(cmd *cobra.Command, table string) error {
	c, err := fileConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyPlayers(cmd, &c); err != nil {
		return err
	}
	video, _ := cmd.Flags().GetString("video")
	srt, _ := cmd.Flags().GetString("srt")
	output, _ := cmd.Flags().GetString("output")

	cfg := pipeline.SubtitlesConfig{
		Table:       table,
		Video:       video,
		SRT:         srt,
		Output:      output,
		LeftPlayer:  c.Players.Left,
		RightPlayer: c.Players.Right,
		Logf:        newLogf(cmd.ErrOrStderr(), quiet(cmd)),
		FFmpegPath:  c.Tools.FFmpeg,
		FFprobePath: c.Tools.FFprobe,
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	ctx, cancel := runContext()
	defer cancel()
	return pipeline.RunSubtitles(ctx, cfg)
}

// fileConfig returns the --config file, or the defaults when none is given.
func fileConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.Default(), nil
	}
	c, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

// settings layers the root command's explicitly set flags over the file.
func settings(cmd *cobra.Command) (config.Config, error) {
	c, err := fileConfig(cmd)
	if err != nil {
		return config.Config{}, err
	}
	if err := applyPlayers(cmd, &c); err != nil {
		return config.Config{}, err
	}
	f := cmd.Flags()
	if f.Changed("out") {
		c.Output.Dir, _ = f.GetString("out")
	}
	if f.Changed("sample") {
		c.Sampling.Mode, _ = f.GetString("sample")
	}
	if f.Changed("workers") {
		c.Labeler.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("start") {
		sec, _ := f.GetFloat64("start")
		c.Start.At = nil
		if sec >= 0 {
			c.Start.At = &sec
		}
	}
	if f.Changed("start-phrase") {
		c.Start.Phrases, _ = f.GetStringSlice("start-phrase")
	}
	if f.Changed("start-step") {
		c.Start.Step, _ = f.GetDuration("start-step")
	}
	if f.Changed("db") {
		c.Output.Database, _ = f.GetBool("db")
	}
	if f.Changed("metrics") {
		c.Output.Metrics, _ = f.GetBool("metrics")
	}
	return c, nil
}

func applyPlayers(cmd *cobra.Command, c *config.Config) error {
	if !cmd.Flags().Changed("players") {
		return nil
	}
	names, _ := cmd.Flags().GetStringSlice("players")
	if len(names) != 2 {
		return errors.New("--players needs exactly two names: LEFT,RIGHT")
	}
	c.Players.Left, c.Players.Right = names[0], names[1]
	return nil
}

func openRouterFromEnv(fileModel string) pipeline.OpenRouterConfig {
	model := fileModel
	if v := os.Getenv("OPENROUTER_MODEL"); v != "" {
		model = v
	}
	return pipeline.OpenRouterConfig{
		APIKey:       os.Getenv("OPENROUTER_API_KEY"),
		Model:        model,
		BaseURL:      getenvDefault("OPENROUTER_BASE_URL", "https://openrouter.ai"),
		AllowedHosts: openrouter.SplitHosts(os.Getenv("OPENROUTER_ALLOWED_HOSTS")),
	}
}

func quiet(cmd *cobra.Command) bool {
	q, _ := cmd.Flags().GetBool("quiet")
	return q
}

// newLogf prints one line per message. Messages start with their level;
// quiet drops INFO lines.
func newLogf(w io.Writer, quiet bool) func(format string, args ...any) {
	return func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		if quiet && strings.HasPrefix(msg, "INFO ") {
			return
		}
		fmt.Fprintf(w, "%s %s\n", time.Now().Format("15:04:05"), msg)
	}
}

func runContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
