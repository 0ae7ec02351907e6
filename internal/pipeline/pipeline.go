package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/forPelevin/tapalign/internal/domain/eventlog"
	"github.com/forPelevin/tapalign/internal/domain/sampling"
	"github.com/forPelevin/tapalign/internal/domain/subtitles"
	"github.com/forPelevin/tapalign/internal/metrics"
	"github.com/forPelevin/tapalign/internal/ports"
	"github.com/forPelevin/tapalign/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/tapalign/internal/ports/adapters/openrouter"
	"github.com/forPelevin/tapalign/internal/ports/adapters/sqlite"
	"github.com/forPelevin/tapalign/internal/ports/adapters/tesseract"
	"github.com/forPelevin/tapalign/internal/types"
	"github.com/forPelevin/tapalign/internal/usecase"
)

const (
	manifestName = "manifest.json"
	databaseName = "annotations.sqlite3"
	metricsName  = "metrics.prom"
)

type Config struct {
	InputMP4 string
	EventLog string
	OutDir   string
	Logf     func(format string, args ...any)

	// CacheDir is the base directory for scratch files (start probes).
	// If empty, defaults to ".cache".
	CacheDir string

	LeftPlayer  string
	RightPlayer string
	SampleMode  string
	Workers     int

	StartPhrases []string
	StartStep    time.Duration
	// StartAt skips start detection when set.
	StartAt *time.Duration

	// Database mirrors the annotation table into SQLite inside the run dir.
	Database bool
	// Metrics writes metrics.prom inside the run dir.
	Metrics bool

	FFmpegPath    string
	FFprobePath   string
	TesseractPath string
	OCRLang       string

	OpenRouter OpenRouterConfig
}

type OpenRouterConfig struct {
	APIKey       string
	Model        string
	BaseURL      string
	AllowedHosts []string
}

func (c OpenRouterConfig) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return errors.New("OPENROUTER_API_KEY is required")
	}
	return openrouter.ValidateBaseURL(c.BaseURL, c.AllowedHosts)
}

func (c Config) Validate() error {
	if c.InputMP4 == "" {
		return errors.New("input is empty")
	}
	if _, err := os.Stat(c.InputMP4); err != nil {
		return fmt.Errorf("stat input: %w", err)
	}
	if err := validateEventLog(c.EventLog); err != nil {
		return err
	}
	if err := validatePlayers(c.LeftPlayer, c.RightPlayer); err != nil {
		return err
	}
	if _, err := sampling.ParseMode(c.SampleMode); err != nil {
		return err
	}
	if c.Workers < 0 {
		return errors.New("workers must be >= 0")
	}
	if c.StartAt != nil && *c.StartAt < 0 {
		return errors.New("start must be >= 0")
	}
	if c.StartStep < 0 {
		return errors.New("start step must be >= 0")
	}
	return c.OpenRouter.Validate()
}

func Run(ctx context.Context, cfg Config) error {
	logf := orNop(cfg.Logf)

	// adapters
	v := ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath)
	ocr := tesseract.New(cfg.TesseractPath, cfg.OCRLang)
	labeler := newLabeler(cfg.OpenRouter)

	runID := uuid.NewString()
	baseCache := cfg.CacheDir
	if baseCache == "" {
		baseCache = ".cache"
	}
	cacheDir := filepath.Join(baseCache, "runs", hash(cfg.InputMP4))
	logf("INFO preparing workspace")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return err
	}
	logf("INFO cache: %s", cacheDir)

	outDir := cfg.OutDir
	if outDir == "" {
		outDir = "out"
	}
	runOutDir := buildRunOutDir(outDir, cfg.InputMP4, time.Now().UTC())
	if err := os.MkdirAll(runOutDir, 0o755); err != nil {
		return err
	}
	logf("INFO run %s: %s", runID, runOutDir)

	deps := usecase.Deps{
		Video:   v,
		Labeler: labeler,
		OCR:     ocr,
	}
	if cfg.Metrics {
		deps.Metrics = metrics.NewRun()
	}
	var store *sqlite.Store
	if cfg.Database {
		var err error
		store, err = sqlite.Open(filepath.Join(runOutDir, databaseName))
		if err != nil {
			return err
		}
		defer store.Close()
		deps.Store = store
	}

	uc := usecase.New(deps)
	mode, _ := sampling.ParseMode(cfg.SampleMode)
	res, err := uc.Run(ctx, usecase.Input{
		InputMP4:     cfg.InputMP4,
		EventLog:     cfg.EventLog,
		RunID:        runID,
		OutDir:       runOutDir,
		CacheDir:     cacheDir,
		Players:      subtitles.Players{Left: cfg.LeftPlayer, Right: cfg.RightPlayer},
		SampleMode:   mode,
		Workers:      cfg.Workers,
		StartPhrases: cfg.StartPhrases,
		StartStep:    cfg.StartStep,
		StartAt:      cfg.StartAt,
		Logf:         logf,
	})
	if err != nil {
		return err
	}

	m := res.Manifest
	if store != nil {
		m.Database = databaseName
		logTierCounts(ctx, store, runID, logf)
	}
	if deps.Metrics != nil {
		if err := deps.Metrics.WriteTextfile(filepath.Join(runOutDir, metricsName)); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		m.Metrics = metricsName
	}
	manifestPath := filepath.Join(runOutDir, manifestName)
	if err := writeManifest(manifestPath, m); err != nil {
		return err
	}
	logf("INFO manifest written (%d rows, %d cues): %s", len(res.Rows), m.Cues, manifestPath)
	return nil
}

// AnnotateConfig drives the annotate stage alone over an existing frames
// directory.
type AnnotateConfig struct {
	FramesDir string
	EventLog  string
	Table     string
	Workers   int
	// Database is an optional SQLite path to mirror the rows into.
	Database string
	Logf     func(format string, args ...any)

	OpenRouter OpenRouterConfig
}

func (c AnnotateConfig) Validate() error {
	if c.FramesDir == "" {
		return errors.New("frames dir is empty")
	}
	if st, err := os.Stat(c.FramesDir); err != nil {
		return fmt.Errorf("stat frames dir: %w", err)
	} else if !st.IsDir() {
		return fmt.Errorf("frames dir %s is not a directory", c.FramesDir)
	}
	if err := validateEventLog(c.EventLog); err != nil {
		return err
	}
	if c.Table == "" {
		return errors.New("output table is empty")
	}
	if c.Workers < 0 {
		return errors.New("workers must be >= 0")
	}
	return c.OpenRouter.Validate()
}

func RunAnnotate(ctx context.Context, cfg AnnotateConfig) error {
	logf := orNop(cfg.Logf)
	lg, err := eventlog.Load(cfg.EventLog)
	if err != nil {
		return err
	}

	deps := usecase.Deps{Labeler: newLabeler(cfg.OpenRouter)}
	runID := ""
	if cfg.Database != "" {
		store, err := sqlite.Open(cfg.Database)
		if err != nil {
			return err
		}
		defer store.Close()
		deps.Store = store
		runID = uuid.NewString()
		logf("INFO run %s: rows mirrored to %s", runID, cfg.Database)
	}

	_, err = usecase.New(deps).Annotate(ctx, usecase.AnnotateInput{
		FramesDir: cfg.FramesDir,
		Log:       lg,
		TablePath: cfg.Table,
		RunID:     runID,
		Workers:   cfg.Workers,
		Logf:      logf,
	})
	if err != nil {
		return err
	}
	if store, ok := deps.Store.(*sqlite.Store); ok {
		logTierCounts(ctx, store, runID, logf)
	}
	return nil
}

// SubtitlesConfig drives the subtitle stage alone over an existing table.
type SubtitlesConfig struct {
	Table       string
	Video       string
	SRT         string
	Output      string
	LeftPlayer  string
	RightPlayer string
	Logf        func(format string, args ...any)

	FFmpegPath  string
	FFprobePath string
}

func (c SubtitlesConfig) Validate() error {
	if c.Table == "" {
		return errors.New("table is empty")
	}
	if _, err := os.Stat(c.Table); err != nil {
		return fmt.Errorf("stat table: %w", err)
	}
	if c.SRT == "" {
		return errors.New("srt output is empty")
	}
	if c.Output != "" {
		if c.Video == "" {
			return errors.New("video is required to burn subtitles")
		}
		if _, err := os.Stat(c.Video); err != nil {
			return fmt.Errorf("stat video: %w", err)
		}
	}
	return validatePlayers(c.LeftPlayer, c.RightPlayer)
}

func RunSubtitles(ctx context.Context, cfg SubtitlesConfig) error {
	uc := usecase.New(usecase.Deps{Video: ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath)})
	_, err := uc.Subtitles(ctx, usecase.SubtitlesInput{
		TablePath: cfg.Table,
		VideoMP4:  cfg.Video,
		SRTPath:   cfg.SRT,
		OutputMP4: cfg.Output,
		Players:   subtitles.Players{Left: cfg.LeftPlayer, Right: cfg.RightPlayer},
		Logf:      orNop(cfg.Logf),
	})
	return err
}

// logTierCounts reports how the run's rows were matched, read back from the
// store.
func logTierCounts(ctx context.Context, store *sqlite.Store, runID string, logf func(string, ...any)) {
	counts, err := store.TierCounts(ctx, runID)
	if err != nil {
		logf("WARN tier summary: %v", err)
		return
	}
	logf("INFO matches: contained=%d point=%d nearest=%d none=%d",
		counts[types.TierContained], counts[types.TierPoint], counts[types.TierNearest], counts[types.TierNone])
}

func newLabeler(c OpenRouterConfig) *openrouter.Adapter {
	return openrouter.New(c.APIKey, c.Model, c.BaseURL)
}

func validateEventLog(path string) error {
	if path == "" {
		return errors.New("event log is empty")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("stat event log: %w", err)
	}
	return nil
}

func validatePlayers(left, right string) error {
	if strings.TrimSpace(left) == "" || strings.TrimSpace(right) == "" {
		return errors.New("both player names are required")
	}
	return nil
}

func writeManifest(path string, m types.Manifest) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}

func orNop(logf func(string, ...any)) func(string, ...any) {
	if logf == nil {
		return func(string, ...any) {}
	}
	return logf
}

func buildRunOutDir(outRoot, inputMP4 string, now time.Time) string {
	name := strings.TrimSuffix(filepath.Base(inputMP4), filepath.Ext(inputMP4))
	name = normalizePathSegment(name)
	if name == "" {
		name = "input"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", inputMP4, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s", name, ts, suffix))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// ensure adapters implement ports
var _ ports.VideoTool = (*ffmpeg.Adapter)(nil)
var _ ports.Labeler = (*openrouter.Adapter)(nil)
var _ ports.OCR = (*tesseract.Adapter)(nil)
var _ ports.AnnotationStore = (*sqlite.Store)(nil)
