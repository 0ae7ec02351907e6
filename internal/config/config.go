package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the optional tapalign.yml file. Command-line flags override
// any value set here.
type Config struct {
	Players  PlayersConfig  `yaml:"players"`
	Sampling SamplingConfig `yaml:"sampling"`
	Start    StartConfig    `yaml:"start"`
	Tools    ToolsConfig    `yaml:"tools"`
	Labeler  LabelerConfig  `yaml:"labeler"`
	Output   OutputConfig   `yaml:"output"`
}

type PlayersConfig struct {
	Left  string `yaml:"left"`
	Right string `yaml:"right"`
}

type SamplingConfig struct {
	Mode string `yaml:"mode"` // midpoint | quartiles
}

type StartConfig struct {
	Phrases []string      `yaml:"phrases"`
	Step    time.Duration `yaml:"step"` // e.g. 500ms
	// At skips detection when set (seconds into the source video).
	At *float64 `yaml:"at"`
}

type ToolsConfig struct {
	FFmpeg    string `yaml:"ffmpeg"`
	FFprobe   string `yaml:"ffprobe"`
	Tesseract string `yaml:"tesseract"`
	OCRLang   string `yaml:"ocr_lang"`
}

type LabelerConfig struct {
	Model   string `yaml:"model"` // empty: OPENROUTER_MODEL or the adapter default
	Workers int    `yaml:"workers"`
}

type OutputConfig struct {
	Dir      string `yaml:"dir"`
	Database bool   `yaml:"database"` // mirror the table into SQLite
	Metrics  bool   `yaml:"metrics"`  // write metrics.prom
}

func Default() Config {
	return Config{
		Players:  PlayersConfig{Left: "player1", Right: "player2"},
		Sampling: SamplingConfig{Mode: "midpoint"},
		Start: StartConfig{
			Phrases: []string{"welcome"},
			Step:    500 * time.Millisecond,
		},
		Tools: ToolsConfig{
			FFmpeg:    "ffmpeg",
			FFprobe:   "ffprobe",
			Tesseract: "tesseract",
			OCRLang:   "eng",
		},
		Labeler: LabelerConfig{Workers: 4},
		Output:  OutputConfig{Dir: "./out", Database: true, Metrics: true},
	}
}

// Load reads path over the defaults. Keys absent from the file keep their
// default value.
func Load(path string) (Config, error) {
	c := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Players.Left) == "" || strings.TrimSpace(c.Players.Right) == "" {
		return errors.New("players.left and players.right must not be empty")
	}
	if c.Start.Step <= 0 {
		return errors.New("start.step must be positive")
	}
	if c.Start.At != nil && *c.Start.At < 0 {
		return errors.New("start.at must be >= 0")
	}
	if c.Labeler.Workers < 1 {
		return errors.New("labeler.workers must be >= 1")
	}
	return nil
}
