package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := newRootCmd()
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tapalign <video>",
		Short:         "Annotate a touch-table game recording with who played each event",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0])
		},
	}

	// Shared by every command
	root.PersistentFlags().String("config", "", "YAML config file (flags override its values)")
	root.PersistentFlags().Bool("quiet", false, "Only print warnings and errors")
	root.PersistentFlags().StringSlice("players", []string{"player1", "player2"}, "Left and right player names")

	root.Flags().String("log", "logsByGame.csv", "Game event log (; separated)")
	root.Flags().String("out", "out", "Output directory")
	root.Flags().String("sample", "midpoint", "Frame sampling: midpoint or quartiles")
	root.Flags().Int("workers", 4, "Concurrent labeler requests")
	root.Flags().Float64("start", -1, "Game start in seconds; negative detects it from the video")
	root.Flags().StringSlice("start-phrase", []string{"welcome"}, "Phrases that mark the game start on screen")
	root.Flags().Bool("db", true, "Mirror the annotation table into SQLite")
	root.Flags().Bool("metrics", true, "Write metrics.prom into the run directory")

	// Hidden tuning flag (internal)
	root.Flags().Duration("start-step", 500*time.Millisecond, "Start detection sampling step")
	_ = root.Flags().MarkHidden("start-step")

	root.AddCommand(newAnnotateCmd(), newSubtitlesCmd())
	return root
}

func newAnnotateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "annotate <frames-dir>",
		Short: "Label frames and match them against the event log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnnotate(cmd, args[0])
		},
	}
	cmd.Flags().String("log", "logsByGame.csv", "Game event log (; separated)")
	cmd.Flags().String("table", "logs.csv", "Output annotation table")
	cmd.Flags().Int("workers", 4, "Concurrent labeler requests")
	cmd.Flags().String("db", "", "Optional SQLite file to mirror the rows into")
	return cmd
}

func newSubtitlesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subtitles <table>",
		Short: "Render an annotation table to SRT and burn it into a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubtitles(cmd, args[0])
		},
	}
	cmd.Flags().String("video", "", "Video to burn the subtitles into")
	cmd.Flags().String("srt", "subtitles.srt", "Output SRT file")
	cmd.Flags().String("output", "", "Captioned video (empty: write the SRT only)")
	return cmd
}
