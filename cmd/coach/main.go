package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"yogaflow/coach/internal/capability"
	"yogaflow/coach/internal/config"
	"yogaflow/coach/internal/intent"
	"yogaflow/coach/internal/logging"
)

var (
	version = "dev"

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A78BFA"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#78716C"))
)

func main() {
	// Load .env file if present (ignored if missing)
	_ = godotenv.Load()

	var cfgPath string

	rootCmd := &cobra.Command{
		Use:   "coach",
		Short: "Guided yoga practice with voice coaching",
		Long: titleStyle.Render("Yoga Flow Coach") + `

Plays a timed pose sequence, narrates cues, and takes typed or spoken
commands like "next", "slow down" or "how long is left".

` + dimStyle.Render("Use 'coach [command] --help' for more information."),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (yaml, toml or json)")

	var flowPath, logPath string
	playCmd := &cobra.Command{
		Use:   "play",
		Short: "Start a practice session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadFile(cfgPath)
			if flowPath != "" {
				cfg.Playback.FlowFile = flowPath
			}
			return runPlay(cmd.Context(), cfg, logPath)
		},
	}
	playCmd.Flags().StringVar(&flowPath, "flow", "", "flow file (yaml or json); the built-in sampler when empty")
	playCmd.Flags().StringVar(&logPath, "log-file", "coach.log", "where logs go while the practice screen is up")

	intentCmd := &cobra.Command{
		Use:   "intent [text]",
		Short: "Show how a command would be understood",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := args[0]
			for _, a := range args[1:] {
				text += " " + a
			}
			in := intent.Parse(text)
			out := map[string]any{"kind": in.Kind}
			if in.Kind == intent.SetRate {
				out["direction"] = int(in.Direction)
			}
			if in.Query != "" {
				out["query"] = in.Query
			}
			if in.Text != "" {
				out["text"] = in.Text
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			return enc.Encode(out)
		},
	}

	var asJSON bool
	doctorCmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check which voice features are available",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadFile(cfgPath)
			logging.Init(cfg.Log.Level, cfg.Log.Pretty, os.Stderr)

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			report := capability.CheckAll(ctx, cfg)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			fmt.Fprint(cmd.OutOrStdout(), report.String())
			return nil
		},
	}
	doctorCmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")

	rootCmd.AddCommand(playCmd, intentCmd, doctorCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
