package commands

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/treit/faultline/internal/app"
	"github.com/treit/faultline/internal/output"
)

// Execute runs the CLI application.
func Execute(version string) error {
	slog.SetDefault(slog.New(newLogHandler()))

	root := &cobra.Command{
		Use:           "faultline",
		Short:         "Fault pipeline tooling (classify, backup queue, stats)",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			showVersion, _ := cmd.Flags().GetBool("version")
			if showVersion {
				type resp struct {
					Version string `json:"version"`
				}
				return output.PrintSuccess(resp{Version: version})
			}
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := app.EnsureConfigDir(); err != nil {
				return err
			}

			// Wire --db-path into app-level resolver.
			if dbPath, err := cmd.Flags().GetString("db-path"); err == nil && dbPath != "" {
				app.SetDBPathOverride(dbPath)
			}

			// --pretty routes through the same env var the output package reads.
			if pretty, err := cmd.Flags().GetBool("pretty"); err == nil && pretty {
				_ = os.Setenv("FAULTLINE_PRETTY_JSON", "1")
			}

			return nil
		},
	}

	root.PersistentFlags().String("db-path", "", "Override backup queue database path")
	root.PersistentFlags().Bool("pretty", false, "Pretty-print JSON output")
	root.Flags().BoolP("version", "v", false, "version for faultline")

	root.AddCommand(NewClassifyCmd())
	root.AddCommand(NewBackupCmd())
	root.AddCommand(NewStatsCmd())
	root.AddCommand(NewDoctorCmd())
	root.AddCommand(newVersionCmd(version))

	err := root.Execute()
	if err != nil {
		var pe printedError
		if !errors.As(err, &pe) {
			slog.Error("command failed", "error", err.Error())
		}
	}
	return err
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the faultline version",
		RunE: func(cmd *cobra.Command, args []string) error {
			type resp struct {
				Version string `json:"version"`
			}
			return output.PrintSuccess(resp{Version: version})
		},
	}
}

// newLogHandler picks tint for interactive terminals and JSON otherwise, at
// the level configured in config.yaml (default info).
func newLogHandler() slog.Handler {
	level := slog.LevelInfo
	if cfg, err := app.LoadSettings(); err == nil {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	if isatty.IsTerminal(os.Stderr.Fd()) {
		return tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.RFC3339,
		})
	}
	return slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
}
