package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/treit/faultline/internal/app"
	"github.com/treit/faultline/internal/output"
	"github.com/treit/faultline/internal/report"
	"github.com/treit/faultline/internal/store"
)

// NewBackupCmd groups the backup queue operations.
func NewBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Inspect and resync the offline report backup queue",
	}

	cmd.AddCommand(newBackupListCmd())
	cmd.AddCommand(newBackupSyncCmd())
	cmd.AddCommand(newBackupCleanupCmd())

	return cmd
}

func newBackupListCmd() *cobra.Command {
	var (
		unsentOnly bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued report records",
		RunE: func(cmd *cobra.Command, args []string) error {
			var records []store.ReportRecord
			if err := withDB(func(db *DB) error {
				var err error
				if unsentOnly {
					records, err = store.UnsentReports(db, limit)
				} else {
					records, err = store.ListReports(db, limit)
				}
				return err
			}); err != nil {
				return err
			}

			type row struct {
				ID        string `json:"id"`
				CreatedAt string `json:"created_at"`
				Code      string `json:"code"`
				Severity  string `json:"severity"`
				Sent      bool   `json:"sent"`
			}
			rows := make([]row, 0, len(records))
			for _, r := range records {
				rows = append(rows, row{
					ID:        r.ID,
					CreatedAt: r.CreatedAt.Format(time.RFC3339),
					Code:      r.Code,
					Severity:  r.Severity,
					Sent:      r.Sent,
				})
			}

			type resp struct {
				Count   int   `json:"count"`
				Records []row `json:"records"`
			}
			return output.PrintSuccess(resp{Count: len(rows), Records: rows})
		},
	}

	cmd.Flags().BoolVar(&unsentOnly, "unsent", false, "Show only records not yet delivered")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum records to return (0 = all)")

	return cmd
}

func newBackupSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Re-send unsent records to the configured sinks",
		RunE: func(cmd *cobra.Command, args []string) error {
			sinks, env, version, err := sinksFromConfig()
			if err != nil {
				return cmdErr(err)
			}

			var synced, pending int
			if err := withDB(func(db *DB) error {
				d := report.NewDispatcher(report.Config{
					DB:          db,
					Sinks:       sinks,
					Environment: env,
					Version:     version,
				})
				synced, err = d.SyncBackup(cmd.Context())
				if err != nil {
					return err
				}
				unsent, err := store.UnsentReports(db, 0)
				if err != nil {
					return err
				}
				pending = len(unsent)
				return nil
			}); err != nil {
				return err
			}

			type resp struct {
				Synced  int `json:"synced"`
				Pending int `json:"pending"`
				Sinks   int `json:"sinks"`
			}
			return output.PrintSuccess(resp{Synced: synced, Pending: pending, Sinks: len(sinks)})
		},
	}

	return cmd
}

func newBackupCleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Purge already-delivered records from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			var purged int
			if err := withDB(func(db *DB) error {
				n, err := store.PurgeSentReports(db)
				purged = int(n)
				return err
			}); err != nil {
				return err
			}

			type resp struct {
				Purged int `json:"purged"`
			}
			return output.PrintSuccess(resp{Purged: purged})
		},
	}

	return cmd
}

// sinksFromConfig builds the sink set from config.yaml. An empty set is valid;
// sync then has nothing to deliver to and records stay queued.
func sinksFromConfig() ([]report.Sink, string, string, error) {
	cfg, err := app.LoadSettings()
	if err != nil {
		return nil, "", "", err
	}

	var sinks []report.Sink
	if cfg.ReportEndpoint != "" {
		sinks = append(sinks, report.NewHTTPSink(cfg.ReportEndpoint, cfg.ReportAPIKey))
	}
	if cfg.TelemetryURL != "" {
		sinks = append(sinks, report.NewTelemetrySink(cfg.TelemetryURL))
	}
	return sinks, cfg.Environment, "cli", nil
}
