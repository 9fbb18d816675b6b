package commands

import (
	"github.com/spf13/cobra"

	"github.com/treit/faultline/internal/output"
	"github.com/treit/faultline/internal/store"
)

// NewStatsCmd reports backup queue counters and schema state.
func NewStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show backup queue counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			var total, sent, current, latest int64
			if err := withDB(func(db *DB) error {
				var err error
				total, sent, err = store.ReportCounts(db)
				if err != nil {
					return err
				}
				current, latest, err = store.SchemaVersion(db)
				return err
			}); err != nil {
				return err
			}

			type resp struct {
				Total         int64 `json:"total"`
				Sent          int64 `json:"sent"`
				Pending       int64 `json:"pending"`
				SchemaCurrent int64 `json:"schema_current"`
				SchemaLatest  int64 `json:"schema_latest"`
			}
			return output.PrintSuccess(resp{
				Total:         total,
				Sent:          sent,
				Pending:       total - sent,
				SchemaCurrent: current,
				SchemaLatest:  latest,
			})
		},
	}

	return cmd
}
