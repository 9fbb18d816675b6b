package commands

import (
	"github.com/spf13/cobra"

	"github.com/treit/faultline/internal/app"
	"github.com/treit/faultline/internal/output"
	"github.com/treit/faultline/internal/store"
)

// NewDoctorCmd checks configuration and backup queue connectivity.
func NewDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and backup queue connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, dbSource, err := app.ResolveDBPathDetailed()
			if err != nil {
				return cmdErr(err)
			}

			var (
				dbOK     bool
				dbErr    string
				queryOK  bool
				queryErr string
			)

			db, err := store.InitDBWithPath(dbPath)
			if err != nil {
				dbOK = false
				dbErr = err.Error()
			} else {
				dbOK = true
				defer func() { _ = db.Close() }()
			}

			var schemaCurrent, schemaLatest int64
			if dbOK {
				var one int
				if err := db.QueryRow("SELECT 1").Scan(&one); err != nil {
					queryOK = false
					queryErr = err.Error()
				} else {
					queryOK = true
				}
				schemaCurrent, schemaLatest, _ = store.SchemaVersion(db)
			} else {
				queryOK = false
				queryErr = "db not available"
			}

			sinks, env, _, sinkErr := sinksFromConfig()

			type resp struct {
				DBPath        string `json:"db_path"`
				DBSource      string `json:"db_source"`
				DBOK          bool   `json:"db_ok"`
				DBErr         string `json:"db_error,omitempty"`
				QueryOK       bool   `json:"query_ok"`
				QueryErr      string `json:"query_error,omitempty"`
				SchemaCurrent int64  `json:"schema_current"`
				SchemaLatest  int64  `json:"schema_latest"`
				Environment   string `json:"environment,omitempty"`
				Sinks         int    `json:"sinks"`
				SinkErr       string `json:"sink_error,omitempty"`
				Hint          string `json:"hint,omitempty"`
			}
			hint := ""
			if !dbOK {
				hint = "If this is running in a sandboxed environment, set db_path to a writable location or use --db-path."
			}
			out := resp{
				DBPath:        dbPath,
				DBSource:      dbSource,
				DBOK:          dbOK,
				DBErr:         dbErr,
				QueryOK:       queryOK,
				QueryErr:      queryErr,
				SchemaCurrent: schemaCurrent,
				SchemaLatest:  schemaLatest,
				Environment:   env,
				Sinks:         len(sinks),
				Hint:          hint,
			}
			if sinkErr != nil {
				out.SinkErr = sinkErr.Error()
			}
			return output.PrintSuccess(out)
		},
	}

	return cmd
}
