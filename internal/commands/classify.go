package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/treit/faultline/internal/fault"
	"github.com/treit/faultline/internal/output"
)

// NewClassifyCmd classifies a failure descriptor from flags and prints the
// resulting fault envelope. Useful for checking what the taxonomy makes of a
// given status or backend error without wiring a handler.
func NewClassifyCmd() *cobra.Command {
	var (
		httpStatus  int
		backendCode string
		message     string
		component   string
		action      string
	)

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify an HTTP status or backend error into a fault",
		RunE: func(cmd *cobra.Command, args []string) error {
			if httpStatus == 0 && backendCode == "" && message == "" {
				return fmt.Errorf("one of --http-status, --backend-code or --message is required")
			}

			fctx := fault.Context{Component: component, Action: action}

			var f *fault.Fault
			if httpStatus != 0 {
				f = fault.FromHTTPStatus(httpStatus, fctx)
			} else {
				f = fault.FromBackendError(backendCode, message, fctx)
			}

			type resp struct {
				Code        string `json:"code"`
				Category    string `json:"category"`
				Severity    string `json:"severity"`
				Retryable   bool   `json:"retryable"`
				Recoverable bool   `json:"recoverable"`
				Message     string `json:"message"`
				UserMessage string `json:"user_message"`
			}
			return output.PrintSuccess(resp{
				Code:        string(f.Code),
				Category:    string(f.Category),
				Severity:    f.SeverityString(),
				Retryable:   f.Retryable,
				Recoverable: f.Recoverable,
				Message:     f.Message,
				UserMessage: f.UserMessage,
			})
		},
	}

	cmd.Flags().IntVar(&httpStatus, "http-status", 0, "HTTP status code to classify")
	cmd.Flags().StringVar(&backendCode, "backend-code", "", "Backend error code (e.g. PGRST116, 23505)")
	cmd.Flags().StringVar(&message, "message", "", "Backend error message for phrase matching")
	cmd.Flags().StringVar(&component, "component", "", "Component for the fault context")
	cmd.Flags().StringVar(&action, "action", "", "Action for the fault context")

	return cmd
}
