package cli

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/spf13/cobra"
)

type connectionOutput struct {
	Success    bool   `json:"success"`
	OrderCount int    `json:"orderCount,omitempty"`
	Error      string `json:"error,omitempty"`
}

// errConnectionFailed makes the process exit non-zero after the check result has been printed.
var errConnectionFailed = errors.New("upstream connection check failed")

func newCheckConnectionCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check-connection",
		Short: "Check the commerce API credentials and print the order total",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, s, err := opts.open(cmd.Context(), "check-connection")
			if err != nil {
				return err
			}
			defer s.close()

			status := s.container.Services.Connection.Check(ctx)
			out := connectionOutput{Success: status.Success, OrderCount: status.OrderCount}
			if status.Err != nil {
				out.Error = status.Err.Error()
			}
			if err := writeJSON(opts.out, out); err != nil {
				return err
			}
			if !status.Success {
				return errConnectionFailed
			}
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
