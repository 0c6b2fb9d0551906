package cli

import (
	"github.com/spf13/cobra"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, s, err := opts.open(cmd.Context(), "api")
			if err != nil {
				return err
			}
			defer s.close()

			authn, err := s.container.Authenticator(ctx)
			if err != nil {
				return err
			}
			return s.container.Serve(ctx, s.container.Handler(authn))
		},
	}
}
