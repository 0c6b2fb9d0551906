package cli

import (
	"github.com/spf13/cobra"

	"github.com/russellmoss/guest-count-check/internal/domain"
	"github.com/russellmoss/guest-count-check/internal/guestcount"
	"github.com/russellmoss/guest-count-check/internal/services"
)

type reportOutput struct {
	Orders    []domain.Order   `json:"orders"`
	Total     int              `json:"total"`
	Fetched   int              `json:"fetched"`
	Pages     int              `json:"pages"`
	Stop      string           `json:"stop"`
	DateRange domain.DateRange `json:"dateRange"`
}

func newReportCommand(opts *rootOptions) *cobra.Command {
	var (
		from, to, associates, search string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the orders missing a guest count as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, s, err := opts.open(cmd.Context(), "report")
			if err != nil {
				return err
			}
			defer s.close()

			report, err := s.container.Services.Reports.MissingGuestCounts(ctx, services.ReportQuery{
				From:       from,
				To:         to,
				Associates: guestcount.ParseAssociates(associates),
				Search:     search,
			})
			if err != nil {
				return err
			}
			orders := report.Orders
			if orders == nil {
				orders = []domain.Order{}
			}
			return writeJSON(opts.out, reportOutput{
				Orders:    orders,
				Total:     report.Total,
				Fetched:   report.Fetched,
				Pages:     report.Pages,
				Stop:      string(report.Stop),
				DateRange: report.DateRange,
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first paid date (inclusive)")
	cmd.Flags().StringVar(&to, "to", "", "last paid date (inclusive)")
	cmd.Flags().StringVar(&associates, "associates", "", "comma-separated associate names; Unknown matches orders without one")
	cmd.Flags().StringVar(&search, "search", "", "case-insensitive order number substring")
	cmd.MarkFlagsOneRequired("from", "to")
	return cmd
}
