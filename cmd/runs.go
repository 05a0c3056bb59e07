package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/keilos1/harvestplan/app"
	"github.com/keilos1/harvestplan/core/planlog"
	"github.com/keilos1/harvestplan/core/report"
)

func newRunsCmd(c *cli) *cobra.Command {
	var (
		since  time.Duration
		status string
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded solves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := planlog.Query{Limit: limit}
			if since > 0 {
				q.Start = time.Now().Add(-since)
			}
			if status != "" {
				st, err := planlog.ParseStatus(status)
				if err != nil {
					return err
				}
				q.Status = &st
			}
			return c.withService(func(svc *app.Service) error {
				recs, err := svc.Runs(cmd.Context(), q)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(w)
					enc.SetIndent("", "  ")
					if recs == nil {
						recs = []planlog.Record{}
					}
					return enc.Encode(recs)
				}
				if len(recs) == 0 {
					_, err := fmt.Fprintln(w, "no runs recorded")
					return err
				}
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "TIME\tID\tSOURCE\tSTATUS\tOBJECTIVE\tERROR")
				for _, r := range recs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
						r.Timestamp.Local().Format(time.DateTime), r.ID, r.Source, r.Status,
						report.Fixed(r.Objective, 2), r.Error)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().DurationVar(&since, "since", 0, "only runs newer than this duration, e.g. 24h")
	cmd.Flags().StringVar(&status, "status", "", "only runs with this status (Optimal, Infeasible, Unbounded, SolverError, InsufficientData, NoObjectiveTerms)")
	cmd.Flags().IntVar(&limit, "limit", 0, "keep the latest n runs")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the runs as JSON")
	return cmd
}
