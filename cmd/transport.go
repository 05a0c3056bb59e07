package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/keilos1/harvestplan/core/report"
	"github.com/keilos1/harvestplan/core/transport"
)

func newTransportCmd(c *cli) *cobra.Command {
	var (
		places int32
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "transport <problem.json>",
		Short: "Solve a timber transportation problem read from a JSON file",
		Long: `Solve a balanced transportation problem. The file holds
{"supply": [...], "demand": [...], "cost": [[...]], "forbidden": [{"from": 0, "to": 1}],
"fixed": [{"from": 1, "to": 0, "amount": 5}]} with zero-based indices.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := transport.LoadProblem(args[0])
			if err != nil {
				return err
			}
			plan, err := transport.Solve(cmd.Context(), p, c.cfg.Solver.Options().Solver)
			if err != nil && plan == nil {
				return err
			}
			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if jerr := enc.Encode(plan); jerr != nil {
					return jerr
				}
				return err
			}
			if rerr := report.Transport(w, plan, places); rerr != nil {
				return rerr
			}
			return err
		},
	}
	cmd.Flags().Int32Var(&places, "places", 0, "decimals of the shipped volumes")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the plan as JSON")
	return cmd
}
