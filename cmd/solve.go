package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/keilos1/harvestplan/app"
	coremqtt "github.com/keilos1/harvestplan/core/mqtt"
	"github.com/keilos1/harvestplan/core/optimizer"
	"github.com/keilos1/harvestplan/core/report"
	"github.com/keilos1/harvestplan/infra/chart"
	"github.com/keilos1/harvestplan/infra/logger"
	"github.com/keilos1/harvestplan/pkg/export"
)

func newSolveCmd(c *cli) *cobra.Command {
	var (
		dropIncomplete bool
		chartPath      string
		exportPath     string
		asJSON         bool
	)
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Compute the income-maximising harvesting plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withService(func(svc *app.Service) error {
				out, err := svc.Solve(cmd.Context(), app.SolveRequest{Source: "cli", DropIncomplete: dropIncomplete})
				w := cmd.OutOrStdout()
				if errors.Is(err, app.ErrIncompleteData) {
					if rerr := report.Missing(w, out.Missing); rerr != nil {
						return rerr
					}
					return fmt.Errorf("%w; rerun with --drop-incomplete to solve without these pairs", err)
				}
				if out == nil || out.Result == nil {
					return err
				}

				if asJSON {
					enc := json.NewEncoder(w)
					enc.SetIndent("", "  ")
					if jerr := enc.Encode(coremqtt.NewPlanMessage(out.RunID, "cli", out.Result)); jerr != nil {
						return jerr
					}
				} else if terr := report.Text(w, out.Result, report.DefaultOptions()); terr != nil {
					return terr
				}

				if chartPath != "" && out.Result.IsOptimal() {
					switch cerr := chart.Save(chartPath, out.Result, chart.DefaultOptions()); {
					case errors.Is(cerr, chart.ErrEmptyPlan):
						logger.New("cli").Warnf("chart skipped: %v", cerr)
					case cerr != nil:
						return fmt.Errorf("chart: %w", cerr)
					}
				}
				if exportPath != "" {
					if xerr := writeExport(exportPath, out.Result); xerr != nil {
						return fmt.Errorf("export: %w", xerr)
					}
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&dropIncomplete, "drop-incomplete", false, "solve without the site and month pairs missing a rate")
	cmd.Flags().StringVar(&chartPath, "chart", "", "write a bar chart of the plan to this file (.png, .svg, .pdf)")
	cmd.Flags().StringVar(&exportPath, "export", "", "write the plan with its shadow prices to this file (.csv or .json)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func writeExport(path string, res *optimizer.Result) (err error) {
	write := export.WriteCSV
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
	case ".json":
		write = export.WriteJSON
	default:
		return fmt.Errorf("unsupported export format %q", filepath.Ext(path))
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f, export.Rows(res, 0))
}
