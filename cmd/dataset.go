package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/keilos1/harvestplan/app"
	"github.com/keilos1/harvestplan/config"
	"github.com/keilos1/harvestplan/core/model"
	"github.com/keilos1/harvestplan/core/report"
)

func newInitCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write the example dataset when no workbook exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withService(func(svc *app.Service) error {
				created, err := svc.Init(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch {
				case c.cfg.Store.Backend != config.StoreXLSX:
					_, err = fmt.Fprintln(out, "nothing to initialise for the memory store")
				case created:
					_, err = fmt.Fprintf(out, "created %s\n", c.cfg.Store.Path)
				default:
					_, err = fmt.Fprintf(out, "%s already exists\n", c.cfg.Store.Path)
				}
				return err
			})
		},
	}
}

func newShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the stored tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withService(func(svc *app.Service) error {
				d, err := svc.Dataset(cmd.Context())
				if err != nil {
					return err
				}
				return printDataset(cmd.OutOrStdout(), d)
			})
		},
	}
}

// printDataset writes one table per line block: caps first, then the
// rates with "-" for a missing value.
func printDataset(w io.Writer, d model.Dataset) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Site\tArea (ha)\t")
	for _, s := range d.Sites() {
		fmt.Fprintf(tw, "%d\t%s\t\n", s, report.Fixed(d.AreaCaps[s], 2))
	}
	fmt.Fprintln(tw, "\t\t")
	fmt.Fprintln(tw, "Month\tLabour (h)\t")
	for _, m := range d.Months() {
		fmt.Fprintf(tw, "%d\t%s\t\n", m, report.Fixed(d.LaborCaps[m], 2))
	}
	fmt.Fprintln(tw, "\t\t")
	fmt.Fprintln(tw, "Site\tMonth\tIncome\tLabour\t")
	for _, m := range d.Months() {
		for _, s := range d.Sites() {
			p := model.Pair{Site: s, Month: m}
			fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t\n", s, m, rate(d.Income, p), rate(d.Labor, p))
		}
	}
	return tw.Flush()
}

func rate(r model.Rates, p model.Pair) string {
	v, ok := r[p]
	if !ok {
		return "-"
	}
	return report.Fixed(v, 2)
}

func newCheckCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "List site and month pairs with missing rates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withService(func(svc *app.Service) error {
				rep, err := svc.Completeness(cmd.Context())
				if err != nil {
					return err
				}
				return report.Missing(cmd.OutOrStdout(), rep)
			})
		},
	}
}

// edit runs fn through the service and prints the resulting tables.
func (c *cli) edit(cmd *cobra.Command, op string, fn func(*model.Dataset) error) error {
	return c.withService(func(svc *app.Service) error {
		d, err := svc.Edit(cmd.Context(), op, fn)
		if err != nil {
			return err
		}
		return printDataset(cmd.OutOrStdout(), d)
	})
}

func newSiteCmd(c *cli) *cobra.Command {
	site := &cobra.Command{Use: "site", Short: "Add, change or delete sites"}

	var income []string
	add := &cobra.Command{
		Use:   "add <site> <area>",
		Short: "Add a site with its area cap and optional income rates",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSite(args[0])
			if err != nil {
				return err
			}
			area, err := parseValue("area", args[1])
			if err != nil {
				return err
			}
			rates, err := parseAssignments("income", income)
			if err != nil {
				return err
			}
			byMonth := make(map[model.Month]float64, len(rates))
			for m, v := range rates {
				byMonth[model.Month(m)] = v
			}
			return c.edit(cmd, "site.add", func(d *model.Dataset) error {
				return d.AddSite(id, area, byMonth)
			})
		},
	}
	add.Flags().StringSliceVar(&income, "income", nil, "income rate per month as month=value, repeatable")

	set := &cobra.Command{
		Use:   "set <site> <area>",
		Short: "Change the area cap of a site",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSite(args[0])
			if err != nil {
				return err
			}
			area, err := parseValue("area", args[1])
			if err != nil {
				return err
			}
			return c.edit(cmd, "site.set", func(d *model.Dataset) error { return d.SetAreaCap(id, area) })
		},
	}

	del := &cobra.Command{
		Use:   "delete <site>",
		Short: "Delete a site and all its rates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSite(args[0])
			if err != nil {
				return err
			}
			return c.edit(cmd, "site.delete", func(d *model.Dataset) error { return d.DeleteSite(id) })
		},
	}

	site.AddCommand(add, set, del)
	return site
}

func newMonthCmd(c *cli) *cobra.Command {
	month := &cobra.Command{Use: "month", Short: "Add, change or delete months"}

	var labor []string
	add := &cobra.Command{
		Use:   "add <month> <hours>",
		Short: "Add a month with its labour cap and optional labour rates",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := parseMonth(args[0])
			if err != nil {
				return err
			}
			hours, err := parseValue("labour cap", args[1])
			if err != nil {
				return err
			}
			rates, err := parseAssignments("labour", labor)
			if err != nil {
				return err
			}
			bySite := make(map[model.SiteID]float64, len(rates))
			for s, v := range rates {
				bySite[model.SiteID(s)] = v
			}
			return c.edit(cmd, "month.add", func(d *model.Dataset) error {
				return d.AddMonth(m, hours, bySite)
			})
		},
	}
	add.Flags().StringSliceVar(&labor, "labor", nil, "labour rate per site as site=value, repeatable")

	set := &cobra.Command{
		Use:   "set <month> <hours>",
		Short: "Change the labour cap of a month",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := parseMonth(args[0])
			if err != nil {
				return err
			}
			hours, err := parseValue("labour cap", args[1])
			if err != nil {
				return err
			}
			return c.edit(cmd, "month.set", func(d *model.Dataset) error { return d.SetLaborCap(m, hours) })
		},
	}

	del := &cobra.Command{
		Use:   "delete <month>",
		Short: "Delete a month and all its rates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := parseMonth(args[0])
			if err != nil {
				return err
			}
			return c.edit(cmd, "month.delete", func(d *model.Dataset) error { return d.DeleteMonth(m) })
		},
	}

	month.AddCommand(add, set, del)
	return month
}

func newRateCmd(c *cli) *cobra.Command {
	rateCmd := &cobra.Command{Use: "rate", Short: "Set or unset income and labour rates"}

	var income, labor string
	set := &cobra.Command{
		Use:   "set <site> <month>",
		Short: "Set the income and/or labour rate of a site in a month",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePair(args)
			if err != nil {
				return err
			}
			if income == "" && labor == "" {
				return fmt.Errorf("%w: --income or --labor is required", model.ErrInvalidInput)
			}
			var iv, lv float64
			if income != "" {
				if iv, err = parseValue("income", income); err != nil {
					return err
				}
			}
			if labor != "" {
				if lv, err = parseValue("labour", labor); err != nil {
					return err
				}
			}
			return c.edit(cmd, "rate.set", func(d *model.Dataset) error {
				if income != "" {
					if err := d.SetIncome(p, iv); err != nil {
						return err
					}
				}
				if labor != "" {
					return d.SetLabor(p, lv)
				}
				return nil
			})
		},
	}
	set.Flags().StringVar(&income, "income", "", "income per hectare")
	set.Flags().StringVar(&labor, "labor", "", "labour hours per hectare")

	var unsetIncome, unsetLabor bool
	unset := &cobra.Command{
		Use:   "unset <site> <month>",
		Short: "Mark rates as not specified (both unless one is selected)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePair(args)
			if err != nil {
				return err
			}
			both := !unsetIncome && !unsetLabor
			return c.edit(cmd, "rate.unset", func(d *model.Dataset) error {
				if both || unsetIncome {
					if err := d.UnsetIncome(p); err != nil {
						return err
					}
				}
				if both || unsetLabor {
					return d.UnsetLabor(p)
				}
				return nil
			})
		},
	}
	unset.Flags().BoolVar(&unsetIncome, "income", false, "unset the income rate")
	unset.Flags().BoolVar(&unsetLabor, "labor", false, "unset the labour rate")

	rateCmd.AddCommand(set, unset)
	return rateCmd
}

func parsePair(args []string) (model.Pair, error) {
	s, err := parseSite(args[0])
	if err != nil {
		return model.Pair{}, err
	}
	m, err := parseMonth(args[1])
	if err != nil {
		return model.Pair{}, err
	}
	return model.Pair{Site: s, Month: m}, nil
}
