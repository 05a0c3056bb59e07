// Package report renders solve results as plain text.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/keilos1/harvestplan/core/model"
	"github.com/keilos1/harvestplan/core/optimizer"
	"github.com/keilos1/harvestplan/core/transport"
)

// MissingListLimit caps how many missing pairs are listed per table.
const MissingListLimit = 10

// Options tune the text layout.
type Options struct {
	// PlanEpsilon hides allocations at or below this many hectares.
	// Zero uses the epsilon the result was solved with.
	PlanEpsilon float64
	// AreaPlaces is the number of decimals for hectares and income.
	AreaPlaces int32
	// PricePlaces is the number of decimals for shadow prices.
	PricePlaces int32
}

// DefaultOptions prints areas with 2 decimals and prices with 4.
func DefaultOptions() Options { return Options{AreaPlaces: 2, PricePlaces: 4} }

// Fixed formats v rounded half away from zero to places decimals.
func Fixed(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

// Text writes the harvesting plan: maximum income, one line per active
// allocation ordered by month then site, and the shadow prices per month
// and per site.
func Text(w io.Writer, res *optimizer.Result, opts Options) error {
	var b strings.Builder
	if res == nil {
		b.WriteString("No solution found.\n")
		_, err := io.WriteString(w, b.String())
		return err
	}
	if !res.IsOptimal() {
		fmt.Fprintf(&b, "No solution found, status: %s\n", res.Status)
		_, err := io.WriteString(w, b.String())
		return err
	}

	fmt.Fprintf(&b, "Maximum income: %s\n\n", Fixed(res.Objective, opts.AreaPlaces))
	b.WriteString("Harvesting plan:\n")
	plan := res.Plan(opts.PlanEpsilon)
	if len(plan) == 0 {
		b.WriteString("No active harvesting plan\n")
	}
	for _, e := range plan {
		fmt.Fprintf(&b, "Month %d, Site %d: %s ha\n", e.Month, e.Site, Fixed(e.Value, opts.AreaPlaces))
	}

	b.WriteString("\n" + strings.Repeat("=", 50) + "\n")
	b.WriteString("SHADOW PRICES:\n\n")
	b.WriteString("Labour resources (per month):\n")
	for _, m := range res.Months() {
		fmt.Fprintf(&b, "Month %d: %s\n", m, price(res.LaborShadow[m], "per hour", opts))
	}
	b.WriteString("\nSite areas (per site):\n")
	for _, s := range res.Sites() {
		fmt.Fprintf(&b, "Site %d: %s\n", s, price(res.AreaShadow[s], "per ha", opts))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func price(sp optimizer.ShadowPrice, unit string, opts Options) string {
	if !sp.Applicable {
		return "constraint not created"
	}
	return Fixed(sp.Value, opts.PricePlaces) + " " + unit
}

// Missing writes the site and month pairs whose rates are not specified,
// at most MissingListLimit per table followed by a count of the rest.
func Missing(w io.Writer, rep model.MissingReport) error {
	var b strings.Builder
	if rep.Empty() {
		b.WriteString("All rates are specified.\n")
		_, err := io.WriteString(w, b.String())
		return err
	}
	b.WriteString("Missing data found:\n")
	missingList(&b, "Income", rep.Income)
	missingList(&b, "Labour", rep.Labor)
	_, err := io.WriteString(w, b.String())
	return err
}

func missingList(b *strings.Builder, kind string, pairs []model.Pair) {
	if len(pairs) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s missing for:\n", kind)
	for i, p := range pairs {
		if i == MissingListLimit {
			fmt.Fprintf(b, "  ... and %d more\n", len(pairs)-MissingListLimit)
			break
		}
		fmt.Fprintf(b, "  - Site %d, Month %d\n", p.Site, p.Month)
	}
}

// Transport writes the total cost and the shipment matrix with suppliers
// A1.. as rows and consumers B1.. as columns.
func Transport(w io.Writer, plan *transport.Plan, places int32) error {
	var b strings.Builder
	if plan == nil || len(plan.Flow) == 0 {
		status := "unknown"
		if plan != nil {
			status = plan.Status.String()
		}
		fmt.Fprintf(&b, "No solution found, status: %s\n", status)
		_, err := io.WriteString(w, b.String())
		return err
	}
	fmt.Fprintf(&b, "Total transport cost: %s\n\n", Fixed(plan.Cost, 2))

	cells := make([][]string, len(plan.Flow))
	width := 0
	for i, row := range plan.Flow {
		cells[i] = make([]string, len(row))
		for j, v := range row {
			cells[i][j] = Fixed(v, places)
			width = max(width, len(cells[i][j]))
		}
	}
	cols := len(plan.Flow[0])
	for j := 0; j < cols; j++ {
		width = max(width, len(fmt.Sprintf("B%d", j+1)))
	}
	label := len(fmt.Sprintf("A%d", len(plan.Flow)))

	b.WriteString(strings.Repeat(" ", label+1))
	for j := 0; j < cols; j++ {
		fmt.Fprintf(&b, " %*s", width, fmt.Sprintf("B%d", j+1))
	}
	b.WriteString("\n")
	for i, row := range cells {
		fmt.Fprintf(&b, "%-*s:", label, fmt.Sprintf("A%d", i+1))
		for _, c := range row {
			fmt.Fprintf(&b, " %*s", width, c)
		}
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
