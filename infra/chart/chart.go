// Package chart draws the harvesting plan as a grouped bar chart.
package chart

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/keilos1/harvestplan/core/model"
	"github.com/keilos1/harvestplan/core/optimizer"
)

// ErrEmptyPlan is returned when there is nothing to draw.
var ErrEmptyPlan = errors.New("no active harvesting plan")

// Options sets the image size and the allocation cutoff.
type Options struct {
	Width  vg.Length
	Height vg.Length
	// PlanEpsilon hides allocations at or below this many hectares. Zero
	// uses the result's epsilon.
	PlanEpsilon float64
}

// DefaultOptions draws a 20x12 cm image.
func DefaultOptions() Options {
	return Options{Width: 20 * vg.Centimeter, Height: 12 * vg.Centimeter}
}

// Plot builds one bar per site and month, grouped by month.
func Plot(res *optimizer.Result, opts Options) (*plot.Plot, error) {
	if res == nil {
		return nil, ErrEmptyPlan
	}
	if !res.IsOptimal() {
		return nil, fmt.Errorf("%w: status %s", ErrEmptyPlan, res.Status)
	}
	entries := res.Plan(opts.PlanEpsilon)
	if len(entries) == 0 {
		return nil, ErrEmptyPlan
	}

	var months []model.Month
	var sites []model.SiteID
	area := map[model.Pair]float64{}
	seenM := map[model.Month]bool{}
	seenS := map[model.SiteID]bool{}
	for _, e := range entries {
		area[model.Pair{Site: e.Site, Month: e.Month}] = e.Value
		if !seenM[e.Month] {
			seenM[e.Month] = true
			months = append(months, e.Month)
		}
		if !seenS[e.Site] {
			seenS[e.Site] = true
			sites = append(sites, e.Site)
		}
	}
	slices.Sort(sites)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Harvesting plan (income %.2f)", res.Objective)
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = "Month"
	p.Y.Label.Text = "Area (ha)"
	p.Y.Min = 0
	p.Legend.Top = true

	width := vg.Points(14)
	for i, s := range sites {
		values := make(plotter.Values, len(months))
		for j, m := range months {
			values[j] = area[model.Pair{Site: s, Month: m}]
		}
		bars, err := plotter.NewBarChart(values, width)
		if err != nil {
			return nil, err
		}
		bars.Color = plotutil.Color(i)
		bars.LineStyle.Width = vg.Length(0)
		bars.Offset = width * vg.Length(2*i-len(sites)+1) / 2
		p.Add(bars)
		p.Legend.Add(fmt.Sprintf("Site %d", s), bars)
	}

	labels := make([]string, len(months))
	for j, m := range months {
		labels[j] = fmt.Sprintf("Month %d", m)
	}
	p.NominalX(labels...)
	return p, nil
}

// WritePNG renders the chart as PNG into w.
func WritePNG(w io.Writer, res *optimizer.Result, opts Options) error {
	opts = withDefaults(opts)
	p, err := Plot(res, opts)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(opts.Width, opts.Height, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// Save writes the chart to path. The format follows the extension (png,
// svg, pdf, jpg).
func Save(path string, res *optimizer.Result, opts Options) error {
	if strings.TrimPrefix(filepath.Ext(path), ".") == "" {
		return fmt.Errorf("chart file %q needs an extension", path)
	}
	opts = withDefaults(opts)
	p, err := Plot(res, opts)
	if err != nil {
		return err
	}
	return p.Save(opts.Width, opts.Height, path)
}

func withDefaults(o Options) Options {
	def := DefaultOptions()
	if o.Width <= 0 {
		o.Width = def.Width
	}
	if o.Height <= 0 {
		o.Height = def.Height
	}
	return o
}
