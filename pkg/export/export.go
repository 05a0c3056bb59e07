// Package export writes solved harvesting plans in exchange formats.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/keilos1/harvestplan/core/model"
	"github.com/keilos1/harvestplan/core/optimizer"
)

// Row is one allocation in a shadow-price-annotated export.
type Row struct {
	Month       model.Month  `json:"month"`
	Site        model.SiteID `json:"site"`
	AreaHa      float64      `json:"area_ha"`
	LaborShadow float64      `json:"labor_shadow"`
	AreaShadow  float64      `json:"area_shadow"`
}

// Rows lists the active allocations of res above eps with the shadow
// prices of their month and site. A non-optimal result has no rows.
func Rows(res *optimizer.Result, eps float64) []Row {
	if !res.IsOptimal() {
		return nil
	}
	plan := res.Plan(eps)
	out := make([]Row, len(plan))
	for i, e := range plan {
		out[i] = Row{
			Month:       e.Month,
			Site:        e.Site,
			AreaHa:      e.Value,
			LaborShadow: res.LaborShadow[e.Month].Value,
			AreaShadow:  res.AreaShadow[e.Site].Value,
		}
	}
	return out
}

// WriteJSON writes the rows to w in JSON format.
func WriteJSON(w io.Writer, rows []Row) error {
	if rows == nil {
		rows = []Row{}
	}
	enc := json.NewEncoder(w)
	return enc.Encode(rows)
}

// WriteCSV writes the rows to w in CSV format with a header line.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"month", "site", "area_ha", "labor_shadow", "area_shadow"}); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			strconv.Itoa(int(r.Month)),
			strconv.Itoa(int(r.Site)),
			strconv.FormatFloat(r.AreaHa, 'f', -1, 64),
			strconv.FormatFloat(r.LaborShadow, 'f', -1, 64),
			strconv.FormatFloat(r.AreaShadow, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
