// Package model holds the harvesting tables: per site and month income and
// labour rates, monthly labour caps and per-site area caps.
package model

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrInvalidInput is returned for identifiers or values outside their range.
	ErrInvalidInput = errors.New("invalid input")
	// ErrExists is returned when adding a site or month that is already present.
	ErrExists = errors.New("already exists")
	// ErrNotFound is returned when editing a site or month that does not exist.
	ErrNotFound = errors.New("not found")
)

// SiteID identifies a forest site. Valid identifiers are positive.
type SiteID int

// Month is a calendar month, 1 through 12.
type Month int

// Pair addresses one site in one month.
type Pair struct {
	Site  SiteID `json:"site"`
	Month Month  `json:"month"`
}

func (p Pair) String() string { return fmt.Sprintf("(%d,%d)", p.Site, p.Month) }

// Less orders pairs by month, then site.
func (p Pair) Less(o Pair) bool {
	if p.Month != o.Month {
		return p.Month < o.Month
	}
	return p.Site < o.Site
}

// Rates maps a pair to a per-hectare rate. A missing key means the rate is
// not specified.
type Rates map[Pair]float64

// Clone returns a copy of r. A nil map clones to an empty one.
func (r Rates) Clone() Rates {
	out := make(Rates, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Pairs returns the keys of r ordered by month, then site.
func (r Rates) Pairs() []Pair {
	out := make([]Pair, 0, len(r))
	for p := range r {
		out = append(out, p)
	}
	SortPairs(out)
	return out
}

// Entry is one rate in list form.
type Entry struct {
	Site  SiteID  `json:"site"`
	Month Month   `json:"month"`
	Value float64 `json:"value"`
}

// Entries lists r ordered by month, then site.
func (r Rates) Entries() []Entry {
	pairs := r.Pairs()
	out := make([]Entry, len(pairs))
	for i, p := range pairs {
		out[i] = Entry{Site: p.Site, Month: p.Month, Value: r[p]}
	}
	return out
}

// RatesFromEntries builds Rates from a list. Later entries win on duplicates.
func RatesFromEntries(entries []Entry) Rates {
	out := make(Rates, len(entries))
	for _, e := range entries {
		out[Pair{Site: e.Site, Month: e.Month}] = e.Value
	}
	return out
}

// SortPairs sorts pairs by month, then site.
func SortPairs(p []Pair) {
	sort.Slice(p, func(i, j int) bool { return p[i].Less(p[j]) })
}

// Dataset holds the four tables the optimizer reads.
type Dataset struct {
	Income    Rates
	Labor     Rates
	LaborCaps map[Month]float64
	AreaCaps  map[SiteID]float64
}

// NewDataset returns an empty dataset with all maps allocated.
func NewDataset() Dataset {
	return Dataset{
		Income:    Rates{},
		Labor:     Rates{},
		LaborCaps: map[Month]float64{},
		AreaCaps:  map[SiteID]float64{},
	}
}

// DefaultDataset returns the example table used when a new workbook is
// created: two sites over the first quarter.
func DefaultDataset() Dataset {
	return Dataset{
		Income: Rates{
			{1, 1}: 10, {1, 2}: 12, {1, 3}: 11,
			{2, 1}: 9, {2, 2}: 13, {2, 3}: 10,
		},
		Labor: Rates{
			{1, 1}: 8, {1, 2}: 7, {1, 3}: 9,
			{2, 1}: 6, {2, 2}: 8, {2, 3}: 7,
		},
		LaborCaps: map[Month]float64{1: 200, 2: 180, 3: 220},
		AreaCaps:  map[SiteID]float64{1: 50, 2: 40},
	}
}

// Clone deep copies d.
func (d Dataset) Clone() Dataset {
	out := Dataset{
		Income:    d.Income.Clone(),
		Labor:     d.Labor.Clone(),
		LaborCaps: make(map[Month]float64, len(d.LaborCaps)),
		AreaCaps:  make(map[SiteID]float64, len(d.AreaCaps)),
	}
	for k, v := range d.LaborCaps {
		out.LaborCaps[k] = v
	}
	for k, v := range d.AreaCaps {
		out.AreaCaps[k] = v
	}
	return out
}

// Sites returns the site identifiers with an area cap, ascending.
func (d Dataset) Sites() []SiteID {
	out := make([]SiteID, 0, len(d.AreaCaps))
	for s := range d.AreaCaps {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Months returns the months with a labour cap, ascending.
func (d Dataset) Months() []Month {
	out := make([]Month, 0, len(d.LaborCaps))
	for m := range d.LaborCaps {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Validate checks identifiers and values of every table. The first problem
// found is returned wrapped in ErrInvalidInput.
func (d Dataset) Validate() error {
	for s, v := range d.AreaCaps {
		if err := checkSite(s); err != nil {
			return err
		}
		if err := checkValue("area cap", v); err != nil {
			return fmt.Errorf("site %d: %w", s, err)
		}
	}
	for m, v := range d.LaborCaps {
		if err := checkMonth(m); err != nil {
			return err
		}
		if err := checkValue("labour cap", v); err != nil {
			return fmt.Errorf("month %d: %w", m, err)
		}
	}
	if err := checkRates("income", d.Income); err != nil {
		return err
	}
	return checkRates("labour", d.Labor)
}

func checkRates(kind string, r Rates) error {
	for _, p := range r.Pairs() {
		if err := checkSite(p.Site); err != nil {
			return fmt.Errorf("%s %s: %w", kind, p, err)
		}
		if err := checkMonth(p.Month); err != nil {
			return fmt.Errorf("%s %s: %w", kind, p, err)
		}
		if err := checkValue(kind, r[p]); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func checkSite(s SiteID) error {
	if s <= 0 {
		return fmt.Errorf("%w: site %d must be positive", ErrInvalidInput, s)
	}
	return nil
}

func checkMonth(m Month) error {
	if m < 1 || m > 12 {
		return fmt.Errorf("%w: month %d must be between 1 and 12", ErrInvalidInput, m)
	}
	return nil
}

func checkValue(kind string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be a finite number", ErrInvalidInput, kind)
	}
	if v < 0 {
		return fmt.Errorf("%w: %s cannot be negative (%g)", ErrInvalidInput, kind, v)
	}
	return nil
}
