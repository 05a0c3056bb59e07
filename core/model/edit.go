package model

import "fmt"

// AddSite registers a new site with its area cap and optional income rates
// for existing months. The cap of a new site must be positive.
func (d *Dataset) AddSite(id SiteID, areaCap float64, income map[Month]float64) error {
	if err := checkSite(id); err != nil {
		return err
	}
	if _, ok := d.AreaCaps[id]; ok {
		return fmt.Errorf("site %d: %w", id, ErrExists)
	}
	if err := checkPositive("area cap", areaCap); err != nil {
		return err
	}
	for m, v := range income {
		if err := checkMonth(m); err != nil {
			return err
		}
		if err := checkValue("income", v); err != nil {
			return err
		}
	}
	d.ensure()
	d.AreaCaps[id] = areaCap
	for m, v := range income {
		d.Income[Pair{Site: id, Month: m}] = v
	}
	return nil
}

// SetAreaCap changes the area cap of an existing site. Zero is allowed.
func (d *Dataset) SetAreaCap(id SiteID, areaCap float64) error {
	if _, ok := d.AreaCaps[id]; !ok {
		return fmt.Errorf("site %d: %w", id, ErrNotFound)
	}
	if err := checkValue("area cap", areaCap); err != nil {
		return err
	}
	d.AreaCaps[id] = areaCap
	return nil
}

// DeleteSite removes a site and every rate that references it.
func (d *Dataset) DeleteSite(id SiteID) error {
	if _, ok := d.AreaCaps[id]; !ok {
		return fmt.Errorf("site %d: %w", id, ErrNotFound)
	}
	delete(d.AreaCaps, id)
	for p := range d.Income {
		if p.Site == id {
			delete(d.Income, p)
		}
	}
	for p := range d.Labor {
		if p.Site == id {
			delete(d.Labor, p)
		}
	}
	return nil
}

// AddMonth registers a new month with its labour cap and optional labour
// rates for existing sites. The cap of a new month must be positive.
func (d *Dataset) AddMonth(m Month, laborCap float64, labor map[SiteID]float64) error {
	if err := checkMonth(m); err != nil {
		return err
	}
	if _, ok := d.LaborCaps[m]; ok {
		return fmt.Errorf("month %d: %w", m, ErrExists)
	}
	if err := checkPositive("labour cap", laborCap); err != nil {
		return err
	}
	for s, v := range labor {
		if err := checkSite(s); err != nil {
			return err
		}
		if err := checkValue("labour", v); err != nil {
			return err
		}
	}
	d.ensure()
	d.LaborCaps[m] = laborCap
	for s, v := range labor {
		d.Labor[Pair{Site: s, Month: m}] = v
	}
	return nil
}

// SetLaborCap changes the labour cap of an existing month. Zero is allowed.
func (d *Dataset) SetLaborCap(m Month, laborCap float64) error {
	if _, ok := d.LaborCaps[m]; !ok {
		return fmt.Errorf("month %d: %w", m, ErrNotFound)
	}
	if err := checkValue("labour cap", laborCap); err != nil {
		return err
	}
	d.LaborCaps[m] = laborCap
	return nil
}

// DeleteMonth removes a month and every rate that references it.
func (d *Dataset) DeleteMonth(m Month) error {
	if _, ok := d.LaborCaps[m]; !ok {
		return fmt.Errorf("month %d: %w", m, ErrNotFound)
	}
	delete(d.LaborCaps, m)
	for p := range d.Income {
		if p.Month == m {
			delete(d.Income, p)
		}
	}
	for p := range d.Labor {
		if p.Month == m {
			delete(d.Labor, p)
		}
	}
	return nil
}

// SetIncome sets the income rate of an existing site in an existing month.
func (d *Dataset) SetIncome(p Pair, v float64) error {
	if err := d.checkPair(p); err != nil {
		return err
	}
	if err := checkValue("income", v); err != nil {
		return err
	}
	d.ensure()
	d.Income[p] = v
	return nil
}

// SetLabor sets the labour rate of an existing site in an existing month.
func (d *Dataset) SetLabor(p Pair, v float64) error {
	if err := d.checkPair(p); err != nil {
		return err
	}
	if err := checkValue("labour", v); err != nil {
		return err
	}
	d.ensure()
	d.Labor[p] = v
	return nil
}

// UnsetIncome marks the income rate of p as not specified.
func (d *Dataset) UnsetIncome(p Pair) error {
	if _, ok := d.Income[p]; !ok {
		return fmt.Errorf("income %s: %w", p, ErrNotFound)
	}
	delete(d.Income, p)
	return nil
}

// UnsetLabor marks the labour rate of p as not specified.
func (d *Dataset) UnsetLabor(p Pair) error {
	if _, ok := d.Labor[p]; !ok {
		return fmt.Errorf("labour %s: %w", p, ErrNotFound)
	}
	delete(d.Labor, p)
	return nil
}

func (d *Dataset) checkPair(p Pair) error {
	if _, ok := d.AreaCaps[p.Site]; !ok {
		return fmt.Errorf("site %d: %w", p.Site, ErrNotFound)
	}
	if _, ok := d.LaborCaps[p.Month]; !ok {
		return fmt.Errorf("month %d: %w", p.Month, ErrNotFound)
	}
	return nil
}

func (d *Dataset) ensure() {
	if d.Income == nil {
		d.Income = Rates{}
	}
	if d.Labor == nil {
		d.Labor = Rates{}
	}
	if d.LaborCaps == nil {
		d.LaborCaps = map[Month]float64{}
	}
	if d.AreaCaps == nil {
		d.AreaCaps = map[SiteID]float64{}
	}
}

func checkPositive(kind string, v float64) error {
	if err := checkValue(kind, v); err != nil {
		return err
	}
	if v == 0 {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidInput, kind)
	}
	return nil
}
