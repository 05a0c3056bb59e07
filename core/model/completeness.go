package model

// MissingReport lists the site and month combinations whose rates are not
// specified. Only sites with an area cap and months with a labour cap are
// considered.
type MissingReport struct {
	Income []Pair `json:"income"`
	Labor  []Pair `json:"labor"`
}

// Empty reports whether nothing is missing.
func (r MissingReport) Empty() bool { return len(r.Income) == 0 && len(r.Labor) == 0 }

// Completeness checks every site × month combination for both rates.
func (d Dataset) Completeness() MissingReport {
	var rep MissingReport
	for _, m := range d.Months() {
		for _, s := range d.Sites() {
			p := Pair{Site: s, Month: m}
			if _, ok := d.Income[p]; !ok {
				rep.Income = append(rep.Income, p)
			}
			if _, ok := d.Labor[p]; !ok {
				rep.Labor = append(rep.Labor, p)
			}
		}
	}
	return rep
}

// DropIncomplete returns a copy of d holding only the rates of pairs that
// have both an income and a labour rate. d is left untouched.
func (d Dataset) DropIncomplete() Dataset {
	out := d.Clone()
	for p := range out.Income {
		if _, ok := out.Labor[p]; !ok {
			delete(out.Income, p)
		}
	}
	for p := range out.Labor {
		if _, ok := out.Income[p]; !ok {
			delete(out.Labor, p)
		}
	}
	return out
}
