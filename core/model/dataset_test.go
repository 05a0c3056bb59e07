package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDataset_Valid(t *testing.T) {
	d := DefaultDataset()
	require.NoError(t, d.Validate())
	assert.Equal(t, []SiteID{1, 2}, d.Sites())
	assert.Equal(t, []Month{1, 2, 3}, d.Months())
	assert.Len(t, d.Income, 6)
	assert.Len(t, d.Labor, 6)
	assert.True(t, d.Completeness().Empty())
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Dataset)
	}{
		{"site zero", func(d *Dataset) { d.AreaCaps[0] = 1 }},
		{"negative area", func(d *Dataset) { d.AreaCaps[1] = -1 }},
		{"month 13", func(d *Dataset) { d.LaborCaps[13] = 10 }},
		{"month 0", func(d *Dataset) { d.LaborCaps[0] = 10 }},
		{"nan labour cap", func(d *Dataset) { d.LaborCaps[1] = math.NaN() }},
		{"negative income", func(d *Dataset) { d.Income[Pair{1, 1}] = -3 }},
		{"infinite labour", func(d *Dataset) { d.Labor[Pair{2, 2}] = math.Inf(1) }},
		{"rate with bad site", func(d *Dataset) { d.Labor[Pair{-1, 2}] = 1 }},
		{"rate with bad month", func(d *Dataset) { d.Income[Pair{1, 14}] = 1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := DefaultDataset()
			tc.mutate(&d)
			assert.ErrorIs(t, d.Validate(), ErrInvalidInput)
		})
	}
}

func TestClone_IsDeep(t *testing.T) {
	d := DefaultDataset()
	c := d.Clone()
	c.Income[Pair{1, 1}] = 99
	c.AreaCaps[1] = 1
	delete(c.LaborCaps, 2)
	assert.Equal(t, 10.0, d.Income[Pair{1, 1}])
	assert.Equal(t, 50.0, d.AreaCaps[1])
	assert.Contains(t, d.LaborCaps, Month(2))
}

func TestRates_Entries(t *testing.T) {
	r := Rates{{2, 1}: 3, {1, 2}: 4, {1, 1}: 5}
	got := r.Entries()
	assert.Equal(t, []Entry{
		{Site: 1, Month: 1, Value: 5},
		{Site: 2, Month: 1, Value: 3},
		{Site: 1, Month: 2, Value: 4},
	}, got)
	assert.Equal(t, r, RatesFromEntries(got))
}

func TestAddSite(t *testing.T) {
	d := DefaultDataset()
	require.NoError(t, d.AddSite(3, 25, map[Month]float64{1: 7, 2: 8}))
	assert.Equal(t, 25.0, d.AreaCaps[3])
	assert.Equal(t, 7.0, d.Income[Pair{3, 1}])

	assert.ErrorIs(t, d.AddSite(3, 10, nil), ErrExists)
	assert.ErrorIs(t, d.AddSite(0, 10, nil), ErrInvalidInput)
	assert.ErrorIs(t, d.AddSite(4, 0, nil), ErrInvalidInput)
	assert.ErrorIs(t, d.AddSite(4, 10, map[Month]float64{1: -1}), ErrInvalidInput)
	assert.NotContains(t, d.AreaCaps, SiteID(4))

	var empty Dataset
	require.NoError(t, empty.AddSite(1, 5, map[Month]float64{3: 2}))
	assert.Equal(t, 2.0, empty.Income[Pair{1, 3}])
}

func TestAddMonth(t *testing.T) {
	d := DefaultDataset()
	require.NoError(t, d.AddMonth(4, 150, map[SiteID]float64{1: 6}))
	assert.Equal(t, 150.0, d.LaborCaps[4])
	assert.Equal(t, 6.0, d.Labor[Pair{1, 4}])

	assert.ErrorIs(t, d.AddMonth(4, 1, nil), ErrExists)
	assert.ErrorIs(t, d.AddMonth(13, 1, nil), ErrInvalidInput)
	assert.ErrorIs(t, d.AddMonth(5, 0, nil), ErrInvalidInput)
}

func TestSetCaps(t *testing.T) {
	d := DefaultDataset()
	require.NoError(t, d.SetAreaCap(1, 0))
	require.NoError(t, d.SetLaborCap(2, 0))
	assert.Equal(t, 0.0, d.AreaCaps[1])
	assert.Equal(t, 0.0, d.LaborCaps[2])
	assert.ErrorIs(t, d.SetAreaCap(9, 1), ErrNotFound)
	assert.ErrorIs(t, d.SetLaborCap(9, 1), ErrNotFound)
	assert.ErrorIs(t, d.SetAreaCap(1, -5), ErrInvalidInput)
	assert.ErrorIs(t, d.SetLaborCap(1, math.NaN()), ErrInvalidInput)
}

func TestDeleteSite_Cascades(t *testing.T) {
	d := DefaultDataset()
	require.NoError(t, d.DeleteSite(1))
	assert.NotContains(t, d.AreaCaps, SiteID(1))
	for p := range d.Income {
		assert.NotEqual(t, SiteID(1), p.Site)
	}
	for p := range d.Labor {
		assert.NotEqual(t, SiteID(1), p.Site)
	}
	assert.Len(t, d.Income, 3)
	assert.Len(t, d.Labor, 3)
	assert.ErrorIs(t, d.DeleteSite(1), ErrNotFound)
}

func TestDeleteMonth_Cascades(t *testing.T) {
	d := DefaultDataset()
	require.NoError(t, d.DeleteMonth(2))
	assert.NotContains(t, d.LaborCaps, Month(2))
	for p := range d.Income {
		assert.NotEqual(t, Month(2), p.Month)
	}
	for p := range d.Labor {
		assert.NotEqual(t, Month(2), p.Month)
	}
	assert.Len(t, d.Income, 4)
	assert.ErrorIs(t, d.DeleteMonth(2), ErrNotFound)
}

func TestSetAndUnsetRates(t *testing.T) {
	d := DefaultDataset()
	require.NoError(t, d.SetIncome(Pair{1, 1}, 20))
	require.NoError(t, d.SetLabor(Pair{2, 3}, 0))
	assert.Equal(t, 20.0, d.Income[Pair{1, 1}])
	assert.Equal(t, 0.0, d.Labor[Pair{2, 3}])

	assert.ErrorIs(t, d.SetIncome(Pair{5, 1}, 1), ErrNotFound)
	assert.ErrorIs(t, d.SetLabor(Pair{1, 7}, 1), ErrNotFound)
	assert.ErrorIs(t, d.SetIncome(Pair{1, 1}, -1), ErrInvalidInput)

	require.NoError(t, d.UnsetIncome(Pair{1, 1}))
	require.NoError(t, d.UnsetLabor(Pair{2, 3}))
	assert.NotContains(t, d.Income, Pair{1, 1})
	assert.NotContains(t, d.Labor, Pair{2, 3})
	assert.ErrorIs(t, d.UnsetIncome(Pair{1, 1}), ErrNotFound)
	assert.ErrorIs(t, d.UnsetLabor(Pair{2, 3}), ErrNotFound)
}

func TestCompleteness(t *testing.T) {
	d := DefaultDataset()
	delete(d.Income, Pair{2, 3})
	delete(d.Labor, Pair{1, 1})
	delete(d.Labor, Pair{2, 1})
	d.AreaCaps[3] = 10

	rep := d.Completeness()
	assert.False(t, rep.Empty())
	assert.Equal(t, []Pair{{3, 1}, {3, 2}, {2, 3}, {3, 3}}, rep.Income)
	assert.Equal(t, []Pair{{1, 1}, {2, 1}, {3, 1}, {3, 2}, {3, 3}}, rep.Labor)
}

func TestDropIncomplete(t *testing.T) {
	d := DefaultDataset()
	delete(d.Income, Pair{2, 3})
	delete(d.Labor, Pair{1, 1})

	out := d.DropIncomplete()
	assert.NotContains(t, out.Income, Pair{1, 1})
	assert.NotContains(t, out.Labor, Pair{2, 3})
	assert.Len(t, out.Income, 4)
	assert.Len(t, out.Labor, 4)
	assert.Contains(t, d.Income, Pair{1, 1}, "input must not change")
	assert.Contains(t, d.Labor, Pair{2, 3}, "input must not change")
}
