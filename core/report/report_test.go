package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keilos1/harvestplan/core/lp"
	"github.com/keilos1/harvestplan/core/model"
	"github.com/keilos1/harvestplan/core/optimizer"
	"github.com/keilos1/harvestplan/core/transport"
)

func sampleResult() *optimizer.Result {
	return &optimizer.Result{
		Status:    lp.Optimal,
		Objective: 887.0899470899,
		Allocation: map[model.Pair]float64{
			{Site: 1, Month: 1}: 0.0004,
			{Site: 1, Month: 2}: 25.7142857,
			{Site: 1, Month: 3}: 19.2592593,
			{Site: 2, Month: 1}: 33.3333333,
			{Site: 2, Month: 3}: 6.6666667,
		},
		LaborShadow: map[model.Month]optimizer.ShadowPrice{
			1: {Value: 1.259259, Applicable: true},
			2: {Value: 1.714286, Applicable: true},
			3: {Value: 0, Applicable: true},
		},
		AreaShadow: map[model.SiteID]optimizer.ShadowPrice{
			1: {Value: 0, Applicable: true},
			2: {Value: 1.444444, Applicable: true},
			3: {},
		},
	}
}

func TestText_Optimal(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, sampleResult(), DefaultOptions()))
	want := `Maximum income: 887.09

Harvesting plan:
Month 1, Site 2: 33.33 ha
Month 2, Site 1: 25.71 ha
Month 3, Site 1: 19.26 ha
Month 3, Site 2: 6.67 ha

==================================================
SHADOW PRICES:

Labour resources (per month):
Month 1: 1.2593 per hour
Month 2: 1.7143 per hour
Month 3: 0.0000 per hour

Site areas (per site):
Site 1: 0.0000 per ha
Site 2: 1.4444 per ha
Site 3: constraint not created
`
	assert.Equal(t, want, buf.String())
}

func TestText_NoActivePlan(t *testing.T) {
	res := sampleResult()
	res.Allocation = map[model.Pair]float64{{Site: 1, Month: 1}: 0}
	res.Objective = 0
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, res, DefaultOptions()))
	assert.Contains(t, buf.String(), "Harvesting plan:\nNo active harvesting plan\n")
}

func TestText_NotOptimal(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, &optimizer.Result{Status: lp.Infeasible}, DefaultOptions()))
	assert.Equal(t, "No solution found, status: Infeasible\n", buf.String())
}

func TestFixed_RoundsHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, "2.35", Fixed(2.345, 2))
	assert.Equal(t, "-2.35", Fixed(-2.345, 2))
	assert.Equal(t, "10.0000", Fixed(10, 4))
}

func TestMissing(t *testing.T) {
	var rep model.MissingReport
	for s := 1; s <= 12; s++ {
		rep.Income = append(rep.Income, model.Pair{Site: model.SiteID(s), Month: 1})
	}
	rep.Labor = []model.Pair{{Site: 2, Month: 3}}

	var buf bytes.Buffer
	require.NoError(t, Missing(&buf, rep))
	out := buf.String()
	assert.Contains(t, out, "Income missing for:\n  - Site 1, Month 1\n")
	assert.Contains(t, out, "  - Site 10, Month 1\n  ... and 2 more\n")
	assert.NotContains(t, out, "Site 11, Month 1")
	assert.Contains(t, out, "Labour missing for:\n  - Site 2, Month 3\n")

	buf.Reset()
	require.NoError(t, Missing(&buf, model.MissingReport{}))
	assert.Equal(t, "All rates are specified.\n", buf.String())
}

func TestTransport(t *testing.T) {
	plan := &transport.Plan{
		Status: lp.Optimal,
		Cost:   465,
		Flow:   [][]float64{{0, 20, 0}, {10, 5, 15}},
	}
	var buf bytes.Buffer
	require.NoError(t, Transport(&buf, plan, 0))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Equal(t, []string{
		"Total transport cost: 465.00",
		"",
		"    B1 B2 B3",
		"A1:  0 20  0",
		"A2: 10  5 15",
	}, lines)

	buf.Reset()
	require.NoError(t, Transport(&buf, &transport.Plan{Status: lp.Infeasible}, 0))
	assert.Equal(t, "No solution found, status: Infeasible\n", buf.String())
}
