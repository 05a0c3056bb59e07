package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/keilos1/harvestplan/core/model"
)

func parseSite(s string) (model.SiteID, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: site %q is not an integer", model.ErrInvalidInput, s)
	}
	return model.SiteID(v), nil
}

func parseMonth(s string) (model.Month, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: month %q is not an integer", model.ErrInvalidInput, s)
	}
	return model.Month(v), nil
}

func parseValue(kind, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a number", model.ErrInvalidInput, kind, s)
	}
	return v, nil
}

// parseAssignments reads "key=value" pairs such as "1=10.5".
func parseAssignments(kind string, items []string) (map[int]float64, error) {
	out := make(map[int]float64, len(items))
	for _, it := range items {
		k, v, ok := strings.Cut(it, "=")
		if !ok {
			return nil, fmt.Errorf("%w: %s %q must be key=value", model.ErrInvalidInput, kind, it)
		}
		key, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return nil, fmt.Errorf("%w: %s key %q is not an integer", model.ErrInvalidInput, kind, k)
		}
		val, err := parseValue(kind, v)
		if err != nil {
			return nil, err
		}
		out[key] = val
	}
	return out, nil
}
