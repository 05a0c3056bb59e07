package config

import (
	"fmt"
	"time"

	"github.com/keilos1/harvestplan/core/lp"
	"github.com/keilos1/harvestplan/core/optimizer"
)

// SolverConfig tunes the optimizer. Zero values take the optimizer
// defaults.
type SolverConfig struct {
	PlanEpsilon    float64 `json:"plan_epsilon"`
	ShadowEpsilon  float64 `json:"shadow_epsilon"`
	Tolerance      float64 `json:"tolerance"`
	TimeoutSeconds int     `json:"timeout_seconds"`
}

func (c *SolverConfig) SetDefaults() {
	def := optimizer.DefaultOptions()
	if c.PlanEpsilon == 0 {
		c.PlanEpsilon = def.PlanEpsilon
	}
	if c.ShadowEpsilon == 0 {
		c.ShadowEpsilon = def.ShadowEpsilon
	}
	if c.Tolerance == 0 {
		c.Tolerance = def.Solver.Tolerance
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = int(def.Solver.Timeout / time.Second)
	}
}

func (c SolverConfig) Validate() error {
	if c.PlanEpsilon < 0 || c.ShadowEpsilon < 0 {
		return fmt.Errorf("epsilons cannot be negative")
	}
	if c.Tolerance < 0 || c.Tolerance >= 1 {
		return fmt.Errorf("tolerance %g out of range", c.Tolerance)
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds cannot be negative")
	}
	return nil
}

// Options converts the section to optimizer options.
func (c SolverConfig) Options() optimizer.Options {
	return optimizer.Options{
		PlanEpsilon:   c.PlanEpsilon,
		ShadowEpsilon: c.ShadowEpsilon,
		Solver: lp.Options{
			Tolerance: c.Tolerance,
			Timeout:   time.Duration(c.TimeoutSeconds) * time.Second,
		},
	}
}
