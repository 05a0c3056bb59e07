package metrics

import "github.com/keilos1/harvestplan/core/factory"

// Config lists the sinks to build and where Prometheus is served.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusAddr enables the /metrics endpoint when not empty.
	PrometheusAddr string `json:"prometheus_addr"`
}
