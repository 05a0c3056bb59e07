// Package factory builds pluggable components, such as metrics sinks, from
// configuration. A component is named by a type string and carries a map
// of raw settings that its factory decodes into a typed struct.
//
//	reg := factory.NewRegistry[metrics.MetricsSink]()
//	_ = reg.Register("nop", func(map[string]any) (metrics.MetricsSink, error) {
//	    return metrics.NopSink{}, nil
//	})
//	sink, err := reg.Create(factory.ModuleConfig{Type: "nop"})
package factory
