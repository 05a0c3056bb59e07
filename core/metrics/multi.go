package metrics

// MultiSink forwards every event to each of its sinks. Optional events only
// reach sinks that implement the matching recorder. The first error stops
// the fan-out.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink combines sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

func (m *MultiSink) RecordSolve(ev SolveEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordSolve(ev); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiSink) RecordEdit(ev EditEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(EditRecorder); ok {
			if err := rec.RecordEdit(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MultiSink) RecordPublish(ev PublishEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(PublishRecorder); ok {
			if err := rec.RecordPublish(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
