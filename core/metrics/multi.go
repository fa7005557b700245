package metrics

import "errors"

// MultiSink fans records out to several sinks.
type MultiSink struct {
	Sinks []Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordTimeslot forwards to every sink and joins their errors.
func (m *MultiSink) RecordTimeslot(ev TimeslotEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordTimeslot(ev))
	}
	return errors.Join(errs...)
}

// RecordCommand forwards to every sink and joins their errors.
func (m *MultiSink) RecordCommand(ev CommandEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordCommand(ev))
	}
	return errors.Join(errs...)
}

// RecordModuleTimeout forwards to the sinks that track module health.
func (m *MultiSink) RecordModuleTimeout(ev ModuleTimeoutEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(ModuleHealthRecorder); ok {
			errs = append(errs, r.RecordModuleTimeout(ev))
		}
	}
	return errors.Join(errs...)
}

// RecordBusDrops forwards to the sinks that track bus health.
func (m *MultiSink) RecordBusDrops(total uint64) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(BusHealthRecorder); ok {
			errs = append(errs, r.RecordBusDrops(total))
		}
	}
	return errors.Join(errs...)
}
