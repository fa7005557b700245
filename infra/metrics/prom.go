package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/retailmarket/core/metrics"
)

// PromSink records competition metrics in Prometheus collectors.
type PromSink struct {
	timeslots  prometheus.Counter
	current    prometheus.Gauge
	roundTime  prometheus.Histogram
	modules    *prometheus.CounterVec
	commands   *prometheus.CounterVec
	cmdLatency *prometheus.HistogramVec
	timeouts   *prometheus.CounterVec
	busDropped prometheus.Gauge
}

// NewPromSink registers the collectors on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers the collectors on reg. A nil registerer
// defaults to the global one. Collectors already registered are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		timeslots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "competition_timeslots_total",
			Help: "Number of completed timeslots",
		}),
		current: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "competition_current_timeslot",
			Help: "Id of the last completed timeslot",
		}),
		roundTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "competition_round_duration_seconds",
			Help:    "Wall-clock duration of a round including command drain",
			Buckets: prometheus.DefBuckets,
		}),
		modules: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "competition_module_notifications_total",
			Help: "Module notifications by result",
		}, []string{"result"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "competition_commands_total",
			Help: "Commands applied by type and outcome",
		}, []string{"command", "outcome"}),
		cmdLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "competition_command_latency_seconds",
			Help:    "Time between command receipt and application",
			Buckets: prometheus.DefBuckets,
		}, []string{"command"}),
		timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "competition_module_timeouts_total",
			Help: "Broadcasts a module did not answer in time",
		}, []string{"capability", "module_id"}),
		busDropped: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "competition_event_bus_dropped",
			Help: "Events dropped because a subscriber was too slow",
		}),
	}
	var err error
	if s.timeslots, err = register(reg, s.timeslots); err != nil {
		return nil, err
	}
	if s.current, err = register(reg, s.current); err != nil {
		return nil, err
	}
	if s.roundTime, err = register(reg, s.roundTime); err != nil {
		return nil, err
	}
	if s.modules, err = register(reg, s.modules); err != nil {
		return nil, err
	}
	if s.commands, err = register(reg, s.commands); err != nil {
		return nil, err
	}
	if s.cmdLatency, err = register(reg, s.cmdLatency); err != nil {
		return nil, err
	}
	if s.timeouts, err = register(reg, s.timeouts); err != nil {
		return nil, err
	}
	if s.busDropped, err = register(reg, s.busDropped); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordTimeslot updates the round collectors.
func (s *PromSink) RecordTimeslot(ev coremetrics.TimeslotEvent) error {
	s.timeslots.Inc()
	s.current.Set(float64(ev.Timeslot))
	s.roundTime.Observe(ev.Duration.Seconds())
	s.modules.WithLabelValues("notified").Add(float64(ev.Notified))
	s.modules.WithLabelValues("timed_out").Add(float64(ev.TimedOut))
	s.modules.WithLabelValues("failed").Add(float64(ev.Failed))
	return nil
}

// RecordCommand counts the command and observes its latency.
func (s *PromSink) RecordCommand(ev coremetrics.CommandEvent) error {
	outcome := ev.Outcome
	if ev.Error != "" {
		outcome = "error"
	}
	s.commands.WithLabelValues(string(ev.Command), outcome).Inc()
	s.cmdLatency.WithLabelValues(string(ev.Command)).Observe(ev.Latency.Seconds())
	return nil
}

// RecordModuleTimeout counts a module overrun.
func (s *PromSink) RecordModuleTimeout(ev coremetrics.ModuleTimeoutEvent) error {
	s.timeouts.WithLabelValues(ev.Capability.String(), ev.ModuleID).Inc()
	return nil
}

// RecordBusDrops sets the gauge to the total number of dropped events.
func (s *PromSink) RecordBusDrops(total uint64) error {
	s.busDropped.Set(float64(total))
	return nil
}
