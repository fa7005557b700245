// Package metrics defines the sinks that record competition metrics. Sinks
// like PromSink and InfluxSink in infra/metrics record finished rounds and
// applied commands and can be combined with NewMultiSink. NewSink returns a
// MultiSink automatically when several sinks are configured.
package metrics
