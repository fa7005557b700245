package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/retailmarket/core/metrics"
	"github.com/kilianp07/retailmarket/infra/logger"
)

const writeTimeout = 5 * time.Second

// InfluxSink writes competition points to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// InfluxConfig holds the InfluxDB endpoint.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: writeTimeout}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.Sink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordTimeslot writes one timeslot_round point.
func (s *InfluxSink) RecordTimeslot(ev coremetrics.TimeslotEvent) error {
	p := write.NewPointWithMeasurement("timeslot_round").
		AddTag("component", "competition").
		AddField("timeslot", ev.Timeslot).
		AddField("notified", ev.Notified).
		AddField("timed_out", ev.TimedOut).
		AddField("failed", ev.Failed).
		AddField("commands", ev.Commands).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordCommand writes one command_applied point.
func (s *InfluxSink) RecordCommand(ev coremetrics.CommandEvent) error {
	p := write.NewPointWithMeasurement("command_applied").
		AddTag("command", string(ev.Command)).
		AddTag("outcome", ev.Outcome).
		AddTag("command_id", ev.CommandID).
		AddField("tariff_id", ev.TariffID).
		AddField("latency_ms", round3(ev.Latency.Seconds()*1000)).
		AddField("errors", ev.Error).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordModuleTimeout writes one module_timeout point.
func (s *InfluxSink) RecordModuleTimeout(ev coremetrics.ModuleTimeoutEvent) error {
	p := write.NewPointWithMeasurement("module_timeout").
		AddTag("capability", ev.Capability.String()).
		AddTag("module_id", ev.ModuleID).
		AddField("timeslot", ev.Timeslot).
		AddField("waited_ms", round3(ev.Waited.Seconds()*1000)).
		SetTime(ev.Time)
	return s.write(p)
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
