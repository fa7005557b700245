// Package kafka mirrors competition events onto a Kafka topic so that
// downstream consumers can replay a game.
package kafka

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/kilianp07/retailmarket/core/events"
	"github.com/kilianp07/retailmarket/infra/logger"
	"github.com/kilianp07/retailmarket/internal/eventbus"
)

// Config defines the Kafka connection. Publishing is disabled when Brokers
// is empty.
type Config struct {
	Brokers      []string `json:"brokers"`
	Topic        string   `json:"topic"`
	WriteTimeout int      `json:"write_timeout_ms"`
}

// Enabled reports whether at least one broker is configured.
func (c Config) Enabled() bool { return len(c.Brokers) > 0 }

// Validate checks the topic when publishing is enabled.
func (c Config) Validate() error {
	if c.Enabled() && c.Topic == "" {
		return errors.New("kafka topic is required")
	}
	return nil
}

// Writer is the subset of *kafka.Writer used by the publisher.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventPublisher writes lifecycle and timeslot events keyed by event type.
type EventPublisher struct {
	w       Writer
	timeout time.Duration
	log     logger.Logger
}

// NewWriter builds a synchronous writer for cfg.
func NewWriter(cfg Config) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		RequiredAcks: kafka.RequireOne,
		Balancer:     &kafka.Hash{},
		Async:        false,
	}
}

// NewEventPublisher wraps w.
func NewEventPublisher(w Writer, cfg Config) *EventPublisher {
	timeout := time.Duration(cfg.WriteTimeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &EventPublisher{w: w, timeout: timeout, log: logger.New("kafka_events")}
}

// Publishes reports whether e is mirrored to Kafka.
func Publishes(e events.Event) bool {
	switch e.(type) {
	case events.TimeslotChanged, events.SimStart, events.SimEnd, events.RoundCompleted:
		return true
	default:
		return false
	}
}

// Publish writes one event.
func (p *EventPublisher) Publish(ctx context.Context, e events.Event) error {
	b, err := events.Marshal(e)
	if err != nil {
		return err
	}
	msg := kafka.Message{Key: []byte(e.EventType()), Value: b, Time: time.Now()}
	if ts, ok := e.(events.TimeslotChanged); ok {
		msg.Headers = []kafka.Header{{Key: "timeslot", Value: []byte(strconv.FormatInt(ts.ID(), 10))}}
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.w.WriteMessages(ctx, msg)
}

// Run forwards bus events until ctx is done or the bus is closed, then
// closes the writer.
func (p *EventPublisher) Run(ctx context.Context, bus eventbus.EventBus[events.Event]) error {
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)
	return p.Forward(ctx, sub)
}

// Forward publishes the events of sub until ctx is done or sub is closed,
// then closes the writer. Writes are bounded by the write timeout only, so
// events already buffered when ctx is done are still written.
func (p *EventPublisher) Forward(ctx context.Context, sub <-chan events.Event) error {
	wctx := context.WithoutCancel(ctx)
	defer func() {
		if err := p.w.Close(); err != nil {
			p.log.Warnf("close writer: %v", err)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			p.flush(wctx, sub)
			return nil
		case e, ok := <-sub:
			if !ok {
				return nil
			}
			p.forward(wctx, e)
		}
	}
}

func (p *EventPublisher) flush(ctx context.Context, sub <-chan events.Event) {
	for {
		select {
		case e, ok := <-sub:
			if !ok {
				return
			}
			p.forward(ctx, e)
		default:
			return
		}
	}
}

func (p *EventPublisher) forward(ctx context.Context, e events.Event) {
	if !Publishes(e) {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		p.log.Warnf("publish %s: %v", e.EventType(), err)
	}
}
