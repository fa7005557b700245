package mqtt

import (
	"context"

	"github.com/kilianp07/retailmarket/core/events"
	"github.com/kilianp07/retailmarket/infra/logger"
	"github.com/kilianp07/retailmarket/internal/eventbus"
)

// EventPublisher forwards bus events to the event channel. Per-module
// details such as CommandApplied stay internal.
type EventPublisher struct {
	client *Client
	topic  string
	log    logger.Logger
}

// NewEventPublisher creates a publisher for topic.
func NewEventPublisher(client *Client, topic string) *EventPublisher {
	return &EventPublisher{client: client, topic: topic, log: logger.New("mqtt_events")}
}

// Publishes reports whether e is sent on the event channel.
func Publishes(e events.Event) bool {
	switch e.(type) {
	case events.TimeslotChanged, events.SimStart, events.SimEnd, events.SimPause, events.SimResume:
		return true
	default:
		return false
	}
}

// Publish sends one event.
func (p *EventPublisher) Publish(e events.Event) error {
	b, err := events.Marshal(e)
	if err != nil {
		return err
	}
	return p.client.Publish(p.topic, KindEvent, false, b)
}

// Run subscribes to bus and publishes events until ctx is done or the bus
// is closed.
func (p *EventPublisher) Run(ctx context.Context, bus eventbus.EventBus[events.Event]) error {
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)
	return p.Forward(ctx, sub)
}

// Forward publishes the events of sub until ctx is done or sub is closed.
// Events already buffered when ctx is done are still sent.
func (p *EventPublisher) Forward(ctx context.Context, sub <-chan events.Event) error {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case e, ok := <-sub:
					if !ok {
						return nil
					}
					p.forward(e)
				default:
					return nil
				}
			}
		case e, ok := <-sub:
			if !ok {
				return nil
			}
			p.forward(e)
		}
	}
}

func (p *EventPublisher) forward(e events.Event) {
	if !Publishes(e) {
		return
	}
	if err := p.Publish(e); err != nil {
		p.log.Warnf("publish %s: %v", e.EventType(), err)
	}
}
