package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/retailmarket/core/events"
	"github.com/kilianp07/retailmarket/core/model"
	"github.com/kilianp07/retailmarket/internal/eventbus"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeWriter) snapshot() []kafka.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]kafka.Message(nil), f.msgs...)
}

func TestPublish_TimeslotHeader(t *testing.T) {
	w := &fakeWriter{}
	p := NewEventPublisher(w, Config{Brokers: []string{"localhost:9092"}, Topic: "market"})
	ev := events.TimeslotChanged{Timeslot: model.Timeslot{ID: 7, Enabled: true}}
	require.NoError(t, p.Publish(context.Background(), ev))

	msgs := w.snapshot()
	require.Len(t, msgs, 1)
	assert.Equal(t, "TimeslotChanged", string(msgs[0].Key))
	require.Len(t, msgs[0].Headers, 1)
	assert.Equal(t, "7", string(msgs[0].Headers[0].Value))

	var body map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Value, &body))
	assert.EqualValues(t, 7, body["id"])
}

func TestRun_FiltersAndCloses(t *testing.T) {
	w := &fakeWriter{}
	p := NewEventPublisher(w, Config{})
	bus := eventbus.New[events.Event]()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx, bus)
		close(done)
	}()

	require.Eventually(t, func() bool {
		bus.Publish(events.CommandApplied{CommandID: "c"})
		bus.Publish(events.SimEnd{LastTimeslot: 3, Reason: "game length reached"})
		return len(w.snapshot()) > 0
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	for _, m := range w.snapshot() {
		assert.Equal(t, "SimEnd", string(m.Key))
	}
	assert.True(t, w.closed)
}

func TestForward_FlushesBufferedAfterCancel(t *testing.T) {
	w := &fakeWriter{}
	p := NewEventPublisher(w, Config{})
	bus := eventbus.New[events.Event]()
	sub := bus.Subscribe()
	bus.Publish(events.RoundCompleted{Timeslot: 3})
	bus.Publish(events.SimEnd{LastTimeslot: 3, Reason: "shutdown"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, p.Forward(ctx, sub))

	msgs := w.snapshot()
	require.Len(t, msgs, 2)
	assert.Equal(t, "SimEnd", string(msgs[1].Key))
	assert.True(t, w.closed)
}

func TestConfig(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.NoError(t, Config{}.Validate())
	assert.Error(t, Config{Brokers: []string{"b:9092"}}.Validate())
	assert.NoError(t, Config{Brokers: []string{"b:9092"}, Topic: "t"}.Validate())
}
