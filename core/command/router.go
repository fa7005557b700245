package command

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/kilianp07/retailmarket/core/audit"
	"github.com/kilianp07/retailmarket/core/events"
	"github.com/kilianp07/retailmarket/core/logger"
	"github.com/kilianp07/retailmarket/core/model"
	"github.com/kilianp07/retailmarket/internal/eventbus"
)

var (
	// ErrControllerTerminated is returned for commands submitted after Close
	// or still queued when it was called.
	ErrControllerTerminated = errors.New("controller terminated")
	// ErrCommandTimeout is returned when no result arrived within the
	// submit timeout. The command may still be applied later.
	ErrCommandTimeout = errors.New("command timed out")
	// ErrRateLimited is returned when intake throttling rejects a command.
	ErrRateLimited = errors.New("command rate limited")
)

// Applier applies a typed command to the ledger.
type Applier interface {
	Apply(ctx context.Context, cmd model.Command) (audit.Outcome, error)
}

// Ack is returned to the submitter once its command was applied or refused.
type Ack struct {
	CommandID string            `json:"commandId"`
	Type      model.CommandType `json:"type,omitempty"`
	TariffID  int64             `json:"tariffId,omitempty"`
	Outcome   audit.Outcome     `json:"outcome,omitempty"`
	Error     string            `json:"error,omitempty"`
}

type result struct {
	outcome audit.Outcome
	err     error
}

type pending struct {
	id       string
	cmd      model.Command
	received time.Time
	done     chan result
}

// Router queues commands and applies them one at a time in receipt order.
// The controller drains the queue between ticks with Drain; Run provides a
// standalone consumer.
type Router struct {
	applier Applier
	bus     eventbus.EventBus[events.Event]
	log     logger.Logger
	limiter *rate.Limiter
	timeout time.Duration

	queue  chan *pending
	notify chan struct{}

	// processing serializes consumers so receipt order is preserved.
	processing sync.Mutex

	closeMu   sync.RWMutex
	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewRouter creates a router. bus may be nil.
func NewRouter(applier Applier, cfg Config, bus eventbus.EventBus[events.Event], log logger.Logger) (*Router, error) {
	if applier == nil {
		return nil, errors.New("command router: nil applier")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("command router config: %w", err)
	}
	r := &Router{
		applier: applier,
		bus:     bus,
		log:     log,
		timeout: cfg.SubmitTimeout(),
		queue:   make(chan *pending, cfg.QueueSize),
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	if cfg.RatePerSecond > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst)
	}
	return r, nil
}

// Submit validates and enqueues a raw command, then waits for its result.
func (r *Router) Submit(ctx context.Context, raw []byte) (Ack, error) {
	rc, err := r.Accept(ctx, raw)
	if err != nil {
		return rc.Ack(), err
	}
	return rc.Wait(ctx)
}

// SubmitCommand enqueues an already typed command and waits for its result.
func (r *Router) SubmitCommand(ctx context.Context, cmd model.Command) (Ack, error) {
	rc, err := r.AcceptCommand(ctx, "", cmd)
	if err != nil {
		return rc.Ack(), err
	}
	return rc.Wait(ctx)
}

// Receipt tracks an accepted command until its result is known.
type Receipt struct {
	ack      Ack
	p        *pending
	deadline time.Time
}

// Ack returns what is known about the command so far. After a failed
// Accept it carries the error.
func (rc *Receipt) Ack() Ack { return rc.ack }

// Wait blocks until the command was applied or refused, the submit timeout
// elapsed or ctx is done.
func (rc *Receipt) Wait(ctx context.Context) (Ack, error) {
	ack := rc.ack
	if !rc.deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, rc.deadline)
		defer cancel()
	}
	select {
	case res := <-rc.p.done:
		ack.Outcome = res.outcome
		if res.err != nil {
			ack.Error = res.err.Error()
			return ack, res.err
		}
		return ack, nil
	case <-ctx.Done():
		err := timeoutErr(ctx)
		ack.Error = err.Error()
		return ack, err
	}
}

// Accept validates and enqueues a raw command without waiting for its
// result. Commands accepted one after another are applied in that order.
// The returned Receipt is never nil.
func (r *Router) Accept(ctx context.Context, raw []byte) (*Receipt, error) {
	id, cmd, err := Decode(raw)
	if err != nil {
		r.log.Warnf("rejecting command: %v", err)
		return &Receipt{ack: Ack{CommandID: id, Error: err.Error()}}, err
	}
	return r.AcceptCommand(ctx, id, cmd)
}

// AcceptCommand enqueues a typed command under id, or a generated id when
// empty. The returned Receipt is never nil.
func (r *Router) AcceptCommand(ctx context.Context, id string, cmd model.Command) (*Receipt, error) {
	if id == "" {
		id = uuid.NewString()
	}
	rc := &Receipt{ack: Ack{CommandID: id}}
	fail := func(err error) (*Receipt, error) {
		rc.ack.Error = err.Error()
		return rc, err
	}
	if cmd == nil {
		return fail(fmt.Errorf("%w: nil command", ErrMalformedCommand))
	}
	rc.ack.Type = cmd.Type()
	rc.ack.TariffID = cmd.Tariff()
	if r.closed.Load() {
		return fail(ErrControllerTerminated)
	}
	if r.timeout > 0 {
		rc.deadline = time.Now().Add(r.timeout)
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, rc.deadline)
		defer cancel()
	}
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return fail(fmt.Errorf("%w: %v", ErrRateLimited, err))
		}
	}
	rc.p = &pending{id: id, cmd: cmd, received: time.Now(), done: make(chan result, 1)}
	if err := r.enqueue(ctx, rc.p); err != nil {
		return fail(err)
	}
	return rc, nil
}

func (r *Router) enqueue(ctx context.Context, p *pending) error {
	r.closeMu.RLock()
	defer r.closeMu.RUnlock()
	if r.closed.Load() {
		return ErrControllerTerminated
	}
	select {
	case r.queue <- p:
	case <-r.done:
		return ErrControllerTerminated
	case <-ctx.Done():
		return timeoutErr(ctx)
	}
	select {
	case r.notify <- struct{}{}:
	default:
	}
	return nil
}

func timeoutErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrCommandTimeout
	}
	return ctx.Err()
}

// Drain applies every queued command without waiting for new ones and
// returns how many were processed. It stops early when ctx is cancelled,
// leaving the rest queued.
func (r *Router) Drain(ctx context.Context) int {
	r.processing.Lock()
	n := 0
	for ctx.Err() == nil {
		p, ok := r.next()
		if !ok {
			break
		}
		r.process(ctx, p)
		n++
	}
	r.release()
	return n
}

func (r *Router) next() (*pending, bool) {
	select {
	case p := <-r.queue:
		return p, true
	default:
		return nil, false
	}
}

// release ends a consumer turn. Close skips the rejection while a consumer
// holds processing, so the consumer rejects what is left once closed.
func (r *Router) release() {
	r.processing.Unlock()
	if r.closed.Load() && r.processing.TryLock() {
		r.rejectQueued()
		r.processing.Unlock()
	}
}

// Run consumes commands as they arrive until ctx is cancelled or the router
// is closed.
func (r *Router) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.done:
			return nil
		case <-r.notify:
			r.Drain(ctx)
		}
	}
}

func (r *Router) process(ctx context.Context, p *pending) {
	if r.closed.Load() {
		p.done <- result{err: ErrControllerTerminated}
		return
	}
	outcome, err := r.applier.Apply(ctx, p.cmd)
	latency := time.Since(p.received)
	ev := events.CommandApplied{
		CommandID: p.id,
		Command:   p.cmd.Type(),
		TariffID:  p.cmd.Tariff(),
		Outcome:   string(outcome),
		Latency:   latency,
	}
	if err != nil {
		ev.Err = err.Error()
		r.log.Infof("command %s %s on tariff %d failed: %v", p.id, p.cmd.Type(), p.cmd.Tariff(), err)
	} else {
		r.log.Debugw("command applied", map[string]any{
			"command_id": p.id,
			"type":       string(p.cmd.Type()),
			"tariff_id":  p.cmd.Tariff(),
			"outcome":    string(outcome),
		})
	}
	if r.bus != nil {
		r.bus.Publish(ev)
	}
	p.done <- result{outcome: outcome, err: err}
}

// Pending returns the number of queued commands.
func (r *Router) Pending() int { return len(r.queue) }

// Close stops intake. Later submissions and commands still queued fail with
// ErrControllerTerminated.
func (r *Router) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
		r.closeMu.Lock()
		r.closed.Store(true)
		r.closeMu.Unlock()
		// A busy consumer rejects what is left in release.
		if r.processing.TryLock() {
			r.rejectQueued()
			r.processing.Unlock()
		}
	})
}

// Closed reports whether Close was called.
func (r *Router) Closed() bool { return r.closed.Load() }

func (r *Router) rejectQueued() {
	for {
		select {
		case p := <-r.queue:
			p.done <- result{err: ErrControllerTerminated}
		default:
			return
		}
	}
}
