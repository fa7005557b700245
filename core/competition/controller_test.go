package competition

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/retailmarket/core/audit"
	"github.com/kilianp07/retailmarket/core/command"
	"github.com/kilianp07/retailmarket/core/events"
	"github.com/kilianp07/retailmarket/core/model"
	"github.com/kilianp07/retailmarket/core/registry"
	"github.com/kilianp07/retailmarket/core/scheduler"
	"github.com/kilianp07/retailmarket/infra/logger"
	"github.com/kilianp07/retailmarket/internal/eventbus"
)

type listener struct {
	id    string
	mu    sync.Mutex
	ids   []int64
	logs  []string
	block chan struct{}
	delay time.Duration
	fail  error
	panic bool
}

func (l *listener) ID() string   { return l.id }
func (l *listener) Name() string { return l.id }
func (l *listener) OnTimeslot(ctx context.Context, ev events.TimeslotChanged) error {
	if l.block != nil {
		<-l.block
	}
	if l.delay > 0 {
		select {
		case <-time.After(l.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if l.panic {
		panic("module crashed")
	}
	l.mu.Lock()
	l.ids = append(l.ids, ev.ID())
	l.mu.Unlock()
	return l.fail
}
func (l *listener) Log(msg string) {
	l.mu.Lock()
	l.logs = append(l.logs, msg)
	l.mu.Unlock()
}
func (l *listener) seen() []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int64(nil), l.ids...)
}

type applier struct {
	mu      sync.Mutex
	applied int
}

func (a *applier) Apply(context.Context, model.Command) (audit.Outcome, error) {
	a.mu.Lock()
	a.applied++
	a.mu.Unlock()
	return audit.OutcomeAcknowledged, nil
}

type harness struct {
	ctrl   *Controller
	reg    *registry.Registry
	router *command.Router
	bus    *eventbus.Bus[events.Event]
	sched  *scheduler.Scheduler
}

func newHarness(t *testing.T, cfg Config) harness {
	t.Helper()
	sched, err := scheduler.New(scheduler.Config{TimeslotLengthMinutes: 60, SimulationRate: 3_600_000})
	require.NoError(t, err)
	bus := eventbus.NewWithBuffer[events.Event](256)
	router, err := command.NewRouter(&applier{}, command.Config{SubmitTimeoutMS: 2000}, bus, logger.NopLogger{})
	require.NoError(t, err)
	reg := registry.New()
	ctrl, err := New(cfg, sched, reg, router, bus, logger.NopLogger{})
	require.NoError(t, err)
	return harness{ctrl: ctrl, reg: reg, router: router, bus: bus, sched: sched}
}

func (h harness) register(t *testing.T, c model.Capability, l *listener) {
	t.Helper()
	require.NoError(t, h.reg.Register(c, l.id, l))
}

func TestStep_AllModulesSeeSameIncreasingIDs(t *testing.T) {
	for _, concurrent := range []bool{false, true} {
		h := newHarness(t, Config{ConcurrentBroadcast: concurrent})
		mods := []*listener{{id: "c1"}, {id: "c2"}, {id: "c3"}}
		for _, m := range mods {
			h.register(t, model.CapabilityCustomer, m)
		}
		du := &listener{id: "du"}
		h.register(t, model.CapabilityDistributionUtility, du)

		for i := 0; i < 5; i++ {
			round, err := h.ctrl.Step(context.Background())
			require.NoError(t, err)
			assert.Equal(t, int64(i+1), round.Timeslot.ID)
			assert.Len(t, round.Notified, 4)
		}
		want := []int64{1, 2, 3, 4, 5}
		for _, m := range append(mods, du) {
			assert.Equal(t, want, m.seen(), "module %s concurrent=%v", m.id, concurrent)
		}
		assert.Len(t, du.logs, 5)
		assert.Contains(t, du.logs[0], "timeslot 1")
	}
}

func TestStep_BroadcastOrder(t *testing.T) {
	h := newHarness(t, Config{})
	h.register(t, model.CapabilityDistributionUtility, &listener{id: "du"})
	h.register(t, model.CapabilityCustomer, &listener{id: "b"})
	h.register(t, model.CapabilityCustomer, &listener{id: "a"})
	round, err := h.ctrl.Step(context.Background())
	require.NoError(t, err)
	ids := make([]string, len(round.Notified))
	for i, r := range round.Notified {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"b", "a", "du"}, ids)
}

func TestStep_TimeoutDoesNotAbortRound(t *testing.T) {
	h := newHarness(t, Config{ModuleTimeoutMS: 30})
	sub := h.bus.Subscribe()
	release := make(chan struct{})
	defer close(release)
	slow := &listener{id: "slow", block: release}
	fast := &listener{id: "fast"}
	h.register(t, model.CapabilityCustomer, slow)
	h.register(t, model.CapabilityCustomer, fast)

	round, err := h.ctrl.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []ModuleRef{{Capability: model.CapabilityCustomer, ID: "slow"}}, round.TimedOut)
	assert.Equal(t, []ModuleRef{{Capability: model.CapabilityCustomer, ID: "fast"}}, round.Notified)
	assert.Equal(t, []int64{1}, fast.seen())
	assert.Equal(t, 2, h.reg.Len(model.CapabilityCustomer), "timed out module stays registered")

	var timeout *events.ModuleTimeout
	for timeout == nil {
		select {
		case ev := <-sub:
			if mt, ok := ev.(events.ModuleTimeout); ok {
				timeout = &mt
			}
		case <-time.After(time.Second):
			t.Fatalf("no ModuleTimeout event")
		}
	}
	assert.Equal(t, "slow", timeout.ModuleID)
	assert.Equal(t, int64(1), timeout.Timeslot)
}

func TestStep_FailuresIsolated(t *testing.T) {
	h := newHarness(t, Config{})
	h.register(t, model.CapabilityCustomer, &listener{id: "panics", panic: true})
	h.register(t, model.CapabilityCustomer, &listener{id: "errs", fail: errors.New("nope")})
	ok := &listener{id: "ok"}
	h.register(t, model.CapabilityCustomer, ok)

	round, err := h.ctrl.Step(context.Background())
	require.NoError(t, err)
	assert.Len(t, round.Failed, 2)
	assert.Len(t, round.Notified, 1)
	assert.Equal(t, []int64{1}, ok.seen())
}

func TestStep_DrainsCommands(t *testing.T) {
	h := newHarness(t, Config{})
	done := make(chan error, 1)
	go func() {
		_, err := h.router.SubmitCommand(context.Background(), model.TariffReply{TariffID: 1, Accepted: true})
		done <- err
	}()
	require.Eventually(t, func() bool { return h.router.Pending() == 1 }, time.Second, time.Millisecond)
	round, err := h.ctrl.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, round.Commands)
	require.NoError(t, <-done)
}

func TestShutdown_RejectsCommandsAndTicks(t *testing.T) {
	h := newHarness(t, Config{})
	_, err := h.ctrl.Step(context.Background())
	require.NoError(t, err)

	require.NoError(t, h.ctrl.Shutdown(context.Background()))
	_, err = h.ctrl.Step(context.Background())
	assert.ErrorIs(t, err, ErrControllerTerminated)
	assert.ErrorIs(t, err, command.ErrControllerTerminated)
	_, err = h.router.SubmitCommand(context.Background(), model.TariffReply{TariffID: 1})
	assert.ErrorIs(t, err, command.ErrControllerTerminated)
	assert.Equal(t, scheduler.Stopped, h.sched.State())
}

func TestShutdown_InFlightRoundCompletes(t *testing.T) {
	h := newHarness(t, Config{ModuleTimeoutMS: 2000, GracePeriodMS: 2000})
	release := make(chan struct{})
	h.register(t, model.CapabilityCustomer, &listener{id: "slow", block: release})
	h.register(t, model.CapabilityDistributionUtility, &listener{id: "du"})

	acked := make(chan error, 1)
	go func() {
		_, err := h.router.SubmitCommand(context.Background(), model.TariffReply{TariffID: 1, Accepted: true})
		acked <- err
	}()
	require.Eventually(t, func() bool { return h.router.Pending() == 1 }, time.Second, time.Millisecond)

	stepped := make(chan Round, 1)
	go func() {
		r, _ := h.ctrl.Step(context.Background())
		stepped <- r
	}()
	time.Sleep(20 * time.Millisecond)
	time.AfterFunc(50*time.Millisecond, func() { close(release) })

	require.NoError(t, h.ctrl.Shutdown(context.Background()))
	r := <-stepped
	assert.Len(t, r.Notified, 2)
	assert.Empty(t, r.TimedOut)
	assert.Empty(t, r.Abandoned)
	assert.Equal(t, 1, r.Commands)
	assert.NoError(t, <-acked)
	assert.True(t, h.router.Closed())
}

func TestRun_CancelledMidRoundFinishesRound(t *testing.T) {
	h := newHarness(t, Config{ModuleTimeoutMS: 2000, GracePeriodMS: 2000})
	h.register(t, model.CapabilityCustomer, &listener{id: "slow", delay: 200 * time.Millisecond})
	sub := h.bus.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- h.ctrl.Run(ctx) }()
	for started := false; !started; {
		select {
		case ev := <-sub:
			_, started = ev.(events.TimeslotChanged)
		case <-time.After(time.Second):
			t.Fatalf("no timeslot started")
		}
	}
	time.Sleep(50 * time.Millisecond)
	cancel()

	begin := time.Now()
	require.NoError(t, h.ctrl.Shutdown(context.Background()))
	assert.GreaterOrEqual(t, time.Since(begin), 100*time.Millisecond, "shutdown waited for the round")
	require.NoError(t, <-errc)

	var completed *events.RoundCompleted
	for completed == nil {
		select {
		case ev := <-sub:
			switch e := ev.(type) {
			case events.ModuleTimeout:
				t.Fatalf("unexpected module timeout: %+v", e)
			case events.RoundCompleted:
				completed = &e
			}
		case <-time.After(time.Second):
			t.Fatalf("no RoundCompleted event")
		}
	}
	assert.Equal(t, 1, completed.Notified)
	assert.Zero(t, completed.TimedOut)
	assert.Zero(t, completed.Abandoned)
}

func TestShutdown_Forced(t *testing.T) {
	h := newHarness(t, Config{ModuleTimeoutMS: 5000, GracePeriodMS: 20})
	release := make(chan struct{})
	defer close(release)
	h.register(t, model.CapabilityCustomer, &listener{id: "stuck", block: release})

	stepped := make(chan Round, 1)
	go func() {
		r, _ := h.ctrl.Step(context.Background())
		stepped <- r
	}()
	time.Sleep(20 * time.Millisecond)
	err := h.ctrl.Shutdown(context.Background())
	assert.ErrorIs(t, err, ErrShutdownForced)

	select {
	case r := <-stepped:
		assert.Len(t, r.Abandoned, 1)
		assert.Empty(t, r.TimedOut)
	case <-time.After(time.Second):
		t.Fatalf("in-flight round did not unwind after forced shutdown")
	}
}

func TestRun_StopsAtGameLength(t *testing.T) {
	h := newHarness(t, Config{MinTimeslots: 3, ExpectedTimeslots: 3})
	sub := h.bus.Subscribe()
	c := &listener{id: "c"}
	h.register(t, model.CapabilityCustomer, c)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.ctrl.Run(ctx))
	assert.Equal(t, []int64{1, 2, 3}, c.seen())
	assert.True(t, h.ctrl.Terminated())

	var end *events.SimEnd
	var sawStart bool
	for end == nil {
		select {
		case ev := <-sub:
			switch e := ev.(type) {
			case events.SimStart:
				sawStart = true
			case events.SimEnd:
				end = &e
			}
		case <-time.After(time.Second):
			t.Fatalf("no SimEnd event")
		}
	}
	assert.True(t, sawStart)
	assert.Equal(t, int64(3), end.LastTimeslot)
}

func TestRun_ShutdownStopsLoop(t *testing.T) {
	h := newHarness(t, Config{})
	errc := make(chan error, 1)
	go func() { errc <- h.ctrl.Run(context.Background()) }()
	require.Eventually(t, func() bool { return h.ctrl.LastTimeslot() >= 2 }, 2*time.Second, time.Millisecond)
	require.NoError(t, h.ctrl.Shutdown(context.Background()))
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("run did not return")
	}
}

func TestPauseRequests(t *testing.T) {
	h := newHarness(t, Config{})
	_, err := h.ctrl.Step(context.Background())
	require.NoError(t, err)

	require.NoError(t, h.ctrl.RequestPause("b1"))
	assert.Equal(t, scheduler.Paused, h.sched.State())
	assert.ErrorIs(t, h.ctrl.RequestPause("b2"), ErrPauseHeld)
	assert.ErrorIs(t, h.ctrl.ReleasePause("b2"), ErrNotPaused)
	_, err = h.ctrl.Step(context.Background())
	assert.ErrorIs(t, err, scheduler.ErrNotRunning)

	require.NoError(t, h.ctrl.ReleasePause("b1"))
	assert.Equal(t, scheduler.Running, h.sched.State())
	round, err := h.ctrl.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), round.Timeslot.ID)
}

func TestShutdown_NoGracePeriod(t *testing.T) {
	h := newHarness(t, Config{ModuleTimeoutMS: 5000, GracePeriodMS: -1})
	assert.Zero(t, h.ctrl.GracePeriod())
	release := make(chan struct{})
	defer close(release)
	h.register(t, model.CapabilityCustomer, &listener{id: "stuck", block: release})

	go func() { _, _ = h.ctrl.Step(context.Background()) }()
	time.Sleep(20 * time.Millisecond)
	begin := time.Now()
	assert.ErrorIs(t, h.ctrl.Shutdown(context.Background()), ErrShutdownForced)
	assert.Less(t, time.Since(begin), 100*time.Millisecond)
}

func TestShutdown_IdleWithNoGracePeriod(t *testing.T) {
	h := newHarness(t, Config{GracePeriodMS: -1})
	assert.NoError(t, h.ctrl.Shutdown(context.Background()))
}

func TestConfig_GracePeriod(t *testing.T) {
	for ms, want := range map[int]time.Duration{0: 5 * time.Second, -1: 0, 300: 300 * time.Millisecond} {
		cfg := Config{GracePeriodMS: ms}
		cfg.SetDefaults()
		require.NoError(t, cfg.Validate())
		assert.Equal(t, want, cfg.gracePeriod(), "grace_period_ms=%d", ms)
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{}, nil, registry.New(), nil, nil, logger.NopLogger{})
	assert.Error(t, err)
	sched, _ := scheduler.New(scheduler.Config{})
	_, err = New(Config{ModuleTimeoutMS: -1}, sched, registry.New(), nil, nil, logger.NopLogger{})
	assert.Error(t, err)
}
