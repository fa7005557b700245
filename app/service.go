// Package app wires the competition components from configuration and runs
// them until shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/retailmarket/app/plugins"
	"github.com/kilianp07/retailmarket/config"
	"github.com/kilianp07/retailmarket/core/accounting"
	"github.com/kilianp07/retailmarket/core/audit"
	"github.com/kilianp07/retailmarket/core/command"
	"github.com/kilianp07/retailmarket/core/competition"
	"github.com/kilianp07/retailmarket/core/events"
	coremetrics "github.com/kilianp07/retailmarket/core/metrics"
	"github.com/kilianp07/retailmarket/core/model"
	"github.com/kilianp07/retailmarket/core/registry"
	"github.com/kilianp07/retailmarket/core/rules"
	"github.com/kilianp07/retailmarket/core/scheduler"
	"github.com/kilianp07/retailmarket/infra/kafka"
	"github.com/kilianp07/retailmarket/infra/logger"
	"github.com/kilianp07/retailmarket/infra/metrics"
	"github.com/kilianp07/retailmarket/infra/mqtt"
	"github.com/kilianp07/retailmarket/internal/eventbus"
)

// Service orchestrates the controller, the command path and the transports.
type Service struct {
	Registry   *registry.Registry
	Scheduler  *scheduler.Scheduler
	Accounting *accounting.Service
	Router     *command.Router
	Controller *competition.Controller

	cfg    *config.Config
	bus    *eventbus.Bus[events.Event]
	store  audit.Store
	sink   coremetrics.Sink
	client *mqtt.Client
	kafka  *kafka.EventPublisher
	log    logger.Logger

	stopOnce sync.Once
}

// New creates a Service from the configuration and connects to the broker.
func New(cfg *config.Config) (*Service, error) {
	svc, err := newCore(cfg)
	if err != nil {
		return nil, err
	}
	client, err := mqtt.NewClient(cfg.MQTT)
	if err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("mqtt client: %w", err)
	}
	svc.client = client
	if cfg.Kafka.Enabled() {
		svc.kafka = kafka.NewEventPublisher(kafka.NewWriter(cfg.Kafka), cfg.Kafka)
	}
	return svc, nil
}

// newCore builds every component that does not need a broker.
func newCore(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	clock, err := scheduler.New(cfg.Scheduler)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	reg := registry.New()
	if err := plugins.RegisterModules(reg, cfg.Modules); err != nil {
		return nil, fmt.Errorf("modules: %w", err)
	}
	chain, err := rules.NewChain(reg, cfg.Rules, logger.New("rules"))
	if err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}

	var tariffs []model.Tariff
	if cfg.Ledger.TariffsFile != "" {
		if tariffs, err = accounting.LoadTariffs(cfg.Ledger.TariffsFile); err != nil {
			return nil, fmt.Errorf("ledger: %w", err)
		}
	}
	ledger, err := accounting.NewLedger(tariffs...)
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	store, err := plugins.NewAuditStore(cfg.Audit)
	if err != nil {
		return nil, fmt.Errorf("audit store: %w", err)
	}
	sink, err := coremetrics.NewSink(cfg.Metrics.Sinks)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	bus := eventbus.New[events.Event]()
	acct := accounting.NewService(ledger, chain, store, clock, logger.New("accounting"))
	router, err := command.NewRouter(acct, cfg.Router, bus, logger.New("router"))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("command router: %w", err)
	}
	ctrl, err := competition.New(cfg.Competition, clock, reg, router, bus, logger.New("controller"))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("controller: %w", err)
	}
	logg.Infof("competition ready: %d tariffs, game length %d", len(tariffs), ctrl.GameLength())
	return &Service{
		Registry:   reg,
		Scheduler:  clock,
		Accounting: acct,
		Router:     router,
		Controller: ctrl,
		cfg:        cfg,
		bus:        bus,
		store:      store,
		sink:       sink,
		log:        logg,
	}, nil
}

// Bus returns the event bus shared by the components.
func (s *Service) Bus() eventbus.EventBus[events.Event] { return s.bus }

// Run starts the competition and blocks until the game ends or ctx is
// cancelled. Cancellation shuts the controller down, letting the in-flight
// round finish within the grace period. Event forwarders stop only once the
// controller has ended, so SimEnd still reaches them.
func (s *Service) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	fwdCtx, stopForwarders := context.WithCancel(context.WithoutCancel(ctx))
	defer stopForwarders()

	metrics.StartEventCollector(fwdCtx, s.bus, s.sink)
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		g.Go(func() error { return metrics.StartPromServer(gctx, addr) })
	}
	if s.client != nil {
		if err := s.startTransport(gctx, fwdCtx, g); err != nil {
			return err
		}
	}
	if !s.cfg.Router.ApplyBetweenTicks {
		g.Go(func() error {
			if err := s.Router.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	if s.kafka != nil {
		sub := s.bus.Subscribe()
		g.Go(func() error {
			defer s.bus.Unsubscribe(sub)
			return s.kafka.Forward(fwdCtx, sub)
		})
	}

	ended := make(chan struct{})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			s.shutdown()
		case <-ended:
		}
		return nil
	})
	g.Go(func() error {
		err := s.Controller.Run(gctx)
		s.shutdown()
		close(ended)
		stopForwarders()
		cancel()
		return err
	})
	return g.Wait()
}

func (s *Service) startTransport(ctx, fwdCtx context.Context, g *errgroup.Group) error {
	t := s.cfg.Transport
	listener := mqtt.NewCommandListener(s.client, t.CommandChannel, t.ReplyChannel, s.Router)
	if err := listener.Start(ctx); err != nil {
		return fmt.Errorf("command listener: %w", err)
	}
	directives := plugins.NewDirectives(s.Registry, s.Controller, logger.New("directives"))
	if err := mqtt.NewDirectiveListener(s.client, t.ModuleChannel, directives).Start(); err != nil {
		return fmt.Errorf("module listener: %w", err)
	}
	pub := mqtt.NewEventPublisher(s.client, t.EventChannel)
	sub := s.bus.Subscribe()
	g.Go(func() error {
		defer s.bus.Unsubscribe(sub)
		return pub.Forward(fwdCtx, sub)
	})
	g.Go(func() error {
		<-ctx.Done()
		listener.Wait()
		return nil
	})
	return nil
}

// shutdown stops the controller once, whichever of cancellation or the end
// of the game comes first.
func (s *Service) shutdown() {
	s.stopOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.Controller.GracePeriod()+time.Second)
		defer cancel()
		if err := s.Controller.Shutdown(ctx); err != nil {
			if errors.Is(err, competition.ErrShutdownForced) {
				s.log.Warnf("shutdown: %v", err)
			} else {
				s.log.Errorf("shutdown: %v", err)
			}
		}
	})
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.client != nil {
		s.client.Disconnect()
	}
	s.bus.Close()
	return s.store.Close()
}
