package scenarios

import (
	"context"
	"errors"
	"testing"

	"github.com/kilianp07/retailmarket/app/plugins"
	"github.com/kilianp07/retailmarket/config"
	"github.com/kilianp07/retailmarket/core/accounting"
	"github.com/kilianp07/retailmarket/core/audit"
	"github.com/kilianp07/retailmarket/core/command"
	"github.com/kilianp07/retailmarket/core/competition"
	"github.com/kilianp07/retailmarket/core/model"
	"github.com/kilianp07/retailmarket/core/registry"
	"github.com/kilianp07/retailmarket/core/rules"
	"github.com/kilianp07/retailmarket/core/scheduler"
	"github.com/kilianp07/retailmarket/infra/logger"
)

// errorKind names the refusal reasons counted by scenarios.
func errorKind(err error) string {
	switch {
	case errors.Is(err, command.ErrMalformedCommand):
		return "malformed"
	case errors.Is(err, accounting.ErrNotFound):
		return "not_found"
	case errors.Is(err, accounting.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, accounting.ErrRuleRejected):
		return "rule_rejected"
	default:
		return "other"
	}
}

//nolint:gocyclo
func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()
	ctx := context.Background()

	tariffs := make([]model.Tariff, len(sc.Tariffs))
	for i, d := range sc.Tariffs {
		tariffs[i] = d.ToModel()
	}
	ledger, err := accounting.NewLedger(tariffs...)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}

	reg := registry.New()
	mods := config.ModulesConfig{Customers: []config.ModuleSpec{{ID: "observer", Type: "logging"}}}
	for _, e := range sc.Enforcers {
		mods.Enforcers = append(mods.Enforcers, e.ToSpec())
	}
	if err := plugins.RegisterModules(reg, mods); err != nil {
		t.Fatalf("modules: %v", err)
	}
	chain, err := rules.NewChain(reg, rules.Config{EmptyChain: rules.Policy(sc.EmptyChain)}, logger.NopLogger{})
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	clock, err := scheduler.New(scheduler.Config{})
	if err != nil {
		t.Fatalf("scheduler: %v", err)
	}
	acct := accounting.NewService(ledger, chain, audit.NewMemoryStore(), clock, logger.NopLogger{})
	router, err := command.NewRouter(acct, command.Config{}, nil, logger.NopLogger{})
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	ctrl, err := competition.New(competition.Config{}, clock, reg, router, nil, logger.NopLogger{})
	if err != nil {
		t.Fatalf("controller: %v", err)
	}

	outcomes := map[string]int{}
	failures := map[string]int{}
	for i, tick := range sc.Ticks {
		receipts := make([]*command.Receipt, 0, len(tick.Commands))
		for _, raw := range tick.Commands {
			rc, err := router.Accept(ctx, []byte(raw))
			if err != nil {
				failures[errorKind(err)]++
				continue
			}
			receipts = append(receipts, rc)
		}
		round, err := ctrl.Step(ctx)
		if err != nil {
			t.Fatalf("tick %d: %v", i+1, err)
		}
		if round.Timeslot.ID != int64(i+1) {
			t.Fatalf("tick %d produced timeslot %d", i+1, round.Timeslot.ID)
		}
		for _, rc := range receipts {
			ack, err := rc.Wait(ctx)
			if err != nil {
				failures[errorKind(err)]++
				continue
			}
			outcomes[string(ack.Outcome)]++
		}
	}

	compareCounts(t, "outcome", sc.Expected.Outcomes, outcomes)
	compareCounts(t, "error", sc.Expected.Errors, failures)
	checkStatus(t, ledger, sc.Expected.Revoked, true)
	checkStatus(t, ledger, sc.Expected.Active, false)
}

func compareCounts(t *testing.T, what string, want, got map[string]int) {
	t.Helper()
	for k, n := range want {
		if got[k] != n {
			t.Errorf("%s %s: expected %d, got %d", what, k, n, got[k])
		}
	}
	for k, n := range got {
		if _, ok := want[k]; !ok {
			t.Errorf("unexpected %s %s (%d)", what, k, n)
		}
	}
}

func checkStatus(t *testing.T, ledger *accounting.Ledger, ids []int64, revoked bool) {
	t.Helper()
	for _, id := range ids {
		tariff, err := ledger.Get(id)
		if err != nil {
			t.Errorf("tariff %d: %v", id, err)
			continue
		}
		if tariff.IsRevoked() != revoked {
			t.Errorf("tariff %d revoked=%v, expected %v", id, tariff.IsRevoked(), revoked)
		}
	}
}
