package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/retailmarket/core/events"
	"github.com/kilianp07/retailmarket/core/model"
)

type fakeCustomer struct {
	id, name string
}

func (c *fakeCustomer) ID() string   { return c.id }
func (c *fakeCustomer) Name() string { return c.name }
func (c *fakeCustomer) OnTimeslot(context.Context, events.TimeslotChanged) error {
	return nil
}

type fakeEnforcer struct{ id string }

func (e fakeEnforcer) ID() string                     { return e.id }
func (e fakeEnforcer) Name() string                   { return "enforcer " + e.id }
func (e fakeEnforcer) Accept(model.TariffAction) bool { return true }

func TestRegistry_LastWriteWins(t *testing.T) {
	r := New()
	first := &fakeCustomer{id: "c1", name: "first"}
	second := &fakeCustomer{id: "c1", name: "second"}
	require.NoError(t, r.Register(model.CapabilityCustomer, "c1", first))
	require.NoError(t, r.Register(model.CapabilityCustomer, "c1", second))

	got, err := r.Get(model.CapabilityCustomer, "c1")
	require.NoError(t, err)
	assert.Same(t, second, got)
	assert.Equal(t, 1, r.Len(model.CapabilityCustomer))
}

func TestRegistry_RegistrationOrder(t *testing.T) {
	r := New()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, r.Register(model.CapabilityCustomer, id, &fakeCustomer{id: id}))
	}
	// replacing "a" moves it to the end
	require.NoError(t, r.Register(model.CapabilityCustomer, "a", &fakeCustomer{id: "a"}))

	var ids []string
	for _, m := range r.List(model.CapabilityCustomer) {
		ids = append(ids, m.ID())
	}
	assert.Equal(t, []string{"b", "c", "a"}, ids)
}

func TestRegistry_SnapshotIsolation(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(model.CapabilityCustomer, "c1", &fakeCustomer{id: "c1"}))
	snap := r.List(model.CapabilityCustomer)

	require.NoError(t, r.Register(model.CapabilityCustomer, "c2", &fakeCustomer{id: "c2"}))
	assert.True(t, r.Unregister(model.CapabilityCustomer, "c1"))

	require.Len(t, snap, 1)
	assert.Equal(t, "c1", snap[0].ID())
	snap[0] = nil
	assert.Equal(t, 1, r.Len(model.CapabilityCustomer))
}

func TestRegistry_UnregisterAndGet(t *testing.T) {
	r := New()
	assert.False(t, r.Unregister(model.CapabilityCustomer, "missing"))
	_, err := r.Get(model.CapabilityCustomer, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, r.Register(model.CapabilityTariffRuleEnforcer, "e1", fakeEnforcer{id: "e1"}))
	// same id under a different capability is a different module
	_, err = r.Get(model.CapabilityCustomer, "e1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, r.Enforcers(), 1)
}

func TestRegistry_CapabilityMismatch(t *testing.T) {
	r := New()
	err := r.Register(model.CapabilityDistributionUtility, "du", &fakeCustomer{id: "du"})
	assert.ErrorIs(t, err, ErrCapabilityMismatch)
	assert.Error(t, r.Register(model.CapabilityCustomer, "", &fakeCustomer{}))
	assert.Error(t, r.Register(model.CapabilityCustomer, "x", nil))
}

func TestRegistry_Records(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(model.CapabilityCustomer, "c1", &fakeCustomer{id: "c1", name: "Village"}))
	recs := r.Records(model.CapabilityCustomer)
	require.Len(t, recs, 1)
	assert.Equal(t, "Village", recs[0].DisplayName)
	assert.Equal(t, model.CapabilityCustomer, recs[0].Capability)
	assert.False(t, recs[0].RegisteredAt.IsZero())
}
