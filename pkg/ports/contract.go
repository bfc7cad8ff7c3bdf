package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/cartkeeper/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		session := domain.NewSession(sessionID, "ctx-1", time.Now().UTC())
		session.Items = append(session.Items, domain.Item{
			ID: "1", ProductID: "p1", Name: "Widget", Price: 12.5, Quantity: 2,
		})

		err := store.Save(ctx, session)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, "ctx-1", loaded.ContextID)
		require.Len(t, loaded.Items, 1)
		assert.Equal(t, session.Items[0], loaded.Items[0])
		assert.True(t, session.CreatedAt.Equal(loaded.CreatedAt))
	})

	t.Run("Load returns an isolated copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.ContextID = "mutated"
		loaded.Items = nil

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "ctx-1", again.ContextID)
		assert.Len(t, again.Items, 1)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, domain.NewSession(sessionID, "ctx-2", time.Now()))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, domain.NewSession(id1, "ctx", time.Now()))
		_ = store.Save(ctx, domain.NewSession(id2, "ctx", time.Now()))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}

// ProviderFactory builds a fresh provider whose contexts expire horizon after creation.
type ProviderFactory func(t *testing.T, horizon time.Duration) ContextProvider

var contractItems = []domain.ItemInput{
	{ProductID: "p1", Name: "Keyboard", Price: 100, Quantity: 1},
	{ProductID: "p2", Name: "Mouse", Price: 50, Quantity: 2},
}

// RunProviderContract verifies that a ContextProvider honours the backend contract:
// expiry validation on every call, full-cart results, item ids unique across contexts and isolation.
func RunProviderContract(t *testing.T, newProvider ProviderFactory) {
	ctx := context.Background()

	t.Run("CreateContext returns an empty live context", func(t *testing.T) {
		p := newProvider(t, time.Hour)
		before := time.Now()
		c, err := p.CreateContext(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, c.ID)
		assert.Empty(t, c.Items)
		assert.True(t, c.ExpiresAt.After(before), "expiry must lie in the future")

		cart, err := p.GetCart(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, c.ID, cart.ID)
		assert.Empty(t, cart.Items)
		assert.Zero(t, cart.Total)
	})

	t.Run("Contexts are unique per creation", func(t *testing.T) {
		p := newProvider(t, time.Hour)
		a, err := p.CreateContext(ctx)
		require.NoError(t, err)
		b, err := p.CreateContext(ctx)
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("AddItem returns the full cart", func(t *testing.T) {
		p := newProvider(t, time.Hour)
		c, err := p.CreateContext(ctx)
		require.NoError(t, err)

		cart, err := p.AddItem(ctx, c.ID, contractItems[0])
		require.NoError(t, err)
		assert.Len(t, cart.Items, 1)
		assert.Equal(t, 100.0, cart.Total)

		cart, err = p.AddItem(ctx, c.ID, contractItems[1])
		require.NoError(t, err)
		require.Len(t, cart.Items, 2)
		assert.Equal(t, "p1", cart.Items[0].ProductID, "insertion order is preserved")
		assert.Equal(t, "p2", cart.Items[1].ProductID)
		assert.NotEqual(t, cart.Items[0].ID, cart.Items[1].ID)
		assert.NotEmpty(t, cart.Items[0].ID)
		assert.Equal(t, 200.0, cart.Total)
	})

	t.Run("UpdateItem and RemoveItem", func(t *testing.T) {
		p := newProvider(t, time.Hour)
		c, err := p.CreateContext(ctx)
		require.NoError(t, err)
		_, err = p.AddItem(ctx, c.ID, contractItems[0])
		require.NoError(t, err)
		cart, err := p.AddItem(ctx, c.ID, contractItems[1])
		require.NoError(t, err)
		first, second := cart.Items[0].ID, cart.Items[1].ID

		cart, err = p.UpdateItem(ctx, c.ID, first, 3)
		require.NoError(t, err)
		assert.Equal(t, 3, cart.Items[0].Quantity)
		assert.Equal(t, 400.0, cart.Total)

		cart, err = p.RemoveItem(ctx, c.ID, second)
		require.NoError(t, err)
		require.Len(t, cart.Items, 1)
		assert.Equal(t, first, cart.Items[0].ID)
		assert.Equal(t, 300.0, cart.Total)
	})

	t.Run("Unknown item", func(t *testing.T) {
		p := newProvider(t, time.Hour)
		c, err := p.CreateContext(ctx)
		require.NoError(t, err)

		_, err = p.RemoveItem(ctx, c.ID, "missing")
		assert.ErrorIs(t, err, domain.ErrItemNotFound)
		_, err = p.UpdateItem(ctx, c.ID, "missing", 2)
		assert.ErrorIs(t, err, domain.ErrItemNotFound)
	})

	t.Run("Unknown context is expired", func(t *testing.T) {
		p := newProvider(t, time.Hour)
		assertAllExpired(t, p, "no-such-context")
	})

	t.Run("Zero horizon is expired at creation", func(t *testing.T) {
		p := newProvider(t, 0)
		c, err := p.CreateContext(ctx)
		require.NoError(t, err)
		assertAllExpired(t, p, c.ID)
	})

	t.Run("Contexts are isolated", func(t *testing.T) {
		p := newProvider(t, time.Hour)
		a, err := p.CreateContext(ctx)
		require.NoError(t, err)
		b, err := p.CreateContext(ctx)
		require.NoError(t, err)

		_, err = p.AddItem(ctx, a.ID, contractItems[0])
		require.NoError(t, err)

		cart, err := p.GetCart(ctx, b.ID)
		require.NoError(t, err)
		assert.Empty(t, cart.Items)
	})

	t.Run("Item ids are not reused across contexts", func(t *testing.T) {
		p := newProvider(t, time.Hour)
		a, err := p.CreateContext(ctx)
		require.NoError(t, err)
		for _, in := range contractItems {
			_, err = p.AddItem(ctx, a.ID, in)
			require.NoError(t, err)
		}
		old, err := p.GetCart(ctx, a.ID)
		require.NoError(t, err)

		// Same items, same order, as a recovery replay would add them.
		b, err := p.CreateContext(ctx)
		require.NoError(t, err)
		var fresh *domain.Cart
		for _, in := range contractItems {
			fresh, err = p.AddItem(ctx, b.ID, in)
			require.NoError(t, err)
		}

		for _, it := range old.Items {
			assert.Negative(t, domain.FindItem(fresh.Items, it.ID), "item id %s reappears in another context", it.ID)

			_, err = p.RemoveItem(ctx, b.ID, it.ID)
			assert.ErrorIs(t, err, domain.ErrItemNotFound)
			_, err = p.UpdateItem(ctx, b.ID, it.ID, 5)
			assert.ErrorIs(t, err, domain.ErrItemNotFound)
		}

		cart, err := p.GetCart(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, fresh.Items, cart.Items)
	})

	t.Run("Release", func(t *testing.T) {
		p := newProvider(t, time.Hour)
		releaser, ok := p.(ContextReleaser)
		if !ok {
			t.Skip("provider does not implement ContextReleaser")
		}
		c, err := p.CreateContext(ctx)
		require.NoError(t, err)

		require.NoError(t, releaser.Release(ctx, c.ID))
		require.NoError(t, releaser.Release(ctx, c.ID), "releasing twice is not an error")
		_, err = p.GetCart(ctx, c.ID)
		assert.ErrorIs(t, err, domain.ErrContextExpired)
	})

	t.Run("Expire", func(t *testing.T) {
		p := newProvider(t, time.Hour)
		expirer, ok := p.(ContextExpirer)
		if !ok {
			t.Skip("provider does not implement ContextExpirer")
		}
		c, err := p.CreateContext(ctx)
		require.NoError(t, err)
		_, err = p.AddItem(ctx, c.ID, contractItems[0])
		require.NoError(t, err)

		require.NoError(t, expirer.Expire(ctx, c.ID))
		assertAllExpired(t, p, c.ID)
	})
}

func assertAllExpired(t *testing.T, p ContextProvider, contextID string) {
	t.Helper()
	ctx := context.Background()

	_, err := p.GetCart(ctx, contextID)
	assert.ErrorIs(t, err, domain.ErrContextExpired, "GetCart")
	_, err = p.AddItem(ctx, contextID, contractItems[0])
	assert.ErrorIs(t, err, domain.ErrContextExpired, "AddItem")
	_, err = p.RemoveItem(ctx, contextID, "1")
	assert.ErrorIs(t, err, domain.ErrContextExpired, "RemoveItem")
	_, err = p.UpdateItem(ctx, contextID, "1", 2)
	assert.ErrorIs(t, err, domain.ErrContextExpired, "UpdateItem")
}
