package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/cartkeeper/pkg/adapters/redis"
	"github.com/aretw0/cartkeeper/pkg/cart"
	"github.com/aretw0/cartkeeper/pkg/domain"
	"github.com/aretw0/cartkeeper/pkg/ports"
	"github.com/aretw0/cartkeeper/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisProvider_Contract(t *testing.T) {
	ports.RunProviderContract(t, func(t *testing.T, horizon time.Duration) ports.ContextProvider {
		_, client := newClient(t)
		return redis.NewProvider(client, redis.WithHorizon(horizon))
	})
}

func TestRedisProvider_KeyExpiresAtHorizon(t *testing.T) {
	mr, client := newClient(t)
	p := redis.NewProvider(client, redis.WithHorizon(time.Minute), redis.WithContextPrefix("t:ctx:"))
	ctx := context.Background()

	c, err := p.CreateContext(ctx)
	require.NoError(t, err)
	key := "t:ctx:" + c.ID
	require.True(t, mr.Exists(key))

	_, err = p.AddItem(ctx, c.ID, domain.ItemInput{ProductID: "p1", Name: "A", Price: 1, Quantity: 1})
	require.NoError(t, err)
	ttl := mr.TTL(key)
	assert.Greater(t, ttl, time.Duration(0), "mutations keep the original TTL")
	assert.LessOrEqual(t, ttl, time.Minute)

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists(key))
	_, err = p.GetCart(ctx, c.ID)
	assert.ErrorIs(t, err, domain.ErrContextExpired)
}

func TestRedisProvider_LogicalExpiry(t *testing.T) {
	_, client := newClient(t)
	now := time.Now()
	clock := func() time.Time { return now }
	p := redis.NewProvider(client, redis.WithHorizon(time.Minute), redis.WithClock(clock))
	ctx := context.Background()

	c, err := p.CreateContext(ctx)
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = p.GetCart(ctx, c.ID)
	assert.ErrorIs(t, err, domain.ErrContextExpired, "the expiry instant is inclusive")
}

func TestCoordinator_OverRedis(t *testing.T) {
	mr, client := newClient(t)
	provider := redis.NewProvider(client, redis.WithHorizon(time.Minute))
	manager := session.NewManager(redis.NewStore(client), session.WithLocker(redis.NewLocker(client, redis.DefaultLockPrefix)))
	coord := cart.New(provider, manager)
	ctx := context.Background()

	c, err := coord.CreateCart(ctx)
	require.NoError(t, err)
	_, err = coord.AddItem(ctx, c.ID, domain.ItemInput{ProductID: "p1", Name: "Keyboard", Price: 100, Quantity: 1})
	require.NoError(t, err)
	c, err = coord.AddItem(ctx, c.ID, domain.ItemInput{ProductID: "p2", Name: "Mouse", Price: 50, Quantity: 2})
	require.NoError(t, err)
	staleID := c.Items[0].ID

	// Redis reclaims the context key at its horizon; sessions have no TTL.
	mr.FastForward(2 * time.Minute)

	c, err = coord.RemoveItem(ctx, c.ID, staleID)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "p2", c.Items[0].ProductID)
	assert.Equal(t, 100.0, c.Total)

	s, err := coord.Session(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, mr.Exists(redis.DefaultContextPrefix+s.ContextID))
	assert.False(t, mr.Exists(redis.DefaultLockPrefix+"lock:"+c.ID), "the session lock is released")
}

func TestCoordinator_OverRedis_IDsFromBeforeRecovery(t *testing.T) {
	mr, client := newClient(t)
	provider := redis.NewProvider(client, redis.WithHorizon(time.Minute))
	coord := cart.New(provider, session.NewManager(redis.NewStore(client)))
	ctx := context.Background()

	c, err := coord.CreateCart(ctx)
	require.NoError(t, err)
	for _, pid := range []string{"p1", "p2", "p3"} {
		c, err = coord.AddItem(ctx, c.ID, domain.ItemInput{ProductID: pid, Name: pid, Price: 10, Quantity: 1})
		require.NoError(t, err)
	}
	c, err = coord.RemoveItem(ctx, c.ID, c.Items[0].ID)
	require.NoError(t, err)
	heldID := c.Items[0].ID
	require.Equal(t, "p2", c.Items[0].ProductID)

	// A read recovers the session; heldID belongs to the abandoned context.
	mr.FastForward(2 * time.Minute)
	recovered, err := coord.GetCart(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, recovered.Items, 2)
	for _, it := range recovered.Items {
		assert.NotEqual(t, heldID, it.ID)
	}

	_, err = coord.RemoveItem(ctx, c.ID, heldID)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
	_, err = coord.UpdateItem(ctx, c.ID, heldID, 4)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)

	got, err := coord.GetCart(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, recovered.Items, got.Items, "no other item was touched")
}
