package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/cartkeeper/internal/config"
	"github.com/aretw0/cartkeeper/pkg/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_Memory(t *testing.T) {
	ctx := context.Background()
	rt, err := Build(ctx, config.Default(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	c, err := rt.Coordinator.CreateCart(ctx)
	require.NoError(t, err)
	_, err = rt.Coordinator.AddItem(ctx, c.ID, domain.ItemInput{ProductID: "p1", Name: "Keyboard", Price: 100, Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, rt.Coordinator.ForceExpiry(ctx, c.ID))

	c, err = rt.Coordinator.GetCart(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, c.Total)

	n, err := testutil.GatherAndCount(rt.Registry, "cartkeeper_recoveries_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBuild_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Provider.Kind = config.ProviderRedis
	cfg.Provider.Horizon = time.Minute
	cfg.Redis.Addr = mr.Addr()
	cfg.Redis.Prefix = "test:"

	ctx := context.Background()
	rt, err := Build(ctx, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	c, err := rt.Coordinator.CreateCart(ctx)
	require.NoError(t, err)
	_, err = rt.Coordinator.AddItem(ctx, c.ID, domain.ItemInput{ProductID: "p1", Name: "Keyboard", Price: 100, Quantity: 1})
	require.NoError(t, err)

	s, err := rt.Coordinator.Session(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:session:"+c.ID))
	assert.True(t, mr.Exists("test:context:"+s.ContextID))

	mr.FastForward(2 * time.Minute)
	c, err = rt.Coordinator.GetCart(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "p1", c.Items[0].ProductID)
}

func TestBuild_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := config.Default()
	cfg.Provider.Kind = config.ProviderRedis
	cfg.Redis.Addr = addr

	_, err := Build(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "failed to reach redis")
}

func TestBuild_UnknownProvider(t *testing.T) {
	cfg := config.Default()
	cfg.Provider.Kind = "etcd"
	_, err := Build(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(config.LogConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = NewLogger(config.LogConfig{Level: "chatty"})
	assert.Error(t, err)
}

func TestBuild_SealedSessions(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Provider.Kind = config.ProviderRedis
	cfg.Redis.Addr = mr.Addr()
	cfg.Encryption.Key = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 32))

	ctx := context.Background()
	rt, err := Build(ctx, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	c, err := rt.Coordinator.CreateCart(ctx)
	require.NoError(t, err)
	c, err = rt.Coordinator.AddItem(ctx, c.ID, domain.ItemInput{ProductID: "p1", Name: "Keyboard", Price: 100, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, 100.0, c.Total)

	raw, err := mr.Get(cfg.Redis.Prefix + "session:" + c.ID)
	require.NoError(t, err)
	assert.NotContains(t, raw, "Keyboard")
}
