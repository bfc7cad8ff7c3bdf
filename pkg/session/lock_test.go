package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/cartkeeper/pkg/adapters/memory"
	"github.com/aretw0/cartkeeper/pkg/domain"
	"github.com/aretw0/cartkeeper/pkg/ports"
	"github.com/aretw0/cartkeeper/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_SerializesReadModifyWrite(t *testing.T) {
	store := memory.NewStore()
	manager := session.NewManager(store)
	ctx := context.Background()
	id := "race-test"

	require.NoError(t, manager.Create(ctx, domain.NewSession(id, "ctx", time.Now())))

	var wg sync.WaitGroup
	writers := 20
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := manager.WithLock(ctx, id, func(ctx context.Context) error {
				s, err := manager.Store().Load(ctx, id)
				if err != nil {
					return err
				}
				time.Sleep(time.Millisecond) // widen the race window
				s.Items = append(s.Items, domain.Item{ID: "x", ProductID: "p", Price: 1, Quantity: 1})
				return manager.Store().Save(ctx, s)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s, err := manager.Load(ctx, id)
	require.NoError(t, err)
	assert.Len(t, s.Items, writers, "no update may be lost")
}

func TestManager_CreateRejectsDuplicates(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	ctx := context.Background()

	require.NoError(t, manager.Create(ctx, domain.NewSession("dup", "ctx", time.Now())))
	assert.Error(t, manager.Create(ctx, domain.NewSession("dup", "other", time.Now())))

	s, err := manager.Load(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, "ctx", s.ContextID)
}

func TestManager_LoadMissing(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	_, err := manager.Load(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

type countingLocker struct {
	locks   atomic.Int32
	unlocks atomic.Int32
	err     error
}

func (l *countingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.locks.Add(1)
	return func(ctx context.Context) error {
		l.unlocks.Add(1)
		return nil
	}, nil
}

func TestManager_DistributedLocker(t *testing.T) {
	locker := &countingLocker{}
	manager := session.NewManager(memory.NewStore(), session.WithLocker(locker))
	ctx := context.Background()

	require.NoError(t, manager.Save(ctx, domain.NewSession("s1", "ctx", time.Now())))
	_, err := manager.Load(ctx, "s1")
	require.NoError(t, err)

	assert.Equal(t, int32(2), locker.locks.Load())
	assert.Equal(t, int32(2), locker.unlocks.Load())
}

func TestManager_DistributedLockerFailure(t *testing.T) {
	locker := &countingLocker{err: errors.New("redis down")}
	manager := session.NewManager(memory.NewStore(), session.WithLocker(locker))

	called := false
	err := manager.WithLock(context.Background(), "s1", func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorContains(t, err, "distributed lock")
	assert.False(t, called)
}
