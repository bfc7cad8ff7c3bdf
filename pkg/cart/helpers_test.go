package cart_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/aretw0/cartkeeper/pkg/adapters/memory"
	"github.com/aretw0/cartkeeper/pkg/cart"
	"github.com/aretw0/cartkeeper/pkg/domain"
	"github.com/aretw0/cartkeeper/pkg/session"
	"github.com/stretchr/testify/require"
)

// spyProvider counts calls reaching the simulated provider.
type spyProvider struct {
	*memory.Provider
	creates atomic.Int32
	gets    atomic.Int32
	adds    atomic.Int32
	removes atomic.Int32
	updates atomic.Int32
}

func (p *spyProvider) CreateContext(ctx context.Context) (*domain.BackendContext, error) {
	p.creates.Add(1)
	return p.Provider.CreateContext(ctx)
}

func (p *spyProvider) GetCart(ctx context.Context, contextID string) (*domain.Cart, error) {
	p.gets.Add(1)
	return p.Provider.GetCart(ctx, contextID)
}

func (p *spyProvider) AddItem(ctx context.Context, contextID string, input domain.ItemInput) (*domain.Cart, error) {
	p.adds.Add(1)
	return p.Provider.AddItem(ctx, contextID, input)
}

func (p *spyProvider) RemoveItem(ctx context.Context, contextID, itemID string) (*domain.Cart, error) {
	p.removes.Add(1)
	return p.Provider.RemoveItem(ctx, contextID, itemID)
}

func (p *spyProvider) UpdateItem(ctx context.Context, contextID, itemID string, quantity int) (*domain.Cart, error) {
	p.updates.Add(1)
	return p.Provider.UpdateItem(ctx, contextID, itemID, quantity)
}

func (p *spyProvider) calls() int32 {
	return p.creates.Load() + p.gets.Load() + p.adds.Load() + p.removes.Load() + p.updates.Load()
}

type fixture struct {
	coord    *cart.Coordinator
	provider *spyProvider
	store    *memory.Store
}

func newFixture(t *testing.T, popts []memory.ProviderOption, opts ...cart.Option) *fixture {
	t.Helper()
	provider := &spyProvider{Provider: memory.NewProvider(popts...)}
	store := memory.NewStore()
	return &fixture{
		coord:    cart.New(provider, session.NewManager(store), opts...),
		provider: provider,
		store:    store,
	}
}

// expire forces the session's current context past its horizon.
func (f *fixture) expire(t *testing.T, sessionID string) {
	t.Helper()
	require.NoError(t, f.coord.ForceExpiry(context.Background(), sessionID))
}

func (f *fixture) session(t *testing.T, sessionID string) *domain.Session {
	t.Helper()
	s, err := f.store.Load(context.Background(), sessionID)
	require.NoError(t, err)
	return s
}

var (
	keyboard = domain.ItemInput{ProductID: "p1", Name: "Keyboard", Price: 100, Quantity: 1}
	mouse    = domain.ItemInput{ProductID: "p2", Name: "Mouse", Price: 50, Quantity: 2}
	monitor  = domain.ItemInput{ProductID: "p3", Name: "Monitor", Price: 300, Quantity: 1}
)

type line struct {
	ProductID string
	Quantity  int
}

func lines(c *domain.Cart) []line {
	out := make([]line, 0, len(c.Items))
	for _, it := range c.Items {
		out = append(out, line{it.ProductID, it.Quantity})
	}
	return out
}
