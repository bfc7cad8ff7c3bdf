package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/aretw0/cartkeeper/pkg/domain"
	"github.com/google/uuid"
)

// DefaultHorizon is the lifetime of a context when none is configured.
const DefaultHorizon = 15 * time.Minute

// Operation names a provider call, used to target injected faults.
type Operation string

const (
	OpCreate Operation = "create_context"
	OpGet    Operation = "get_cart"
	OpAdd    Operation = "add_item"
	OpRemove Operation = "remove_item"
	OpUpdate Operation = "update_item"
)

// Provider is a simulated backend implementing ports.ContextProvider,
// ports.ContextReleaser and ports.ContextExpirer.
// Safe for concurrent use.
type Provider struct {
	mu       sync.Mutex
	contexts map[string]*domain.BackendContext
	faults   map[Operation]error
	seq      int64

	horizon time.Duration
	now     func() time.Time
	newID   func() string
}

// ProviderOption configures the Provider.
type ProviderOption func(*Provider)

// WithHorizon sets the lifetime of new contexts. Zero yields contexts that are expired at creation.
func WithHorizon(d time.Duration) ProviderOption {
	return func(p *Provider) {
		p.horizon = d
	}
}

// WithClock injects the time source used for expiry.
func WithClock(now func() time.Time) ProviderOption {
	return func(p *Provider) {
		p.now = now
	}
}

// WithContextIDs injects the context identifier generator.
func WithContextIDs(newID func() string) ProviderOption {
	return func(p *Provider) {
		p.newID = newID
	}
}

// NewProvider creates an empty simulated provider.
func NewProvider(opts ...ProviderOption) *Provider {
	p := &Provider{
		contexts: make(map[string]*domain.BackendContext),
		faults:   make(map[Operation]error),
		horizon:  DefaultHorizon,
		now:      time.Now,
		newID:    func() string { return "ctx_" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// InjectFault makes every subsequent call of op fail with err until cleared.
// A nil err clears the fault for op.
func (p *Provider) InjectFault(op Operation, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.faults, op)
		return
	}
	p.faults[op] = err
}

// ClearFaults removes all injected faults.
func (p *Provider) ClearFaults() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.faults = make(map[Operation]error)
}

// Len returns the number of contexts held, expired or not.
func (p *Provider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.contexts)
}

// CreateContext returns a new empty context expiring horizon from now.
func (p *Provider) CreateContext(ctx context.Context) (*domain.BackendContext, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.faults[OpCreate]; err != nil {
		return nil, err
	}

	c := &domain.BackendContext{
		ID:        p.newID(),
		ExpiresAt: p.now().Add(p.horizon),
		Items:     []domain.Item{},
	}
	p.contexts[c.ID] = c

	ret := *c
	ret.Items = []domain.Item{}
	return &ret, nil
}

// GetCart returns the context's items.
func (p *Provider) GetCart(ctx context.Context, contextID string) (*domain.Cart, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, err := p.live(OpGet, contextID)
	if err != nil {
		return nil, err
	}
	return c.Cart(), nil
}

// AddItem appends the item under a fresh identifier.
// Identifiers come from a provider-wide sequence, so an id from one context
// never addresses an item in another.
func (p *Provider) AddItem(ctx context.Context, contextID string, input domain.ItemInput) (*domain.Cart, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, err := p.live(OpAdd, contextID)
	if err != nil {
		return nil, err
	}

	p.seq++
	c.Items = append(c.Items, domain.Item{
		ID:        strconv.FormatInt(p.seq, 10),
		ProductID: input.ProductID,
		Name:      input.Name,
		Price:     input.Price,
		Quantity:  input.Quantity,
	})
	return c.Cart(), nil
}

// RemoveItem deletes the item from the context.
func (p *Provider) RemoveItem(ctx context.Context, contextID, itemID string) (*domain.Cart, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, err := p.live(OpRemove, contextID)
	if err != nil {
		return nil, err
	}

	idx := domain.FindItem(c.Items, itemID)
	if idx < 0 {
		return nil, domain.ErrItemNotFound
	}
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	return c.Cart(), nil
}

// UpdateItem sets the quantity of the item.
func (p *Provider) UpdateItem(ctx context.Context, contextID, itemID string, quantity int) (*domain.Cart, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, err := p.live(OpUpdate, contextID)
	if err != nil {
		return nil, err
	}

	idx := domain.FindItem(c.Items, itemID)
	if idx < 0 {
		return nil, domain.ErrItemNotFound
	}
	c.Items[idx].Quantity = quantity
	return c.Cart(), nil
}

// Release drops the context.
func (p *Provider) Release(ctx context.Context, contextID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.contexts, contextID)
	return nil
}

// Expire moves the context's expiry to the current instant.
func (p *Provider) Expire(ctx context.Context, contextID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.contexts[contextID]
	if !ok {
		return domain.ErrContextExpired
	}
	c.ExpiresAt = p.now()
	return nil
}

// ExpireAll expires every context held by the provider.
func (p *Provider) ExpireAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for _, c := range p.contexts {
		c.ExpiresAt = now
	}
}

// live returns the context if it may be used now. Caller must hold p.mu.
func (p *Provider) live(op Operation, contextID string) (*domain.BackendContext, error) {
	if err := p.faults[op]; err != nil {
		return nil, err
	}
	c, ok := p.contexts[contextID]
	if !ok || c.Expired(p.now()) {
		return nil, domain.ErrContextExpired
	}
	return c, nil
}
