package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/cartkeeper/internal/logging"
	"github.com/aretw0/cartkeeper/pkg/domain"
	"github.com/aretw0/cartkeeper/pkg/ports"
	"github.com/aretw0/cartkeeper/pkg/session"
	"github.com/google/uuid"
)

// Operation names reported in events, logs and errors.
const (
	OpCreateCart = "create_cart"
	OpGetCart    = "get_cart"
	OpAddItem    = "add_item"
	OpRemoveItem = "remove_item"
	OpUpdateItem = "update_item"
)

// Coordinator performs cart operations on behalf of sessions, recovering
// transparently from expired provider contexts.
type Coordinator struct {
	provider ports.ContextProvider
	sessions *session.Manager

	hooks            domain.LifecycleHooks
	logger           *slog.Logger
	now              func() time.Time
	newSessionID     func() string
	releaseAbandoned bool
}

var (
	_ ports.CartService   = (*Coordinator)(nil)
	_ ports.ExpiryTrigger = (*Coordinator)(nil)
)

// Option configures the Coordinator.
type Option func(*Coordinator)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Coordinator) {
		c.hooks = hooks
	}
}

// WithClock injects the time source used for session timestamps and event durations.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// WithSessionIDs injects the session identifier generator.
func WithSessionIDs(newID func() string) Option {
	return func(c *Coordinator) {
		c.newSessionID = newID
	}
}

// WithReleaseAbandoned controls whether contexts left behind by a recovery are
// released on providers implementing ports.ContextReleaser. Enabled by default;
// when disabled, abandoned contexts are simply never referenced again.
func WithReleaseAbandoned(enabled bool) Option {
	return func(c *Coordinator) {
		c.releaseAbandoned = enabled
	}
}

// New creates a Coordinator over provider, keeping sessions in the given manager.
func New(provider ports.ContextProvider, sessions *session.Manager, opts ...Option) *Coordinator {
	c := &Coordinator{
		provider:         provider,
		sessions:         sessions,
		logger:           logging.NewNop(),
		now:              time.Now,
		newSessionID:     uuid.NewString,
		releaseAbandoned: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateCart allocates a session bound to a new context and returns its empty cart.
// The cart ID is the session ID.
func (c *Coordinator) CreateCart(ctx context.Context) (*domain.Cart, error) {
	start := c.now()
	sessionID := c.newSessionID()

	fresh, err := c.provider.CreateContext(ctx)
	if err != nil {
		err = fmt.Errorf("failed to create context: %w", err)
		c.emitOperation(ctx, sessionID, OpCreateCart, start, false, err)
		return nil, err
	}

	s := domain.NewSession(sessionID, fresh.ID, start)
	if err := c.sessions.Create(ctx, s); err != nil {
		c.emitOperation(ctx, sessionID, OpCreateCart, start, false, err)
		return nil, err
	}

	c.logger.Debug("Cart created", "session_id", sessionID, "context_id", fresh.ID)
	c.emitOperation(ctx, sessionID, OpCreateCart, start, false, nil)
	return s.Cart(), nil
}

// GetCart returns the session's cart.
func (c *Coordinator) GetCart(ctx context.Context, sessionID string) (*domain.Cart, error) {
	return c.execute(ctx, sessionID, operation{
		name: OpGetCart,
		run: func(ctx context.Context, contextID string) (*domain.Cart, error) {
			return c.provider.GetCart(ctx, contextID)
		},
	})
}

// AddItem appends an item to the session's cart.
func (c *Coordinator) AddItem(ctx context.Context, sessionID string, input domain.ItemInput) (*domain.Cart, error) {
	return c.execute(ctx, sessionID, operation{
		name: OpAddItem,
		run: func(ctx context.Context, contextID string) (*domain.Cart, error) {
			return c.provider.AddItem(ctx, contextID, input)
		},
	})
}

// RemoveItem deletes an item from the session's cart.
// itemID may stem from a context that has since expired; see retarget.
func (c *Coordinator) RemoveItem(ctx context.Context, sessionID, itemID string) (*domain.Cart, error) {
	return c.execute(ctx, sessionID, c.itemOperation(OpRemoveItem, itemID,
		func(ctx context.Context, contextID, itemID string) (*domain.Cart, error) {
			return c.provider.RemoveItem(ctx, contextID, itemID)
		}))
}

// UpdateItem sets the quantity of an item in the session's cart.
// itemID may stem from a context that has since expired; see retarget.
func (c *Coordinator) UpdateItem(ctx context.Context, sessionID, itemID string, quantity int) (*domain.Cart, error) {
	return c.execute(ctx, sessionID, c.itemOperation(OpUpdateItem, itemID,
		func(ctx context.Context, contextID, itemID string) (*domain.Cart, error) {
			return c.provider.UpdateItem(ctx, contextID, itemID, quantity)
		}))
}

// Session returns a snapshot of the session.
func (c *Coordinator) Session(ctx context.Context, sessionID string) (*domain.Session, error) {
	return c.sessions.Load(ctx, sessionID)
}

// ForceExpiry expires the session's current context on providers implementing
// ports.ContextExpirer. The next operation on the session will recover.
func (c *Coordinator) ForceExpiry(ctx context.Context, sessionID string) error {
	expirer, ok := c.provider.(ports.ContextExpirer)
	if !ok {
		return domain.ErrUnsupported
	}
	return c.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		s, err := c.sessions.Store().Load(ctx, sessionID)
		if err != nil {
			return err
		}
		err = expirer.Expire(ctx, s.ContextID)
		if errors.Is(err, domain.ErrContextExpired) {
			return nil
		}
		return err
	})
}

// execute runs op for the session under its lock, recovering once on expiry,
// and writes the provider's resulting items back into the session.
func (c *Coordinator) execute(ctx context.Context, sessionID string, op operation) (*domain.Cart, error) {
	start := c.now()
	var (
		result    *domain.Cart
		recovered bool
	)

	err := c.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		s, err := c.sessions.Store().Load(ctx, sessionID)
		if err != nil {
			return err
		}

		cart, err := op.run(ctx, s.ContextID)
		if errors.Is(err, domain.ErrContextExpired) {
			recovered = true
			cart, err = c.recover(ctx, s, op)
		}
		if err != nil {
			return err
		}

		s.Items = domain.CloneItems(cart.Items)
		s.LastAccessedAt = c.now()
		if err := c.sessions.Store().Save(ctx, s); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		result = s.Cart()
		return nil
	})

	c.emitOperation(ctx, sessionID, op.name, start, recovered, err)
	return result, err
}

func (c *Coordinator) emitOperation(ctx context.Context, sessionID, op string, start time.Time, recovered bool, err error) {
	if c.hooks.OnOperation == nil {
		return
	}
	c.hooks.OnOperation(ctx, &domain.OperationEvent{
		EventBase: domain.EventBase{
			Timestamp: c.now(),
			Type:      domain.EventOperation,
			SessionID: sessionID,
		},
		Op:        op,
		Duration:  c.now().Sub(start),
		Recovered: recovered,
		Kind:      domain.KindOf(err),
	})
}
