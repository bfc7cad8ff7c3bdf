package cartkeeper

import (
	"log/slog"
	"time"

	"github.com/aretw0/cartkeeper/pkg/adapters/memory"
	"github.com/aretw0/cartkeeper/pkg/cart"
	"github.com/aretw0/cartkeeper/pkg/domain"
	"github.com/aretw0/cartkeeper/pkg/ports"
	"github.com/aretw0/cartkeeper/pkg/session"
)

type options struct {
	provider ports.ContextProvider
	store    ports.SessionStore
	locker   ports.DistributedLocker
	logger   *slog.Logger
	hooks    domain.LifecycleHooks
	horizon  time.Duration
	release  bool
}

// Option configures New.
type Option func(*options)

// WithProvider replaces the default in-memory context provider.
func WithProvider(p ports.ContextProvider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithSessionStore replaces the default in-memory session store.
func WithSessionStore(s ports.SessionStore) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithLocker adds a distributed lock around every session operation.
func WithLocker(l ports.DistributedLocker) Option {
	return func(o *options) {
		o.locker = l
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(o *options) {
		o.hooks = hooks
	}
}

// WithHorizon sets the context lifetime of the default in-memory provider.
// Ignored when WithProvider is given.
func WithHorizon(d time.Duration) Option {
	return func(o *options) {
		o.horizon = d
	}
}

// WithReleaseAbandoned controls whether contexts left behind by a recovery are released.
func WithReleaseAbandoned(enabled bool) Option {
	return func(o *options) {
		o.release = enabled
	}
}

// New creates a Coordinator. Without options it runs entirely in memory.
func New(opts ...Option) *cart.Coordinator {
	o := options{
		horizon: memory.DefaultHorizon,
		release: true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.provider == nil {
		o.provider = memory.NewProvider(memory.WithHorizon(o.horizon))
	}
	if o.store == nil {
		o.store = memory.NewStore()
	}

	var mgrOpts []session.Option
	var coordOpts []cart.Option
	if o.locker != nil {
		mgrOpts = append(mgrOpts, session.WithLocker(o.locker))
	}
	if o.logger != nil {
		mgrOpts = append(mgrOpts, session.WithLogger(o.logger))
		coordOpts = append(coordOpts, cart.WithLogger(o.logger))
	}
	coordOpts = append(coordOpts,
		cart.WithLifecycleHooks(o.hooks),
		cart.WithReleaseAbandoned(o.release),
	)

	return cart.New(o.provider, session.NewManager(o.store, mgrOpts...), coordOpts...)
}
