// Package cli wires configuration into running cartkeeper components for the command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/cartkeeper/internal/config"
	"github.com/aretw0/cartkeeper/internal/logging"
	"github.com/aretw0/cartkeeper/pkg/adapters/memory"
	redisAdapter "github.com/aretw0/cartkeeper/pkg/adapters/redis"
	"github.com/aretw0/cartkeeper/pkg/cart"
	"github.com/aretw0/cartkeeper/pkg/domain"
	"github.com/aretw0/cartkeeper/pkg/observability"
	"github.com/aretw0/cartkeeper/pkg/persistence/middleware"
	"github.com/aretw0/cartkeeper/pkg/ports"
	"github.com/aretw0/cartkeeper/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	backend "github.com/redis/go-redis/v9"
)

const pingTimeout = 3 * time.Second

// Runtime holds the components built from a Config.
type Runtime struct {
	Coordinator *cart.Coordinator
	Registry    *prometheus.Registry
	Logger      *slog.Logger

	closers []func() error
}

// Close releases the connections held by the runtime.
func (r *Runtime) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// NewLogger builds the process logger described by cfg.
func NewLogger(cfg config.LogConfig) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if cfg.Format == "json" {
		return logging.NewJSON(level), nil
	}
	return logging.New(level), nil
}

// Build creates the provider, session store, locker, metrics and coordinator for cfg.
// Redis connectivity is checked before returning.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	rt := &Runtime{
		Registry: prometheus.NewRegistry(),
		Logger:   logger,
	}

	var (
		provider ports.ContextProvider
		store    ports.SessionStore
		mgrOpts  = []session.Option{session.WithLogger(logger)}
	)

	switch cfg.Provider.Kind {
	case config.ProviderMemory:
		provider = memory.NewProvider(memory.WithHorizon(cfg.Provider.Horizon))
		store = memory.NewStore()
	case config.ProviderRedis:
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rt.closers = append(rt.closers, client.Close)

		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
		}

		provider = redisAdapter.NewProvider(client,
			redisAdapter.WithHorizon(cfg.Provider.Horizon),
			redisAdapter.WithContextPrefix(cfg.Redis.Prefix+"context:"),
		)
		store = redisAdapter.NewStore(client,
			redisAdapter.WithTTL(cfg.Redis.SessionTTL),
			redisAdapter.WithPrefix(cfg.Redis.Prefix+"session:"),
		)
		mgrOpts = append(mgrOpts, session.WithLocker(redisAdapter.NewLocker(client, cfg.Redis.Prefix)))
	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Provider.Kind)
	}

	if cfg.Encryption.Enabled() {
		active, fallback, err := cfg.Encryption.Decode()
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		seal, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: active, FallbackKeys: fallback})
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		store = middleware.Chain(store, seal)
	}

	rt.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := observability.NewMetrics(rt.Registry)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	rt.Coordinator = cart.New(provider, session.NewManager(store, mgrOpts...),
		cart.WithLogger(logger),
		cart.WithLifecycleHooks(metrics.Hooks(debugHooks(logger))),
		cart.WithReleaseAbandoned(cfg.Recovery.ReleaseAbandoned),
	)

	logger.Debug("Runtime built",
		"provider", cfg.Provider.Kind,
		"horizon", cfg.Provider.Horizon,
		"release_abandoned", cfg.Recovery.ReleaseAbandoned,
		"sealed_sessions", cfg.Encryption.Enabled(),
	)
	return rt, nil
}

// debugHooks traces every lifecycle event at debug level.
func debugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnOperation: func(ctx context.Context, e *domain.OperationEvent) {
			logger.Debug("Operation", "session_id", e.SessionID, "op", e.Op, "kind", e.Kind, "recovered", e.Recovered, "duration", e.Duration)
		},
		OnContextExpired: func(ctx context.Context, e *domain.RecoveryEvent) {
			logger.Debug("Context expired", "session_id", e.SessionID, "op", e.Op, "context_id", e.OldContextID)
		},
		OnRecovered: func(ctx context.Context, e *domain.RecoveryEvent) {
			logger.Debug("Recovered", "session_id", e.SessionID, "new_context_id", e.NewContextID, "replayed", e.ReplayedItems)
		},
		OnRecoveryFailed: func(ctx context.Context, e *domain.RecoveryEvent) {
			logger.Debug("Recovery failed", "session_id", e.SessionID, "err", e.Err)
		},
	}
}
