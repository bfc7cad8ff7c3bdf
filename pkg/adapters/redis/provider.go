package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aretw0/cartkeeper/pkg/domain"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

const (
	// DefaultContextPrefix namespaces context keys.
	DefaultContextPrefix = "cartkeeper:context:"

	// DefaultHorizon is the lifetime of a context when none is configured.
	DefaultHorizon = 15 * time.Minute

	maxTxRetries = 16
)

// Provider implements ports.ContextProvider on Redis. Each context is one JSON
// document under a key whose TTL is the context's horizon, so Redis itself
// reclaims expired contexts. Mutations are optimistic WATCH/MULTI transactions.
type Provider struct {
	client  *backend.Client
	prefix  string
	horizon time.Duration
	now     func() time.Time
}

// ProviderOption configures the Provider.
type ProviderOption func(*Provider)

// WithHorizon sets the lifetime of new contexts.
func WithHorizon(d time.Duration) ProviderOption {
	return func(p *Provider) {
		p.horizon = d
	}
}

// WithContextPrefix sets the key prefix for contexts.
func WithContextPrefix(prefix string) ProviderOption {
	return func(p *Provider) {
		p.prefix = prefix
	}
}

// WithClock injects the time source used for the logical expiry check.
func WithClock(now func() time.Time) ProviderOption {
	return func(p *Provider) {
		p.now = now
	}
}

// NewProvider creates a provider from an existing client.
func NewProvider(client *backend.Client, opts ...ProviderOption) *Provider {
	p := &Provider{
		client:  client,
		prefix:  DefaultContextPrefix,
		horizon: DefaultHorizon,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// record is the stored form of a context.
type record struct {
	ID        string        `json:"id"`
	ExpiresAt time.Time     `json:"expires_at"`
	Items     []domain.Item `json:"items"`
}

func (r *record) cart() *domain.Cart {
	return domain.NewCart(r.ID, r.Items)
}

func (p *Provider) key(contextID string) string {
	return p.prefix + contextID
}

// seqKey holds the item id counter shared by all contexts under the prefix.
func (p *Provider) seqKey() string {
	return p.prefix + "seq"
}

// CreateContext stores an empty context expiring horizon from now.
func (p *Provider) CreateContext(ctx context.Context) (*domain.BackendContext, error) {
	rec := record{
		ID:        "ctx_" + uuid.NewString(),
		ExpiresAt: p.now().Add(p.horizon),
		Items:     []domain.Item{},
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal context: %w", err)
	}

	// Redis rejects non-positive TTLs; such a context is expired already and
	// only needs to exist long enough to be reported as such.
	ttl := p.horizon
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	if err := p.client.Set(ctx, p.key(rec.ID), data, ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	return &domain.BackendContext{
		ID:        rec.ID,
		ExpiresAt: rec.ExpiresAt,
		Items:     []domain.Item{},
	}, nil
}

// GetCart returns the context's items.
func (p *Provider) GetCart(ctx context.Context, contextID string) (*domain.Cart, error) {
	data, err := p.client.Get(ctx, p.key(contextID)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrContextExpired
		}
		return nil, fmt.Errorf("failed to get context: %w", err)
	}
	rec, err := p.live(data)
	if err != nil {
		return nil, err
	}
	return rec.cart(), nil
}

// AddItem appends the item under a fresh identifier.
// Identifiers come from a counter shared by every context, so an id from one
// context never addresses an item in another.
func (p *Provider) AddItem(ctx context.Context, contextID string, input domain.ItemInput) (*domain.Cart, error) {
	seq, err := p.client.Incr(ctx, p.seqKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate item id: %w", err)
	}
	id := strconv.FormatInt(seq, 10)

	return p.mutate(ctx, contextID, true, func(rec *record) error {
		rec.Items = append(rec.Items, domain.Item{
			ID:        id,
			ProductID: input.ProductID,
			Name:      input.Name,
			Price:     input.Price,
			Quantity:  input.Quantity,
		})
		return nil
	})
}

// RemoveItem deletes the item from the context.
func (p *Provider) RemoveItem(ctx context.Context, contextID, itemID string) (*domain.Cart, error) {
	return p.mutate(ctx, contextID, true, func(rec *record) error {
		idx := domain.FindItem(rec.Items, itemID)
		if idx < 0 {
			return domain.ErrItemNotFound
		}
		rec.Items = append(rec.Items[:idx], rec.Items[idx+1:]...)
		return nil
	})
}

// UpdateItem sets the quantity of the item.
func (p *Provider) UpdateItem(ctx context.Context, contextID, itemID string, quantity int) (*domain.Cart, error) {
	return p.mutate(ctx, contextID, true, func(rec *record) error {
		idx := domain.FindItem(rec.Items, itemID)
		if idx < 0 {
			return domain.ErrItemNotFound
		}
		rec.Items[idx].Quantity = quantity
		return nil
	})
}

// Release deletes the context key.
func (p *Provider) Release(ctx context.Context, contextID string) error {
	if err := p.client.Del(ctx, p.key(contextID)).Err(); err != nil {
		return fmt.Errorf("failed to release context: %w", err)
	}
	return nil
}

// Expire moves the context's logical expiry to the current instant.
func (p *Provider) Expire(ctx context.Context, contextID string) error {
	_, err := p.mutate(ctx, contextID, false, func(rec *record) error {
		rec.ExpiresAt = p.now()
		return nil
	})
	return err
}

func (p *Provider) decode(data []byte) (*record, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal context: %w", err)
	}
	if rec.Items == nil {
		rec.Items = []domain.Item{}
	}
	return &rec, nil
}

// live decodes data and applies the inclusive expiry check.
func (p *Provider) live(data []byte) (*record, error) {
	rec, err := p.decode(data)
	if err != nil {
		return nil, err
	}
	if !p.now().Before(rec.ExpiresAt) {
		return nil, domain.ErrContextExpired
	}
	return rec, nil
}

// mutate applies fn to the stored context inside a WATCH transaction, keeping the key's TTL.
// The write uses XX so a key that expired mid-transaction is never resurrected.
func (p *Provider) mutate(ctx context.Context, contextID string, requireLive bool, fn func(*record) error) (*domain.Cart, error) {
	key := p.key(contextID)
	var result *domain.Cart

	txf := func(tx *backend.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, backend.Nil) {
				return domain.ErrContextExpired
			}
			return fmt.Errorf("failed to get context: %w", err)
		}

		var rec *record
		if requireLive {
			rec, err = p.live(data)
		} else {
			rec, err = p.decode(data)
		}
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}

		out, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal context: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			pipe.SetArgs(ctx, key, out, backend.SetArgs{Mode: "XX", KeepTTL: true})
			return nil
		})
		if errors.Is(err, backend.Nil) {
			return domain.ErrContextExpired
		}
		if err != nil {
			return err
		}
		result = rec.cart()
		return nil
	}

	for i := 0; i < maxTxRetries; i++ {
		err := p.client.Watch(ctx, txf, key)
		if errors.Is(err, backend.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("context %s: transaction retries exhausted", contextID)
}
