package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/cartkeeper/pkg/domain"
	"github.com/aretw0/cartkeeper/pkg/ports"
)

// operation is one provider call bound to whichever context is current.
type operation struct {
	name string
	run  func(ctx context.Context, contextID string) (*domain.Cart, error)

	// retarget adapts the operation to a recovered context. authoritative holds the
	// session items as they were before recovery, replayed is the cart of the new
	// context. A nil retarget means run is valid against any context.
	retarget func(authoritative []domain.Item, replayed *domain.Cart) (operation, error)
}

// itemOperation builds an operation addressing itemID.
//
// Item ids are not portable across contexts. When the expiry is detected on this
// very call, itemID belongs to the expired context, so the target is resolved
// through its productId in the authoritative items and the first item carrying
// that productId in the replayed cart is addressed instead. With duplicate
// productIds this may pick a different line than the caller meant.
func (c *Coordinator) itemOperation(name, itemID string, call func(ctx context.Context, contextID, itemID string) (*domain.Cart, error)) operation {
	bind := func(id string) func(context.Context, string) (*domain.Cart, error) {
		return func(ctx context.Context, contextID string) (*domain.Cart, error) {
			return call(ctx, contextID, id)
		}
	}
	return operation{
		name: name,
		run:  bind(itemID),
		retarget: func(authoritative []domain.Item, replayed *domain.Cart) (operation, error) {
			idx := domain.FindItem(authoritative, itemID)
			if idx < 0 {
				return operation{}, domain.ErrItemNotFound
			}
			target := domain.FindProduct(replayed.Items, authoritative[idx].ProductID)
			if target < 0 {
				return operation{}, domain.ErrItemNotFound
			}
			return operation{name: name, run: bind(replayed.Items[target].ID)}, nil
		},
	}
}

// recover moves the session onto a fresh context and re-issues op against it.
// It runs at most once per caller operation. s is rebound and persisted only
// after the replay succeeded; on failure it is left untouched.
func (c *Coordinator) recover(ctx context.Context, s *domain.Session, op operation) (*domain.Cart, error) {
	start := c.now()
	oldContextID := s.ContextID
	event := domain.RecoveryEvent{
		EventBase: domain.EventBase{
			Timestamp: start,
			Type:      domain.EventContextExpired,
			SessionID: s.ID,
		},
		Op:           op.name,
		OldContextID: oldContextID,
	}

	c.logger.Warn("Context expired, recovering session",
		"session_id", s.ID,
		"context_id", oldContextID,
		"op", op.name,
		"items", len(s.Items),
	)
	if c.hooks.OnContextExpired != nil {
		e := event
		c.hooks.OnContextExpired(ctx, &e)
	}

	replayed, freshID, err := c.replay(ctx, s.Items)
	if err != nil {
		if freshID != "" {
			c.abandon(ctx, s.ID, freshID)
		}
		return nil, c.failed(ctx, event, s, freshID, err)
	}

	retried := op
	var retargetErr error
	if op.retarget != nil {
		retried, retargetErr = op.retarget(s.Items, replayed)
	}

	rebound := s.Snapshot()
	rebound.ContextID = freshID
	rebound.Items = domain.CloneItems(replayed.Items)
	rebound.LastAccessedAt = c.now()
	if err := c.sessions.Store().Save(ctx, rebound); err != nil {
		c.abandon(ctx, s.ID, freshID)
		return nil, c.failed(ctx, event, s, freshID, fmt.Errorf("failed to save session: %w", err))
	}
	*s = *rebound
	c.abandon(ctx, s.ID, oldContextID)

	c.logger.Info("Session recovered",
		"session_id", s.ID,
		"old_context_id", oldContextID,
		"new_context_id", freshID,
		"replayed_items", len(replayed.Items),
	)
	if c.hooks.OnRecovered != nil {
		e := event
		e.Type = domain.EventRecovered
		e.Timestamp = c.now()
		e.NewContextID = freshID
		e.ReplayedItems = len(replayed.Items)
		e.Duration = c.now().Sub(start)
		c.hooks.OnRecovered(ctx, &e)
	}

	if retargetErr != nil {
		return nil, retargetErr
	}

	cart, err := retried.run(ctx, freshID)
	if errors.Is(err, domain.ErrContextExpired) {
		// The fresh context is already gone; no second recovery.
		return nil, &domain.RecoveryError{
			SessionID:    s.ID,
			ContextID:    oldContextID,
			NewContextID: freshID,
			Op:           op.name,
			Cause:        err,
		}
	}
	return cart, err
}

// replay creates a context and adds items to it in order.
// freshID is set as soon as a context exists, even when replay fails.
func (c *Coordinator) replay(ctx context.Context, items []domain.Item) (cart *domain.Cart, freshID string, err error) {
	fresh, err := c.provider.CreateContext(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create context: %w", err)
	}

	cart = fresh.Cart()
	for i, it := range items {
		cart, err = c.provider.AddItem(ctx, fresh.ID, it.Input())
		if err != nil {
			return nil, fresh.ID, fmt.Errorf("failed to replay item %d (%s): %w", i, it.ProductID, err)
		}
	}
	return cart, fresh.ID, nil
}

func (c *Coordinator) failed(ctx context.Context, event domain.RecoveryEvent, s *domain.Session, freshID string, cause error) error {
	err := &domain.RecoveryError{
		SessionID:    s.ID,
		ContextID:    event.OldContextID,
		NewContextID: freshID,
		Op:           event.Op,
		Cause:        cause,
	}

	c.logger.Error("Session recovery failed",
		"session_id", s.ID,
		"context_id", event.OldContextID,
		"op", event.Op,
		"err", cause,
	)
	if c.hooks.OnRecoveryFailed != nil {
		event.Type = domain.EventRecoveryFailed
		event.Timestamp = c.now()
		event.NewContextID = freshID
		event.Duration = c.now().Sub(event.EventBase.Timestamp)
		event.Err = cause
		c.hooks.OnRecoveryFailed(ctx, &event)
	}
	return err
}

// abandon releases a context no session references anymore. Best-effort.
func (c *Coordinator) abandon(ctx context.Context, sessionID, contextID string) {
	if !c.releaseAbandoned {
		return
	}
	releaser, ok := c.provider.(ports.ContextReleaser)
	if !ok {
		return
	}
	if err := releaser.Release(ctx, contextID); err != nil {
		c.logger.Warn("Failed to release abandoned context",
			"session_id", sessionID,
			"context_id", contextID,
			"err", err,
		)
	}
}
