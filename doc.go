/*
Package cartkeeper keeps shopping carts alive across backend context expiry.

A backend (the context provider) stores cart items inside ephemeral contexts that
expire after a fixed horizon and cannot be renewed. Callers hold a stable cart
identity instead: a session that owns the authoritative item list and points at
the current context. When an operation hits an expired context, the coordinator
creates a fresh context, replays the session's items in order, rebinds the session
and retries the operation once. Callers only see ordinary success, or a
recovery-failed error if the backend cannot be rebuilt.

# Usage

	coord := cartkeeper.New()

	ctx := context.Background()
	c, _ := coord.CreateCart(ctx)
	c, _ = coord.AddItem(ctx, c.ID, domain.ItemInput{ProductID: "p1", Name: "Keyboard", Price: 100, Quantity: 1})

Item ids returned before an expiry stay usable afterwards: remove and update
resolve them through the product id recorded in the session.

# Architecture

  - pkg/domain: items, carts, sessions, error kinds and lifecycle hooks.
  - pkg/ports: provider, session store and locker contracts.
  - pkg/cart: the recovery coordinator.
  - pkg/session: per-session locking over a session store.
  - pkg/adapters: in-memory and Redis backends, HTTP and MCP transports.
*/
package cartkeeper
