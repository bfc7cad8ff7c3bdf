/*
Package cart implements the Session Recovery Coordinator.

A Coordinator maps stable session identifiers onto provider contexts that
expire and cannot be renewed. Every cart operation is delegated to the
provider; when the provider reports an expired context, the Coordinator
creates a fresh context, replays the session's authoritative items into it,
rebinds the session and retries the original operation exactly once. The
caller never observes the expiry.

All operations on one session are serialized through a session.Manager, so
concurrent operations that observe the same expiry perform a single recovery.
*/
package cart
