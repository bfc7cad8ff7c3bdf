/*
Package domain contains the core domain models of the cartkeeper system.

It defines the client-facing Session, the ephemeral BackendContext that backs it,
and the Item and Cart views exchanged between them. This package is kept pure and
free of I/O, following Hexagonal Architecture principles.

# Key Entities

  - Session: Stable client-facing identity. Holds the authoritative item list.
  - BackendContext: Ephemeral provider resource with a fixed expiry horizon.
  - Item: A cart line. Its ID is scoped to one context; its ProductID is stable.
  - Cart: The view returned to callers (id, items, total).
*/
package domain
