/*
Package ports defines the driven ports (interfaces) for the cartkeeper coordinator.

These interfaces decouple the recovery logic from external implementations, allowing
the coordinator to work with simulated or real backends and various session stores.

# Key Interfaces

  - ContextProvider: The backend resource manager whose contexts expire and cannot be renewed.
  - ContextReleaser / ContextExpirer: Optional provider capabilities (abandonment, forced expiry).
  - SessionStore: Responsible for persisting and loading Sessions.
  - DistributedLocker: Provides distributed locking for handling concurrent session access.
*/
package ports
