// Package redis provides Redis-backed adapters: a ContextProvider whose contexts
// live in keys expiring at their horizon, a SessionStore, and a DistributedLocker.
package redis
