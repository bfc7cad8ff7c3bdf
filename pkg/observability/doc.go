/*
Package observability exposes Prometheus collectors for the coordinator.

Metrics subscribe through domain.LifecycleHooks.
*/
package observability
