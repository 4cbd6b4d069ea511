// Package dispatch executes generation calls against an ordered list of
// fallback models with per-attempt timeouts, bounded retries and exponential
// backoff. Only transient failures are retried; malformed-request and auth
// failures propagate immediately. A cached-context binding attached to a
// request is honored only for the exact model it was prepared for and is
// silently stripped before any fallback call.
package dispatch
