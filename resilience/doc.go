// Package resilience guards the dispatch server and its remote dependencies.
//
// Admission is the HTTP front door's guard: a server-wide token bucket, an
// optional bucket per client, and a Bulkhead capping requests in flight.
// Refused requests learn how long to wait before retrying.
//
// Remote cache backends run behind an Executor that stacks a named
// CircuitBreaker over a per-operation Timeout, so a cache that is down is
// skipped instead of slowing every call. Retry backs the JWKS key fetch.
package resilience
