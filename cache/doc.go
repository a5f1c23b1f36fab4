// Package cache stores dispatch results keyed by the logical request.
//
// It provides the Cache interface with memory, sturdyc, redis and sqlite
// backends, the request-derived cache key (see Keyer), and TTL policies.
// Backends never report read failures: a broken store behaves as a miss.
package cache
