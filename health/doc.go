// Package health reports whether a calldispatch server can do its job.
//
// Checkers cover the pieces a dispatch depends on: the cache backend (a
// failing cache degrades the service, since calls fall back to running
// uncached) and the route table (every referenced handler must be
// registered). An Aggregator runs checkers concurrently under a timeout and
// the HTTP handlers expose the result as liveness, readiness and detailed
// probes:
//
//	agg := health.NewAggregator()
//	_ = agg.Register("cache", health.NewCacheChecker("redis", redisCache, 0))
//	_ = agg.Register("routes", health.NewRoutesChecker(doc.Routes(), registry))
//	health.Mount(router, agg)
package health
