// Package dispatch runs the two-stage delegation pipeline behind every
// route: an optional authentication handler, then the request handler,
// with results served from and stored into a cache.
//
// Handlers are registered by library and callback name in a Registry and
// return an Outcome, which is either plain data or data plus a SideChannel
// of cookies and response directives. The pipeline merges both stages into
// a Result that a transport emits.
package dispatch
