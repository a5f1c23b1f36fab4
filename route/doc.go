// Package route describes the declarative call bindings served by the
// dispatcher and loads them from a route document.
//
// A route document has two sections: "routes", an ordered list of calls
// (HTTP method and path bound to a library callback, with a parameter
// schema, an optional authentication binding, a caching policy and a raw
// response flag), and "authentication", a map of named bindings shared by
// calls. Documents are JSON; YAML is accepted as well.
package route
