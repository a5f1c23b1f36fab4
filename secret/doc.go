// Package secret expands environment references in route document values.
//
// Authentication bindings carry free-form options (signing secrets, API key
// hashes, JWKS URLs). Those values may reference the environment as `${VAR}`
// so that credentials stay out of the route file; see ExpandEnvStrict and
// ExpandOptions.
package secret
