// Package auth provides the built-in authentication libraries for calldispatch.
//
// Route bindings reference them as auth/jwt or auth/apikey with the verify
// callback. Each binding's options configure a JWT (static secret or JWKS) or
// API key authenticator; the authenticated Identity is stored on the request
// context for the request handler to read with IdentityFrom.
package auth
