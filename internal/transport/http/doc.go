// Package http implements the UI-facing HTTP handlers of the commerce
// client. Handlers are thin: they parse and validate requests, delegate to
// the cart store, checkout session and reveal widgets, and transform domain
// errors into the structured responses of the errors package.
package http
