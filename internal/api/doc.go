// Package api exposes the task rule, task and planning operations over HTTP.
//
// Handlers decode and validate JSON bodies, take the acting user from the
// request context populated by the auth middleware, and translate service
// errors into status codes with client-safe messages.
package api
