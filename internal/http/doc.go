// Package http exposes the timeclock application services over a JSON HTTP
// API. Handlers decode requests, delegate to the application layer, and map
// service errors to transport status codes and error codes. All routes except
// session creation require an authenticated principal injected by the
// RequireSession middleware.
package http
