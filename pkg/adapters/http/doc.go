// Package http exposes diagram sessions over HTTP with a chi router: a websocket
// endpoint that serves one session per connection, session inspection, health
// and Prometheus metrics.
package http
