/*
Package observability turns dispatcher and replay lifecycle events into
Prometheus metrics and structured log lines.

Both are delivered as domain.LifecycleHooks, so they plug into a session
without the core packages importing Prometheus:

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	hooks := observability.Chain(metrics.Hooks(), observability.LoggingHooks(logger))
	s, _ := session.New(id, session.WithHooks(hooks))
*/
package observability
