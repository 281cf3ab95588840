// Package registry holds the handler registry: a multimap from action kind to the
// handlers that react to it.
//
// Registration and disposal are safe for concurrent use. Lookups return a copy of the
// handler list so that a dispatch in flight is not affected by later registrations.
package registry
