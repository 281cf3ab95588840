// Package redis provides Redis-backed adapters: a Pub/Sub transport that lets a
// session's peer live in another process, and a distributed locker that keeps a
// session ID owned by one replica at a time.
package redis
