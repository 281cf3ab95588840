/*
Package session wires the per-diagram components into a Session and manages
the sessions of a process.

A Session owns exactly one dispatcher and one feedback registry, created when the
session opens and torn down when it closes. The Manager serializes open and close
per session ID with reference-counted local locks and, when configured, a
distributed lock so that replicas sharing a backend do not serve the same
session twice.
*/
package session
