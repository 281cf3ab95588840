// Package stdio implements ports.Transport as JSON lines over an io.Reader and
// io.Writer, typically the standard streams of a child process or of the CLI itself.
package stdio
