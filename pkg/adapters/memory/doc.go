// Package memory provides in-process adapters: a connected Transport pair and a model Engine.
//
// They back the tests and the CLI replay command, and serve as the reference
// implementation of the ports contracts.
package memory
