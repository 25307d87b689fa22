// Package idgen provides sequential, deterministic ID generators.
//
// A generator never reuses an ID. To start numbering from the beginning again,
// replace the generator with a new one.
package idgen

import "sync/atomic"

// ID is a unique identifier represented as a uint64.
type ID uint64

// Generator produces unique identifiers.
type Generator interface {
	Generate() ID

	// Peek returns the ID that the next call to Generate will return.
	Peek() ID
}

// New returns a sequential generator whose first emitted ID is 1.
func New() Generator {
	return &sequentialGenerator{}
}

// NewStartingAt returns a sequential generator whose first emitted ID is
// first.
func NewStartingAt(first ID) Generator {
	return &sequentialGenerator{next: uint64(first) - 1}
}

type sequentialGenerator struct {
	next uint64
}

func (g *sequentialGenerator) Generate() ID {
	return ID(atomic.AddUint64(&g.next, 1))
}

func (g *sequentialGenerator) Peek() ID {
	return ID(atomic.LoadUint64(&g.next) + 1)
}
