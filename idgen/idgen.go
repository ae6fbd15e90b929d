// Package idgen allocates the identities assigned to tracked nodes.
package idgen

import (
	"strconv"
	"sync/atomic"
)

// ID is a node identity. The zero value is never generated and means "no
// identity".
type ID uint64

// String formats the ID in base 10.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Generator produces unique identifiers.
type Generator interface {
	Generate() ID
}

// New returns a sequential generator whose first emitted ID is 1. IDs are
// never handed out twice by the same generator.
func New() Generator {
	return &sequentialGenerator{}
}

type sequentialGenerator struct {
	next uint64
}

func (g *sequentialGenerator) Generate() ID {
	return ID(atomic.AddUint64(&g.next, 1))
}
