// Package idgenerator hands out the integer identifiers carried on the wire
// for connections, sessions and pending choice requests.
package idgenerator

import (
	"math"
	"sync/atomic"
)

// IdGenerator generates positive int32 IDs in a concurrency-safe manner.
// Zero is reserved to mean "none" on the wire, so after math.MaxInt32 the
// sequence wraps back to 1.
type IdGenerator struct {
	id atomic.Int32
}

// NewIdGenerator creates an IdGenerator whose first Id() returns
// startValue+1. A negative startValue is treated as 0.
//
// Parameters:
//   - startValue: The value to initialize the counter to
//
// Returns:
//   - A new IdGenerator instance
func NewIdGenerator(startValue int32) *IdGenerator {
	gen := &IdGenerator{}
	if startValue > 0 {
		gen.id.Store(startValue)
	}

	return gen
}

// Id returns the next ID. It is safe for concurrent use by multiple
// goroutines and never returns a value below 1.
//
// Returns:
//   - The next positive int32 ID
func (l *IdGenerator) Id() int32 {
	for {
		cur := l.id.Load()
		next := cur + 1
		if cur == math.MaxInt32 {
			next = 1
		}

		if l.id.CompareAndSwap(cur, next) {
			return next
		}
	}
}
