// Package storage holds the per-worker accumulation structures of the
// inference engine: model counts per learnable parameter and
// probability masses per observation. Index arrays mapping local
// positions to global fact/AD indices depend only on the program, so
// worker copies borrow them from a single owner instead of recomputing;
// the ownsIndex flag records which copy may release them.
package storage

import (
	"fmt"

	"github.com/cognicore/aspic/pkg/aspic/internalerr"
	"github.com/cognicore/aspic/pkg/aspic/program"
)

// CountStorage accumulates stable-model counts per learnable parameter:
// two buckets per probabilistic fact (false, true) and one bucket per
// value of each annotated disjunction.
type CountStorage struct {
	// F[i][v] counts models across total choices where learnable fact
	// IF[i] took truth value v.
	F [][2]uint64
	// A[j][v] counts models where learnable AD IA[j] selected value v.
	A [][]uint64
	// IF and IA map local positions to global indices. They may be
	// shared with other storages; see OwnsIndex.
	IF []int
	IA []int

	ownsIndex bool
}

// NewCountStorage builds an owning storage sized for p's learnable
// parameters.
func NewCountStorage(p *program.Program) *CountStorage {
	c := &CountStorage{
		IF:        p.LearnableFacts(),
		IA:        p.LearnableADs(),
		ownsIndex: true,
	}
	c.F = make([][2]uint64, len(c.IF))
	c.A = make([][]uint64, len(c.IA))
	for j, gi := range c.IA {
		c.A[j] = make([]uint64, len(p.AD[gi].P))
	}
	return c
}

// Borrow returns a zeroed storage of the same shape sharing c's index
// arrays by reference. The borrower never releases the shared arrays.
func (c *CountStorage) Borrow() *CountStorage {
	b := &CountStorage{IF: c.IF, IA: c.IA}
	b.F = make([][2]uint64, len(c.F))
	b.A = make([][]uint64, len(c.A))
	for j := range c.A {
		b.A[j] = make([]uint64, len(c.A[j]))
	}
	return b
}

// OwnsIndex reports whether this storage owns the shared index arrays.
// Exactly one storage in a worker group does.
func (c *CountStorage) OwnsIndex() bool { return c.ownsIndex }

// Merge adds o's counts into c element-wise. Storages must have the
// same shape.
func (c *CountStorage) Merge(o *CountStorage) error {
	if len(c.F) != len(o.F) || len(c.A) != len(o.A) {
		return fmt.Errorf("%w: count storage %dx%d vs %dx%d",
			internalerr.ErrStorageShape, len(c.F), len(c.A), len(o.F), len(o.A))
	}
	for i := range c.F {
		c.F[i][0] += o.F[i][0]
		c.F[i][1] += o.F[i][1]
	}
	for j := range c.A {
		if len(c.A[j]) != len(o.A[j]) {
			return fmt.Errorf("%w: AD %d has %d vs %d values",
				internalerr.ErrStorageShape, j, len(c.A[j]), len(o.A[j]))
		}
		for v := range c.A[j] {
			c.A[j][v] += o.A[j][v]
		}
	}
	return nil
}

// Release drops the storage's contents. Shared index arrays are cleared
// only by their owner, so releasing a borrower and its owner in any
// order is safe.
func (c *CountStorage) Release() {
	c.F = nil
	c.A = nil
	if c.ownsIndex {
		c.IF = nil
		c.IA = nil
	}
}
