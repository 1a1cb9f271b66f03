// Package choice enumerates total choices: complete assignments of truth
// values to probabilistic facts and of selected heads to annotated
// disjunctions. The enumeration order is a mixed-radix odometer with the
// last-declared boolean dimension varying fastest and disjunction groups
// acting as higher-radix digits above the boolean block. Worker
// partitioning slices this order by plain index arithmetic, so the order
// is part of the contract, not an implementation detail.
package choice

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cognicore/aspic/pkg/aspic/internalerr"
	"github.com/cognicore/aspic/pkg/aspic/program"
)

// maxBits bounds the total choice space so that linear indices fit in a
// uint64 with headroom for partition arithmetic.
const maxBits = 62

// Space describes the shape of a program's choice space. Boolean
// dimensions are, in declaration order: probabilistic facts, credal
// facts, neural rules. Group dimensions are annotated disjunctions
// followed by neural ADs.
type Space struct {
	nbool   int
	radices []int
	strides []uint64
	count   uint64
}

// NewSpace computes the choice space of p. It fails with
// internalerr.ErrMalformedProgram when the space does not fit in 2^62
// total choices.
func NewSpace(p *program.Program) (Space, error) {
	s := Space{nbool: len(p.PF) + len(p.CF) + len(p.NR)}
	if s.nbool > maxBits {
		return Space{}, fmt.Errorf("%w: %d boolean choice dimensions exceed %d",
			internalerr.ErrMalformedProgram, s.nbool, maxBits)
	}
	for _, ad := range p.AD {
		s.radices = append(s.radices, len(ad.P))
	}
	for _, na := range p.NA {
		s.radices = append(s.radices, len(na.Names))
	}

	count := uint64(1) << uint(s.nbool)
	for _, k := range s.radices {
		if k < 2 {
			return Space{}, fmt.Errorf("%w: disjunction group with %d values", internalerr.ErrMalformedProgram, k)
		}
		if count > (uint64(1)<<maxBits)/uint64(k) {
			return Space{}, fmt.Errorf("%w: total choice space exceeds 2^%d", internalerr.ErrMalformedProgram, maxBits)
		}
		count *= uint64(k)
	}
	s.count = count

	// Stride of the last group is 1; groups declared earlier are more
	// significant digits.
	s.strides = make([]uint64, len(s.radices))
	stride := uint64(1)
	for g := len(s.radices) - 1; g >= 0; g-- {
		s.strides[g] = stride
		stride *= uint64(s.radices[g])
	}
	return s, nil
}

// Count returns the number of total choices: 2^n times the product of
// the group radices. A program with no choice dimensions has exactly one
// (empty) total choice.
func (s Space) Count() uint64 { return s.count }

// Bools returns the number of boolean choice dimensions.
func (s Space) Bools() int { return s.nbool }

// Groups returns the number of disjunction group dimensions.
func (s Space) Groups() int { return len(s.radices) }

// Radix returns the number of values of group g.
func (s Space) Radix(g int) int { return s.radices[g] }

// Total is one concrete total choice. Instances are transient: iterators
// reuse them between steps, so callers must not retain one across Next.
type Total struct {
	bits []uint64
	vals []int
}

// NewTotal allocates a total choice sized for s.
func (s Space) NewTotal() *Total {
	return &Total{
		bits: make([]uint64, (s.nbool+63)/64),
		vals: make([]int, len(s.radices)),
	}
}

// Fact reports the truth value chosen for boolean dimension d.
func (t *Total) Fact(d int) bool {
	return t.bits[d/64]&(1<<uint(d%64)) != 0
}

// Value returns the head index chosen for group g.
func (t *Total) Value(g int) int { return t.vals[g] }

// Key returns a compact signature of the choice, usable as a cache key.
func (t *Total) Key() string {
	var b strings.Builder
	for _, w := range t.bits {
		b.WriteString(strconv.FormatUint(w, 16))
		b.WriteByte(':')
	}
	for _, v := range t.vals {
		b.WriteString(strconv.Itoa(v))
		b.WriteByte(',')
	}
	return b.String()
}

// At decodes the idx-th total choice of the enumeration order into t.
// Boolean dimension d holds bit (n-1-d) of the low n index bits, so the
// last-declared fact flips on every step. Group digits sit above the
// boolean block, the last-declared group varying fastest among groups.
func (s Space) At(idx uint64, t *Total) {
	boolPart := idx
	if s.nbool < 64 {
		boolPart = idx & ((uint64(1) << uint(s.nbool)) - 1)
	}
	for i := range t.bits {
		t.bits[i] = 0
	}
	for d := 0; d < s.nbool; d++ {
		if boolPart>>uint(s.nbool-1-d)&1 != 0 {
			t.bits[d/64] |= 1 << uint(d%64)
		}
	}
	groupPart := idx >> uint(s.nbool)
	for g := range s.radices {
		t.vals[g] = int(groupPart / s.strides[g] % uint64(s.radices[g]))
	}
}

// Iterator walks a contiguous index range of the choice space lazily.
type Iterator struct {
	s    Space
	next uint64
	end  uint64
	t    *Total
}

// Range returns an iterator over indices [lo, hi). Passing 0 and Count()
// walks the whole space.
func (s Space) Range(lo, hi uint64) *Iterator {
	if hi > s.count {
		hi = s.count
	}
	return &Iterator{s: s, next: lo, end: hi, t: s.NewTotal()}
}

// Next yields the next total choice and its linear index. The returned
// Total is owned by the iterator and overwritten on the following call.
func (it *Iterator) Next() (*Total, uint64, bool) {
	if it.next >= it.end {
		return nil, 0, false
	}
	idx := it.next
	it.s.At(idx, it.t)
	it.next++
	return it.t, idx, true
}

// Partition splits [0, count) into at most workers contiguous half-open
// ranges. Earlier ranges are one longer when count does not divide
// evenly; empty ranges are never returned.
func Partition(count uint64, workers int) [][2]uint64 {
	if workers < 1 {
		workers = 1
	}
	if uint64(workers) > count {
		workers = int(count)
	}
	if workers < 1 {
		workers = 1
	}
	base := count / uint64(workers)
	rem := count % uint64(workers)
	ranges := make([][2]uint64, 0, workers)
	lo := uint64(0)
	for w := 0; w < workers; w++ {
		n := base
		if uint64(w) < rem {
			n++
		}
		ranges = append(ranges, [2]uint64{lo, lo + n})
		lo += n
	}
	return ranges
}
