package exact

import (
	"fmt"

	"github.com/cognicore/aspic/pkg/aspic/internalerr"
)

// Semantics selects how raw weighted model counts are normalized into
// probabilities.
type Semantics int

const (
	// Credal propagates probability intervals: lower bounds from the
	// "every model satisfies" conditions, upper bounds from the "some
	// model satisfies" conditions.
	Credal Semantics = iota
	// MaxEnt spreads each total choice's mass uniformly over its
	// stable models and divides by the total model mass.
	MaxEnt
	// Stable reports raw weighted stable-model counts, leaving
	// normalization to the caller (Answer.TotalMass is the divisor for
	// the max-entropy reading).
	Stable
)

// String implements fmt.Stringer.
func (s Semantics) String() string {
	switch s {
	case Credal:
		return "credal"
	case MaxEnt:
		return "maxent"
	case Stable:
		return "stable"
	}
	return fmt.Sprintf("semantics(%d)", int(s))
}

// ParseSemantics maps a configuration string onto a Semantics value.
func ParseSemantics(s string) (Semantics, error) {
	switch s {
	case "credal":
		return Credal, nil
	case "maxent", "":
		return MaxEnt, nil
	case "stable":
		return Stable, nil
	}
	return 0, fmt.Errorf("%w: unknown semantics %q", internalerr.ErrInvalidConfig, s)
}
