// Package group defines the capability seam between the orbit and
// certificate machinery and a concrete group library.
//
// A backend provides three things: arithmetic in an ambient group M with a
// distinguished subgroup G, a linear action of G on GF(2)^n, and an action of
// M on a finite set of axes together with the canonical reduction of an
// axis onto the named representative of its G-orbit. Elements and axes are
// opaque to everything outside the backend.
package group

import (
	"errors"
	"math/big"
	"math/rand"

	"github.com/i5heu/axis-orbits/pkg/gf2"
)

var (
	ErrParse       = errors.New("group: cannot parse element")
	ErrUnknownName = errors.New("group: unknown orbit name")
	ErrNotInGroup  = errors.New("group: element not in acting subgroup")
	ErrNotReduced  = errors.New("group: reduction failed")
)

// Element is an opaque, immutable group element. Compare with Group.Equal.
type Element any

// Axis is an opaque, immutable axis. Compare with AxisAction.EqualAxes.
type Axis any

// Group is element arithmetic in M. Contains tells whether an element lies in
// the acting subgroup G.
type Group interface {
	Identity() Element
	Mul(a, b Element) Element
	Inverse(a Element) Element
	Equal(a, b Element) bool
	Contains(a Element) bool

	// Format and Parse are the canonical text encoding. Format never emits
	// whitespace so an element fits one certificate field.
	Format(a Element) string
	Parse(s string) (Element, error)

	// Random returns a uniformly distributed element of G.
	Random(rng *rand.Rand) Element
	// Order is |G|.
	Order() *big.Int
	// ElementOrder and Character are class invariants used in reports.
	ElementOrder(a Element) int
	Character(a Element) int
}

// LinearAction is the action of G on GF(2)^n.
type LinearAction interface {
	Dim() int
	Matrix(a Element) gf2.Matrix
	PointType(v gf2.Vector) int
	AdmissibleType() int
	// BasePoint is the fixed admissible point every admissible point is
	// transported to.
	BasePoint() gf2.Vector
	// Transport returns an element of G mapping v onto BasePoint. For
	// v == BasePoint it returns the identity.
	Transport(v gf2.Vector) (Element, error)
}

// AxisAction is the action of M on axes.
type AxisAction interface {
	// Names lists the G-orbits of axes in their standard order.
	Names() []string
	// BaseAxis is the standard axis every representative is derived from.
	BaseAxis() Axis
	// AxisElement returns g in M with BaseAxis * g == Representative(name).
	AxisElement(name string) (Element, error)
	Representative(name string) (Axis, error)

	Act(ax Axis, g Element) Axis
	// Triality applies tau^exp, exp in {1, 2}.
	Triality(ax Axis, exp int) Axis
	// Reduce returns the orbit name of ax and h in G with ax * h equal to
	// the representative of that orbit. Representatives reduce to the
	// identity.
	Reduce(ax Axis) (string, Element, error)
	EqualAxes(a, b Axis) bool
	FormatAxis(ax Axis) string

	// OrbitSize is the number of axes in the G-orbit.
	OrbitSize(name string) (*big.Int, error)
	// Watermark is an invariant of ax under the stabilizer of BasePoint.
	Watermark(ax Axis) string
}

// CentralizerSource is implemented by backends that know generators of the
// centralizer in G of every representative.
type CentralizerSource interface {
	CentralizerGenerators(name string) ([]Element, error)
}

// Backend bundles the three capabilities.
type Backend interface {
	Group
	LinearAction
	AxisAction
}

// AdmissibleCount returns the number of admissible points, by scanning the
// whole space. Intended for dimensions where a full scan is cheap.
func AdmissibleCount(l LinearAction) uint64 {
	n := l.Dim()
	want := l.AdmissibleType()
	var count uint64
	end := uint64(1) << uint(n)
	for v := uint64(0); v < end; v++ {
		if l.PointType(gf2.Vector(v)) == want {
			count++
		}
	}
	return count
}

// MulAll multiplies the elements left to right.
func MulAll(g Group, elems ...Element) Element {
	out := g.Identity()
	for _, e := range elems {
		out = g.Mul(out, e)
	}
	return out
}
