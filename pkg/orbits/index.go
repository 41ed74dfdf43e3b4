// Package orbits computes the orbits of a group generated by a finite set of
// elements acting linearly on GF(2)^n, restricted to an invariant set of
// admissible points.
//
// An Index keeps a Schreier tree for every orbit, so besides sizes and
// representatives it can produce transversal elements and stabilizer
// elements without storing any group element other than the generators.
package orbits

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/i5heu/axis-orbits/pkg/gf2"
	"github.com/i5heu/axis-orbits/pkg/group"
)

// DefaultSampleSize is the number of sample members drawn per orbit.
const DefaultSampleSize = 8

// MaxScanDim bounds full scans of the space.
const MaxScanDim = 28

var (
	ErrNoGenerators          = errors.New("orbits: generator set is empty")
	ErrPredicateNotInvariant = errors.New("orbits: admissible set is not invariant under the generators")
	ErrUnknownPoint          = errors.New("orbits: point is not in the index")
	ErrPartition             = errors.New("orbits: orbit sizes do not partition the admissible set")
	ErrDimension             = errors.New("orbits: dimension out of range")
	ErrCorrupt               = errors.New("orbits: corrupt serialized index")
	ErrNotAdmissible         = errors.New("orbits: seed is not admissible")
)

// Point is an element of the space.
type Point = gf2.Vector

// MatrixFunc maps a group element to the matrix of its action.
type MatrixFunc func(group.Element) gf2.Matrix

// Predicate selects admissible points.
type Predicate func(Point) bool

// Orbit is one orbit of the index.
type Orbit struct {
	Rep    Point
	Size   uint64
	Sample []Point

	start int
}

// Index is the orbit decomposition of the admissible points reached by a
// computation.
type Index struct {
	grp  group.Group
	mat  MatrixFunc
	dim  int
	gens []group.Element
	mats []gf2.Matrix

	orbits []Orbit
	// members lists the points in BFS order, grouped by orbit. parent and via
	// are parallel to members: members[i] == members[parent[i]] * gens[via[i]];
	// representatives have parent -1.
	members []Point
	parent  []int32
	via     []int16
	// sorted holds positions into members ordered by point.
	sorted []int32
}

// Options controls Compute.
type Options struct {
	// Admissible selects the points to decompose. nil admits every point.
	Admissible Predicate
	// Seeds restricts the computation to the orbits of these points. With no
	// seeds the whole space is scanned in ascending order.
	Seeds []Point
	// SampleSize is the number of sample members per orbit, DefaultSampleSize
	// when zero, none when negative.
	SampleSize int
	// Rand drives member sampling. A fixed source is used when nil.
	Rand *rand.Rand
}

// Dim returns the dimension of the space.
func (ix *Index) Dim() int { return ix.dim }

// Generators returns the generator set.
func (ix *Index) Generators() []group.Element {
	out := make([]group.Element, len(ix.gens))
	copy(out, ix.gens)
	return out
}

// Len returns the number of orbits.
func (ix *Index) Len() int { return len(ix.orbits) }

// Orbits returns all orbits in discovery order.
func (ix *Index) Orbits() []Orbit {
	out := make([]Orbit, len(ix.orbits))
	copy(out, ix.orbits)
	return out
}

// Representatives returns the orbit representatives and sizes.
func (ix *Index) Representatives() ([]Point, []uint64) {
	reps := make([]Point, len(ix.orbits))
	sizes := make([]uint64, len(ix.orbits))
	for i, o := range ix.orbits {
		reps[i], sizes[i] = o.Rep, o.Size
	}
	return reps, sizes
}

// SortedSizes returns the multiset of orbit sizes in ascending order.
func (ix *Index) SortedSizes() []uint64 {
	_, sizes := ix.Representatives()
	sort.Slice(sizes, func(i, j int) bool { return sizes[i] < sizes[j] })
	return sizes
}

// Total returns the number of points covered by the index.
func (ix *Index) Total() uint64 {
	return uint64(len(ix.members))
}

func (ix *Index) position(p Point) (int, bool) {
	i := sort.Search(len(ix.sorted), func(i int) bool {
		return ix.members[ix.sorted[i]] >= p
	})
	if i < len(ix.sorted) && ix.members[ix.sorted[i]] == p {
		return int(ix.sorted[i]), true
	}
	return 0, false
}

func (ix *Index) orbitAt(pos int) int {
	return sort.Search(len(ix.orbits), func(i int) bool {
		return ix.orbits[i].start > pos
	}) - 1
}

// Contains reports whether p lies in one of the orbits of the index.
func (ix *Index) Contains(p Point) bool {
	_, ok := ix.position(p)
	return ok
}

// OrbitOf returns the number of the orbit containing p.
func (ix *Index) OrbitOf(p Point) (int, error) {
	pos, ok := ix.position(p)
	if !ok {
		return 0, ErrUnknownPoint
	}
	return ix.orbitAt(pos), nil
}

// OrbitSize returns the size of the orbit containing p.
func (ix *Index) OrbitSize(p Point) (uint64, error) {
	i, err := ix.OrbitOf(p)
	if err != nil {
		return 0, err
	}
	return ix.orbits[i].Size, nil
}

// Members returns all points of the orbit containing p in BFS order.
func (ix *Index) Members(p Point) ([]Point, error) {
	i, err := ix.OrbitOf(p)
	if err != nil {
		return nil, err
	}
	o := ix.orbits[i]
	out := make([]Point, o.Size)
	copy(out, ix.members[o.start:o.start+int(o.Size)])
	return out, nil
}

// CheckPartition verifies that the orbits cover exactly total points.
func (ix *Index) CheckPartition(total uint64) error {
	var sum uint64
	for _, o := range ix.orbits {
		sum += o.Size
	}
	if sum != total || sum != ix.Total() {
		return &PartitionError{Sum: sum, Want: total}
	}
	return nil
}

// PartitionError reports a sum of orbit sizes different from the expected
// total.
type PartitionError struct {
	Sum, Want uint64
}

func (e *PartitionError) Error() string {
	return fmt.Sprintf("orbits: orbit sizes sum to %d, want %d", e.Sum, e.Want)
}

func (e *PartitionError) Unwrap() error { return ErrPartition }
