package orbits

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/i5heu/axis-orbits/pkg/gf2"
	"github.com/i5heu/axis-orbits/pkg/group"
)

// visitSet records the member position of every visited point, plus one.
type visitSet interface {
	get(p Point) int32
	set(p Point, pos int32)
}

type denseVisits []int32

func (d denseVisits) get(p Point) int32       { return d[p] }
func (d denseVisits) set(p Point, pos int32) { d[p] = pos + 1 }

type sparseVisits map[Point]int32

func (s sparseVisits) get(p Point) int32       { return s[p] }
func (s sparseVisits) set(p Point, pos int32) { s[p] = pos + 1 }

// Compute decomposes the admissible points into orbits of the group
// generated by gens. Orbits are found by breadth first closure, so the
// representative of an orbit is the first point of it reached: the smallest
// point on a full scan, the seed otherwise.
func Compute(grp group.Group, mat MatrixFunc, gens []group.Element, opts Options) (*Index, error) {
	ix, err := newIndex(grp, mat, gens)
	if err != nil {
		return nil, err
	}
	admissible := opts.Admissible
	if admissible == nil {
		admissible = func(Point) bool { return true }
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	sampleSize := opts.SampleSize
	if sampleSize == 0 {
		sampleSize = DefaultSampleSize
	}

	var visits visitSet
	var dense denseVisits
	if len(opts.Seeds) == 0 {
		if ix.dim > MaxScanDim {
			return nil, fmt.Errorf("%w: full scan of dimension %d", ErrDimension, ix.dim)
		}
		dense = make(denseVisits, 1<<uint(ix.dim))
		visits = dense
	} else {
		visits = make(sparseVisits)
	}

	explore := func(seed Point) error {
		if visits.get(seed) != 0 {
			return nil
		}
		start := len(ix.members)
		ix.push(seed, -1, -1)
		visits.set(seed, int32(start))
		for q := start; q < len(ix.members); q++ {
			p := ix.members[q]
			for j, m := range ix.mats {
				r := m.Apply(p)
				if visits.get(r) != 0 {
					continue
				}
				if !admissible(r) {
					return fmt.Errorf("%w: %s maps admissible %s to %s", ErrPredicateNotInvariant, grp.Format(ix.gens[j]), p, r)
				}
				visits.set(r, int32(len(ix.members)))
				ix.push(r, int32(q), int16(j))
			}
		}
		size := len(ix.members) - start
		ix.orbits = append(ix.orbits, Orbit{
			Rep:    seed,
			Size:   uint64(size),
			Sample: sample(ix.members[start:], sampleSize, rng),
			start:  start,
		})
		return nil
	}

	if len(opts.Seeds) == 0 {
		end := Point(1) << uint(ix.dim)
		for p := Point(0); p < end; p++ {
			if dense[p] != 0 || !admissible(p) {
				continue
			}
			if err := explore(p); err != nil {
				return nil, err
			}
		}
		ix.sorted = make([]int32, 0, len(ix.members))
		for p := Point(0); p < end; p++ {
			if dense[p] != 0 {
				ix.sorted = append(ix.sorted, dense[p]-1)
			}
		}
		return ix, nil
	}

	for _, s := range opts.Seeds {
		if s&^gf2.Mask(ix.dim) != 0 || !admissible(s) {
			return nil, fmt.Errorf("%w: %s", ErrNotAdmissible, s)
		}
		if err := explore(s); err != nil {
			return nil, err
		}
	}
	ix.sortPositions()
	return ix, nil
}

func newIndex(grp group.Group, mat MatrixFunc, gens []group.Element) (*Index, error) {
	if len(gens) == 0 {
		return nil, ErrNoGenerators
	}
	if len(gens) > math.MaxInt16 {
		return nil, fmt.Errorf("orbits: %d generators exceed the limit", len(gens))
	}
	ix := &Index{
		grp:  grp,
		mat:  mat,
		gens: append([]group.Element(nil), gens...),
		mats: make([]gf2.Matrix, len(gens)),
	}
	for i, g := range gens {
		ix.mats[i] = mat(g)
		if i == 0 {
			ix.dim = ix.mats[0].Dim()
		} else if ix.mats[i].Dim() != ix.dim {
			return nil, fmt.Errorf("%w: generator %d has dimension %d, want %d", ErrDimension, i, ix.mats[i].Dim(), ix.dim)
		}
	}
	if ix.dim < 1 || ix.dim > gf2.MaxDim {
		return nil, fmt.Errorf("%w: %d", ErrDimension, ix.dim)
	}
	return ix, nil
}

func (ix *Index) push(p Point, parent int32, via int16) {
	ix.members = append(ix.members, p)
	ix.parent = append(ix.parent, parent)
	ix.via = append(ix.via, via)
}

// sample draws min(k, len(pts)) distinct members uniformly (Floyd's
// algorithm) and returns them in BFS order.
func sample(pts []Point, k int, rng *rand.Rand) []Point {
	if k <= 0 {
		return nil
	}
	if len(pts) <= k {
		return append([]Point(nil), pts...)
	}
	chosen := make(map[int]bool, k)
	for j := len(pts) - k; j < len(pts); j++ {
		t := rng.Intn(j + 1)
		if chosen[t] {
			t = j
		}
		chosen[t] = true
	}
	out := make([]Point, 0, k)
	for i, p := range pts {
		if chosen[i] {
			out = append(out, p)
		}
	}
	return out
}
