package certificate

import (
	"context"
	"errors"
	"math/rand"

	"github.com/i5heu/axis-orbits/pkg/group"
	"github.com/i5heu/axis-orbits/pkg/orbits"
)

var ErrNoSmallGeneratingSet = errors.New("certificate: no small set of centralizer generators found")

// Parameters of the generator search.
const (
	SearchRounds = 20
	// searchStart generators are drawn in the first rounds, one more after
	// every searchGrow failed rounds.
	searchStart = 2
	searchGrow  = 5
)

// Admissible returns the predicate selecting the admissible points of l.
func Admissible(l group.LinearAction) orbits.Predicate {
	want := l.AdmissibleType()
	return func(p orbits.Point) bool { return l.PointType(p) == want }
}

// AdmissibleOrbits decomposes the admissible points into orbits of the
// group generated by gens.
func AdmissibleOrbits(b group.Backend, gens []group.Element) (*orbits.Index, error) {
	return orbits.Compute(b, b.Matrix, gens, orbits.Options{
		Admissible: Admissible(b),
		SampleSize: -1,
	})
}

// SearchGenerators looks for a small subset of gens whose orbits on the
// admissible points have the sorted sizes want. It returns the subset and
// the orbit index it generates.
func SearchGenerators(ctx context.Context, b group.Backend, gens []group.Element, want []uint64, rng *rand.Rand) ([]group.Element, *orbits.Index, error) {
	if len(gens) == 0 {
		return nil, nil, orbits.ErrNoGenerators
	}
	size := searchStart
	for round := 0; round < SearchRounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if round > 0 && round%searchGrow == 0 {
			size++
		}
		k := size
		if k > len(gens) {
			k = len(gens)
		}
		subset := make([]group.Element, k)
		for i, j := range rng.Perm(len(gens))[:k] {
			subset[i] = gens[j]
		}

		ix, err := AdmissibleOrbits(b, subset)
		if err != nil {
			return nil, nil, err
		}
		if equalSizes(ix.SortedSizes(), want) {
			return subset, ix, nil
		}
	}
	return nil, nil, ErrNoSmallGeneratingSet
}

func equalSizes(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
