package orbits

import (
	"math/rand"

	"github.com/i5heu/axis-orbits/pkg/group"
)

// stabilizerProduct is the number of Schreier generators multiplied into
// one random stabilizer element.
const stabilizerProduct = 4

func (ix *Index) transversalAt(pos int) group.Element {
	var path []int16
	for q := pos; ix.parent[q] >= 0; q = int(ix.parent[q]) {
		path = append(path, ix.via[q])
	}
	u := ix.grp.Identity()
	for i := len(path) - 1; i >= 0; i-- {
		u = ix.grp.Mul(u, ix.gens[path[i]])
	}
	return u
}

// Transversal returns u with Rep * u == p, Rep the representative of the
// orbit of p.
func (ix *Index) Transversal(p Point) (group.Element, error) {
	pos, ok := ix.position(p)
	if !ok {
		return nil, ErrUnknownPoint
	}
	return ix.transversalAt(pos), nil
}

// schreier returns u_q * s_j * u_{q s_j}^-1, an element fixing the
// representative of the orbit of members[q].
func (ix *Index) schreier(q, j int) group.Element {
	r := ix.mats[j].Apply(ix.members[q])
	pos, ok := ix.position(r)
	if !ok {
		// orbits are closed, so this cannot happen for a consistent index
		panic("orbits: Schreier tree leaves its orbit")
	}
	left := ix.grp.Mul(ix.transversalAt(q), ix.gens[j])
	return ix.grp.Mul(left, ix.grp.Inverse(ix.transversalAt(pos)))
}

func (ix *Index) conjugateTo(p Point, s group.Element) (group.Element, error) {
	u, err := ix.Transversal(p)
	if err != nil {
		return nil, err
	}
	return group.MulAll(ix.grp, ix.grp.Inverse(u), s, u), nil
}

// StabilizerGenerators returns the distinct nontrivial Schreier generators of
// the stabilizer of p. By Schreier's lemma they generate the stabilizer in
// the group generated by the index generators. Their number is bounded by
// the orbit size times the number of generators.
func (ix *Index) StabilizerGenerators(p Point) ([]group.Element, error) {
	i, err := ix.OrbitOf(p)
	if err != nil {
		return nil, err
	}
	o := ix.orbits[i]
	seen := make(map[string]bool)
	var out []group.Element
	id := ix.grp.Identity()
	for q := o.start; q < o.start+int(o.Size); q++ {
		for j := range ix.gens {
			s := ix.schreier(q, j)
			if ix.grp.Equal(s, id) {
				continue
			}
			s, err = ix.conjugateTo(p, s)
			if err != nil {
				return nil, err
			}
			key := ix.grp.Format(s)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, s)
		}
	}
	return out, nil
}

// RandomStabilizer returns a random element of the stabilizer of p, a
// product of random Schreier generators.
func (ix *Index) RandomStabilizer(p Point, rng *rand.Rand) (group.Element, error) {
	i, err := ix.OrbitOf(p)
	if err != nil {
		return nil, err
	}
	o := ix.orbits[i]
	s := ix.grp.Identity()
	for k := 0; k < stabilizerProduct; k++ {
		q := o.start + rng.Intn(int(o.Size))
		s = ix.grp.Mul(s, ix.schreier(q, rng.Intn(len(ix.gens))))
	}
	return ix.conjugateTo(p, s)
}
