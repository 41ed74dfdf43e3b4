package orbits

import (
	"fmt"
	"sort"
)

// Compress returns an index holding only the orbits that contain the given
// points, in the order the points are given. Each orbit is kept once.
func (ix *Index) Compress(keep []Point) (*Index, error) {
	out := &Index{
		grp:  ix.grp,
		mat:  ix.mat,
		dim:  ix.dim,
		gens: ix.gens,
		mats: ix.mats,
	}
	taken := make(map[int]bool)
	for _, p := range keep {
		i, err := ix.OrbitOf(p)
		if err != nil {
			return nil, fmt.Errorf("compress %s: %w", p, err)
		}
		if taken[i] {
			continue
		}
		taken[i] = true
		o := ix.orbits[i]
		start := len(out.members)
		shift := int32(start - o.start)
		for q := o.start; q < o.start+int(o.Size); q++ {
			parent := ix.parent[q]
			if parent >= 0 {
				parent += shift
			}
			out.push(ix.members[q], parent, ix.via[q])
		}
		o.start = start
		o.Sample = append([]Point(nil), o.Sample...)
		out.orbits = append(out.orbits, o)
	}
	out.sortPositions()
	return out, nil
}

func (ix *Index) sortPositions() {
	ix.sorted = make([]int32, len(ix.members))
	for i := range ix.sorted {
		ix.sorted[i] = int32(i)
	}
	sort.Slice(ix.sorted, func(a, b int) bool {
		return ix.members[ix.sorted[a]] < ix.members[ix.sorted[b]]
	})
}
