package symaxes

import (
	"fmt"

	"github.com/i5heu/axis-orbits/pkg/gf2"
	"github.com/i5heu/axis-orbits/pkg/group"
)

func (m *Model) Dim() int { return m.n }

// Matrix is the permutation matrix of a on the inner coordinates. a must lie
// in G.
func (m *Model) Matrix(a group.Element) gf2.Matrix {
	p := m.perm(a)
	img := make([]int, m.n)
	for i := 0; i < m.n; i++ {
		if int(p[i]) >= m.n {
			panic(fmt.Sprintf("symaxes: %s moves an outer letter", m.Format(a)))
		}
		img[i] = int(p[i])
	}
	return gf2.Permutation(img)
}

// PointType is the weight of v, or -1 for vectors outside GF(2)^n.
func (m *Model) PointType(v gf2.Vector) int {
	if v&^gf2.Mask(m.n) != 0 {
		return -1
	}
	return v.Weight()
}

func (m *Model) AdmissibleType() int { return m.n - 1 }

func (m *Model) BasePoint() gf2.Vector { return gf2.Mask(m.n - 1) }

func (m *Model) Transport(v gf2.Vector) (group.Element, error) {
	if m.PointType(v) != m.AdmissibleType() {
		return nil, fmt.Errorf("%w: point %s is not admissible", group.ErrNotReduced, v)
	}
	return m.stabilizerOfPrefix(v), nil
}
