// Package symaxes is a complete, small group backend for the axis orbit
// machinery.
//
// The ambient group is Sym(n+2) on the letters 0..n+1; the letters n and n+1
// are outer letters. The acting subgroup G = Sym(n) fixes both outer letters.
// Axes are the k-subsets of all n+2 letters and fall into at most four
// G-orbits, named after the outer letters they contain: "<k>A" none, "<k>B"
// letter n, "<k>C" letter n+1, "<k>D" both. Triality is the 3-cycle
// (n-1, n, n+1). G acts on GF(2)^n by permuting coordinates; the admissible
// points are the vectors of weight n-1 and the base point is {0..n-2}. The
// stabilizer N of the base point is Sym(n-1), which fixes letter n-1 and so
// commutes with triality.
package symaxes

import (
	"errors"
	"fmt"
	"math/big"
	"math/bits"
	"strconv"
	"strings"

	"github.com/i5heu/axis-orbits/pkg/gf2"
	"github.com/i5heu/axis-orbits/pkg/group"
)

// MaxInner keeps axes (n+2 letters) inside a 64 bit mask.
const MaxInner = 62

var ErrInvalidModel = errors.New("symaxes: invalid model parameters")

var orbitLetters = [4]byte{'A', 'B', 'C', 'D'}

// Model implements group.Backend.
type Model struct {
	n, k   int
	degree int
	names  []string
}

// Axis is a set of letters as a bit mask.
type Axis uint64

var _ group.Backend = (*Model)(nil)

// New builds the model with n inner letters and axes of size k.
func New(inner, axisSize int) (*Model, error) {
	if inner < 2 || inner > MaxInner {
		return nil, fmt.Errorf("%w: inner letters %d not in [2,%d]", ErrInvalidModel, inner, MaxInner)
	}
	if axisSize < 1 || axisSize > inner {
		return nil, fmt.Errorf("%w: axis size %d not in [1,%d]", ErrInvalidModel, axisSize, inner)
	}
	m := &Model{n: inner, k: axisSize, degree: inner + 2}
	for o := 0; o < 4; o++ {
		j := axisSize - bits.OnesCount(uint(o))
		if j >= 0 && j <= inner {
			m.names = append(m.names, strconv.Itoa(axisSize)+string(orbitLetters[o]))
		}
	}
	return m, nil
}

// Inner returns n.
func (m *Model) Inner() int { return m.n }

// AxisSize returns k.
func (m *Model) AxisSize() int { return m.k }

func (m *Model) outerMask(name string) (int, error) {
	prefix := strconv.Itoa(m.k)
	if !strings.HasPrefix(name, prefix) || len(name) != len(prefix)+1 {
		return 0, fmt.Errorf("%w: %q", group.ErrUnknownName, name)
	}
	o := int(name[len(prefix)] - 'A')
	if o < 0 || o > 3 {
		return 0, fmt.Errorf("%w: %q", group.ErrUnknownName, name)
	}
	j := m.k - bits.OnesCount(uint(o))
	if j < 0 || j > m.n {
		return 0, fmt.Errorf("%w: %q", group.ErrUnknownName, name)
	}
	return o, nil
}

func (m *Model) name(o int) string {
	return strconv.Itoa(m.k) + string(orbitLetters[o])
}

// stabilizerOfPrefix maps the letters in support, in order, onto 0..j-1
// and the other inner letters, in order, onto j..n-1.
func (m *Model) stabilizerOfPrefix(support gf2.Vector) Perm {
	p := m.identity()
	next, rest := 0, support.Weight()
	for i := 0; i < m.n; i++ {
		if support.Bit(i) {
			p[i] = uint8(next)
			next++
		} else {
			p[i] = uint8(rest)
			rest++
		}
	}
	return p
}

// CentralizerGenerators returns a generating set of the stabilizer in G of
// the representative of name: Sym{0..j-1} x Sym{j..n-1}.
func (m *Model) CentralizerGenerators(name string) ([]group.Element, error) {
	o, err := m.outerMask(name)
	if err != nil {
		return nil, err
	}
	j := m.k - bits.OnesCount(uint(o))
	var gens []group.Element
	for _, block := range [][2]int{{0, j}, {j, m.n}} {
		lo, hi := block[0], block[1]
		if hi-lo < 2 {
			continue
		}
		swap := m.identity()
		swap[lo], swap[lo+1] = uint8(lo+1), uint8(lo)
		gens = append(gens, swap)
		if hi-lo > 2 {
			cyc := m.identity()
			for i := lo; i < hi; i++ {
				cyc[i] = uint8(lo + (i-lo+1)%(hi-lo))
			}
			gens = append(gens, cyc)
		}
	}
	if len(gens) == 0 {
		gens = append(gens, m.identity())
	}
	return gens, nil
}

// OrbitSize is the binomial coefficient C(n, j) for the j inner letters of
// the orbit.
func (m *Model) OrbitSize(name string) (*big.Int, error) {
	o, err := m.outerMask(name)
	if err != nil {
		return nil, err
	}
	j := m.k - bits.OnesCount(uint(o))
	return new(big.Int).Binomial(int64(m.n), int64(j)), nil
}
