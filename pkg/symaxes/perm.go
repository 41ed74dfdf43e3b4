package symaxes

import (
	"fmt"
	"math/big"
	"math/rand"
	"strconv"
	"strings"

	"github.com/i5heu/axis-orbits/pkg/group"
)

// Perm is a permutation of the letters 0..degree-1 stored as its image list.
// Permutations act from the right: letter i goes to p[i].
type Perm []uint8

func (m *Model) identity() Perm {
	p := make(Perm, m.degree)
	for i := range p {
		p[i] = uint8(i)
	}
	return p
}

func (m *Model) perm(e group.Element) Perm {
	p, ok := e.(Perm)
	if !ok || len(p) != m.degree {
		panic(fmt.Sprintf("symaxes: foreign element %T", e))
	}
	return p
}

// Identity implements group.Group.
func (m *Model) Identity() group.Element { return m.identity() }

// Mul returns a followed by b.
func (m *Model) Mul(a, b group.Element) group.Element {
	pa, pb := m.perm(a), m.perm(b)
	out := make(Perm, m.degree)
	for i, x := range pa {
		out[i] = pb[x]
	}
	return out
}

func (m *Model) Inverse(a group.Element) group.Element {
	pa := m.perm(a)
	out := make(Perm, m.degree)
	for i, x := range pa {
		out[x] = uint8(i)
	}
	return out
}

func (m *Model) Equal(a, b group.Element) bool {
	pa, pb := m.perm(a), m.perm(b)
	for i := range pa {
		if pa[i] != pb[i] {
			return false
		}
	}
	return true
}

// Contains reports whether a fixes both outer letters.
func (m *Model) Contains(a group.Element) bool {
	p, ok := a.(Perm)
	if !ok || len(p) != m.degree {
		return false
	}
	return int(p[m.n]) == m.n && int(p[m.n+1]) == m.n+1
}

func (m *Model) cycles(p Perm) [][]int {
	seen := make([]bool, len(p))
	var out [][]int
	for i := range p {
		if seen[i] || int(p[i]) == i {
			continue
		}
		var c []int
		for j := i; !seen[j]; j = int(p[j]) {
			seen[j] = true
			c = append(c, j)
		}
		out = append(out, c)
	}
	return out
}

// Format writes disjoint cycle notation without spaces, "()" for the identity.
func (m *Model) Format(a group.Element) string {
	cs := m.cycles(m.perm(a))
	if len(cs) == 0 {
		return "()"
	}
	var sb strings.Builder
	for _, c := range cs {
		sb.WriteByte('(')
		for i, x := range c {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Itoa(x))
		}
		sb.WriteByte(')')
	}
	return sb.String()
}

// Parse reads the output of Format. Cycles must be disjoint.
func (m *Model) Parse(s string) (group.Element, error) {
	p := m.identity()
	if s == "()" {
		return p, nil
	}
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return nil, fmt.Errorf("%w: %q", group.ErrParse, s)
	}
	used := make([]bool, m.degree)
	for _, body := range strings.Split(s[1:len(s)-1], ")(") {
		if body == "" {
			return nil, fmt.Errorf("%w: empty cycle in %q", group.ErrParse, s)
		}
		fields := strings.Split(body, ",")
		letters := make([]int, len(fields))
		for i, f := range fields {
			x, err := strconv.Atoi(f)
			if err != nil || x < 0 || x >= m.degree {
				return nil, fmt.Errorf("%w: bad letter %q in %q", group.ErrParse, f, s)
			}
			if used[x] {
				return nil, fmt.Errorf("%w: letter %d repeated in %q", group.ErrParse, x, s)
			}
			used[x] = true
			letters[i] = x
		}
		for i, x := range letters {
			p[x] = uint8(letters[(i+1)%len(letters)])
		}
	}
	return p, nil
}

// Random returns a uniform element of Sym(n) on the inner letters.
func (m *Model) Random(rng *rand.Rand) group.Element {
	p := m.identity()
	for i := m.n - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		p[i], p[j] = p[j], p[i]
	}
	return p
}

// Order is n!.
func (m *Model) Order() *big.Int {
	return new(big.Int).MulRange(1, int64(m.n))
}

// ElementOrder is the lcm of the cycle lengths.
func (m *Model) ElementOrder(a group.Element) int {
	order := 1
	for _, c := range m.cycles(m.perm(a)) {
		order = lcm(order, len(c))
	}
	return order
}

// Character is the number of fixed inner letters, the character of the
// natural permutation module.
func (m *Model) Character(a group.Element) int {
	p := m.perm(a)
	fixed := 0
	for i := 0; i < m.n; i++ {
		if int(p[i]) == i {
			fixed++
		}
	}
	return fixed
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int) int {
	return a / gcd(a, b) * b
}
