package symaxes

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"github.com/i5heu/axis-orbits/pkg/gf2"
	"github.com/i5heu/axis-orbits/pkg/group"
)

func (m *Model) axis(ax group.Axis) Axis {
	a, ok := ax.(Axis)
	if !ok {
		panic(fmt.Sprintf("symaxes: foreign axis %T", ax))
	}
	return a
}

func (m *Model) Names() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

func (m *Model) BaseAxis() group.Axis {
	return Axis(gf2.Mask(m.k))
}

// AxisElement swaps the top inner letters of the base axis with the outer
// letters of the orbit.
func (m *Model) AxisElement(name string) (group.Element, error) {
	o, err := m.outerMask(name)
	if err != nil {
		return nil, err
	}
	p := m.identity()
	next := m.k - bits.OnesCount(uint(o))
	for t := 0; t < 2; t++ {
		if o>>uint(t)&1 == 0 {
			continue
		}
		outer := m.n + t
		p[next], p[outer] = uint8(outer), uint8(next)
		next++
	}
	return p, nil
}

func (m *Model) Representative(name string) (group.Axis, error) {
	g, err := m.AxisElement(name)
	if err != nil {
		return nil, err
	}
	return m.Act(m.BaseAxis(), g), nil
}

func (m *Model) Act(ax group.Axis, g group.Element) group.Axis {
	a, p := m.axis(ax), m.perm(g)
	var out Axis
	for _, i := range gf2.Vector(a).Support() {
		out |= 1 << uint(p[i])
	}
	return out
}

// Triality applies the 3-cycle (n-1, n, n+1) exp times.
func (m *Model) Triality(ax group.Axis, exp int) group.Axis {
	tau := m.identity()
	tau[m.n-1], tau[m.n], tau[m.n+1] = uint8(m.n), uint8(m.n+1), uint8(m.n-1)
	out := ax
	for e := 0; e < ((exp%3)+3)%3; e++ {
		out = m.Act(out, tau)
	}
	return out
}

func (m *Model) Reduce(ax group.Axis) (string, group.Element, error) {
	a := gf2.Vector(m.axis(ax))
	if a.Weight() != m.k || a&^gf2.Mask(m.degree) != 0 {
		return "", nil, fmt.Errorf("%w: %s is not a %d-subset", group.ErrNotReduced, m.FormatAxis(ax), m.k)
	}
	o := int(a >> uint(m.n))
	inner := a & gf2.Mask(m.n)
	return m.name(o), m.stabilizerOfPrefix(inner), nil
}

func (m *Model) EqualAxes(a, b group.Axis) bool {
	return m.axis(a) == m.axis(b)
}

func (m *Model) FormatAxis(ax group.Axis) string {
	letters := gf2.Vector(m.axis(ax)).Support()
	parts := make([]string, len(letters))
	for i, x := range letters {
		parts[i] = strconv.Itoa(x)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// Watermark counts the letters of ax inside and outside the base point and
// records the outer letters. It is a complete invariant of the stabilizer of
// the base point.
func (m *Model) Watermark(ax group.Axis) string {
	a := gf2.Vector(m.axis(ax))
	base := m.BasePoint()
	inner := a & gf2.Mask(m.n)
	return fmt.Sprintf("%d.%d.%d", (inner & base).Weight(), (inner &^ base).Weight(), a>>uint(m.n))
}
