package certificate

import (
	"fmt"
	"sort"
	"strings"
)

// Pair is a cell of the transition matrix: sub-orbits of Src mapped by tau
// or tau^2 into Dst.
type Pair struct {
	Src, Dst string
}

// Entry is a nonzero cell of the transition matrix.
type Entry struct {
	Pair
	Count uint64
}

// TransitionMatrix counts, for every pair of orbit names, the admissible
// points of Src whose axis is mapped into Dst by tau and by tau^2.
type TransitionMatrix struct {
	cells map[Pair]uint64
}

func NewTransitionMatrix() *TransitionMatrix {
	return &TransitionMatrix{cells: make(map[Pair]uint64)}
}

func (m *TransitionMatrix) Add(src, dst string, n uint64) {
	m.cells[Pair{Src: src, Dst: dst}] += n
}

func (m *TransitionMatrix) Get(src, dst string) uint64 {
	return m.cells[Pair{Src: src, Dst: dst}]
}

// Names returns the sorted names occurring as source or destination.
func (m *TransitionMatrix) Names() []string {
	seen := make(map[string]bool)
	for p := range m.cells {
		seen[p.Src] = true
		seen[p.Dst] = true
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Entries returns the cells sorted by source and destination.
func (m *TransitionMatrix) Entries() []Entry {
	out := make([]Entry, 0, len(m.cells))
	for p, n := range m.cells {
		out = append(out, Entry{Pair: p, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Src != out[j].Src {
			return out[i].Src < out[j].Src
		}
		return out[i].Dst < out[j].Dst
	})
	return out
}

// FromEntries rebuilds a matrix.
func FromEntries(entries []Entry) *TransitionMatrix {
	m := NewTransitionMatrix()
	for _, e := range entries {
		m.Add(e.Src, e.Dst, e.Count)
	}
	return m
}

func (m *TransitionMatrix) RowSum(src string) uint64 {
	var sum uint64
	for p, n := range m.cells {
		if p.Src == src {
			sum += n
		}
	}
	return sum
}

// CheckRows verifies that every row sums to want.
func (m *TransitionMatrix) CheckRows(want uint64) error {
	rows := make(map[string]bool)
	for p := range m.cells {
		rows[p.Src] = true
	}
	for _, src := range m.Names() {
		if !rows[src] {
			continue
		}
		if got := m.RowSum(src); got != want {
			return fmt.Errorf("%w: row %s sums to %d, want %d", ErrRowSum, src, got, want)
		}
	}
	return nil
}

// Equal reports whether both matrices have the same nonzero cells.
func (m *TransitionMatrix) Equal(o *TransitionMatrix) bool {
	count := 0
	for p, n := range m.cells {
		if n == 0 {
			continue
		}
		if o.cells[p] != n {
			return false
		}
		count++
	}
	for _, n := range o.cells {
		if n != 0 {
			count--
		}
	}
	return count == 0
}

// String renders the matrix with sources as rows.
func (m *TransitionMatrix) String() string {
	names := m.Names()
	var sb strings.Builder
	sb.WriteString("     ")
	for _, n := range names {
		fmt.Fprintf(&sb, " %6s", n)
	}
	sb.WriteByte('\n')
	for _, src := range names {
		fmt.Fprintf(&sb, "%-5s", src)
		for _, dst := range names {
			fmt.Fprintf(&sb, " %6d", m.Get(src, dst))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
