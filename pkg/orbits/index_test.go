package orbits

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/i5heu/axis-orbits/pkg/gf2"
	"github.com/i5heu/axis-orbits/pkg/group"
	"github.com/i5heu/axis-orbits/pkg/symaxes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
	"pgregory.net/rapid"
)

func newModel(t testing.TB, n int) *symaxes.Model {
	t.Helper()
	m, err := symaxes.New(n, 1)
	require.NoError(t, err)
	return m
}

// symGens returns a transposition and an n-cycle, which generate Sym(n).
func symGens(t testing.TB, m *symaxes.Model) []group.Element {
	t.Helper()
	letters := make([]string, m.Inner())
	for i := range letters {
		letters[i] = fmt.Sprint(i)
	}
	out := make([]group.Element, 0, 2)
	for _, s := range []string{"(0,1)", "(" + strings.Join(letters, ",") + ")"} {
		e, err := m.Parse(s)
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func evenWeight(p Point) bool { return p.Weight()%2 == 0 }

// closureSize counts the elements of the group generated by gens.
func closureSize(m *symaxes.Model, gens []group.Element) int {
	seen := map[string]bool{m.Format(m.Identity()): true}
	queue := []group.Element{m.Identity()}
	for len(queue) > 0 {
		g := queue[0]
		queue = queue[1:]
		for _, s := range gens {
			h := m.Mul(g, s)
			if key := m.Format(h); !seen[key] {
				seen[key] = true
				queue = append(queue, h)
			}
		}
	}
	return len(seen)
}

func TestComputeEvenWeight(t *testing.T) {
	m := newModel(t, 3)
	ix, err := Compute(m, m.Matrix, symGens(t, m), Options{Admissible: evenWeight})
	require.NoError(t, err)

	assert.Equal(t, 2, ix.Len())
	assert.Equal(t, []uint64{1, 3}, ix.SortedSizes())
	require.NoError(t, ix.CheckPartition(4))

	reps, sizes := ix.Representatives()
	assert.Equal(t, []Point{0, gf2.FromSupport(0, 1)}, reps)
	assert.Equal(t, []uint64{1, 3}, sizes)

	members, err := ix.Members(gf2.FromSupport(1, 2))
	require.NoError(t, err)
	assert.ElementsMatch(t, []Point{3, 5, 6}, members)

	assert.False(t, ix.Contains(gf2.FromSupport(0)))
	_, err = ix.OrbitOf(gf2.FromSupport(0))
	assert.ErrorIs(t, err, ErrUnknownPoint)
}

func TestComputeFullSpace(t *testing.T) {
	m := newModel(t, 5)
	ix, err := Compute(m, m.Matrix, symGens(t, m), Options{})
	require.NoError(t, err)

	assert.Equal(t, []uint64{1, 1, 5, 5, 10, 10}, ix.SortedSizes())
	require.NoError(t, ix.CheckPartition(32))
	for w, o := range ix.Orbits() {
		assert.Equal(t, gf2.Mask(w), o.Rep, "representative is the smallest point")
		assert.LessOrEqual(t, len(o.Sample), DefaultSampleSize)
	}

	err = ix.CheckPartition(31)
	var perr *PartitionError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, ErrPartition)
	assert.Equal(t, uint64(32), perr.Sum)
}

func TestComputeErrors(t *testing.T) {
	m := newModel(t, 4)
	gens := symGens(t, m)

	_, err := Compute(m, m.Matrix, nil, Options{})
	assert.ErrorIs(t, err, ErrNoGenerators)

	low := func(p Point) bool { return p <= 1 }
	_, err = Compute(m, m.Matrix, gens, Options{Admissible: low})
	assert.ErrorIs(t, err, ErrPredicateNotInvariant)

	_, err = Compute(m, m.Matrix, gens, Options{Admissible: evenWeight, Seeds: []Point{1}})
	assert.ErrorIs(t, err, ErrNotAdmissible)

	_, err = Compute(m, m.Matrix, gens, Options{Seeds: []Point{1 << 10}})
	assert.ErrorIs(t, err, ErrNotAdmissible)
}

func TestSeededCompute(t *testing.T) {
	m := newModel(t, 6)
	seed := gf2.FromSupport(2, 4)
	ix, err := Compute(m, m.Matrix, symGens(t, m), Options{Seeds: []Point{seed, gf2.FromSupport(0, 1)}, SampleSize: -1})
	require.NoError(t, err)

	require.Equal(t, 1, ix.Len(), "both seeds lie in one orbit")
	o := ix.Orbits()[0]
	assert.Equal(t, seed, o.Rep)
	assert.Equal(t, uint64(15), o.Size)
	assert.Empty(t, o.Sample)
}

func TestTransversal(t *testing.T) {
	m := newModel(t, 5)
	ix, err := Compute(m, m.Matrix, symGens(t, m), Options{})
	require.NoError(t, err)

	for _, o := range ix.Orbits() {
		members, err := ix.Members(o.Rep)
		require.NoError(t, err)
		for _, p := range members {
			u, err := ix.Transversal(p)
			require.NoError(t, err)
			assert.Equal(t, p, m.Matrix(u).Apply(o.Rep))
		}
	}
	_, err = ix.Transversal(Point(1 << 6))
	assert.ErrorIs(t, err, ErrUnknownPoint)
}

func TestStabilizerGenerators(t *testing.T) {
	m := newModel(t, 5)
	ix, err := Compute(m, m.Matrix, symGens(t, m), Options{})
	require.NoError(t, err)

	// the stabilizer of a weight w vector is Sym(w) x Sym(5-w)
	for _, tc := range []struct {
		p     Point
		order int
	}{
		{gf2.FromSupport(1, 3), 12},
		{gf2.FromSupport(4), 24},
		{gf2.Mask(5), 120},
	} {
		stab, err := ix.StabilizerGenerators(tc.p)
		require.NoError(t, err)
		for _, s := range stab {
			assert.Equal(t, tc.p, m.Matrix(s).Apply(tc.p), m.Format(s))
		}
		assert.Equal(t, tc.order, closureSize(m, stab), "stabilizer of %s", tc.p)
	}

	rng := rand.New(rand.NewSource(7))
	p := gf2.FromSupport(0, 2, 3)
	for i := 0; i < 20; i++ {
		s, err := ix.RandomStabilizer(p, rng)
		require.NoError(t, err)
		assert.Equal(t, p, m.Matrix(s).Apply(p))
	}
}

func TestCompress(t *testing.T) {
	m := newModel(t, 5)
	ix, err := Compute(m, m.Matrix, symGens(t, m), Options{})
	require.NoError(t, err)

	small, err := ix.Compress([]Point{gf2.FromSupport(3, 4), gf2.FromSupport(2), gf2.FromSupport(0, 4)})
	require.NoError(t, err)
	require.Equal(t, 2, small.Len())
	reps, sizes := small.Representatives()
	assert.Equal(t, []Point{gf2.Mask(2), gf2.Mask(1)}, reps)
	assert.Equal(t, []uint64{10, 5}, sizes)
	assert.Equal(t, uint64(15), small.Total())
	assert.False(t, small.Contains(gf2.Mask(3)))

	u, err := small.Transversal(gf2.FromSupport(2))
	require.NoError(t, err)
	assert.Equal(t, gf2.FromSupport(2), m.Matrix(u).Apply(gf2.Mask(1)))

	_, err = ix.Compress([]Point{1 << 7})
	assert.ErrorIs(t, err, ErrUnknownPoint)
}

func TestMarshalRoundTrip(t *testing.T) {
	m := newModel(t, 6)
	ix, err := Compute(m, m.Matrix, symGens(t, m), Options{Admissible: evenWeight})
	require.NoError(t, err)

	codec := group.TextCodec(m)
	data, err := ix.Marshal(codec)
	require.NoError(t, err)

	back, err := Unmarshal(data, codec, m, m.Matrix)
	require.NoError(t, err)
	if diff := cmp.Diff(ix.Orbits(), back.Orbits(), cmp.AllowUnexported(Orbit{})); diff != "" {
		t.Fatalf("orbits differ (-want +got):\n%s", diff)
	}
	assert.Equal(t, group.FormatAll(m, ix.Generators()), group.FormatAll(m, back.Generators()))

	p := gf2.FromSupport(1, 2, 4, 5)
	u, err := back.Transversal(p)
	require.NoError(t, err)
	rep := back.Orbits()[2].Rep
	assert.Equal(t, p, m.Matrix(u).Apply(rep))

	_, err = Unmarshal(data[:len(data)-3], codec, m, m.Matrix)
	assert.ErrorIs(t, err, ErrCorrupt)
}

// withTree replaces the parent and generator columns of a serialized index.
func withTree(t *testing.T, data []byte, parents, via []uint64) []byte {
	t.Helper()
	var out []byte
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		require.Greater(t, n, 0)
		m := protowire.ConsumeFieldValue(num, typ, data[n:])
		require.GreaterOrEqual(t, m, 0)
		if num != fieldParents && num != fieldVia {
			out = append(out, data[:n+m]...)
		}
		data = data[n+m:]
	}
	out = appendPacked(out, fieldParents, len(parents), func(i int) uint64 { return parents[i] })
	return appendPacked(out, fieldVia, len(via), func(i int) uint64 { return via[i] })
}

func TestUnmarshalRejectsBadTree(t *testing.T) {
	m := newModel(t, 4)
	ix, err := Compute(m, m.Matrix, symGens(t, m), Options{Admissible: evenWeight})
	require.NoError(t, err)
	codec := group.TextCodec(m)
	data, err := ix.Marshal(codec)
	require.NoError(t, err)

	parents := make([]uint64, len(ix.parent))
	via := make([]uint64, len(ix.via))
	for i := range parents {
		parents[i] = uint64(ix.parent[i] + 1)
		via[i] = uint64(ix.via[i] + 1)
	}
	_, err = Unmarshal(withTree(t, data, parents, via), codec, m, m.Matrix)
	require.NoError(t, err)

	// orbits are {0}, the six weight 2 points and {1111}
	require.Len(t, ix.orbits, 3)
	root := ix.orbits[1].start
	i := root + 1
	cases := map[string]func(p, v []uint64){
		"generator out of int16":   func(p, v []uint64) { v[i] = 65535 },
		"generator out of range":   func(p, v []uint64) { v[i] = uint64(len(ix.gens)) + 1 },
		"parent out of int32":      func(p, v []uint64) { p[i] = 1 << 32 },
		"parent after child":       func(p, v []uint64) { p[i] = uint64(i) + 2 },
		"root with parent":         func(p, v []uint64) { p[root], v[root] = 1, 1 },
		"member without generator": func(p, v []uint64) { v[i] = 0 },
		"parent in other orbit":    func(p, v []uint64) { p[i] = 1 },
	}
	for name, corrupt := range cases {
		t.Run(name, func(t *testing.T) {
			p := append([]uint64(nil), parents...)
			v := append([]uint64(nil), via...)
			corrupt(p, v)
			_, err := Unmarshal(withTree(t, data, p, v), codec, m, m.Matrix)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestPartitionProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(2, 8).Draw(t, "n")
		m, err := symaxes.New(n, 1)
		if err != nil {
			t.Fatal(err)
		}
		seed := rapid.Int64().Draw(t, "seed")
		rng := rand.New(rand.NewSource(seed))
		gens := make([]group.Element, rapid.IntRange(1, 3).Draw(t, "gens"))
		for i := range gens {
			gens[i] = m.Random(rng)
		}

		ix, err := Compute(m, m.Matrix, gens, Options{Rand: rng})
		if err != nil {
			t.Fatal(err)
		}
		if err := ix.CheckPartition(1 << uint(n)); err != nil {
			t.Fatal(err)
		}
		for p := Point(0); p < 1<<uint(n); p++ {
			i, err := ix.OrbitOf(p)
			if err != nil {
				t.Fatal(err)
			}
			// weight is invariant under permutations
			if ix.Orbits()[i].Rep.Weight() != p.Weight() {
				t.Fatalf("%s and its representative differ in weight", p)
			}
			for _, g := range gens {
				j, err := ix.OrbitOf(m.Matrix(g).Apply(p))
				if err != nil || j != i {
					t.Fatalf("image of %s leaves orbit %d", p, i)
				}
			}
		}
	})
}
