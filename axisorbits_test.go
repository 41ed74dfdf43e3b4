package axisorbits

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/i5heu/axis-orbits/internal/binaryCoder"
	"github.com/i5heu/axis-orbits/internal/testutil"
	"github.com/i5heu/axis-orbits/pkg/certificate"
	"github.com/i5heu/axis-orbits/pkg/group"
	"github.com/i5heu/axis-orbits/pkg/logging"
	"github.com/i5heu/axis-orbits/pkg/symaxes"
	"github.com/i5heu/axis-orbits/pkg/tablestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var wantEntries = []certificate.Entry{
	{Pair: certificate.Pair{Src: "2A", Dst: "2A"}, Count: 6}, {Pair: certificate.Pair{Src: "2A", Dst: "2B"}, Count: 2}, {Pair: certificate.Pair{Src: "2A", Dst: "2C"}, Count: 2},
	{Pair: certificate.Pair{Src: "2B", Dst: "2A"}, Count: 4}, {Pair: certificate.Pair{Src: "2B", Dst: "2C"}, Count: 5}, {Pair: certificate.Pair{Src: "2B", Dst: "2D"}, Count: 1},
	{Pair: certificate.Pair{Src: "2C", Dst: "2A"}, Count: 4}, {Pair: certificate.Pair{Src: "2C", Dst: "2B"}, Count: 5}, {Pair: certificate.Pair{Src: "2C", Dst: "2D"}, Count: 1},
	{Pair: certificate.Pair{Src: "2D", Dst: "2B"}, Count: 5}, {Pair: certificate.Pair{Src: "2D", Dst: "2C"}, Count: 5},
}

func newPipeline(t *testing.T, store tablestore.Store) *Pipeline {
	t.Helper()
	m, err := symaxes.New(5, 2)
	require.NoError(t, err)
	return startPipeline(t, m, store)
}

func startPipeline(t *testing.T, b group.Backend, store tablestore.Store) *Pipeline {
	t.Helper()
	p, err := New(Config{
		Backend:    b,
		Store:      store,
		Seed:       7,
		Workers:    4,
		SampleSize: 4,
		Logger:     logging.Discard(),
	})
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

func bigs(xs ...int64) []*big.Int {
	out := make([]*big.Int, len(xs))
	for i, x := range xs {
		out[i] = big.NewInt(x)
	}
	return out
}

var bigCmp = cmp.Comparer(func(a, b *big.Int) bool { return a.Cmp(b) == 0 })

func TestNewWithoutBackend(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrNoBackend)
}

func TestStoreBeforeStartAndAfterClose(t *testing.T) {
	m, err := symaxes.New(5, 2)
	require.NoError(t, err)
	p, err := New(Config{Backend: m, Store: tablestore.NewMemory(), Logger: logging.Discard()})
	require.NoError(t, err)

	_, err = p.Store()
	assert.ErrorIs(t, err, ErrNotStarted)

	require.NoError(t, p.Start(context.Background()))
	_, err = p.Store()
	require.NoError(t, err)

	require.NoError(t, p.Close(context.Background()))
	require.NoError(t, p.Close(context.Background()))
	_, err = p.Store()
	assert.ErrorIs(t, err, ErrClosed)
}

// faulty is the symaxes model with selected answers replaced.
type faulty struct {
	*symaxes.Model
	watermark    func(ax group.Axis) string
	reduce       func(ax group.Axis) (string, group.Element, error)
	equalAxes    func(a, b group.Axis) bool
	centralizers func(name string) ([]group.Element, error)
	orbitSize    func(name string) (*big.Int, error)
}

func (f *faulty) Watermark(ax group.Axis) string {
	if f.watermark != nil {
		return f.watermark(ax)
	}
	return f.Model.Watermark(ax)
}

func (f *faulty) Reduce(ax group.Axis) (string, group.Element, error) {
	if f.reduce != nil {
		return f.reduce(ax)
	}
	return f.Model.Reduce(ax)
}

func (f *faulty) EqualAxes(a, b group.Axis) bool {
	if f.equalAxes != nil {
		return f.equalAxes(a, b)
	}
	return f.Model.EqualAxes(a, b)
}

func (f *faulty) CentralizerGenerators(name string) ([]group.Element, error) {
	if f.centralizers != nil {
		return f.centralizers(name)
	}
	return f.Model.CentralizerGenerators(name)
}

func (f *faulty) OrbitSize(name string) (*big.Int, error) {
	if f.orbitSize != nil {
		return f.orbitSize(name)
	}
	return f.Model.OrbitSize(name)
}

func TestBrokenBackend(t *testing.T) {
	m, err := symaxes.New(5, 2)
	require.NoError(t, err)
	// generators of all of G, which moves every axis but 2D
	sym := func(string) ([]group.Element, error) {
		return group.ParseAll(m, []string{"(0,1)", "(0,1,2,3,4)"})
	}

	suborbits := func(p *Pipeline) error { _, err := p.Suborbits(context.Background()); return err }
	tests := []struct {
		name  string
		b     *faulty
		stage func(p *Pipeline) error
		want  error
		text  string
	}{
		{
			name: "watermark varies inside a sub-orbit",
			b: func() *faulty {
				var calls atomic.Int64
				return &faulty{watermark: func(group.Axis) string {
					return fmt.Sprint(calls.Add(1))
				}}
			}(),
			stage: suborbits,
			want:  ErrWatermarkCollision,
			text:  "member",
		},
		{
			name:  "watermark shared by sub-orbits",
			b:     &faulty{watermark: func(group.Axis) string { return "0.0.0" }},
			stage: suborbits,
			want:  ErrWatermarkCollision,
			text:  "share",
		},
		{
			name: "sample member with other destinations",
			b: &faulty{
				equalAxes:    func(a, b group.Axis) bool { return true },
				centralizers: sym,
			},
			stage: func(p *Pipeline) error { _, err := p.Transitions(context.Background()); return err },
			want:  ErrTrialityMismatch,
			text:  "member",
		},
		{
			name: "random element leaves the orbit",
			b: &faulty{reduce: func(ax group.Axis) (string, group.Element, error) {
				return "2D", m.Identity(), nil
			}},
			stage: func(p *Pipeline) error { _, err := p.Centralizers(context.Background()); return err },
			want:  ErrNotCentralizing,
			text:  "reduces to 2D",
		},
		{
			name:  "generator moves the axis",
			b:     &faulty{centralizers: sym},
			stage: func(p *Pipeline) error { _, err := p.Centralizers(context.Background()); return err },
			want:  ErrNotCentralizing,
			text:  "does not fix",
		},
		{
			name:  "orbit sizes do not divide",
			b:     &faulty{orbitSize: func(string) (*big.Int, error) { return big.NewInt(1), nil }},
			stage: suborbits,
			want:  ErrInexact,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.b.Model = m
			p := startPipeline(t, tt.b, tablestore.NewMemory())
			err := tt.stage(p)
			require.ErrorIs(t, err, tt.want)
			assert.ErrorContains(t, err, tt.text)

			// the failed stage stores nothing
			store, err := p.Store()
			require.NoError(t, err)
			keys, err := store.Keys(context.Background(), "suborbit_")
			require.NoError(t, err)
			assert.Empty(t, keys)
			ok, err := store.Has(context.Background(), keyTransitions)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestCompute(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, tablestore.NewMemory())
	require.NoError(t, p.Compute(ctx))

	m, err := p.Transitions(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(wantEntries, m.Entries()); diff != "" {
		t.Fatalf("transition matrix (-want +got):\n%s", diff)
	}

	sizes, err := p.OrbitSizes(ctx)
	require.NoError(t, err)
	want := map[string]*big.Int{"2A": big.NewInt(10), "2B": big.NewInt(5), "2C": big.NewInt(5), "2D": big.NewInt(1)}
	if diff := cmp.Diff(want, sizes, bigCmp); diff != "" {
		t.Fatalf("orbit sizes (-want +got):\n%s", diff)
	}

	subs, err := p.Suborbits(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 7)
	type row struct {
		Name string
		Size uint64
		Dest [2]string
	}
	got := make([]row, len(subs))
	axes := make([]*big.Int, len(subs))
	for i, s := range subs {
		assert.Equal(t, i+1, s.Number)
		assert.NotEmpty(t, s.Watermark)
		assert.Len(t, s.Centralizer, DefaultSuborbitCentralizers)
		got[i] = row{s.Name, s.Size, s.Dest}
		axes[i] = s.Axes
	}
	wantRows := []row{
		{"2A", 3, [2]string{"2A", "2A"}},
		{"2A", 2, [2]string{"2B", "2C"}},
		{"2B", 4, [2]string{"2A", "2C"}},
		{"2B", 1, [2]string{"2C", "2D"}},
		{"2C", 4, [2]string{"2A", "2B"}},
		{"2C", 1, [2]string{"2B", "2D"}},
		{"2D", 5, [2]string{"2B", "2C"}},
	}
	if diff := cmp.Diff(wantRows, got); diff != "" {
		t.Fatalf("sub-orbits (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(bigs(6, 4, 4, 1, 4, 1, 1), axes, bigCmp); diff != "" {
		t.Fatalf("sub-orbit axes (-want +got):\n%s", diff)
	}

	orders, err := p.CentralizerOrders(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(bigs(4, 6, 6, 24, 6, 24, 24), orders, bigCmp); diff != "" {
		t.Fatalf("centralizer orders (-want +got):\n%s", diff)
	}

	man, err := p.Manifest(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, man.RunID)
	assert.Equal(t, int64(7), man.Seed)
	assert.Equal(t, []string{"2A", "2B", "2C", "2D"}, man.Names)
}

func TestTablesAreReused(t *testing.T) {
	ctx := context.Background()
	store := tablestore.NewMemory()

	first := newPipeline(t, store)
	require.NoError(t, first.Compute(ctx))
	subs, err := first.Suborbits(ctx)
	require.NoError(t, err)
	man, err := first.Manifest(ctx)
	require.NoError(t, err)

	// a different seed would pick different centralizer elements, so
	// equal tables show they were loaded
	m, err := symaxes.New(5, 2)
	require.NoError(t, err)
	second, err := New(Config{Backend: m, Store: store, Seed: 99, Logger: logging.Discard()})
	require.NoError(t, err)
	require.NoError(t, second.Start(ctx))
	defer second.Close(ctx)
	require.NoError(t, second.Compute(ctx))

	again, err := second.Suborbits(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(subs, again, bigCmp); diff != "" {
		t.Fatalf("reloaded sub-orbits (-first +second):\n%s", diff)
	}
	man2, err := second.Manifest(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, man.RunID, man2.RunID)
	assert.Equal(t, int64(99), man2.Seed)
}

func TestRecompute(t *testing.T) {
	ctx := context.Background()
	store := tablestore.NewMemory()
	p := newPipeline(t, store)
	require.NoError(t, p.Compute(ctx))

	require.NoError(t, p.Recompute(ctx))
	keys, err := store.Keys(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, keys)
	_, err = p.Manifest(ctx)
	assert.ErrorIs(t, err, tablestore.ErrNotFound)

	require.NoError(t, p.Compute(ctx))
	m, err := p.Transitions(ctx)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(wantEntries, m.Entries()))
}

func TestInvalidateReadsStore(t *testing.T) {
	ctx := context.Background()
	store := tablestore.NewMemory()
	p := newPipeline(t, store)
	_, err := p.Transitions(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, keyTransitions, binaryCoder.EntriesToByte([]binaryCoder.Entry{{Src: "2D", Dst: "2D", Count: 3}})))
	m, err := p.Transitions(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), m.Get("2D", "2D"))

	p.Invalidate(keyTransitions)
	m, err = p.Transitions(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), m.Get("2D", "2D"))
}

func TestCertificate(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, tablestore.NewMemory())
	require.NoError(t, p.Compute(ctx))

	cert, err := p.MakeCertificate(ctx)
	require.NoError(t, err)
	stored, err := p.StoredCertificate(ctx)
	require.NoError(t, err)
	assert.Equal(t, cert.String(), stored.String())

	res, err := p.CheckCertificate(ctx, stored, certificate.VerifyOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Axes)
	assert.Equal(t, 7, res.Suborbits)
	assert.Empty(t, cmp.Diff(wantEntries, res.Matrix.Entries()))
}

func TestCertificateAgainstTamperedMatrix(t *testing.T) {
	ctx := context.Background()
	store := tablestore.NewMemory()
	p := newPipeline(t, store)
	require.NoError(t, p.Compute(ctx))
	cert, err := p.MakeCertificate(ctx)
	require.NoError(t, err)

	entries := make([]binaryCoder.Entry, len(wantEntries))
	for i, e := range wantEntries {
		entries[i] = binaryCoder.Entry{Src: e.Src, Dst: e.Dst, Count: e.Count}
	}
	entries[0].Count--
	entries[1].Count++
	require.NoError(t, store.Put(ctx, keyTransitions, binaryCoder.EntriesToByte(entries)))
	p.Invalidate(keyTransitions)

	_, err = p.CheckCertificate(ctx, cert, certificate.VerifyOptions{SkipOrbits: true})
	assert.ErrorIs(t, err, ErrMatrixMismatch)
}

func TestStoredCertificateMissing(t *testing.T) {
	p := newPipeline(t, tablestore.NewMemory())
	_, err := p.StoredCertificate(context.Background())
	assert.True(t, errors.Is(err, tablestore.ErrNotFound))
}

func TestReport(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, tablestore.NewMemory())

	var buf bytes.Buffer
	require.NoError(t, p.Report(ctx, &buf))
	out := buf.String()
	assert.Contains(t, out, "from\\to")
	assert.Contains(t, out, "watermark")
	assert.Contains(t, out, "character")
	assert.Regexp(t, `(?m)^2D\s+0\s+5\s+5\s+0\s+10$`, out)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	m, err := symaxes.New(5, 2)
	require.NoError(t, err)
	conf := Config{
		Backend:     m,
		StoreConfig: tablestore.Config{Backend: tablestore.BackendSQLite, Path: dir},
		Logger:      logging.Discard(),
	}

	p, err := New(conf)
	require.NoError(t, err)
	require.NoError(t, p.Start(ctx))
	require.NoError(t, p.Compute(ctx))
	man, err := p.Manifest(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Close(ctx))

	p, err = New(conf)
	require.NoError(t, err)
	require.NoError(t, p.Start(ctx))
	defer p.Close(ctx)
	got, err := p.Manifest(ctx)
	require.NoError(t, err)
	assert.Equal(t, man.RunID, got.RunID)
	orders, err := p.CentralizerOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 7)
}

func TestBadgerLargerModel(t *testing.T) {
	testutil.RequireLong(t)
	ctx := context.Background()
	m, err := symaxes.New(8, 3)
	require.NoError(t, err)
	p, err := New(Config{
		Backend:     m,
		StoreConfig: tablestore.Config{Backend: tablestore.BackendBadger, Path: t.TempDir()},
		Seed:        3,
		Logger:      logging.Discard(),
	})
	require.NoError(t, err)
	require.NoError(t, p.Start(ctx))
	defer p.Close(ctx)

	require.NoError(t, p.Compute(ctx))
	tm, err := p.Transitions(ctx)
	require.NoError(t, err)
	require.NoError(t, tm.CheckRows(16))

	cert, err := p.MakeCertificate(ctx)
	require.NoError(t, err)
	res, err := p.CheckCertificate(ctx, cert, certificate.VerifyOptions{})
	require.NoError(t, err)
	assert.True(t, res.Matrix.Equal(tm))
}
