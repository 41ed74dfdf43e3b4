package certificate

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/i5heu/axis-orbits/pkg/group"
	workerpool "github.com/i5heu/axis-orbits/pkg/workerPool"
	"github.com/sirupsen/logrus"
)

// AxisOrbit is what the builder needs to know about a named orbit of axes:
// known generators of the centralizer of its representative and the sorted
// sizes of their orbits on the admissible points. Sizes are computed from
// Generators when nil.
type AxisOrbit struct {
	Name       string
	Generators []group.Element
	Sizes      []uint64
}

// Source supplies the named orbits to certify.
type Source interface {
	AxisOrbit(ctx context.Context, name string) (AxisOrbit, error)
}

// BuilderConfig configures a Builder.
type BuilderConfig struct {
	Backend group.Backend
	Source  Source
	// Pool runs the blocks of Build. A pool with default settings is
	// created and closed per build when nil.
	Pool   *workerpool.WorkerPool
	Seed   int64
	Logger *logrus.Logger
}

type Builder struct {
	backend group.Backend
	source  Source
	pool    *workerpool.WorkerPool
	seed    int64
	log     *logrus.Logger
}

func NewBuilder(cfg BuilderConfig) *Builder {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Builder{
		backend: cfg.Backend,
		source:  cfg.Source,
		pool:    cfg.Pool,
		seed:    cfg.Seed,
		log:     cfg.Logger,
	}
}

// rng seeds the random source of a block from the seed and the position of
// the name in the backend order.
func (b *Builder) rng(name string) *rand.Rand {
	names := b.backend.Names()
	index := len(names)
	for i, n := range names {
		if n == name {
			index = i
			break
		}
	}
	return rand.New(rand.NewSource(b.seed + int64(index)))
}

// BuildAxis writes the block of the named orbit.
func (b *Builder) BuildAxis(ctx context.Context, name string) (*Certificate, error) {
	return b.buildAxis(ctx, name, b.rng(name))
}

func (b *Builder) buildAxis(ctx context.Context, name string, rng *rand.Rand) (*Certificate, error) {
	start := time.Now()
	ao, err := b.source.AxisOrbit(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("certificate %s: %w", name, err)
	}
	want := ao.Sizes
	if want == nil {
		ix, err := AdmissibleOrbits(b.backend, ao.Generators)
		if err != nil {
			return nil, fmt.Errorf("certificate %s: %w", name, err)
		}
		want = ix.SortedSizes()
	}

	gens, ix, err := SearchGenerators(ctx, b.backend, ao.Generators, want, rng)
	if err != nil {
		return nil, fmt.Errorf("certificate %s: %w", name, err)
	}

	g, err := b.backend.AxisElement(name)
	if err != nil {
		return nil, fmt.Errorf("certificate %s: %w", name, err)
	}
	ax := b.backend.Act(b.backend.BaseAxis(), g)

	cert := &Certificate{}
	cert.add(Record{Kind: KindAxis, Name: name, Element: b.backend.Format(g)})
	written := make(map[string]bool)
	for _, c := range gens {
		s := b.backend.Format(c)
		cert.add(Record{Kind: KindCent, Priority: 1, Element: s})
		written[s] = true
	}
	for _, c := range ao.Generators {
		s := b.backend.Format(c)
		if written[s] {
			continue
		}
		cert.add(Record{Kind: KindCent, Priority: 2, Element: s})
		written[s] = true
	}

	reps, sizes := ix.Representatives()
	for i, v := range reps {
		t, err := b.backend.Transport(v)
		if err != nil {
			return nil, fmt.Errorf("certificate %s: transport %s: %w", name, v, err)
		}
		cert.add(Record{Kind: KindOrb, Size: sizes[i], Element: b.backend.Format(t)})
		ax1 := b.backend.Act(ax, t)
		for _, kind := range []Kind{KindTau1, KindTau2} {
			rec := Record{Kind: kind}
			dst, h, err := b.backend.Reduce(b.backend.Triality(ax1, rec.tauExponent()))
			if err != nil {
				return nil, fmt.Errorf("certificate %s: %w", name, err)
			}
			rec.Name, rec.Element = dst, b.backend.Format(h)
			cert.add(rec)
		}
	}
	cert.add(Record{Kind: KindEnd})

	b.log.WithFields(logrus.Fields{
		"orbit":      name,
		"generators": len(gens),
		"suborbits":  len(reps),
		"elapsed":    time.Since(start),
	}).Debug("certificate block built")
	return cert, nil
}

// Build writes the blocks of all names in parallel and joins them in the
// given order. Any failing block fails the whole build.
func (b *Builder) Build(ctx context.Context, names []string) (*Certificate, error) {
	pool := b.pool
	if pool == nil {
		pool = workerpool.NewWorkerPool(workerpool.Config{})
		defer pool.Close()
	}
	blocks, err := workerpool.Map(ctx, pool, names, func(ctx context.Context, _ int, name string) (*Certificate, error) {
		return b.BuildAxis(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	cert := &Certificate{}
	for _, blk := range blocks {
		cert.Append(blk)
	}
	return cert, nil
}
