package axisorbits

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/i5heu/axis-orbits/internal/binaryCoder"
	"github.com/i5heu/axis-orbits/pkg/certificate"
	"github.com/i5heu/axis-orbits/pkg/group"
	"github.com/i5heu/axis-orbits/pkg/orbits"
	"github.com/i5heu/axis-orbits/pkg/tablestore"
	workerpool "github.com/i5heu/axis-orbits/pkg/workerPool"
	"golang.org/x/sync/errgroup"
)

var (
	ErrWatermarkCollision = errors.New("axisorbits: watermark does not separate the sub-orbits")
	ErrInexact            = errors.New("axisorbits: division with remainder")
	ErrMatrixMismatch     = errors.New("axisorbits: certificate matrix differs from the computed one")

	ErrPartition        = orbits.ErrPartition
	ErrTrialityMismatch = certificate.ErrTrialityMismatch
	ErrNotCentralizing  = certificate.ErrNotCentralizing
)

// Store keys of the tables.
const (
	keyCentralizers         = "centralizers/"
	keyOrbits               = "orbits/"
	keyTransitions          = "transitions"
	keyOrbitSizes           = "orbit_sizes"
	keySuborbitMap          = "suborbit_map"
	keySuborbitReps         = "suborbit_reps"
	keySuborbitSizes        = "suborbit_sizes"
	keySuborbitCentralizers = "suborbit_centralizers"
	keyCentralizerOrders    = "centralizer_orders"
	keyManifest             = "manifest"
	keyCertificate          = "certificate"
)

var stagePrefixes = []string{
	keyCentralizers, keyOrbits, keyTransitions, keyOrbitSizes, "suborbit_",
	keyCentralizerOrders, keyManifest, keyCertificate,
}

var suborbitKeys = []string{keySuborbitMap, keySuborbitReps, keySuborbitSizes, keySuborbitCentralizers}

// perName returns the table prefix+name of every name. Missing tables are
// computed on the worker pool and stored by the calling goroutine.
func (p *Pipeline) perName(ctx context.Context, prefix string, compute func(ctx context.Context, index int, name string) ([]byte, error)) (map[string][]byte, error) {
	store, err := p.Store()
	if err != nil {
		return nil, err
	}
	names := p.backend.Names()
	var missing []int
	for i, n := range names {
		ok, err := store.Has(ctx, prefix+n)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, i)
		}
	}

	computed, err := workerpool.Map(ctx, p.pool, missing, func(ctx context.Context, _ int, i int) ([]byte, error) {
		return compute(ctx, i, names[i])
	})
	if err != nil {
		return nil, err
	}
	batch := make(map[string][]byte, len(missing))
	for j, i := range missing {
		batch[prefix+names[i]] = computed[j]
	}
	if err := tablestore.PutAll(ctx, store, batch); err != nil {
		return nil, err
	}

	out := make(map[string][]byte, len(names))
	for i, n := range names {
		i, n := i, n
		v, err := tablestore.LoadOrCompute(ctx, store, prefix+n, func(ctx context.Context) ([]byte, error) {
			return compute(ctx, i, n)
		})
		if err != nil {
			return nil, err
		}
		out[n] = v
	}
	return out, nil
}

func (p *Pipeline) single(ctx context.Context, key string, compute func(context.Context) ([]byte, error)) ([]byte, error) {
	store, err := p.Store()
	if err != nil {
		return nil, err
	}
	return tablestore.LoadOrCompute(ctx, store, key, compute)
}

// Centralizers returns generators of the centralizer in G of every
// representative: the generators known to the backend, if any, followed by
// random elements g * Reduce(rep * g) for random g in G.
func (p *Pipeline) Centralizers(ctx context.Context) (map[string][]group.Element, error) {
	return cached(p, keyCentralizers, func() (map[string][]group.Element, error) {
		b := p.backend
		raw, err := p.perName(ctx, keyCentralizers, func(ctx context.Context, index int, name string) ([]byte, error) {
			gens, err := p.centralizerGenerators(name, index)
			if err != nil {
				return nil, err
			}
			return binaryCoder.StringsToByte(group.FormatAll(b, gens)), nil
		})
		if err != nil {
			return nil, err
		}
		out := make(map[string][]group.Element, len(raw))
		for name, data := range raw {
			strs, err := binaryCoder.ByteToStrings(data)
			if err != nil {
				return nil, fmt.Errorf("centralizers of %s: %w", name, err)
			}
			if out[name], err = group.ParseAll(b, strs); err != nil {
				return nil, fmt.Errorf("centralizers of %s: %w", name, err)
			}
		}
		return out, nil
	})
}

func (p *Pipeline) centralizerGenerators(name string, index int) ([]group.Element, error) {
	b := p.backend
	rep, err := b.Representative(name)
	if err != nil {
		return nil, err
	}
	var gens []group.Element
	if cs, ok := b.(group.CentralizerSource); ok {
		if gens, err = cs.CentralizerGenerators(name); err != nil {
			return nil, err
		}
	}
	rng := p.rng(index)
	for i := 0; i < p.config.CentralizerGenerators; i++ {
		g := b.Random(rng)
		got, h, err := b.Reduce(b.Act(rep, g))
		if err != nil {
			return nil, err
		}
		if got != name {
			return nil, fmt.Errorf("%w: %s * %s reduces to %s", ErrNotCentralizing, name, b.Format(g), got)
		}
		gens = append(gens, b.Mul(g, h))
	}
	for _, c := range gens {
		if !b.Contains(c) || !b.EqualAxes(b.Act(rep, c), rep) {
			return nil, fmt.Errorf("%w: %s does not fix %s", ErrNotCentralizing, b.Format(c), name)
		}
	}
	return gens, nil
}

// Orbits returns, for every name, the orbits of its centralizer generators
// on the admissible points, with sample members.
func (p *Pipeline) Orbits(ctx context.Context) (map[string]*orbits.Index, error) {
	return cached(p, keyOrbits, func() (map[string]*orbits.Index, error) {
		b := p.backend
		codec := group.TextCodec(b)
		cents, err := p.Centralizers(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := p.perName(ctx, keyOrbits, func(ctx context.Context, index int, name string) ([]byte, error) {
			ix, err := orbits.Compute(b, b.Matrix, cents[name], orbits.Options{
				Admissible: certificate.Admissible(b),
				SampleSize: p.config.SampleSize,
				Rand:       p.rng(index),
			})
			if err != nil {
				return nil, fmt.Errorf("orbits of %s: %w", name, err)
			}
			reps, _ := ix.Representatives()
			if ix, err = ix.Compress(reps); err != nil {
				return nil, err
			}
			return ix.Marshal(codec)
		})
		if err != nil {
			return nil, err
		}
		out := make(map[string]*orbits.Index, len(raw))
		for name, data := range raw {
			if out[name], err = orbits.Unmarshal(data, codec, b, b.Matrix); err != nil {
				return nil, fmt.Errorf("orbits of %s: %w", name, err)
			}
		}
		return out, nil
	})
}

// CheckOrbits verifies that the orbits of every name partition the
// admissible points.
func (p *Pipeline) CheckOrbits(ctx context.Context) error {
	idx, err := p.Orbits(ctx)
	if err != nil {
		return err
	}
	total := group.AdmissibleCount(p.backend)
	for _, name := range p.backend.Names() {
		if err := idx[name].CheckPartition(total); err != nil {
			return fmt.Errorf("orbits of %s: %w", name, err)
		}
	}
	return nil
}

// destinations returns the names of the orbits of ax * Transport(v) * tau
// and * tau^2. With check set both images must reduce onto their
// representative.
func (p *Pipeline) destinations(ax group.Axis, v orbits.Point, check bool) ([2]string, error) {
	b := p.backend
	var dst [2]string
	t, err := b.Transport(v)
	if err != nil {
		return dst, err
	}
	ax1 := b.Act(ax, t)
	for e := 1; e <= 2; e++ {
		img := b.Triality(ax1, e)
		name, h, err := b.Reduce(img)
		if err != nil {
			return dst, err
		}
		if check {
			rep, err := b.Representative(name)
			if err != nil {
				return dst, err
			}
			if !b.EqualAxes(b.Act(img, h), rep) {
				return dst, fmt.Errorf("%w: tau^%d image of %s does not reduce onto %s", ErrTrialityMismatch, e, v, name)
			}
		}
		dst[e-1] = name
	}
	return dst, nil
}

func sortedPair(d [2]string) [2]string {
	if d[1] < d[0] {
		d[0], d[1] = d[1], d[0]
	}
	return d
}

// Transitions cross-checks the triality element on every sub-orbit and
// returns the transition matrix. Sample members of a sub-orbit must be
// mapped into the same pair of orbits as its representative.
func (p *Pipeline) Transitions(ctx context.Context) (*certificate.TransitionMatrix, error) {
	return cached(p, keyTransitions, func() (*certificate.TransitionMatrix, error) {
		idx, err := p.Orbits(ctx)
		if err != nil {
			return nil, err
		}
		data, err := p.single(ctx, keyTransitions, func(ctx context.Context) ([]byte, error) {
			m, err := p.computeTransitions(ctx, idx)
			if err != nil {
				return nil, err
			}
			entries := m.Entries()
			out := make([]binaryCoder.Entry, len(entries))
			for i, e := range entries {
				out[i] = binaryCoder.Entry{Src: e.Src, Dst: e.Dst, Count: e.Count}
			}
			return binaryCoder.EntriesToByte(out), nil
		})
		if err != nil {
			return nil, err
		}
		entries, err := binaryCoder.ByteToEntries(data)
		if err != nil {
			return nil, err
		}
		m := certificate.NewTransitionMatrix()
		for _, e := range entries {
			m.Add(e.Src, e.Dst, e.Count)
		}
		return m, nil
	})
}

func (p *Pipeline) computeTransitions(ctx context.Context, idx map[string]*orbits.Index) (*certificate.TransitionMatrix, error) {
	b := p.backend
	var mu sync.Mutex
	m := certificate.NewTransitionMatrix()

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.pool.WorkerCount())
	for _, name := range b.Names() {
		name := name
		eg.Go(func() error {
			ax, err := b.Representative(name)
			if err != nil {
				return err
			}
			for _, o := range idx[name].Orbits() {
				if err := egCtx.Err(); err != nil {
					return err
				}
				dst, err := p.destinations(ax, o.Rep, true)
				if err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				for i, s := range o.Sample {
					ds, err := p.destinations(ax, s, i == 0)
					if err != nil {
						return fmt.Errorf("%s: %w", name, err)
					}
					if sortedPair(ds) != sortedPair(dst) {
						return fmt.Errorf("%w: %s member %s goes to %v, representative %s to %v", ErrTrialityMismatch, name, s, ds, o.Rep, dst)
					}
				}
				mu.Lock()
				m.Add(name, dst[0], o.Size)
				m.Add(name, dst[1], o.Size)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := m.CheckRows(2 * group.AdmissibleCount(b)); err != nil {
		return nil, err
	}
	return m, nil
}

// OrbitSizes returns the number of axes in every named orbit.
func (p *Pipeline) OrbitSizes(ctx context.Context) (map[string]*big.Int, error) {
	return cached(p, keyOrbitSizes, func() (map[string]*big.Int, error) {
		data, err := p.single(ctx, keyOrbitSizes, func(context.Context) ([]byte, error) {
			sizes := make(map[string]*big.Int)
			for _, name := range p.backend.Names() {
				n, err := p.backend.OrbitSize(name)
				if err != nil {
					return nil, err
				}
				sizes[name] = n
			}
			return binaryCoder.BigMapToByte(sizes), nil
		})
		if err != nil {
			return nil, err
		}
		return binaryCoder.ByteToBigMap(data)
	})
}

// exactDiv returns a / b and fails unless b divides a.
func exactDiv(a, b *big.Int) (*big.Int, error) {
	if b.Sign() == 0 {
		return nil, fmt.Errorf("%w: %s / 0", ErrInexact, a)
	}
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() != 0 {
		return nil, fmt.Errorf("%w: %s / %s", ErrInexact, a, b)
	}
	return q, nil
}

// CentralizerOrders returns, in sub-orbit order, the order of the
// centralizer in N of the axis of every sub-orbit,
// |G| / (|G-orbit| * sub-orbit size).
func (p *Pipeline) CentralizerOrders(ctx context.Context) ([]*big.Int, error) {
	return cached(p, keyCentralizerOrders, func() ([]*big.Int, error) {
		subs, err := p.Suborbits(ctx)
		if err != nil {
			return nil, err
		}
		sizes, err := p.OrbitSizes(ctx)
		if err != nil {
			return nil, err
		}
		data, err := p.single(ctx, keyCentralizerOrders, func(context.Context) ([]byte, error) {
			orders := make([]*big.Int, len(subs))
			for i, s := range subs {
				d := new(big.Int).Mul(sizes[s.Name], new(big.Int).SetUint64(s.Size))
				q, err := exactDiv(p.backend.Order(), d)
				if err != nil {
					return nil, fmt.Errorf("sub-orbit %d: %w", s.Number, err)
				}
				orders[i] = q
			}
			return binaryCoder.BigListToByte(orders), nil
		})
		if err != nil {
			return nil, err
		}
		return binaryCoder.ByteToBigList(data)
	})
}

// nameIndex maps every name to its position in the backend order.
func (p *Pipeline) nameIndex() map[string]int {
	out := make(map[string]int)
	for i, n := range p.backend.Names() {
		out[n] = i
	}
	return out
}
