package axisorbits

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/i5heu/axis-orbits/internal/binaryCoder"
	"github.com/i5heu/axis-orbits/pkg/group"
	"github.com/i5heu/axis-orbits/pkg/orbits"
	"github.com/i5heu/axis-orbits/pkg/tablestore"
)

// Suborbit is an orbit of the centralizer of a named representative on the
// admissible points; equivalently an orbit of N on the axes of the named
// orbit.
type Suborbit struct {
	// Number is the 1-based position in the sub-orbit order: name order,
	// then size descending, then triality destinations.
	Number int
	Name   string
	// Entry is the position of the orbit in the index of Name.
	Entry int
	Rep   orbits.Point
	// Size is the number of admissible points in the orbit.
	Size      uint64
	Watermark string
	// Dest holds the orbit names of the sub-orbit axis times tau and tau^2.
	Dest [2]string
	// Axes is the number of axes in the sub-orbit.
	Axes *big.Int
	// Centralizer holds random elements of the centralizer in N of the
	// sub-orbit axis.
	Centralizer []string
}

// subAxis returns the axis of the sub-orbit of v: ax * Transport(v).
func (p *Pipeline) subAxis(ax group.Axis, v orbits.Point) (group.Axis, group.Element, error) {
	t, err := p.backend.Transport(v)
	if err != nil {
		return nil, nil, err
	}
	return p.backend.Act(ax, t), t, nil
}

// Suborbits numbers the sub-orbits of all names by their watermarks.
// Watermarks must be constant on every sub-orbit and distinct between
// sub-orbits.
func (p *Pipeline) Suborbits(ctx context.Context) ([]Suborbit, error) {
	return cached(p, "suborbits", func() ([]Suborbit, error) {
		store, err := p.Store()
		if err != nil {
			return nil, err
		}
		var missing bool
		for _, k := range suborbitKeys {
			ok, err := store.Has(ctx, k)
			if err != nil {
				return nil, err
			}
			missing = missing || !ok
		}
		if missing {
			tables, err := p.computeSuborbits(ctx)
			if err != nil {
				return nil, err
			}
			if err := tablestore.PutAll(ctx, store, tables); err != nil {
				return nil, err
			}
		}

		data := make(map[string][]byte)
		for _, k := range suborbitKeys {
			k := k
			v, err := tablestore.LoadOrCompute(ctx, store, k, func(ctx context.Context) ([]byte, error) {
				tables, err := p.computeSuborbits(ctx)
				return tables[k], err
			})
			if err != nil {
				return nil, err
			}
			data[k] = v
		}
		return p.decodeSuborbits(ctx, data)
	})
}

func (p *Pipeline) computeSuborbits(ctx context.Context) (map[string][]byte, error) {
	b := p.backend
	idx, err := p.Orbits(ctx)
	if err != nil {
		return nil, err
	}
	gsizes, err := p.OrbitSizes(ctx)
	if err != nil {
		return nil, err
	}
	total := new(big.Int).SetUint64(group.AdmissibleCount(b))
	base := b.BasePoint()

	var subs []Suborbit
	owner := make(map[string]string)
	for i, name := range b.Names() {
		ax, err := b.Representative(name)
		if err != nil {
			return nil, err
		}
		ix := idx[name]
		rng := p.rng(i)
		for entry, o := range ix.Orbits() {
			ax1, t, err := p.subAxis(ax, o.Rep)
			if err != nil {
				return nil, err
			}
			wm := b.Watermark(ax1)
			for _, s := range o.Sample {
				sax, _, err := p.subAxis(ax, s)
				if err != nil {
					return nil, err
				}
				if w := b.Watermark(sax); w != wm {
					return nil, fmt.Errorf("%w: %s member %s has watermark %s, representative %s has %s", ErrWatermarkCollision, name, s, w, o.Rep, wm)
				}
			}
			label := fmt.Sprintf("%s/%d", name, entry)
			if prev, ok := owner[wm]; ok {
				return nil, fmt.Errorf("%w: %s and %s share %s", ErrWatermarkCollision, prev, label, wm)
			}
			owner[wm] = label

			dst, err := p.destinations(ax, o.Rep, false)
			if err != nil {
				return nil, err
			}
			axes, err := exactDiv(new(big.Int).Mul(new(big.Int).SetUint64(o.Size), gsizes[name]), total)
			if err != nil {
				return nil, fmt.Errorf("axes in %s: %w", label, err)
			}

			tinv := b.Inverse(t)
			var cent []string
			for k := 0; k < p.config.SuborbitCentralizers; k++ {
				s, err := ix.RandomStabilizer(o.Rep, rng)
				if err != nil {
					return nil, err
				}
				c := group.MulAll(b, tinv, s, t)
				if b.Matrix(c).Apply(base) != base || !b.EqualAxes(b.Act(ax1, c), ax1) {
					return nil, fmt.Errorf("%w: %s for sub-orbit %s", ErrNotCentralizing, b.Format(c), label)
				}
				cent = append(cent, b.Format(c))
			}

			subs = append(subs, Suborbit{
				Name:        name,
				Entry:       entry,
				Rep:         o.Rep,
				Size:        o.Size,
				Watermark:   wm,
				Dest:        sortedPair(dst),
				Axes:        axes,
				Centralizer: cent,
			})
		}
	}

	order := p.nameIndex()
	sort.SliceStable(subs, func(i, j int) bool {
		a, c := subs[i], subs[j]
		if order[a.Name] != order[c.Name] {
			return order[a.Name] < order[c.Name]
		}
		if a.Size != c.Size {
			return a.Size > c.Size
		}
		if a.Dest[0] != c.Dest[0] {
			return a.Dest[0] < c.Dest[0]
		}
		return a.Dest[1] < c.Dest[1]
	})

	numbers := make(map[string]uint64, len(subs))
	reps := make([]binaryCoder.SuborbitRep, len(subs))
	axes := make([]*big.Int, len(subs))
	cents := make([][]string, len(subs))
	sum := new(big.Int)
	for i, s := range subs {
		numbers[s.Watermark] = uint64(i + 1)
		reps[i] = binaryCoder.SuborbitRep{Name: s.Name, Entry: s.Entry, Point: uint64(s.Rep)}
		axes[i] = s.Axes
		cents[i] = s.Centralizer
		sum.Add(sum, s.Axes)
	}
	want := new(big.Int)
	for _, n := range gsizes {
		want.Add(want, n)
	}
	if sum.Cmp(want) != 0 {
		return nil, fmt.Errorf("%w: sub-orbits hold %s axes, orbits %s", ErrPartition, sum, want)
	}

	return map[string][]byte{
		keySuborbitMap:          binaryCoder.CountsToByte(numbers),
		keySuborbitReps:         binaryCoder.SuborbitsToByte(reps),
		keySuborbitSizes:        binaryCoder.BigListToByte(axes),
		keySuborbitCentralizers: binaryCoder.StringListsToByte(cents),
	}, nil
}

func (p *Pipeline) decodeSuborbits(ctx context.Context, data map[string][]byte) ([]Suborbit, error) {
	idx, err := p.Orbits(ctx)
	if err != nil {
		return nil, err
	}
	numbers, err := binaryCoder.ByteToCounts(data[keySuborbitMap])
	if err != nil {
		return nil, err
	}
	reps, err := binaryCoder.ByteToSuborbits(data[keySuborbitReps])
	if err != nil {
		return nil, err
	}
	axes, err := binaryCoder.ByteToBigList(data[keySuborbitSizes])
	if err != nil {
		return nil, err
	}
	cents, err := binaryCoder.ByteToStringLists(data[keySuborbitCentralizers])
	if err != nil {
		return nil, err
	}
	if len(axes) != len(reps) || len(cents) != len(reps) || len(numbers) != len(reps) {
		return nil, fmt.Errorf("%w: sub-orbit tables differ in length", binaryCoder.ErrCorrupt)
	}
	marks := make(map[uint64]string, len(numbers))
	for wm, n := range numbers {
		marks[n] = wm
	}

	subs := make([]Suborbit, len(reps))
	for i, r := range reps {
		ix, ok := idx[r.Name]
		if !ok {
			return nil, fmt.Errorf("%w: sub-orbit of unknown orbit %s", binaryCoder.ErrCorrupt, r.Name)
		}
		v := orbits.Point(r.Point)
		size, err := ix.OrbitSize(v)
		if err != nil {
			return nil, err
		}
		ax, err := p.backend.Representative(r.Name)
		if err != nil {
			return nil, err
		}
		dst, err := p.destinations(ax, v, false)
		if err != nil {
			return nil, err
		}
		subs[i] = Suborbit{
			Number:      i + 1,
			Name:        r.Name,
			Entry:       r.Entry,
			Rep:         v,
			Size:        size,
			Watermark:   marks[uint64(i+1)],
			Dest:        sortedPair(dst),
			Axes:        axes[i],
			Centralizer: cents[i],
		}
	}
	return subs, nil
}
