package orbits

import (
	"fmt"
	"math"

	"github.com/i5heu/axis-orbits/pkg/group"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the serialized index.
const (
	fieldDim       protowire.Number = 1
	fieldGenerator protowire.Number = 2
	fieldOrbit     protowire.Number = 3
	fieldMembers   protowire.Number = 4
	fieldParents   protowire.Number = 5
	fieldVia       protowire.Number = 6

	fieldOrbitRep    protowire.Number = 1
	fieldOrbitSize   protowire.Number = 2
	fieldOrbitSample protowire.Number = 3
)

// Marshal serializes the index in protobuf wire format. Generators are
// written with codec.Encode; the same codec must be used to read it back.
func (ix *Index) Marshal(codec group.Codec) ([]byte, error) {
	b := protowire.AppendTag(nil, fieldDim, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(ix.dim))
	for i, g := range ix.gens {
		enc, err := codec.Encode(g)
		if err != nil {
			return nil, fmt.Errorf("encode generator %d: %w", i, err)
		}
		b = protowire.AppendTag(b, fieldGenerator, protowire.BytesType)
		b = protowire.AppendBytes(b, enc)
	}
	for _, o := range ix.orbits {
		var ob []byte
		ob = protowire.AppendTag(ob, fieldOrbitRep, protowire.VarintType)
		ob = protowire.AppendVarint(ob, uint64(o.Rep))
		ob = protowire.AppendTag(ob, fieldOrbitSize, protowire.VarintType)
		ob = protowire.AppendVarint(ob, o.Size)
		ob = appendPacked(ob, fieldOrbitSample, len(o.Sample), func(i int) uint64 { return uint64(o.Sample[i]) })
		b = protowire.AppendTag(b, fieldOrbit, protowire.BytesType)
		b = protowire.AppendBytes(b, ob)
	}
	b = appendPacked(b, fieldMembers, len(ix.members), func(i int) uint64 { return uint64(ix.members[i]) })
	b = appendPacked(b, fieldParents, len(ix.parent), func(i int) uint64 { return uint64(ix.parent[i] + 1) })
	b = appendPacked(b, fieldVia, len(ix.via), func(i int) uint64 { return uint64(ix.via[i] + 1) })
	return b, nil
}

func appendPacked(b []byte, num protowire.Number, n int, at func(int) uint64) []byte {
	var packed []byte
	for i := 0; i < n; i++ {
		packed = protowire.AppendVarint(packed, at(i))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, packed)
}

func consumePacked(b []byte) ([]uint64, error) {
	var out []uint64
	for len(b) > 0 {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		out = append(out, v)
		b = b[n:]
	}
	return out, nil
}

// Unmarshal reads an index written by Marshal. grp and mat must describe the
// same group representation the index was computed with.
func Unmarshal(data []byte, codec group.Codec, grp group.Group, mat MatrixFunc) (*Index, error) {
	var (
		dim     uint64
		gens    []group.Element
		orbits  []Orbit
		members []uint64
		parents []uint64
		via     []uint64
	)
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, protowire.ParseError(n))
		}
		data = data[n:]
		var err error
		switch {
		case num == fieldDim && typ == protowire.VarintType:
			dim, n = protowire.ConsumeVarint(data)
		case typ == protowire.BytesType:
			var v []byte
			v, n = protowire.ConsumeBytes(data)
			if n < 0 {
				break
			}
			switch num {
			case fieldGenerator:
				var g group.Element
				if g, err = codec.Decode(v); err == nil {
					gens = append(gens, g)
				}
			case fieldOrbit:
				var o Orbit
				if o, err = unmarshalOrbit(v); err == nil {
					orbits = append(orbits, o)
				}
			case fieldMembers:
				members, err = consumePacked(v)
			case fieldParents:
				parents, err = consumePacked(v)
			case fieldVia:
				via, err = consumePacked(v)
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, protowire.ParseError(n))
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		data = data[n:]
	}

	ix, err := newIndex(grp, mat, gens)
	if err != nil {
		return nil, err
	}
	if uint64(ix.dim) != dim {
		return nil, fmt.Errorf("%w: dimension %d, generators act on %d", ErrCorrupt, dim, ix.dim)
	}
	if len(parents) != len(members) || len(via) != len(members) {
		return nil, fmt.Errorf("%w: %d members, %d parents, %d generator refs", ErrCorrupt, len(members), len(parents), len(via))
	}
	start := 0
	for i := range orbits {
		if orbits[i].Size == 0 || orbits[i].Size > uint64(len(members)-start) {
			return nil, fmt.Errorf("%w: orbit %d has size %d", ErrCorrupt, i, orbits[i].Size)
		}
		orbits[i].start = start
		start += int(orbits[i].Size)
	}
	if start != len(members) {
		return nil, fmt.Errorf("%w: orbits cover %d of %d members", ErrCorrupt, start, len(members))
	}
	if len(members) > math.MaxInt32 {
		return nil, fmt.Errorf("%w: %d members", ErrCorrupt, len(members))
	}
	// parent and generator are stored plus one; only the first member of an
	// orbit has none, every other parent precedes it within the orbit
	for _, o := range orbits {
		for i := o.start; i < o.start+int(o.Size); i++ {
			parent, g := parents[i], via[i]
			root := i == o.start
			switch {
			case root && (parent != 0 || g != 0),
				!root && (parent == 0 || parent-1 < uint64(o.start) || parent > uint64(i)),
				!root && (g == 0 || g > uint64(len(gens))):
				return nil, fmt.Errorf("%w: bad Schreier tree entry %d", ErrCorrupt, i)
			}
			ix.push(Point(members[i]), int32(parent)-1, int16(g)-1)
		}
	}
	ix.orbits = orbits
	ix.sortPositions()
	return ix, nil
}

func unmarshalOrbit(b []byte) (Orbit, error) {
	var o Orbit
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return o, protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == fieldOrbitRep && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			o.Rep = Point(v)
		case num == fieldOrbitSize && typ == protowire.VarintType:
			o.Size, n = protowire.ConsumeVarint(b)
		case num == fieldOrbitSample && typ == protowire.BytesType:
			var v []byte
			v, n = protowire.ConsumeBytes(b)
			if n >= 0 {
				vals, err := consumePacked(v)
				if err != nil {
					return o, err
				}
				for _, x := range vals {
					o.Sample = append(o.Sample, Point(x))
				}
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return o, protowire.ParseError(n)
		}
		b = b[n:]
	}
	return o, nil
}
