// Package binaryCoder encodes the tables of a computation in protobuf wire
// format. Every table is a flat message of repeated fields, maps are written
// as repeated key/value entries in key order so equal tables encode equally.
package binaryCoder

import (
	"fmt"
	"math/big"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Entry is one cell of the transition matrix.
type Entry struct {
	Src, Dst string
	Count    uint64
}

// SuborbitRep identifies a sub-orbit by the named orbit it lies in, the
// position of its representative in that orbit's index and the point itself.
type SuborbitRep struct {
	Name  string
	Entry int
	Point uint64
}

// Manifest describes the last complete computation.
type Manifest struct {
	RunID    string
	Finished time.Time
	Seed     int64
	Names    []string
}

func StringsToByte(list []string) []byte {
	var b []byte
	for _, s := range list {
		b = appendString(b, 1, s)
	}
	return b
}

func ByteToStrings(data []byte) ([]string, error) {
	fs, err := fields(data)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		if f.num == 1 && f.typ == protowire.BytesType {
			out = append(out, string(f.b))
		}
	}
	return out, nil
}

func StringListsToByte(lists [][]string) []byte {
	var b []byte
	for _, l := range lists {
		b = appendBytes(b, 1, StringsToByte(l))
	}
	return b
}

func ByteToStringLists(data []byte) ([][]string, error) {
	fs, err := fields(data)
	if err != nil {
		return nil, err
	}
	var out [][]string
	for _, f := range fs {
		if f.num != 1 || f.typ != protowire.BytesType {
			continue
		}
		l, err := ByteToStrings(f.b)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func CountsToByte(m map[string]uint64) []byte {
	var b []byte
	for _, k := range sortedKeys(m) {
		var e []byte
		e = appendString(e, 1, k)
		e = appendVarint(e, 2, m[k])
		b = appendBytes(b, 1, e)
	}
	return b
}

func ByteToCounts(data []byte) (map[string]uint64, error) {
	fs, err := fields(data)
	if err != nil {
		return nil, err
	}
	out := make(map[string]uint64, len(fs))
	for _, f := range fs {
		if f.num != 1 || f.typ != protowire.BytesType {
			continue
		}
		efs, err := fields(f.b)
		if err != nil {
			return nil, err
		}
		var key string
		var val uint64
		for _, ef := range efs {
			switch ef.num {
			case 1:
				key = string(ef.b)
			case 2:
				val = ef.u
			}
		}
		out[key] = val
	}
	return out, nil
}

func BigMapToByte(m map[string]*big.Int) []byte {
	var b []byte
	for _, k := range sortedKeys(m) {
		var e []byte
		e = appendString(e, 1, k)
		e = appendBytes(e, 2, bigToBytes(m[k]))
		b = appendBytes(b, 1, e)
	}
	return b
}

func ByteToBigMap(data []byte) (map[string]*big.Int, error) {
	fs, err := fields(data)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*big.Int, len(fs))
	for _, f := range fs {
		if f.num != 1 || f.typ != protowire.BytesType {
			continue
		}
		efs, err := fields(f.b)
		if err != nil {
			return nil, err
		}
		var key string
		var val *big.Int
		for _, ef := range efs {
			switch ef.num {
			case 1:
				key = string(ef.b)
			case 2:
				if val, err = bytesToBig(ef.b); err != nil {
					return nil, err
				}
			}
		}
		if val == nil {
			return nil, fmt.Errorf("%w: %q has no value", ErrCorrupt, key)
		}
		out[key] = val
	}
	return out, nil
}

func BigListToByte(list []*big.Int) []byte {
	var b []byte
	for _, x := range list {
		b = appendBytes(b, 1, bigToBytes(x))
	}
	return b
}

func ByteToBigList(data []byte) ([]*big.Int, error) {
	fs, err := fields(data)
	if err != nil {
		return nil, err
	}
	out := make([]*big.Int, 0, len(fs))
	for _, f := range fs {
		if f.num != 1 || f.typ != protowire.BytesType {
			continue
		}
		x, err := bytesToBig(f.b)
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, nil
}

func EntriesToByte(entries []Entry) []byte {
	var b []byte
	for _, en := range entries {
		var e []byte
		e = appendString(e, 1, en.Src)
		e = appendString(e, 2, en.Dst)
		e = appendVarint(e, 3, en.Count)
		b = appendBytes(b, 1, e)
	}
	return b
}

func ByteToEntries(data []byte) ([]Entry, error) {
	fs, err := fields(data)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(fs))
	for _, f := range fs {
		if f.num != 1 || f.typ != protowire.BytesType {
			continue
		}
		efs, err := fields(f.b)
		if err != nil {
			return nil, err
		}
		var en Entry
		for _, ef := range efs {
			switch ef.num {
			case 1:
				en.Src = string(ef.b)
			case 2:
				en.Dst = string(ef.b)
			case 3:
				en.Count = ef.u
			}
		}
		out = append(out, en)
	}
	return out, nil
}

func SuborbitsToByte(reps []SuborbitRep) []byte {
	var b []byte
	for _, r := range reps {
		var e []byte
		e = appendString(e, 1, r.Name)
		e = appendVarint(e, 2, uint64(r.Entry))
		e = appendVarint(e, 3, r.Point)
		b = appendBytes(b, 1, e)
	}
	return b
}

func ByteToSuborbits(data []byte) ([]SuborbitRep, error) {
	fs, err := fields(data)
	if err != nil {
		return nil, err
	}
	out := make([]SuborbitRep, 0, len(fs))
	for _, f := range fs {
		if f.num != 1 || f.typ != protowire.BytesType {
			continue
		}
		efs, err := fields(f.b)
		if err != nil {
			return nil, err
		}
		var r SuborbitRep
		for _, ef := range efs {
			switch ef.num {
			case 1:
				r.Name = string(ef.b)
			case 2:
				r.Entry = int(ef.u)
			case 3:
				r.Point = ef.u
			}
		}
		out = append(out, r)
	}
	return out, nil
}

func ManifestToByte(m Manifest) []byte {
	var b []byte
	b = appendString(b, 1, m.RunID)
	b = appendVarint(b, 2, uint64(m.Finished.UnixNano()))
	b = appendVarint(b, 3, protowire.EncodeZigZag(m.Seed))
	for _, n := range m.Names {
		b = appendString(b, 4, n)
	}
	return b
}

func ByteToManifest(data []byte) (Manifest, error) {
	var m Manifest
	fs, err := fields(data)
	if err != nil {
		return m, err
	}
	for _, f := range fs {
		switch f.num {
		case 1:
			m.RunID = string(f.b)
		case 2:
			m.Finished = time.Unix(0, int64(f.u)).UTC()
		case 3:
			m.Seed = protowire.DecodeZigZag(f.u)
		case 4:
			m.Names = append(m.Names, string(f.b))
		}
	}
	return m, nil
}
