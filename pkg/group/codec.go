package group

import "fmt"

// Codec converts elements to and from bytes. Serialized orbit indices are
// only readable with the codec they were written with.
type Codec struct {
	Encode func(Element) ([]byte, error)
	Decode func([]byte) (Element, error)
}

// TextCodec encodes elements with the canonical text form of g.
func TextCodec(g Group) Codec {
	return Codec{
		Encode: func(e Element) ([]byte, error) {
			return []byte(g.Format(e)), nil
		},
		Decode: func(b []byte) (Element, error) {
			e, err := g.Parse(string(b))
			if err != nil {
				return nil, fmt.Errorf("decode element %q: %w", b, err)
			}
			return e, nil
		},
	}
}

// FormatAll formats a list of elements.
func FormatAll(g Group, elems []Element) []string {
	out := make([]string, len(elems))
	for i, e := range elems {
		out[i] = g.Format(e)
	}
	return out
}

// ParseAll parses a list of element strings.
func ParseAll(g Group, strs []string) ([]Element, error) {
	out := make([]Element, len(strs))
	for i, s := range strs {
		e, err := g.Parse(s)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}
