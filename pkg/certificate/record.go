// Package certificate writes and checks certificates for the orbits of the
// acting subgroup G on axes.
//
// A certificate is a line oriented text. Each named orbit of axes gets a
// block that starts with an axis record and ends with an end record:
//
//	axis: <name> <g>     base axis * g is the representative of <name>
//	cent: <1|2> <g>      g centralizes the axis; priority 1 generators
//	                     determine the sub-orbits
//	orb:  <size> <g>     a sub-orbit of <size> admissible points, g maps its
//	                     representative onto the base point
//	tau1: <name> <h>     the orb axis times tau, reduced by h onto <name>
//	tau2: <name> <h>     the same for tau^2
//	end:
//
// Checking a certificate only needs the group arithmetic, no orbit search.
package certificate

import (
	"fmt"
	"io"
	"strings"
)

// Kind is the tag of a record.
type Kind int

const (
	KindAxis Kind = iota + 1
	KindCent
	KindOrb
	KindTau1
	KindTau2
	KindEnd
)

var kindTags = map[Kind]string{
	KindAxis: "axis",
	KindCent: "cent",
	KindOrb:  "orb",
	KindTau1: "tau1",
	KindTau2: "tau2",
	KindEnd:  "end",
}

func (k Kind) String() string {
	if s, ok := kindTags[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Record is one line of a certificate. Which fields are set depends on Kind.
type Record struct {
	Kind     Kind
	Name     string // axis, tau1, tau2
	Priority int    // cent
	Size     uint64 // orb
	Element  string // canonical element string, all kinds but end
	// Line is the 1-based source line of a parsed record.
	Line int
}

func (r Record) String() string {
	switch r.Kind {
	case KindAxis:
		return fmt.Sprintf("axis: %s %s", r.Name, r.Element)
	case KindCent:
		return fmt.Sprintf("cent: %d %s", r.Priority, r.Element)
	case KindOrb:
		return fmt.Sprintf("orb:  %d %s", r.Size, r.Element)
	case KindTau1, KindTau2:
		return fmt.Sprintf("%s: %s %s", r.Kind, r.Name, r.Element)
	case KindEnd:
		return "end:"
	}
	return fmt.Sprintf("%s: ?", r.Kind)
}

// tauExponent returns 1 for tau1 and 2 for tau2.
func (r Record) tauExponent() int {
	if r.Kind == KindTau2 {
		return 2
	}
	return 1
}

type Certificate struct {
	Records []Record
}

func (c *Certificate) add(r Record) {
	c.Records = append(c.Records, r)
}

// Append adds the records of o.
func (c *Certificate) Append(o *Certificate) {
	c.Records = append(c.Records, o.Records...)
}

// WriteTo writes the certificate text, one record per line.
func (c *Certificate) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, r := range c.Records {
		n, err := io.WriteString(w, r.String()+"\n")
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (c *Certificate) String() string {
	var sb strings.Builder
	c.WriteTo(&sb)
	return sb.String()
}
