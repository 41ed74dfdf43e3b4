package certificate

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var tagKinds = map[string]Kind{
	"axis:": KindAxis,
	"cent:": KindCent,
	"orb:":  KindOrb,
	"tau1:": KindTau1,
	"tau2:": KindTau2,
	"end:":  KindEnd,
}

// Parse reads a certificate. Fields may be separated by any whitespace and
// blank lines are ignored. Element strings are not interpreted.
func Parse(r io.Reader) (*Certificate, error) {
	cert := &Certificate{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		rec, err := parseRecord(fields)
		if err != nil {
			return nil, &VerifyError{Line: line, Text: strings.TrimSpace(text), Err: err}
		}
		rec.Line = line
		cert.add(rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("certificate: read: %w", err)
	}
	return cert, nil
}

func parseRecord(fields []string) (Record, error) {
	kind, ok := tagKinds[fields[0]]
	if !ok {
		return Record{}, fmt.Errorf("%w: unknown tag %q", ErrSyntax, fields[0])
	}
	rec := Record{Kind: kind}
	if kind == KindEnd {
		if len(fields) != 1 {
			return Record{}, fmt.Errorf("%w: end takes no fields", ErrSyntax)
		}
		return rec, nil
	}
	if len(fields) != 3 {
		return Record{}, fmt.Errorf("%w: %s needs a value and an element", ErrSyntax, kind)
	}
	value := fields[1]
	rec.Element = fields[2]
	switch kind {
	case KindAxis, KindTau1, KindTau2:
		rec.Name = value
	case KindCent:
		p, err := strconv.Atoi(value)
		if err != nil || (p != 1 && p != 2) {
			return Record{}, fmt.Errorf("%w: cent priority %q", ErrSyntax, value)
		}
		rec.Priority = p
	case KindOrb:
		size, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return Record{}, fmt.Errorf("%w: orb size %q", ErrSyntax, value)
		}
		rec.Size = size
	}
	return rec, nil
}
