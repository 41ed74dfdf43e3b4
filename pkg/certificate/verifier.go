package certificate

import (
	"errors"
	"fmt"

	"github.com/i5heu/axis-orbits/pkg/group"
	"github.com/sirupsen/logrus"
)

var (
	ErrSyntax           = errors.New("certificate: syntax error")
	ErrDuplicateAxis    = errors.New("certificate: axis defined twice")
	ErrMissingAxis      = errors.New("certificate: record outside an axis block")
	ErrNestedAxis       = errors.New("certificate: axis inside an open block")
	ErrDanglingTau      = errors.New("certificate: tau record without orb")
	ErrMissingTau       = errors.New("certificate: orb record without tau1 and tau2")
	ErrUnclosedBlock    = errors.New("certificate: axis block not closed")
	ErrNotCentralizing  = errors.New("certificate: element does not centralize the axis")
	ErrTrialityMismatch = errors.New("certificate: triality image does not reduce to the named axis")
	ErrBadSize          = errors.New("certificate: orbit size must be positive")
	ErrOrbitMismatch    = errors.New("certificate: orb records do not match the centralizer orbits")
	ErrRowSum           = errors.New("certificate: transition matrix row has the wrong sum")
	ErrWrongOrbit       = errors.New("certificate: axis does not lie in the named orbit")
	ErrMissingOrbit     = errors.New("certificate: orbit has no axis block")
)

// VerifyError reports the first failing record.
type VerifyError struct {
	Line int
	Text string
	Err  error
}

func (e *VerifyError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d %q: %v", e.Line, e.Text, e.Err)
	}
	return fmt.Sprintf("%q: %v", e.Text, e.Err)
}

func (e *VerifyError) Unwrap() error { return e.Err }

// VerifyOptions controls Verify.
type VerifyOptions struct {
	// SkipOrbits disables recomputing the sub-orbits from the priority 1
	// centralizer generators.
	SkipOrbits bool
	Logger     *logrus.Logger
}

// Result summarizes a valid certificate.
type Result struct {
	Axes      int
	Suborbits int
	// Admissible is the number of admissible points, every matrix row sums
	// to twice this number.
	Admissible uint64
	Matrix     *TransitionMatrix
}

type orbRecord struct {
	rec Record
	g   group.Element
}

// block is the state of the axis block being checked.
type block struct {
	rec   Record
	name  string
	ax    group.Axis
	cents []group.Element
	orbs  []orbRecord

	// orb is the pending orb record, ax1 its axis and taus the tau
	// records seen for it.
	orb  *Record
	ax1  group.Axis
	taus [2]bool
}

func (bl *block) tausComplete() bool {
	return bl.orb == nil || (bl.taus[0] && bl.taus[1])
}

type verifier struct {
	b     group.Backend
	opts  VerifyOptions
	names map[string]bool
	axes  map[string]group.Axis
	res   *Result
}

// Verify checks cert against the group arithmetic of b. The result is
// returned only if every record is valid; otherwise the error is a
// *VerifyError naming the first failing record.
func Verify(cert *Certificate, b group.Backend, opts VerifyOptions) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	v := &verifier{
		b:     b,
		opts:  opts,
		names: make(map[string]bool),
		axes:  make(map[string]group.Axis),
		res:   &Result{Matrix: NewTransitionMatrix()},
	}
	for _, name := range b.Names() {
		v.names[name] = true
	}
	if err := v.collectAxes(cert); err != nil {
		return nil, err
	}
	if err := v.checkBlocks(cert); err != nil {
		return nil, err
	}

	v.res.Axes = len(v.axes)
	v.res.Admissible = group.AdmissibleCount(b)
	want := 2 * v.res.Admissible
	for _, name := range b.Names() {
		if _, ok := v.axes[name]; !ok {
			return nil, &VerifyError{Text: name, Err: ErrMissingOrbit}
		}
		if got := v.res.Matrix.RowSum(name); got != want {
			return nil, &VerifyError{
				Text: "transition matrix",
				Err:  fmt.Errorf("%w: row %s sums to %d, want %d", ErrRowSum, name, got, want),
			}
		}
	}
	if err := v.res.Matrix.CheckRows(want); err != nil {
		return nil, &VerifyError{Text: "transition matrix", Err: err}
	}
	opts.Logger.WithFields(logrus.Fields{
		"axes":      v.res.Axes,
		"suborbits": v.res.Suborbits,
	}).Info("certificate verified")
	return v.res, nil
}

func fail(r Record, err error) error {
	return &VerifyError{Line: r.Line, Text: r.String(), Err: err}
}

func (v *verifier) parse(r Record) (group.Element, error) {
	g, err := v.b.Parse(r.Element)
	if err != nil {
		return nil, fail(r, err)
	}
	return g, nil
}

// collectAxes maps every axis name to base axis * g. Every axis must reduce
// to its own name, so distinct names are distinct orbits.
func (v *verifier) collectAxes(cert *Certificate) error {
	for _, r := range cert.Records {
		if r.Kind != KindAxis {
			continue
		}
		if _, ok := v.axes[r.Name]; ok {
			return fail(r, ErrDuplicateAxis)
		}
		g, err := v.parse(r)
		if err != nil {
			return err
		}
		ax := v.b.Act(v.b.BaseAxis(), g)
		name, _, err := v.b.Reduce(ax)
		if err != nil {
			return fail(r, err)
		}
		if name != r.Name {
			return fail(r, fmt.Errorf("%w: axis reduces to %s", ErrWrongOrbit, name))
		}
		v.axes[r.Name] = ax
	}
	return nil
}

func (v *verifier) checkBlocks(cert *Certificate) error {
	var bl *block
	for _, r := range cert.Records {
		if r.Kind != KindAxis && bl == nil {
			return fail(r, ErrMissingAxis)
		}
		var err error
		switch r.Kind {
		case KindAxis:
			if bl != nil {
				return fail(r, ErrNestedAxis)
			}
			bl = &block{rec: r, name: r.Name, ax: v.axes[r.Name]}
		case KindCent:
			err = v.checkCent(bl, r)
		case KindOrb:
			err = v.checkOrb(bl, r)
		case KindTau1, KindTau2:
			err = v.checkTau(bl, r)
		case KindEnd:
			if !bl.tausComplete() {
				return fail(*bl.orb, ErrMissingTau)
			}
			if !v.opts.SkipOrbits {
				err = v.checkOrbits(bl, r)
			}
			v.res.Suborbits += len(bl.orbs)
			bl = nil
		default:
			err = fail(r, ErrSyntax)
		}
		if err != nil {
			return err
		}
	}
	if bl != nil {
		return fail(bl.rec, ErrUnclosedBlock)
	}
	return nil
}

func (v *verifier) checkCent(bl *block, r Record) error {
	g, err := v.parse(r)
	if err != nil {
		return err
	}
	if !v.b.Contains(g) {
		return fail(r, group.ErrNotInGroup)
	}
	if !v.b.EqualAxes(v.b.Act(bl.ax, g), bl.ax) {
		return fail(r, ErrNotCentralizing)
	}
	if r.Priority == 1 {
		bl.cents = append(bl.cents, g)
	}
	return nil
}

func (v *verifier) checkOrb(bl *block, r Record) error {
	if !bl.tausComplete() {
		return fail(*bl.orb, ErrMissingTau)
	}
	g, err := v.parse(r)
	if err != nil {
		return err
	}
	if !v.b.Contains(g) {
		return fail(r, group.ErrNotInGroup)
	}
	if r.Size == 0 {
		return fail(r, ErrBadSize)
	}
	rec := r
	bl.orb = &rec
	bl.ax1 = v.b.Act(bl.ax, g)
	bl.taus = [2]bool{}
	bl.orbs = append(bl.orbs, orbRecord{rec: r, g: g})
	return nil
}

func (v *verifier) checkTau(bl *block, r Record) error {
	e := r.tauExponent()
	if bl.orb == nil || bl.taus[e-1] {
		return fail(r, ErrDanglingTau)
	}
	if e == 2 && !bl.taus[0] {
		return fail(r, fmt.Errorf("%w: tau2 before tau1", ErrDanglingTau))
	}
	target, ok := v.axes[r.Name]
	if !ok && v.names[r.Name] {
		return fail(r, fmt.Errorf("%w: %s", ErrMissingOrbit, r.Name))
	}
	if !ok {
		return fail(r, group.ErrUnknownName)
	}
	h, err := v.parse(r)
	if err != nil {
		return err
	}
	if !v.b.Contains(h) {
		return fail(r, group.ErrNotInGroup)
	}
	if !v.b.EqualAxes(v.b.Act(v.b.Triality(bl.ax1, e), h), target) {
		return fail(r, ErrTrialityMismatch)
	}
	bl.taus[e-1] = true
	v.res.Matrix.Add(bl.name, r.Name, bl.orb.Size)
	return nil
}

// checkOrbits recomputes the orbits of the priority 1 generators on the
// admissible points and matches them with the orb records of the block.
func (v *verifier) checkOrbits(bl *block, end Record) error {
	if len(bl.cents) == 0 {
		return fail(bl.rec, fmt.Errorf("%w: no priority 1 generators", ErrOrbitMismatch))
	}
	ix, err := AdmissibleOrbits(v.b, bl.cents)
	if err != nil {
		return fail(bl.rec, err)
	}
	admissible := Admissible(v.b)
	base := v.b.BasePoint()
	seen := make(map[int]bool)
	for _, o := range bl.orbs {
		p := v.b.Matrix(v.b.Inverse(o.g)).Apply(base)
		if !admissible(p) {
			return fail(o.rec, fmt.Errorf("%w: %s is not admissible", ErrOrbitMismatch, p))
		}
		i, err := ix.OrbitOf(p)
		if err != nil {
			return fail(o.rec, fmt.Errorf("%w: %v", ErrOrbitMismatch, err))
		}
		if seen[i] {
			return fail(o.rec, fmt.Errorf("%w: orbit of %s listed twice", ErrOrbitMismatch, p))
		}
		seen[i] = true
		if size, _ := ix.OrbitSize(p); size != o.rec.Size {
			return fail(o.rec, fmt.Errorf("%w: orbit of %s has size %d", ErrOrbitMismatch, p, size))
		}
	}
	if len(seen) != ix.Len() {
		return fail(end, fmt.Errorf("%w: %d of %d orbits listed", ErrOrbitMismatch, len(seen), ix.Len()))
	}
	return nil
}
