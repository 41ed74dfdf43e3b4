package axisorbits

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
)

// Report writes the computed tables as aligned text. Tables that have not
// been computed yet are computed first.
func (p *Pipeline) Report(ctx context.Context, w io.Writer) error {
	sections := []func(context.Context, *tabwriter.Writer) error{
		p.reportOrbitSizes,
		p.reportSuborbits,
		p.reportTransitions,
		p.reportCentralizers,
	}
	for i, section := range sections {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		if err := section(ctx, tw); err != nil {
			return err
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) reportOrbitSizes(ctx context.Context, tw *tabwriter.Writer) error {
	sizes, err := p.OrbitSizes(ctx)
	if err != nil {
		return err
	}
	idx, err := p.Orbits(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(tw, "orbit\taxes\tsub-orbits\tsizes")
	for _, name := range p.backend.Names() {
		ss := idx[name].SortedSizes()
		parts := make([]string, len(ss))
		for i, s := range ss {
			parts[i] = humanize.Comma(int64(s))
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", name, humanize.BigComma(sizes[name]), len(ss), strings.Join(parts, " "))
	}
	return nil
}

func (p *Pipeline) reportSuborbits(ctx context.Context, tw *tabwriter.Writer) error {
	subs, err := p.Suborbits(ctx)
	if err != nil {
		return err
	}
	orders, err := p.CentralizerOrders(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(tw, "#\torbit\tsize\taxes\twatermark\ttau\ttau^2\tcentralizer")
	for i, s := range subs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.Number, s.Name, humanize.Comma(int64(s.Size)), humanize.BigComma(s.Axes),
			s.Watermark, s.Dest[0], s.Dest[1], humanize.BigComma(orders[i]))
	}
	return nil
}

func (p *Pipeline) reportTransitions(ctx context.Context, tw *tabwriter.Writer) error {
	m, err := p.Transitions(ctx)
	if err != nil {
		return err
	}
	names := p.backend.Names()
	fmt.Fprint(tw, "from\\to")
	for _, n := range names {
		fmt.Fprintf(tw, "\t%s", n)
	}
	fmt.Fprintln(tw, "\tsum")
	for _, src := range names {
		fmt.Fprint(tw, src)
		for _, dst := range names {
			fmt.Fprintf(tw, "\t%s", humanize.Comma(int64(m.Get(src, dst))))
		}
		fmt.Fprintf(tw, "\t%s\n", humanize.Comma(int64(m.RowSum(src))))
	}
	return nil
}

// reportCentralizers lists the class invariants of the recorded centralizer
// elements of every sub-orbit.
func (p *Pipeline) reportCentralizers(ctx context.Context, tw *tabwriter.Writer) error {
	subs, err := p.Suborbits(ctx)
	if err != nil {
		return err
	}
	b := p.backend
	fmt.Fprintln(tw, "#\telement\torder\tcharacter")
	for _, s := range subs {
		for _, c := range s.Centralizer {
			e, err := b.Parse(c)
			if err != nil {
				return fmt.Errorf("sub-orbit %d: %w", s.Number, err)
			}
			fmt.Fprintf(tw, "%d\t%s\t%d\t%d\n", s.Number, c, b.ElementOrder(e), b.Character(e))
		}
	}
	return nil
}
