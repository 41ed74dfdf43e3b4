package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/i5heu/axis-orbits"
	"github.com/i5heu/axis-orbits/pkg/certificate"
	"github.com/spf13/cobra"
)

var (
	recompute  bool
	certOut    string
	skipOrbits bool
	fromStore  bool
)

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Compute all tables and print them",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd, func(ctx context.Context, p *axisorbits.Pipeline) error {
			if recompute {
				if err := p.Recompute(ctx); err != nil {
					return err
				}
			}
			if err := p.Compute(ctx); err != nil {
				return err
			}
			return p.Report(ctx, cmd.OutOrStdout())
		})
	},
}

var makeCertCmd = &cobra.Command{
	Use:   "make-cert",
	Short: "Build the certificate and write it to a file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd, func(ctx context.Context, p *axisorbits.Pipeline) error {
			cert, err := p.MakeCertificate(ctx)
			if err != nil {
				return err
			}
			path := conf.Certificate
			if certOut != "" {
				path = certOut
			}
			if path == "-" {
				_, err := cert.WriteTo(cmd.OutOrStdout())
				return err
			}
			if err := os.WriteFile(path, []byte(cert.String()), 0o644); err != nil {
				return err
			}
			log.WithField("path", path).Info("certificate written")
			return nil
		})
	},
}

var checkCertCmd = &cobra.Command{
	Use:   "check-cert [file]",
	Short: "Verify a certificate",
	Long: `Verifies the certificate in file, the configured certificate file when no
file is given, or the certificate kept in the table store with --stored.
If the transition matrix has been computed, the certificate must agree
with it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd, func(ctx context.Context, p *axisorbits.Pipeline) error {
			var (
				cert *certificate.Certificate
				err  error
			)
			if fromStore {
				cert, err = p.StoredCertificate(ctx)
			} else {
				path := conf.Certificate
				if len(args) == 1 {
					path = args[0]
				}
				cert, err = readCertificate(path)
			}
			if err != nil {
				return err
			}

			res, err := p.CheckCertificate(ctx, cert, certificate.VerifyOptions{SkipOrbits: skipOrbits, Logger: log})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "certificate valid: %d axes, %d sub-orbits, %s admissible points\n",
				res.Axes, res.Suborbits, humanize.Comma(int64(res.Admissible)))
			fmt.Fprint(out, res.Matrix.String())
			return nil
		})
	},
}

func readCertificate(path string) (*certificate.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return certificate.Parse(bytes.NewReader(data))
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the tables, computing missing ones",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd, func(ctx context.Context, p *axisorbits.Pipeline) error {
			return p.Report(ctx, cmd.OutOrStdout())
		})
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the last run and the stored tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd, func(ctx context.Context, p *axisorbits.Pipeline) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Model:   inner=%d axis-size=%d names=%s\n",
				conf.Model.Inner, conf.Model.AxisSize, strings.Join(p.Backend().Names(), " "))
			fmt.Fprintf(out, "Store:   %s at %s\n", conf.Store, conf.DataPath)

			if man, err := p.Manifest(ctx); err == nil {
				fmt.Fprintf(out, "Last run: %s, %s (seed %d)\n", man.RunID, humanize.Time(man.Finished), man.Seed)
			} else {
				fmt.Fprintln(out, "Last run: none")
			}

			store, err := p.Store()
			if err != nil {
				return err
			}
			keys, err := store.Keys(ctx, "")
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "table\tsize")
			var total uint64
			for _, k := range keys {
				v, err := store.Get(ctx, k)
				if err != nil {
					return err
				}
				total += uint64(len(v))
				fmt.Fprintf(tw, "%s\t%s\n", k, humanize.Bytes(uint64(len(v))))
			}
			fmt.Fprintf(tw, "total\t%s\n", humanize.Bytes(total))
			return tw.Flush()
		})
	},
}

func init() {
	computeCmd.Flags().BoolVar(&recompute, "recompute", false, "remove the stored tables first")
	makeCertCmd.Flags().StringVarP(&certOut, "output", "o", "", "certificate file, - for stdout")
	checkCertCmd.Flags().BoolVar(&skipOrbits, "skip-orbits", false, "skip recomputing the sub-orbits")
	checkCertCmd.Flags().BoolVar(&fromStore, "stored", false, "check the certificate kept in the table store")
}
