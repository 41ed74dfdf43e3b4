// Command axisorbits computes the axis orbit tables, writes and checks
// certificates and prints the stored tables.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/i5heu/axis-orbits"
	"github.com/i5heu/axis-orbits/internal/config"
	"github.com/i5heu/axis-orbits/pkg/logging"
	"github.com/i5heu/axis-orbits/pkg/symaxes"
	"github.com/i5heu/axis-orbits/pkg/tablestore"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	dataPath   string
	storeName  string
	logLevel   string
	logJSON    bool
	inner      int
	axisSize   int

	conf config.Config
	log  *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "axisorbits",
	Short: "Axis orbit tables and triality certificates",
	Long: `axisorbits enumerates the orbits of the centralizer of every named axis
on the admissible vectors, derives the transition matrix of the triality
element and writes a certificate that can be checked independently.

Tables are kept in the data directory and reused by later runs.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath, !cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("data") {
			c.DataPath = dataPath
		}
		if cmd.Flags().Changed("store") {
			c.Store = storeName
		}
		if cmd.Flags().Changed("log-level") {
			c.LogLevel = logLevel
		}
		if cmd.Flags().Changed("json") {
			c.LogJSON = logJSON
		}
		if cmd.Flags().Changed("inner") {
			c.Model.Inner = inner
		}
		if cmd.Flags().Changed("axis-size") {
			c.Model.AxisSize = axisSize
		}
		conf = c

		if log, err = logging.New(conf.LogLevel, conf.LogJSON); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "axisorbits.yaml", "configuration file")
	pf.StringVar(&dataPath, "data", "", "directory of the table store")
	pf.StringVar(&storeName, "store", "", "table store backend: badger, badger-memory, sqlite or memory")
	pf.StringVar(&logLevel, "log-level", "", "log level")
	pf.BoolVar(&logJSON, "json", false, "log as JSON")
	pf.IntVar(&inner, "inner", 0, "number of inner letters of the model")
	pf.IntVar(&axisSize, "axis-size", 0, "size of an axis of the model")

	rootCmd.AddCommand(computeCmd, makeCertCmd, checkCertCmd, showCmd, infoCmd)
}

// openPipeline starts a pipeline on the configured model and store.
func openPipeline(ctx context.Context) (*axisorbits.Pipeline, error) {
	model, err := symaxes.New(conf.Model.Inner, conf.Model.AxisSize)
	if err != nil {
		return nil, err
	}
	p, err := axisorbits.New(axisorbits.Config{
		Backend: model,
		StoreConfig: tablestore.Config{
			Backend:       conf.Store,
			Path:          conf.DataPath,
			MinimumFreeGB: conf.MinimumFreeGB,
			Logger:        log,
		},
		Seed:                  *conf.Seed,
		Workers:               conf.Workers,
		SampleSize:            conf.SampleSize,
		CentralizerGenerators: conf.CentralizerGenerators,
		Logger:                log,
	})
	if err != nil {
		return nil, err
	}
	if err := p.Start(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// withPipeline runs fn on an open pipeline and closes it afterwards.
func withPipeline(cmd *cobra.Command, fn func(ctx context.Context, p *axisorbits.Pipeline) error) error {
	ctx := cmd.Context()
	p, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	runErr := fn(ctx, p)
	if err := p.Close(context.Background()); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
