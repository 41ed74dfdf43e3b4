package axisorbits

import (
	"github.com/i5heu/axis-orbits/pkg/group"
	"github.com/i5heu/axis-orbits/pkg/tablestore"
	"github.com/sirupsen/logrus"
)

// Defaults applied by New.
const (
	DefaultCentralizerGenerators = 10
	// DefaultSuborbitCentralizers is the number of random stabilizer
	// elements recorded per sub-orbit.
	DefaultSuborbitCentralizers = 3
)

// Config configures a Pipeline.
type Config struct {
	// Backend supplies the group arithmetic. Required.
	Backend group.Backend
	// Store holds the tables. When nil, Start opens one from StoreConfig
	// and Close closes it.
	Store       tablestore.Store
	StoreConfig tablestore.Config
	// Seed makes every random choice reproducible.
	Seed int64
	// Workers is the size of the worker pool, the number of logical CPUs
	// when zero.
	Workers int
	// SampleSize is the number of sample members kept per sub-orbit.
	SampleSize int
	// CentralizerGenerators is the number of random centralizer elements
	// drawn per named orbit.
	CentralizerGenerators int
	SuborbitCentralizers  int
	// Logger is an optional structured logger. If nil, logrus.New() is used.
	Logger *logrus.Logger
}

func (c *Config) applyDefaults() {
	if c.Logger == nil {
		c.Logger = logrus.New()
	}
	if c.StoreConfig.Logger == nil {
		c.StoreConfig.Logger = c.Logger
	}
	if c.CentralizerGenerators == 0 {
		c.CentralizerGenerators = DefaultCentralizerGenerators
	}
	if c.SuborbitCentralizers == 0 {
		c.SuborbitCentralizers = DefaultSuborbitCentralizers
	}
}
