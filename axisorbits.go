// Package axisorbits enumerates the orbits of the subgroup G of a group M on
// axes, refined by the linear action of G on GF(2)^n, and produces the orbit
// tables, the transition matrix of the triality element and a certificate
// that can be checked without repeating the search.
//
// A Pipeline runs the computation in stages. Every stage stores its tables in
// a tablestore.Store and loads them from there on the next run, so stages are
// only recomputed after their tables were removed.
package axisorbits

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/i5heu/axis-orbits/pkg/group"
	"github.com/i5heu/axis-orbits/pkg/tablestore"
	workerpool "github.com/i5heu/axis-orbits/pkg/workerPool"
	"github.com/shirou/gopsutil/mem"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotStarted = errors.New("axisorbits: pipeline not started")
	ErrClosed     = errors.New("axisorbits: pipeline closed")
	ErrNoBackend  = errors.New("axisorbits: no backend configured")
)

// Pipeline owns the table store, the worker pool and the tables loaded so
// far.
type Pipeline struct {
	log     *logrus.Logger
	config  Config
	backend group.Backend

	storeMu  sync.RWMutex
	store    tablestore.Store
	ownStore bool
	pool     *workerpool.WorkerPool

	tablesMu sync.Mutex
	tables   map[string]any

	started   atomic.Bool
	startOnce sync.Once
	closeOnce sync.Once
}

// New constructs a pipeline. New does not open the store; call Start.
func New(conf Config) (*Pipeline, error) {
	if conf.Backend == nil {
		return nil, ErrNoBackend
	}
	conf.applyDefaults()
	return &Pipeline{
		log:     conf.Logger,
		config:  conf,
		backend: conf.Backend,
		tables:  make(map[string]any),
	}, nil
}

// Start opens the store and the worker pool. Only the first call has
// effect.
func (p *Pipeline) Start(ctx context.Context) error {
	var startErr error
	p.startOnce.Do(func() {
		if err := ctx.Err(); err != nil {
			startErr = err
			return
		}
		store := p.config.Store
		if store == nil {
			s, err := tablestore.Open(p.config.StoreConfig)
			if err != nil {
				startErr = fmt.Errorf("open store: %w", err)
				return
			}
			store = s
			p.ownStore = true
		}
		p.storeMu.Lock()
		p.store = store
		p.storeMu.Unlock()

		p.pool = workerpool.NewWorkerPool(workerpool.Config{WorkerCount: p.config.Workers})
		p.started.Store(true)
		p.log.WithFields(logrus.Fields{
			"names":   p.backend.Names(),
			"workers": p.pool.WorkerCount(),
		}).Info("pipeline started")
	})
	return startErr
}

// Close stops the worker pool and closes the store if Start opened it.
// Close is idempotent.
func (p *Pipeline) Close(ctx context.Context) error {
	var closeErr error
	p.closeOnce.Do(func() {
		p.storeMu.Lock()
		store := p.store
		p.store = nil
		p.storeMu.Unlock()
		if p.pool != nil {
			p.pool.Close()
		}
		if store != nil && p.ownStore {
			if err := store.Close(); err != nil {
				closeErr = fmt.Errorf("close store: %w", err)
			}
		}
		p.log.Debug("pipeline closed")
	})
	return closeErr
}

// Backend returns the group backend.
func (p *Pipeline) Backend() group.Backend { return p.backend }

// Store returns the table store.
func (p *Pipeline) Store() (tablestore.Store, error) {
	if !p.started.Load() {
		return nil, ErrNotStarted
	}
	p.storeMu.RLock()
	s := p.store
	p.storeMu.RUnlock()
	if s == nil {
		return nil, ErrClosed
	}
	return s, nil
}

// Invalidate drops loaded tables so the next access reads them from the
// store again. Without keys every table is dropped.
func (p *Pipeline) Invalidate(keys ...string) {
	p.tablesMu.Lock()
	defer p.tablesMu.Unlock()
	if len(keys) == 0 {
		p.tables = make(map[string]any)
		return
	}
	for _, k := range keys {
		delete(p.tables, k)
	}
}

// Recompute removes every stored table, so the next Compute starts over.
func (p *Pipeline) Recompute(ctx context.Context) error {
	store, err := p.Store()
	if err != nil {
		return err
	}
	for _, prefix := range stagePrefixes {
		if err := tablestore.DeletePrefix(ctx, store, prefix); err != nil {
			return fmt.Errorf("recompute: %w", err)
		}
	}
	p.Invalidate()
	p.log.Info("stored tables removed")
	return nil
}

// Compute runs every stage and records the run in the manifest.
func (p *Pipeline) Compute(ctx context.Context) error {
	start := time.Now()
	stages := []struct {
		name string
		run  func(context.Context) error
	}{
		{"centralizers", func(ctx context.Context) error { _, err := p.Centralizers(ctx); return err }},
		{"orbits", func(ctx context.Context) error { _, err := p.Orbits(ctx); return err }},
		{"check_orbits", p.CheckOrbits},
		{"transitions", func(ctx context.Context) error { _, err := p.Transitions(ctx); return err }},
		{"orbit_sizes", func(ctx context.Context) error { _, err := p.OrbitSizes(ctx); return err }},
		{"suborbits", func(ctx context.Context) error { _, err := p.Suborbits(ctx); return err }},
		{"centralizer_orders", func(ctx context.Context) error { _, err := p.CentralizerOrders(ctx); return err }},
	}
	for _, st := range stages {
		t := time.Now()
		if err := st.run(ctx); err != nil {
			return fmt.Errorf("stage %s: %w", st.name, err)
		}
		p.log.WithFields(logrus.Fields{
			"stage":   st.name,
			"elapsed": time.Since(t),
		}).Info("stage done")
	}
	if err := p.writeManifest(ctx); err != nil {
		return err
	}
	fields := logrus.Fields{"elapsed": time.Since(start)}
	if vm, err := mem.VirtualMemory(); err == nil {
		fields["mem_used_percent"] = fmt.Sprintf("%.1f", vm.UsedPercent)
	}
	p.log.WithFields(fields).Info("computation complete")
	return nil
}

// rng returns the random source of task index of a stage.
func (p *Pipeline) rng(index int) *rand.Rand {
	return rand.New(rand.NewSource(p.config.Seed + int64(index)))
}

// cached returns the loaded table under key, calling load on first use.
func cached[T any](p *Pipeline, key string, load func() (T, error)) (T, error) {
	p.tablesMu.Lock()
	if v, ok := p.tables[key]; ok {
		p.tablesMu.Unlock()
		return v.(T), nil
	}
	p.tablesMu.Unlock()

	v, err := load()
	if err != nil {
		return v, err
	}
	p.tablesMu.Lock()
	p.tables[key] = v
	p.tablesMu.Unlock()
	return v, nil
}
