// Package workerpool runs independent tasks on a fixed set of goroutines.
// Tasks are grouped in rooms; a room collects the results of its tasks in
// submission order.
package workerpool

import (
	"context"
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/cpu"
)

type WorkerPool struct {
	config    Config
	taskQueue chan Task
	workers   sync.WaitGroup
	closeOnce sync.Once
}

type Config struct {
	// WorkerCount defaults to the number of logical CPUs.
	WorkerCount  int
	GlobalBuffer int
}

type Room struct {
	resultMutex sync.Mutex
	results     []Result
	wg          sync.WaitGroup
	wp          *WorkerPool
}

// Result is the outcome of one task.
type Result struct {
	Value any
	Err   error
}

type Task struct {
	run   func() (any, error)
	room  *Room
	index int
}

// DefaultWorkerCount returns the number of logical CPUs.
func DefaultWorkerCount() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return runtime.NumCPU()
	}
	return n
}

func NewWorkerPool(config Config) *WorkerPool {
	if config.WorkerCount < 1 {
		config.WorkerCount = DefaultWorkerCount()
	}

	if config.GlobalBuffer < 1 {
		config.GlobalBuffer = 10000
	}

	wp := &WorkerPool{
		config:    config,
		taskQueue: make(chan Task, config.GlobalBuffer),
	}

	wp.workers.Add(config.WorkerCount)
	for i := 0; i < config.WorkerCount; i++ {
		go wp.worker()
	}

	return wp
}

// WorkerCount returns the number of workers.
func (wp *WorkerPool) WorkerCount() int { return wp.config.WorkerCount }

func (wp *WorkerPool) worker() {
	defer wp.workers.Done()
	for t := range wp.taskQueue {
		v, err := t.run()
		ro := t.room
		ro.resultMutex.Lock()
		ro.results[t.index] = Result{Value: v, Err: err}
		ro.resultMutex.Unlock()
		ro.wg.Done()
	}
}

// Close stops the workers after the queued tasks have run. No task may be
// added afterwards.
func (wp *WorkerPool) Close() {
	wp.closeOnce.Do(func() {
		close(wp.taskQueue)
		wp.workers.Wait()
	})
}

func (wp *WorkerPool) CreateRoom() *Room {
	return &Room{wp: wp}
}

// NewTask queues job, waiting while the global buffer is full.
func (ro *Room) NewTask(job func() (any, error)) {
	ro.resultMutex.Lock()
	index := len(ro.results)
	ro.results = append(ro.results, Result{})
	ro.resultMutex.Unlock()

	ro.wg.Add(1)
	ro.wp.taskQueue <- Task{run: job, room: ro, index: index}
}

// Collect waits for all tasks of the room and returns their results in the
// order the tasks were added.
func (ro *Room) Collect() []Result {
	ro.wg.Wait()
	ro.resultMutex.Lock()
	defer ro.resultMutex.Unlock()
	out := make([]Result, len(ro.results))
	copy(out, ro.results)
	return out
}

// Map runs fn for every item on the pool and returns the results in item
// order. The first failing task cancels the context passed to the others,
// tasks not yet started are skipped and its error is returned.
func Map[T, R any](ctx context.Context, wp *WorkerPool, items []T, fn func(context.Context, int, T) (R, error)) ([]R, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		once     sync.Once
		firstErr error
	)
	room := wp.CreateRoom()
	for i, item := range items {
		i, item := i, item
		room.NewTask(func() (any, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			r, err := fn(ctx, i, item)
			if err != nil {
				once.Do(func() {
					firstErr = err
					cancel()
				})
			}
			return r, err
		})
	}

	results := room.Collect()
	if firstErr != nil {
		return nil, firstErr
	}
	out := make([]R, len(results))
	for i, r := range results {
		if r.Err != nil {
			return nil, r.Err
		}
		if v, ok := r.Value.(R); ok {
			out[i] = v
		}
	}
	return out, nil
}
