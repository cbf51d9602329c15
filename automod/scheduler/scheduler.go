// Package scheduler runs moderation work on a fixed pool of workers while
// keeping events for the same actor strictly ordered: at most one event per
// actor is in flight, later events for that actor queue behind it, and
// different actors proceed in parallel.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
)

// Scheduler is a per-key serializing parallel scheduler over a fixed worker
// pool.
type Scheduler struct {
	maxConcurrency int

	do func(context.Context, *Task) error

	feeder chan *workItem
	out    chan struct{}

	lk     sync.Mutex
	active map[string][]*workItem

	ident string

	log *slog.Logger
}

// Task is one unit of moderation work. Exactly one payload field is set.
type Task struct {
	Message  any
	Nickname any
	Thread   any
}

type workItem struct {
	key     string
	val     *Task
	control string
}

func NewScheduler(maxC int, ident string, do func(context.Context, *Task) error) *Scheduler {
	s := &Scheduler{
		maxConcurrency: maxC,

		do: do,

		feeder: make(chan *workItem),
		active: make(map[string][]*workItem),
		out:    make(chan struct{}),

		ident: ident,

		log: slog.Default().With("system", "scheduler", "ident", ident),
	}

	for i := 0; i < maxC; i++ {
		go s.worker()
	}

	workersActive.WithLabelValues(ident).Set(float64(maxC))

	return s
}

// Shutdown stops all workers after they drain their current per-key queues.
func (s *Scheduler) Shutdown() {
	s.log.Info("shutting down scheduler")

	for i := 0; i < s.maxConcurrency; i++ {
		s.feeder <- &workItem{control: "stop"}
	}

	close(s.feeder)

	for i := 0; i < s.maxConcurrency; i++ {
		<-s.out
	}

	s.log.Info("scheduler shutdown complete")
}

// AddWork enqueues one task under the given key. If a task for the key is
// already in flight the new task queues behind it; otherwise it is handed to
// the next free worker. Blocks when all workers are busy and no task for the
// key is queued.
func (s *Scheduler) AddWork(ctx context.Context, key string, val *Task) error {
	itemsAdded.WithLabelValues(s.ident).Inc()
	t := &workItem{
		key: key,
		val: val,
	}
	s.lk.Lock()

	a, ok := s.active[key]
	if ok {
		s.active[key] = append(a, t)
		s.lk.Unlock()
		return nil
	}

	s.active[key] = []*workItem{}
	s.lk.Unlock()

	select {
	case s.feeder <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) worker() {
	for work := range s.feeder {
		for work != nil {
			if work.control == "stop" {
				s.out <- struct{}{}
				return
			}

			if err := s.do(context.TODO(), work.val); err != nil {
				s.log.Error("task handler failed", "err", err)
			}
			itemsProcessed.WithLabelValues(s.ident).Inc()

			s.lk.Lock()
			rem, ok := s.active[work.key]
			if !ok {
				s.log.Error("should always have an 'active' entry if a worker is processing a job")
			}

			if len(rem) == 0 {
				delete(s.active, work.key)
				work = nil
			} else {
				work = rem[0]
				s.active[work.key] = rem[1:]
			}
			s.lk.Unlock()
		}
	}
}
