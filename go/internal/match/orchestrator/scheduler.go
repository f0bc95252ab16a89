package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
}

type task struct {
	key string
	fn  func()
}

type scheduled struct {
	timer clockwork.Timer
	stop  chan struct{}
}

// Scheduler runs keyed one-shot tasks. Scheduling a key that is already
// armed replaces the earlier task; cancelling a key guarantees its task will
// not start afterwards. Fired tasks run on a fixed pool of workers.
type Scheduler struct {
	clock Clock

	mu     sync.Mutex
	timers map[string]*scheduled

	workCh chan task
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler starts numWorkers workers that execute fired tasks.
func NewScheduler(clock Clock, numWorkers int) *Scheduler {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		clock:  clock,
		timers: make(map[string]*scheduled),
		workCh: make(chan task, numWorkers*2),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < numWorkers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	return s
}

// Schedule arms fn to run once after d, replacing any task armed for key.
func (s *Scheduler) Schedule(key string, d time.Duration, fn func()) {
	entry := &scheduled{timer: s.clock.NewTimer(d), stop: make(chan struct{})}
	if !s.replaceTimer(key, entry) {
		stopAndDrainTimer(entry.timer)
		return
	}

	go func() {
		defer s.wg.Done()
		select {
		case <-entry.timer.Chan():
			// Lost a race with Cancel or a replacement.
			if !s.removeTimer(key, entry) {
				return
			}
			select {
			case s.workCh <- task{key: key, fn: fn}:
				log.Debug().Str("key", key).Msg("timer fired - enqueued for processing")
			case <-s.ctx.Done():
			}
		case <-entry.stop:
		case <-s.ctx.Done():
			stopAndDrainTimer(entry.timer)
			s.removeTimer(key, entry)
		}
	}()

	log.Debug().Str("key", key).Dur("duration", d).Msg("scheduled one-shot timer")
}

// Cancel disarms the task for key. It reports whether a task was armed.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.timers[key]
	if !ok {
		return false
	}
	stopAndDrainTimer(entry.timer)
	close(entry.stop)
	delete(s.timers, key)
	log.Debug().Str("key", key).Msg("cancelled existing timer")
	return true
}

// Pending reports whether a task is armed for key.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[key]
	return ok
}

// Len returns the number of armed tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Close disarms every task and waits for the workers to finish.
func (s *Scheduler) Close() {
	s.cancel()

	s.mu.Lock()
	for key, entry := range s.timers {
		stopAndDrainTimer(entry.timer)
		close(entry.stop)
		delete(s.timers, key)
	}
	s.mu.Unlock()

	s.wg.Wait()
	log.Debug().Msg("scheduler shut down")
}

func (s *Scheduler) worker(workerID int) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case t := <-s.workCh:
			log.Debug().Str("key", t.key).Int("worker_id", workerID).Msg("worker running task")
			t.fn()
		}
	}
}

// replaceTimer stores entry for key, stopping whatever was armed before. It
// refuses once the scheduler is closed.
func (s *Scheduler) replaceTimer(key string, entry *scheduled) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return false
	}
	s.wg.Add(1)
	if existing, ok := s.timers[key]; ok {
		stopAndDrainTimer(existing.timer)
		close(existing.stop)
		log.Debug().Str("key", key).Msg("replaced existing timer")
	}
	s.timers[key] = entry
	return true
}

// removeTimer deletes key only while it still maps to entry.
func (s *Scheduler) removeTimer(key string, entry *scheduled) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timers[key] != entry {
		return false
	}
	delete(s.timers, key)
	return true
}

// stopAndDrainTimer safely stops a timer and drains its channel.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
