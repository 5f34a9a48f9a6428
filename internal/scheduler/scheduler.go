package scheduler

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Task is one registered recurring job.
type Task struct {
	Name      string
	Interval  time.Duration
	Handler   func() error
	LastRun   time.Time
	NextRun   time.Time
	RunCount  int64
	LastError error
}

// Scheduler drives recurring maintenance jobs in-process. It is only the
// trigger: handlers own their semantics (and their own concurrency control),
// so each is equally callable on demand.
type Scheduler struct {
	tasks  []*Task
	mu     sync.RWMutex
	logger zerolog.Logger
	stop   chan struct{}
	wg     sync.WaitGroup
}

// New creates a scheduler
func New(logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		tasks:  make([]*Task, 0),
		logger: logger,
		stop:   make(chan struct{}),
	}
}

// Register adds a recurring task. The first run happens one interval from now.
func (s *Scheduler) Register(name string, interval time.Duration, handler func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = append(s.tasks, &Task{
		Name:     name,
		Interval: interval,
		Handler:  handler,
		NextRun:  time.Now().Add(interval),
	})

	s.logger.Info().Str("task", name).Dur("interval", interval).Msg("scheduled task registered")
}

// Start launches the background ticking goroutine.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case now := <-ticker.C:
				s.tick(now)
			}
		}
	}()
	s.logger.Info().Msg("scheduler started")
}

// Stop halts the scheduler and waits for the ticking goroutine to exit.
func (s *Scheduler) Stop() {
	close(s.stop)
	s.wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
}

// tick runs every task whose NextRun has passed. Handlers run outside the
// lock; task bookkeeping is written under it, since GetTasks reads the same
// fields concurrently.
func (s *Scheduler) tick(now time.Time) {
	s.mu.Lock()
	due := make([]*Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		if !now.Before(task.NextRun) {
			due = append(due, task)
		}
	}
	s.mu.Unlock()

	for _, task := range due {
		s.logger.Info().Str("task", task.Name).Msg("running scheduled task")

		err := task.Handler()
		if err != nil {
			s.logger.Error().Err(err).Str("task", task.Name).Msg("scheduled task error")
		}

		s.mu.Lock()
		task.LastError = err
		task.LastRun = now
		task.NextRun = now.Add(task.Interval)
		task.RunCount++
		s.mu.Unlock()
	}
}

// TaskInfo is the JSON view of a task for the admin endpoint.
type TaskInfo struct {
	Name      string    `json:"name"`
	Interval  string    `json:"interval"`
	LastRun   time.Time `json:"last_run"`
	NextRun   time.Time `json:"next_run"`
	RunCount  int64     `json:"run_count"`
	LastError *string   `json:"last_error,omitempty"`
}

// GetTasks returns registered task state for monitoring.
func (s *Scheduler) GetTasks() []TaskInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]TaskInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		info := TaskInfo{
			Name:     t.Name,
			Interval: t.Interval.String(),
			LastRun:  t.LastRun,
			NextRun:  t.NextRun,
			RunCount: t.RunCount,
		}
		if t.LastError != nil {
			errMsg := t.LastError.Error()
			info.LastError = &errMsg
		}
		result = append(result, info)
	}
	return result
}
