package glesutil

import (
	"errors"
	"sync"
)

// ErrLoopStopped is returned by ScheduleJob after Stop.
var ErrLoopStopped = errors.New("glesutil: loop stopped")

type Job func()

// Loop hands work from goroutines that must not touch the script engine,
// such as GC cleanups, to the goroutine that owns it.
type Loop struct {
	mu      sync.Mutex
	jobs    []Job
	stopped bool
}

func NewLoop() *Loop {
	return &Loop{}
}

// ScheduleJob queues j. It never blocks, so it is safe from a cleanup.
func (l *Loop) ScheduleJob(j Job) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return ErrLoopStopped
	}
	l.jobs = append(l.jobs, j)
	return nil
}

// IsLoopPending reports whether jobs are waiting.
func (l *Loop) IsLoopPending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.jobs) > 0
}

// Run executes all pending jobs, including jobs scheduled while running, and
// returns how many ran. Call it from the engine goroutine only.
func (l *Loop) Run() int {
	n := 0
	for {
		l.mu.Lock()
		jobs := l.jobs
		l.jobs = nil
		l.mu.Unlock()

		if len(jobs) == 0 {
			return n
		}
		for _, job := range jobs {
			job()
			n++
		}
	}
}

// Stop discards pending jobs and rejects new ones.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.jobs = nil
	l.mu.Unlock()
}
