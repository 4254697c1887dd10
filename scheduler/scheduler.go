// scheduler/scheduler.go

// Package scheduler owns every background refresh job in one table keyed by
// connection id, so disabling or deleting a connection is one call.
package scheduler

import (
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	logger "github.com/controlcoreio/control-core-012025-sub001/logging"
)

// Timer is the part of *time.Timer the scheduler needs.
type Timer interface {
	Stop() bool
}

// AfterFunc matches time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

// JobInfo is a read-only view of a scheduled job.
type JobInfo struct {
	ConnectionID string    `json:"connection_id"`
	Key          string    `json:"key"`
	Due          time.Time `json:"due"`
}

type job struct {
	seq   uint64
	due   time.Time
	timer Timer
}

// Scheduler runs one-shot refresh jobs keyed by (connection, key) and
// periodic cron jobs.
type Scheduler struct {
	mu      sync.Mutex
	jobs    map[string]map[string]*job
	seq     uint64
	stopped bool

	afterFunc AfterFunc
	now       func() time.Time
	cron      *cron.Cron
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithAfterFunc replaces time.AfterFunc as the timer source.
func WithAfterFunc(fn AfterFunc) Option {
	return func(s *Scheduler) { s.afterFunc = fn }
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New returns a scheduler whose cron jobs skip a run while the previous
// one is still going and recover from panics.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		jobs: make(map[string]map[string]*job),
		afterFunc: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
		now: time.Now,
		cron: cron.New(
			cron.WithChain(
				cron.SkipIfStillRunning(cronLogger{}),
				cron.Recover(cronLogger{}),
			),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule runs fn once after delay. A job already scheduled under the same
// connection and key is replaced.
func (s *Scheduler) Schedule(connectionID, key string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	byKey, ok := s.jobs[connectionID]
	if !ok {
		byKey = make(map[string]*job)
		s.jobs[connectionID] = byKey
	}
	if prev, ok := byKey[key]; ok {
		prev.timer.Stop()
	}

	s.seq++
	j := &job{seq: s.seq, due: s.now().Add(delay)}
	byKey[key] = j
	seq := j.seq
	j.timer = s.afterFunc(delay, func() {
		if !s.claim(connectionID, key, seq) {
			return
		}
		fn()
	})
}

// claim removes a firing job from the table unless it was cancelled or
// replaced in the meantime.
func (s *Scheduler) claim(connectionID, key string, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	byKey := s.jobs[connectionID]
	j, ok := byKey[key]
	if !ok || j.seq != seq {
		return false
	}
	delete(byKey, key)
	if len(byKey) == 0 {
		delete(s.jobs, connectionID)
	}
	return true
}

// Cancel stops one job and reports whether it was pending.
func (s *Scheduler) Cancel(connectionID, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	byKey := s.jobs[connectionID]
	j, ok := byKey[key]
	if !ok {
		return false
	}
	j.timer.Stop()
	delete(byKey, key)
	if len(byKey) == 0 {
		delete(s.jobs, connectionID)
	}
	return true
}

// CancelConnection stops every job of a connection and returns how many
// were pending.
func (s *Scheduler) CancelConnection(connectionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	byKey := s.jobs[connectionID]
	for _, j := range byKey {
		j.timer.Stop()
	}
	delete(s.jobs, connectionID)
	if len(byKey) > 0 {
		logger.Debug("Refresh jobs cancelled", zap.String("connectionID", connectionID), zap.Int("jobs", len(byKey)))
	}
	return len(byKey)
}

// Jobs lists pending jobs ordered by due time.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	out := make([]JobInfo, 0)
	for connID, byKey := range s.jobs {
		for key, j := range byKey {
			out = append(out, JobInfo{ConnectionID: connID, Key: key, Due: j.due})
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Due.Equal(out[j].Due) {
			return out[i].Due.Before(out[j].Due)
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Len counts pending jobs.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, byKey := range s.jobs {
		n += len(byKey)
	}
	return n
}

func (s *Scheduler) ConnectionJobs(connectionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs[connectionID])
}

// AddPeriodic registers a cron job, e.g. "@every 30s".
func (s *Scheduler) AddPeriodic(spec, name string, fn func()) error {
	_, err := s.cron.AddFunc(spec, func() {
		logger.Debug("Running periodic job", zap.String("job", name))
		fn()
	})
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Info("Scheduler started")
}

// Stop cancels every pending job and waits up to timeout for a running
// periodic job to finish.
func (s *Scheduler) Stop(timeout time.Duration) {
	s.mu.Lock()
	s.stopped = true
	for _, byKey := range s.jobs {
		for _, j := range byKey {
			j.timer.Stop()
		}
	}
	s.jobs = make(map[string]map[string]*job)
	s.mu.Unlock()

	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
		logger.Info("Scheduler stopped")
	case <-time.After(timeout):
		logger.Warn("Scheduler shutdown timed out")
	}
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Log.Sugar().Debugw(msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
