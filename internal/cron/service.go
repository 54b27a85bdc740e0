// Package cron runs the recurring maintenance jobs: the nightly mood
// rollup and audit log pruning.
package cron

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// Job is one named maintenance task on a cron schedule.
type Job struct {
	Name string
	Expr string
	Run  func() error
}

// JobState records the outcome of a job's latest run.
type JobState struct {
	LastRunAt  time.Time
	LastStatus string
	LastError  string
}

type Service struct {
	mu     sync.Mutex
	jobs   []Job
	states map[string]JobState
	cron   *rcron.Cron
	cancel context.CancelFunc
}

func NewService() *Service {
	return &Service{
		states: make(map[string]JobState),
	}
}

// Register adds a job. Must be called before Start.
func (s *Service) Register(name, expr string, run func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, Job{Name: name, Expr: expr, Run: run})
}

func (s *Service) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	jobs := make([]Job, len(s.jobs))
	copy(jobs, s.jobs)
	s.mu.Unlock()

	s.cron = rcron.New(rcron.WithSeconds())

	for _, job := range jobs {
		job := job
		if _, err := s.cron.AddFunc(job.Expr, func() { s.executeJob(job) }); err != nil {
			return fmt.Errorf("register job %s (%s): %w", job.Name, job.Expr, err)
		}
	}

	s.cron.Start()
	log.Printf("[cron] started with %d jobs", len(jobs))

	go func() {
		<-runCtx.Done()
		if s.cron != nil {
			s.cron.Stop()
		}
	}()

	return nil
}

func (s *Service) executeJob(job Job) {
	log.Printf("[cron] executing job %s", job.Name)
	err := job.Run()

	s.mu.Lock()
	defer s.mu.Unlock()

	state := JobState{LastRunAt: time.Now()}
	if err != nil {
		state.LastStatus = "error"
		state.LastError = err.Error()
		log.Printf("[cron] job %s error: %v", job.Name, err)
	} else {
		state.LastStatus = "ok"
	}
	s.states[job.Name] = state
}

// State returns the latest run state of a named job.
func (s *Service) State(name string) (JobState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[name]
	return state, ok
}

func (s *Service) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if s.cron != nil {
		s.cron.Stop()
	}
	log.Printf("[cron] stopped")
}
