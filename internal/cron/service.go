// Package cron runs the recurring maintenance jobs: catalog refresh and the
// daily usage snapshot.
package cron

import (
	"context"
	"log"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// Job is a named task on a cron schedule. ID is assigned at registration.
type Job struct {
	ID    string
	Name  string
	Expr  string
	Run   func(ctx context.Context) error
	State JobState
}

type JobState struct {
	LastRunAt  time.Time
	LastStatus string
	LastError  string
}

type Service struct {
	mu       sync.Mutex
	jobs     []*Job
	cron     *rcron.Cron
	entryMap map[string]rcron.EntryID
	cancel   context.CancelFunc
}

func NewService() *Service {
	return &Service{entryMap: make(map[string]rcron.EntryID)}
}

// AddJob registers a task. Must be called before Start.
func (s *Service) AddJob(name, expr string, run func(ctx context.Context) error) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := &Job{
		ID:   name,
		Name: name,
		Expr: expr,
		Run:  run,
	}
	s.jobs = append(s.jobs, job)
	return job
}

func (s *Service) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	s.cron = rcron.New()
	for _, job := range s.jobs {
		s.registerJob(runCtx, job)
	}
	s.mu.Unlock()

	s.cron.Start()
	log.Printf("[cron] started with %d jobs", len(s.jobs))
	return nil
}

func (s *Service) registerJob(ctx context.Context, job *Job) {
	id, err := s.cron.AddFunc(job.Expr, func() {
		s.executeJob(ctx, job)
	})
	if err != nil {
		log.Printf("[cron] failed to register job %s (%s): %v", job.Name, job.Expr, err)
		return
	}
	s.entryMap[job.ID] = id
}

func (s *Service) executeJob(ctx context.Context, job *Job) {
	log.Printf("[cron] executing job %s", job.Name)
	err := job.Run(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	job.State.LastRunAt = time.Now()
	if err != nil {
		job.State.LastStatus = "error"
		job.State.LastError = err.Error()
		log.Printf("[cron] job %s error: %v", job.Name, err)
		return
	}
	job.State.LastStatus = "ok"
	job.State.LastError = ""
}

func (s *Service) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	if s.cron != nil {
		stopCtx := s.cron.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(5 * time.Second):
			log.Printf("[cron] stop timeout waiting for running jobs")
		}
	}
	log.Printf("[cron] stopped")
}

func (s *Service) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	return out
}
