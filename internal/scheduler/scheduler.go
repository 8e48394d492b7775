// Package scheduler implements the cron-driven recurring LPT launcher: a
// single-ticker fire loop built on robfig/cron/v3, reshaped around the
// structured document store's jobs collection and the same LPT dispatch
// path the Agent Loop uses.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kabsikabs/pinnokio/internal/observability"
	"github.com/kabsikabs/pinnokio/internal/store"
)

// LPTDispatcher is the job-tagged entry point of the long-process
// client, so scheduled jobs and agent-initiated tasks share one dispatch
// path while remaining distinguishable for the overlap guard.
type LPTDispatcher interface {
	DispatchForJob(ctx context.Context, jobID, taskType, threadKey, userID, companyID string, args map[string]any) (taskID string, err error)
}

// Spec describes the human-facing recurrence a job is saved with; it is
// translated to a standard 5-field cron expression on save.
type Spec struct {
	Frequency  string // "daily" | "weekly" | "monthly"
	Time       string // "HH:MM"
	DayOfWeek  int    // 0=Sunday, used when Frequency == "weekly"
	DayOfMonth int    // used when Frequency == "monthly"
	Timezone   string
}

// ToCronExpression translates a human Spec into a standard 5-field cron
// expression.
func (s Spec) ToCronExpression() (string, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(s.Time, "%d:%d", &hour, &minute); err != nil {
		return "", fmt.Errorf("invalid time %q: %w", s.Time, err)
	}

	switch s.Frequency {
	case "daily":
		return fmt.Sprintf("%d %d * * *", minute, hour), nil
	case "weekly":
		return fmt.Sprintf("%d %d * * %d", minute, hour, s.DayOfWeek), nil
	case "monthly":
		return fmt.Sprintf("%d %d %d * *", minute, hour, s.DayOfMonth), nil
	default:
		return "", fmt.Errorf("unsupported frequency %q", s.Frequency)
	}
}

// Scheduler owns the job CRUD surface and the single-ticker fire loop.
type Scheduler struct {
	docs   store.DocumentStore
	lpt    LPTDispatcher
	parser cron.Parser
	logger *slog.Logger

	mu       sync.Mutex
	stopCh   chan struct{}
	wg       sync.WaitGroup
	interval time.Duration
}

func New(docs store.DocumentStore, lpt LPTDispatcher, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		docs:     docs,
		lpt:      lpt,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		logger:   logger,
		interval: time.Minute,
	}
}

// SaveJob upserts a job keyed by the deterministic job_id
// "{mandate_path}_{job_type}", so resaving a mandate's schedule replaces
// its existing job instead of creating a duplicate.
func (s *Scheduler) SaveJob(ctx context.Context, mandatePath, jobType string, spec Spec, jobContext json.RawMessage) (*store.SchedulerJob, error) {
	cronExpr, err := spec.ToCronExpression()
	if err != nil {
		return nil, err
	}

	loc := time.UTC
	if spec.Timezone != "" {
		if l, err := time.LoadLocation(spec.Timezone); err == nil {
			loc = l
		}
	}

	schedule, err := s.parser.Parse(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}

	job := &store.SchedulerJob{
		JobID:          mandatePath + "_" + jobType,
		MandatePath:    mandatePath,
		JobType:        jobType,
		CronExpression: cronExpr,
		Timezone:       spec.Timezone,
		NextExecution:  schedule.Next(time.Now().In(loc)),
		Enabled:        true,
		ContextJSON:    jobContext,
	}

	if err := s.docs.SaveSchedulerJob(ctx, job); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}
	return job, nil
}

// DisableJob deletes the scheduler record. Task Records for prior runs
// are untouched; they remain for audit.
func (s *Scheduler) DisableJob(ctx context.Context, jobID string) error {
	return s.docs.DeleteSchedulerJob(ctx, jobID)
}

// ListJobs returns every saved job.
func (s *Scheduler) ListJobs(ctx context.Context) ([]*store.SchedulerJob, error) {
	return s.docs.ListSchedulerJobs(ctx)
}

// Start launches the single-ticker fire loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.stopCh != nil {
		s.mu.Unlock()
		return
	}
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.tick(ctx)
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	ch := s.stopCh
	s.stopCh = nil
	s.mu.Unlock()
	if ch != nil {
		close(ch)
	}
	s.wg.Wait()
}

// tick queries due jobs and fires each one that isn't already in flight,
// so a long-running prior execution suppresses the next scheduled fire
// instead of overlapping it.
func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now()
	due, err := s.docs.ListDueJobs(ctx, now)
	if err != nil {
		s.logger.Error("list due jobs failed", "error", err)
		return
	}

	for _, job := range due {
		if s.isInFlight(ctx, job.JobID) {
			s.logger.Debug("skipping tick, job already in flight", "job_id", job.JobID)
			continue
		}
		s.fire(ctx, job, now)
	}
}

func (s *Scheduler) isInFlight(ctx context.Context, jobID string) bool {
	latest, err := s.docs.LatestTaskForJob(ctx, jobID)
	if err != nil {
		s.logger.Warn("failed to check latest task for job, proceeding", "job_id", jobID, "error", err)
		return false
	}
	return latest != nil && !latest.Status.IsTerminal()
}

func (s *Scheduler) fire(ctx context.Context, job *store.SchedulerJob, now time.Time) {
	var jobCtx struct {
		UserID    string         `json:"user_id"`
		CompanyID string         `json:"company_id"`
		ThreadKey string         `json:"thread_key"`
		Args      map[string]any `json:"args"`
	}
	if err := json.Unmarshal(job.ContextJSON, &jobCtx); err != nil {
		s.logger.Error("malformed job context, skipping", "job_id", job.JobID, "error", err)
		return
	}

	if _, err := s.lpt.DispatchForJob(ctx, job.JobID, job.JobType, jobCtx.ThreadKey, jobCtx.UserID, jobCtx.CompanyID, jobCtx.Args); err != nil {
		s.logger.Error("scheduled task dispatch failed", "job_id", job.JobID, "error", err)
	}
	observability.ScheduledFiresTotal.WithLabelValues(job.JobType).Inc()

	schedule, err := s.parser.Parse(job.CronExpression)
	if err != nil {
		s.logger.Error("failed to reparse cron expression on fire", "job_id", job.JobID, "error", err)
		return
	}

	loc := time.UTC
	if job.Timezone != "" {
		if l, err := time.LoadLocation(job.Timezone); err == nil {
			loc = l
		}
	}

	job.LastFiredAt = now
	job.NextExecution = schedule.Next(now.In(loc))
	if err := s.docs.SaveSchedulerJob(ctx, job); err != nil {
		s.logger.Error("failed to update job after fire", "job_id", job.JobID, "error", err)
	}
}
