// Package scheduler runs the periodic maintenance jobs.
package scheduler

import (
	"context"
	"time"

	"github.com/kat-co/vala"

	"github.com/excellacademy/academia/core"
)

type (
	Overdue interface {
		RefreshOverdue(ctx context.Context, today time.Time) (int, error)
	}

	Documents interface {
		VerifyDocuments(ctx context.Context) (int, error)
		RegenerateMissingDocuments(ctx context.Context) (int, error)
	}

	Job struct {
		Name string
		Run  func(ctx context.Context) (int, error)
	}

	// Scheduler runs its jobs one after the other on every tick.
	Scheduler struct {
		every  time.Duration
		jobs   []Job
		logger core.Logger
		now    func() time.Time
	}
)

func New(every time.Duration, invoices Overdue, docs Documents, logger core.Logger) *Scheduler {
	vala.BeginValidation().Validate(
		vala.IsNotNil(invoices, "invoices"),
		vala.IsNotNil(docs, "docs"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	s := &Scheduler{every: every, logger: logger, now: time.Now}
	s.jobs = []Job{
		{Name: "refresh-overdue", Run: func(ctx context.Context) (int, error) { return invoices.RefreshOverdue(ctx, s.now()) }},
		{Name: "check-report-cards", Run: docs.VerifyDocuments},
		{Name: "generate-missing-pdfs", Run: docs.RegenerateMissingDocuments},
	}
	return s
}

// RunOnce runs every job once. A failing job does not stop the next ones.
func (s *Scheduler) RunOnce(ctx context.Context) map[string]int {
	counts := make(map[string]int, len(s.jobs))
	for _, job := range s.jobs {
		if ctx.Err() != nil {
			return counts
		}
		n, err := job.Run(ctx)
		counts[job.Name] = n
		if err != nil {
			s.logger.Error("maintenance job failed", err, map[string]interface{}{"job": job.Name, "count": n})
			continue
		}
		if n > 0 {
			s.logger.Info("maintenance job done", map[string]interface{}{"job": job.Name, "count": n})
		}
	}
	return counts
}

// Start runs the jobs on every tick until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	if s.every <= 0 {
		s.logger.Info("maintenance disabled")
		return
	}
	ticker := time.NewTicker(s.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}
