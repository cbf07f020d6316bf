package scheduler_test

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/excellacademy/academia/core"
	logsvc "github.com/excellacademy/academia/services/logger"
	"github.com/excellacademy/academia/services/scheduler"
)

type fakeJobs struct {
	calls    int32
	today    time.Time
	overdue  error
	verified int
}

func (f *fakeJobs) RefreshOverdue(_ context.Context, today time.Time) (int, error) {
	atomic.AddInt32(&f.calls, 1)
	f.today = today
	return 0, f.overdue
}

func (f *fakeJobs) VerifyDocuments(context.Context) (int, error) {
	return f.verified, nil
}

func (f *fakeJobs) RegenerateMissingDocuments(context.Context) (int, error) {
	return 2, nil
}

func logger() core.Logger {
	return logsvc.NewRollbarLogger(io.Discard, core.NewTestConfig())
}

func TestScheduler_RunOnce(t *testing.T) {
	jobs := &fakeJobs{overdue: errors.New("db down"), verified: 1}
	s := scheduler.New(time.Minute, jobs, jobs, logger())

	counts := s.RunOnce(context.Background())
	assert.Equal(t, map[string]int{
		"refresh-overdue":       0,
		"check-report-cards":    1,
		"generate-missing-pdfs": 2,
	}, counts, "a failing job does not stop the others")
	assert.False(t, jobs.today.IsZero())
}

func TestScheduler_Start(t *testing.T) {
	jobs := &fakeJobs{}
	s := scheduler.New(5*time.Millisecond, jobs, jobs, logger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&jobs.calls) >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
