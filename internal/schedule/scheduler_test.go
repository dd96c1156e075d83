package schedule

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"linkedin-scout/internal/core"
)

type fakePipeline struct {
	mu    sync.Mutex
	urls  []string
	start []time.Time
	delay time.Duration
}

func (f *fakePipeline) Run(ctx context.Context, job *core.ScrapeJob) (*core.ExtractionResult, error) {
	f.mu.Lock()
	f.urls = append(f.urls, job.TargetURL)
	f.start = append(f.start, time.Now())
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return core.NewPlaceholderResult(job.TargetURL, core.ReasonNavigation), ctx.Err()
		}
	}

	result := core.NewPlaceholderResult(job.TargetURL, "")
	result.Outcome = core.OutcomeSuccess
	result.Reason = ""
	return result, nil
}

func (f *fakePipeline) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}

func (f *fakePipeline) startTimes() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.start...)
}

// fakeRepo scripts CanPerformAction per call through allowSeq; once the
// sequence is exhausted every check passes.
type fakeRepo struct {
	mu       sync.Mutex
	allowSeq []bool
	allowErr error
	actions  []*core.ActionLog
}

func (f *fakeRepo) SaveScrape(context.Context, *core.ScrapeRecord) error { return nil }
func (f *fakeRepo) GetScrapeByURL(context.Context, string) (*core.ScrapeRecord, error) {
	return nil, nil
}
func (f *fakeRepo) ListRecentScrapes(context.Context, int) ([]*core.ScrapeRecord, error) {
	return nil, nil
}
func (f *fakeRepo) LogAction(_ context.Context, entry *core.ActionLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, entry)
	return nil
}
func (f *fakeRepo) GetTodayActionCount(context.Context, string) (int64, error) { return 0, nil }
func (f *fakeRepo) GetActionsByDateRange(context.Context, time.Time, time.Time) ([]*core.ActionLog, error) {
	return nil, nil
}
func (f *fakeRepo) CanPerformAction(context.Context, string, int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.allowErr != nil {
		return false, f.allowErr
	}
	if len(f.allowSeq) > 0 {
		allow := f.allowSeq[0]
		f.allowSeq = f.allowSeq[1:]
		return allow, nil
	}
	return true, nil
}
func (f *fakeRepo) Migrate(context.Context) error { return nil }
func (f *fakeRepo) Close() error                  { return nil }

func (f *fakeRepo) logged() []*core.ActionLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*core.ActionLog(nil), f.actions...)
}

func testConfig() *core.Config {
	cfg := &core.Config{}
	cfg.Scheduler.MinJobInterval = 10 * time.Millisecond
	cfg.Scheduler.QueueSize = 8
	cfg.Scheduler.JobTimeout = 5 * time.Second
	cfg.Limits.MaxScrapesPerDay = 100
	return cfg
}

func newScheduler(t *testing.T, cfg *core.Config, pipe *fakePipeline, repo *fakeRepo) *Scheduler {
	t.Helper()
	s := New(cfg, pipe, repo, zap.NewNop())
	t.Cleanup(s.Close)
	return s
}

func TestScheduleRunsJobAndNormalizesURL(t *testing.T) {
	pipe := &fakePipeline{}
	repo := &fakeRepo{}
	s := newScheduler(t, testConfig(), pipe, repo)

	result, err := s.Schedule(context.Background(),
		"https://www.linkedin.com/in/jane-doe/?utm_source=share#experience")
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Equal(t, core.OutcomeSuccess, result.Outcome)
	require.Equal(t, "https://www.linkedin.com/in/jane-doe", result.TargetURL)
	require.Equal(t, []string{"https://www.linkedin.com/in/jane-doe"}, pipe.calls())
}

func TestSchedulePacesConsecutiveJobs(t *testing.T) {
	cfg := testConfig()
	cfg.Scheduler.MinJobInterval = 120 * time.Millisecond
	pipe := &fakePipeline{}
	s := newScheduler(t, cfg, pipe, &fakeRepo{})

	ctx := context.Background()
	for _, slug := range []string{"a", "b", "c"} {
		_, err := s.Schedule(ctx, "https://www.linkedin.com/in/"+slug)
		require.NoError(t, err)
	}

	starts := pipe.startTimes()
	require.Len(t, starts, 3)
	require.Equal(t, []string{
		"https://www.linkedin.com/in/a",
		"https://www.linkedin.com/in/b",
		"https://www.linkedin.com/in/c",
	}, pipe.calls())

	// Start-to-start spacing, with slack for scheduling jitter.
	require.GreaterOrEqual(t, starts[1].Sub(starts[0]), 100*time.Millisecond)
	require.GreaterOrEqual(t, starts[2].Sub(starts[1]), 100*time.Millisecond)
}

func TestScheduleRejectsInvalidURLs(t *testing.T) {
	pipe := &fakePipeline{}
	s := newScheduler(t, testConfig(), pipe, &fakeRepo{})

	tests := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"relative", "/in/jane-doe"},
		{"wrong host", "https://example.com/in/jane-doe"},
		{"not a profile path", "https://www.linkedin.com/feed/"},
		{"company page", "https://www.linkedin.com/company/initech"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.Schedule(context.Background(), tt.url)
			require.Error(t, err)
			require.Equal(t, core.ErrCodeBadRequest, core.ErrorCode(err))
			require.NotNil(t, result)
			require.Equal(t, core.OutcomeSoftFailure, result.Outcome)
		})
	}
	require.Empty(t, pipe.calls())
}

func TestScheduleBudgetExhausted(t *testing.T) {
	pipe := &fakePipeline{}
	repo := &fakeRepo{allowSeq: []bool{false}}
	s := newScheduler(t, testConfig(), pipe, repo)

	result, err := s.Schedule(context.Background(), "https://www.linkedin.com/in/jane-doe")
	require.Error(t, err)
	require.Equal(t, core.ErrCodeBudget, core.ErrorCode(err))
	require.NotNil(t, result)
	require.Equal(t, core.OutcomeSoftFailure, result.Outcome)
	require.Empty(t, pipe.calls())
}

func TestScheduleBudgetCheckFailure(t *testing.T) {
	pipe := &fakePipeline{}
	repo := &fakeRepo{allowErr: errors.New("database is locked")}
	s := newScheduler(t, testConfig(), pipe, repo)

	_, err := s.Schedule(context.Background(), "https://www.linkedin.com/in/jane-doe")
	require.Error(t, err)
	require.Equal(t, core.ErrCodeBudget, core.ErrorCode(err))
	require.Empty(t, pipe.calls())
}

// Jobs admitted while the queue was deep can push past the daily limit
// before they run; the worker re-checks at start time.
func TestScheduleBudgetRecheckedAtStart(t *testing.T) {
	pipe := &fakePipeline{}
	repo := &fakeRepo{allowSeq: []bool{true, false}}
	s := newScheduler(t, testConfig(), pipe, repo)

	result, err := s.Schedule(context.Background(), "https://www.linkedin.com/in/jane-doe")
	require.Error(t, err)
	require.Equal(t, core.ErrCodeBudget, core.ErrorCode(err))
	require.Equal(t, core.OutcomeSoftFailure, result.Outcome)
	require.Empty(t, pipe.calls())
	require.Empty(t, repo.logged())
}

func TestScheduleOutsideWorkingHours(t *testing.T) {
	cfg := testConfig()
	cfg.Limits.WorkingHoursOnly = true
	cfg.Limits.WorkingHoursStart = time.Now().Add(2 * time.Hour).Format("15:04")
	cfg.Limits.WorkingHoursEnd = time.Now().Add(3 * time.Hour).Format("15:04")
	pipe := &fakePipeline{}
	s := newScheduler(t, cfg, pipe, &fakeRepo{})

	result, err := s.Schedule(context.Background(), "https://www.linkedin.com/in/jane-doe")
	require.Error(t, err)
	require.Equal(t, core.ErrCodeBudget, core.ErrorCode(err))
	require.Equal(t, core.OutcomeSoftFailure, result.Outcome)
	require.Empty(t, pipe.calls())
}

func TestScheduleWithinWorkingHours(t *testing.T) {
	cfg := testConfig()
	cfg.Limits.WorkingHoursOnly = true
	cfg.Limits.WorkingHoursStart = time.Now().Add(-time.Hour).Format("15:04")
	cfg.Limits.WorkingHoursEnd = time.Now().Add(time.Hour).Format("15:04")
	pipe := &fakePipeline{}
	s := newScheduler(t, cfg, pipe, &fakeRepo{})

	_, err := s.Schedule(context.Background(), "https://www.linkedin.com/in/jane-doe")
	require.NoError(t, err)
	require.Len(t, pipe.calls(), 1)
}

func TestScheduleRecordsAction(t *testing.T) {
	pipe := &fakePipeline{}
	repo := &fakeRepo{}
	s := newScheduler(t, testConfig(), pipe, repo)

	_, err := s.Schedule(context.Background(), "https://www.linkedin.com/in/jane-doe")
	require.NoError(t, err)

	logged := repo.logged()
	require.Len(t, logged, 1)
	require.Equal(t, core.ActionScrape, logged[0].ActionType)
	require.Contains(t, logged[0].Details, "url=https://www.linkedin.com/in/jane-doe")
	require.Contains(t, logged[0].Details, "outcome=success")
}

// Close lets the in-flight job finish and resolves everything still queued
// with a queue-closed error; nothing is dropped without a resolution.
func TestCloseResolvesQueuedJobs(t *testing.T) {
	cfg := testConfig()
	pipe := &fakePipeline{delay: 250 * time.Millisecond}
	s := New(cfg, pipe, &fakeRepo{}, zap.NewNop())

	type reply struct {
		url    string
		result *core.ExtractionResult
		err    error
	}
	replies := make(chan reply, 3)
	schedule := func(slug string) {
		url := "https://www.linkedin.com/in/" + slug
		result, err := s.Schedule(context.Background(), url)
		replies <- reply{url: url, result: result, err: err}
	}

	go schedule("running")
	time.Sleep(80 * time.Millisecond) // first job is in flight
	go schedule("queued-1")
	go schedule("queued-2")
	time.Sleep(80 * time.Millisecond) // both are sitting in the queue

	s.Close()

	var succeeded, closed int
	for i := 0; i < 3; i++ {
		select {
		case r := <-replies:
			require.NotNil(t, r.result, "every request resolves with a result")
			if r.err == nil {
				succeeded++
				require.Equal(t, core.OutcomeSuccess, r.result.Outcome)
			} else {
				closed++
				require.Equal(t, core.ErrCodeQueueClosed, core.ErrorCode(r.err))
				require.Equal(t, core.OutcomeSoftFailure, r.result.Outcome)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("request never resolved after Close")
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 2, closed)

	// Idempotent.
	s.Close()
}

func TestScheduleAfterClose(t *testing.T) {
	s := New(testConfig(), &fakePipeline{}, &fakeRepo{}, zap.NewNop())
	s.Close()

	result, err := s.Schedule(context.Background(), "https://www.linkedin.com/in/jane-doe")
	require.Error(t, err)
	require.Equal(t, core.ErrCodeQueueClosed, core.ErrorCode(err))
	require.NotNil(t, result)
}

func TestScheduleCanceledContext(t *testing.T) {
	cfg := testConfig()
	cfg.Scheduler.MinJobInterval = time.Hour // force the second job to wait
	pipe := &fakePipeline{}
	s := newScheduler(t, cfg, pipe, &fakeRepo{})

	_, err := s.Schedule(context.Background(), "https://www.linkedin.com/in/first")
	require.NoError(t, err)

	// The pacing delay cannot fit inside this deadline; the job must fail
	// without ever reaching the pipeline.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = s.Schedule(ctx, "https://www.linkedin.com/in/second")
	require.Error(t, err)
	require.Equal(t, []string{"https://www.linkedin.com/in/first"}, pipe.calls())
}

func TestNormalizeProfileURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "https://www.linkedin.com/in/jane-doe/", want: "https://www.linkedin.com/in/jane-doe"},
		{in: "https://linkedin.com/in/jane-doe?trk=public", want: "https://linkedin.com/in/jane-doe"},
		{in: "  https://www.linkedin.com/in/jane-doe  ", want: "https://www.linkedin.com/in/jane-doe"},
		{in: "https://de.linkedin.com/in/jane-doe", want: "https://de.linkedin.com/in/jane-doe"},
		{in: "https://evil-linkedin.com.example.net/in/x", wantErr: true},
		{in: "https://evillinkedin.com/in/x", wantErr: true},
		{in: "https://www.linkedin.com/company/initech", wantErr: true},
		{in: "ftp://", wantErr: true},
	}

	for _, tt := range tests {
		got, err := normalizeProfileURL(tt.in)
		if tt.wantErr {
			require.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got)
	}
}

func TestQueueDepthIdle(t *testing.T) {
	s := newScheduler(t, testConfig(), &fakePipeline{}, &fakeRepo{})
	require.Equal(t, 0, s.QueueDepth())
}

func TestScheduleSlugWithTrailingSegments(t *testing.T) {
	pipe := &fakePipeline{}
	s := newScheduler(t, testConfig(), pipe, &fakeRepo{})

	result, err := s.Schedule(context.Background(),
		"https://www.linkedin.com/in/jane-doe/details/experience/")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(result.TargetURL, "https://www.linkedin.com/in/jane-doe"))
}
