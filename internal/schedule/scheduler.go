package schedule

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"linkedin-scout/internal/core"
	"linkedin-scout/pkg/utils"
)

type outcome struct {
	result *core.ExtractionResult
	err    error
}

type request struct {
	job *core.ScrapeJob
	ctx context.Context
	out chan outcome
}

func (r *request) resolve(result *core.ExtractionResult, err error) {
	// out is buffered, resolution never blocks even when the caller is gone
	r.out <- outcome{result: result, err: err}
}

// Scheduler serializes scrape jobs through a single worker. One job runs at
// a time, consecutive job starts are at least MinJobInterval apart, and the
// daily budget is checked before each start. Every request that enters the
// queue is resolved exactly once, including during shutdown.
type Scheduler struct {
	cfg      *core.Config
	pipeline core.PipelinePort
	repo     core.RepositoryPort
	logger   *zap.Logger
	limiter  *rate.Limiter

	requests chan *request
	quit     chan struct{}
	drained  chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

func New(cfg *core.Config, pipeline core.PipelinePort, repo core.RepositoryPort, logger *zap.Logger) *Scheduler {
	s := &Scheduler{
		cfg:      cfg,
		pipeline: pipeline,
		repo:     repo,
		logger:   logger,
		limiter:  rate.NewLimiter(rate.Every(cfg.Scheduler.MinJobInterval), 1),
		requests: make(chan *request, cfg.Scheduler.QueueSize),
		quit:     make(chan struct{}),
		drained:  make(chan struct{}),
	}

	s.wg.Add(1)
	go s.worker()

	return s
}

// Schedule enqueues a scrape for the given profile URL and blocks until the
// job resolves. The returned result is always non-nil and well-formed; the
// error is non-nil only for hard failures (bad input, budget, shutdown,
// browser loss). Degraded extractions come back as a result with a partial
// or soft-failure outcome and a nil error.
func (s *Scheduler) Schedule(ctx context.Context, targetURL string) (*core.ExtractionResult, error) {
	cleaned, err := normalizeProfileURL(targetURL)
	if err != nil {
		return core.NewPlaceholderResult(targetURL, core.ErrCodeBadRequest),
			core.NewScrapeError(core.ErrCodeBadRequest, fmt.Sprintf("invalid profile URL %q", targetURL), err)
	}

	if s.cfg.Limits.WorkingHoursOnly {
		within, werr := utils.IsWithinWorkingHours(s.cfg.Limits.WorkingHoursStart, s.cfg.Limits.WorkingHoursEnd)
		if werr != nil {
			s.logger.Warn("Failed to check working hours", zap.Error(werr))
			within = true
		}
		if !within {
			return core.NewPlaceholderResult(cleaned, core.ErrCodeBudget),
				core.NewScrapeError(core.ErrCodeBudget,
					fmt.Sprintf("outside working hours (%s-%s)", s.cfg.Limits.WorkingHoursStart, s.cfg.Limits.WorkingHoursEnd), nil)
		}
	}

	if s.cfg.Limits.MaxScrapesPerDay > 0 {
		ok, err := s.repo.CanPerformAction(ctx, core.ActionScrape, s.cfg.Limits.MaxScrapesPerDay)
		if err != nil {
			return core.NewPlaceholderResult(cleaned, core.ErrCodeBudget),
				core.NewScrapeError(core.ErrCodeBudget, "failed to check daily budget", err)
		}
		if !ok {
			return core.NewPlaceholderResult(cleaned, core.ErrCodeBudget),
				core.NewScrapeError(core.ErrCodeBudget,
					fmt.Sprintf("daily scrape budget of %d reached", s.cfg.Limits.MaxScrapesPerDay), nil)
		}
	}

	req := &request{
		job: &core.ScrapeJob{TargetURL: cleaned, EnqueuedAt: time.Now()},
		ctx: ctx,
		out: make(chan outcome, 1),
	}

	select {
	case s.requests <- req:
	case <-ctx.Done():
		return core.NewPlaceholderResult(cleaned, core.ErrCodeQueueClosed), ctx.Err()
	case <-s.quit:
		return s.closedResult(cleaned)
	}

	select {
	case out := <-req.out:
		return out.result, out.err
	case <-ctx.Done():
		return core.NewPlaceholderResult(cleaned, core.ErrCodeQueueClosed), ctx.Err()
	case <-s.drained:
		// Shutdown finished after we enqueued; the worker may have resolved
		// us in its final sweep.
		select {
		case out := <-req.out:
			return out.result, out.err
		default:
		}
		return s.closedResult(cleaned)
	}
}

// QueueDepth reports how many jobs are waiting to run.
func (s *Scheduler) QueueDepth() int {
	return len(s.requests)
}

// Close stops accepting jobs, lets the in-flight job finish, and resolves
// everything still queued with a queue-closed error. Blocks until the worker
// has exited.
func (s *Scheduler) Close() {
	s.once.Do(func() {
		close(s.quit)
		s.wg.Wait()

		// Sweep requests that slipped into the queue during shutdown.
		for {
			select {
			case req := <-s.requests:
				s.resolveClosed(req)
			default:
				close(s.drained)
				return
			}
		}
	})
}

func (s *Scheduler) worker() {
	defer s.wg.Done()

	for {
		select {
		case <-s.quit:
			s.drainQueue()
			return
		case req := <-s.requests:
			// Both cases can be ready at once during shutdown; a dequeued
			// request must not start a job after quit closed.
			select {
			case <-s.quit:
				s.resolveClosed(req)
				s.drainQueue()
				return
			default:
			}
			s.handle(req)
		}
	}
}

func (s *Scheduler) drainQueue() {
	for {
		select {
		case req := <-s.requests:
			s.resolveClosed(req)
		default:
			return
		}
	}
}

func (s *Scheduler) resolveClosed(req *request) {
	result, err := s.closedResult(req.job.TargetURL)
	req.resolve(result, err)
}

func (s *Scheduler) closedResult(targetURL string) (*core.ExtractionResult, error) {
	return core.NewPlaceholderResult(targetURL, core.ErrCodeQueueClosed),
		core.NewScrapeError(core.ErrCodeQueueClosed, "scheduler is shutting down", nil)
}

func (s *Scheduler) handle(req *request) {
	job := req.job

	if req.ctx.Err() != nil {
		req.resolve(core.NewPlaceholderResult(job.TargetURL, core.ErrCodeQueueClosed), req.ctx.Err())
		return
	}

	// Re-check the budget at start time; jobs admitted while the queue was
	// deep may have pushed past the limit since.
	if s.cfg.Limits.MaxScrapesPerDay > 0 {
		ok, err := s.repo.CanPerformAction(req.ctx, core.ActionScrape, s.cfg.Limits.MaxScrapesPerDay)
		if err == nil && !ok {
			req.resolve(core.NewPlaceholderResult(job.TargetURL, core.ErrCodeBudget),
				core.NewScrapeError(core.ErrCodeBudget,
					fmt.Sprintf("daily scrape budget of %d reached", s.cfg.Limits.MaxScrapesPerDay), nil))
			return
		}
		if err != nil {
			s.logger.Warn("Budget re-check failed, proceeding", zap.Error(err))
		}
	}

	if err := s.limiter.Wait(req.ctx); err != nil {
		req.resolve(core.NewPlaceholderResult(job.TargetURL, core.ErrCodeQueueClosed), err)
		return
	}

	job.StartedAt = time.Now()
	s.logger.Info("Starting scrape job",
		zap.String("url", job.TargetURL),
		zap.Duration("queuedFor", job.StartedAt.Sub(job.EnqueuedAt)),
		zap.Int("queueDepth", len(s.requests)))

	jobCtx, cancel := context.WithTimeout(req.ctx, s.cfg.Scheduler.JobTimeout)
	defer cancel()

	result, err := s.pipeline.Run(jobCtx, job)
	if result == nil {
		result = core.NewPlaceholderResult(job.TargetURL, core.ErrCodeBrowser)
	}

	s.recordAction(job, result, err)

	s.logger.Info("Scrape job finished",
		zap.String("url", job.TargetURL),
		zap.String("outcome", string(result.Outcome)),
		zap.Duration("took", time.Since(job.StartedAt)),
		zap.Error(err))

	req.resolve(result, err)
}

// recordAction logs the attempt against the daily budget. Uses a fresh
// context; the job's may already be canceled and the ledger entry must
// still land.
func (s *Scheduler) recordAction(job *core.ScrapeJob, result *core.ExtractionResult, jobErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	details := fmt.Sprintf("url=%s outcome=%s", job.TargetURL, result.Outcome)
	if jobErr != nil {
		details += fmt.Sprintf(" error=%s", core.ErrorCode(jobErr))
	}

	entry := &core.ActionLog{
		ActionType: core.ActionScrape,
		Details:    details,
		Timestamp:  time.Now(),
	}
	if err := s.repo.LogAction(ctx, entry); err != nil {
		s.logger.Warn("Failed to record scrape action", zap.Error(err))
	}
}

// normalizeProfileURL strips query and fragment noise from a profile URL and
// rejects anything that is not a LinkedIn profile.
func normalizeProfileURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("URL must be absolute")
	}
	host := u.Hostname()
	if host != "linkedin.com" && !strings.HasSuffix(host, ".linkedin.com") {
		return "", fmt.Errorf("host %q is not linkedin.com", host)
	}
	if !strings.HasPrefix(u.Path, "/in/") {
		return "", fmt.Errorf("path %q is not a profile path", u.Path)
	}

	cleaned := u.Scheme + "://" + u.Host + u.Path
	return strings.TrimSuffix(cleaned, "/"), nil
}
