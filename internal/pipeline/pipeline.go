package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"linkedin-scout/internal/core"
	"linkedin-scout/internal/extract"
)

// Pipeline runs one scrape job end to end: authenticate, navigate to the
// profile's experience-detail view and then its main view, extract fields
// through the fallback chains, classify the outcome. It degrades instead of
// aborting: the caller always gets a well-formed result, and a hard error
// only when no session could be established at all or the browser is gone.
type Pipeline struct {
	cfg     *core.Config
	browser core.BrowserPort
	session core.SessionPort
	repo    core.RepositoryPort
	rater   core.RaterPort
	logger  *zap.Logger

	// authenticated remembers that the running browser already holds a
	// live session. Only the scheduler worker touches it.
	authenticated bool
}

func New(cfg *core.Config, browser core.BrowserPort, session core.SessionPort, repo core.RepositoryPort, rater core.RaterPort, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		browser: browser,
		session: session,
		repo:    repo,
		rater:   rater,
		logger:  logger,
	}
}

// Run executes a scrape job. Panics from the browser layer are caught here
// and converted into the same soft-failure placeholder every other
// non-recoverable page condition produces.
func (p *Pipeline) Run(ctx context.Context, job *core.ScrapeJob) (result *core.ExtractionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Recovered from panic during scrape",
				zap.String("url", job.TargetURL),
				zap.Any("panic", r))
			result = core.NewPlaceholderResult(job.TargetURL, core.ReasonNavigation)
			err = nil
		}
	}()

	p.logger.Info("Running scrape job",
		zap.String("url", job.TargetURL),
		zap.String("selectorRevision", extract.Revision))

	page, err := p.browser.NewPage(ctx)
	if err != nil {
		return core.NewPlaceholderResult(job.TargetURL, core.ErrCodeBrowser), err
	}
	defer page.Close()

	softReason, err := p.authenticate(ctx, page)
	if err != nil {
		return core.NewPlaceholderResult(job.TargetURL, core.ReasonNoSession), err
	}
	if softReason != "" {
		result = core.NewPlaceholderResult(job.TargetURL, softReason)
		p.persist(result, nil)
		return result, nil
	}

	result = p.extractProfile(ctx, page, job)

	// A session can evaporate mid-run (remote logout, browser restart
	// between jobs). Re-authenticate once and retry before giving up.
	if result.Outcome == core.OutcomeSoftFailure && result.Reason == core.ReasonNoSession {
		p.logger.Warn("Session expired mid-job, re-authenticating", zap.String("url", job.TargetURL))
		p.authenticated = false
		softReason, err = p.authenticate(ctx, page)
		if err != nil {
			return result, err
		}
		if softReason != "" {
			result = core.NewPlaceholderResult(job.TargetURL, softReason)
			p.persist(result, nil)
			return result, nil
		}
		result = p.extractProfile(ctx, page, job)
	}

	rating := p.rate(ctx, result)
	result.Rating = rating
	p.persist(result, rating)
	return result, nil
}

// authenticate brings the page into a logged-in state. Returns a soft
// failure reason for checkpoint interception, an error when no session
// could be established at all, and neither when authenticated.
func (p *Pipeline) authenticate(ctx context.Context, page core.PagePort) (string, error) {
	if p.authenticated {
		fresh, err := p.session.EnsureFresh(ctx, page)
		if err != nil {
			p.logger.Warn("Session freshness check failed", zap.Error(err))
		}
		if fresh {
			return "", nil
		}
		p.authenticated = false
	}

	loaded, err := p.session.Load(ctx, page)
	if err != nil {
		p.logger.Warn("Failed to load persisted session, will perform fresh login", zap.Error(err))
	}
	if loaded {
		p.authenticated = true
		return "", nil
	}

	return p.login(ctx, page)
}

// login performs the interactive credential flow with humanized input.
func (p *Pipeline) login(ctx context.Context, page core.PagePort) (string, error) {
	p.logger.Info("Starting interactive login")

	if err := page.Navigate(ctx, p.cfg.Target.LoginURL); err != nil {
		return "", core.NewScrapeError(core.ErrCodeAuthFailed, "failed to reach login page", err)
	}

	// Logged-in browsers get bounced straight to the feed.
	if url, err := page.CurrentURL(ctx); err == nil && strings.Contains(url, "/feed") {
		p.logger.Info("Browser already holds a live session")
		p.saveSession(ctx, page)
		p.authenticated = true
		return "", nil
	}

	if err := page.WaitForElement(ctx, p.cfg.Selectors.LoginEmailInput, p.cfg.Pipeline.ElementTimeout); err != nil {
		if p.checkpointDetected(ctx, page) {
			return p.resolveCheckpoint(ctx, page), nil
		}
		return "", core.NewScrapeError(core.ErrCodeAuthFailed, "login form not found", err)
	}

	if err := page.HumanType(ctx, p.cfg.Selectors.LoginEmailInput, p.cfg.Credentials.Email); err != nil {
		return "", core.NewScrapeError(core.ErrCodeAuthFailed, "failed to type email", err)
	}
	page.RandomSleep(ctx, 0.5, 1.0)

	if err := page.HumanType(ctx, p.cfg.Selectors.LoginPasswordInput, p.cfg.Credentials.Password); err != nil {
		return "", core.NewScrapeError(core.ErrCodeAuthFailed, "failed to type password", err)
	}
	page.RandomSleep(ctx, 0.5, 1.0)

	if err := page.HumanClick(ctx, p.cfg.Selectors.LoginSubmitButton); err != nil {
		return "", core.NewScrapeError(core.ErrCodeAuthFailed, "failed to click submit button", err)
	}

	// Let the post-submit redirect settle before inspecting anything.
	page.RandomSleep(ctx, 3.0, 5.0)

	if p.checkpointDetected(ctx, page) {
		return p.resolveCheckpoint(ctx, page), nil
	}

	if err := page.WaitForElement(ctx, p.cfg.Selectors.FeedLandmark, p.cfg.Pipeline.LoginTimeout); err != nil {
		// Challenges can replace the redirect late.
		if p.checkpointDetected(ctx, page) {
			return p.resolveCheckpoint(ctx, page), nil
		}
		if url, uerr := page.CurrentURL(ctx); uerr == nil && strings.Contains(url, "/feed") {
			// Landmark drifted but the URL says we are in.
			p.logger.Warn("Feed landmark not found on feed page, selectors may have drifted")
		} else {
			return "", core.NewScrapeError(core.ErrCodeAuthFailed, "still not logged in after submitting credentials", err)
		}
	}

	p.logger.Info("Login successful")
	p.saveSession(ctx, page)
	p.logAction(core.ActionLogin, "interactive login")
	p.authenticated = true
	return "", nil
}

// resolveCheckpoint handles checkpoint/challenge interception: log it
// distinctly, keep whatever cookies exist (they may partially work later),
// and resolve the job as a soft failure. No automated bypass, no polling
// for manual intervention.
func (p *Pipeline) resolveCheckpoint(ctx context.Context, page core.PagePort) string {
	url, _ := page.CurrentURL(ctx)
	p.logger.Warn("Checkpoint challenge detected, giving up on this job",
		zap.String("url", url))

	p.saveSession(ctx, page)
	p.logAction(core.ActionCheckpoint, fmt.Sprintf("url=%s", url))
	return core.ReasonCheckpoint
}

func (p *Pipeline) checkpointDetected(ctx context.Context, page core.PagePort) bool {
	if url, err := page.CurrentURL(ctx); err == nil {
		if strings.Contains(url, "/checkpoint") || strings.Contains(url, "/challenge") {
			return true
		}
	}
	if visible, _ := page.IsElementVisible(ctx, p.cfg.Selectors.CaptchaFrame); visible {
		return true
	}
	if exists, _ := page.ElementExists(ctx, p.cfg.Selectors.TwoFactorInput); exists {
		return true
	}
	return false
}

// extractProfile pulls the profile apart view by view. It never returns an
// error; every miss lowers confidence or the outcome instead.
func (p *Pipeline) extractProfile(ctx context.Context, page core.PagePort, job *core.ScrapeJob) *core.ExtractionResult {
	detailURL := strings.TrimSuffix(job.TargetURL, "/") + "/details/experience/"

	var entries []core.WorkEntry
	detailHTML, reason := p.captureView(ctx, page, detailURL)
	if reason != "" && reason != core.ReasonNavigation {
		return core.NewPlaceholderResult(job.TargetURL, reason)
	}
	if detailHTML != "" {
		if snap, err := extract.Parse(detailHTML); err == nil {
			entries = snap.Experience()
		} else {
			p.logger.Warn("Failed to parse experience-detail view", zap.Error(err))
		}
	}

	mainHTML, reason := p.captureView(ctx, page, job.TargetURL)
	if reason != "" {
		if reason == core.ReasonNavigation && len(entries) > 0 {
			// Keep what the detail view gave us; identity degrades to
			// fallback values.
			p.logger.Warn("Main profile view unreachable, identity fields degrade",
				zap.String("url", job.TargetURL))
		} else {
			return core.NewPlaceholderResult(job.TargetURL, reason)
		}
	}

	result := core.NewPlaceholderResult(job.TargetURL, "")
	if mainHTML != "" {
		snap, err := extract.Parse(mainHTML)
		if err != nil {
			p.logger.Warn("Failed to parse main profile view", zap.Error(err))
		} else {
			card := snap.TopCard()
			result.Name = card.Name
			result.Headline = card.Headline
			result.Location = card.Location
			result.Summary = card.Summary

			if len(entries) == 0 {
				// Detail view came up dry; the main view carries a
				// condensed experience list.
				entries = snap.Experience()
			}
		}
	}
	if entries != nil {
		result.Experience = entries
	}

	p.classify(result)

	if p.cfg.Pipeline.DumpFailedHTML && (len(result.Experience) == 0 || result.Outcome == core.OutcomeSoftFailure) {
		p.dumpHTML(job.TargetURL, mainHTML, detailHTML)
	}

	return result
}

// captureView navigates to a URL, nudges lazy-loaded sections in, and
// snapshots the markup. The reason return distinguishes auth bounces and
// checkpoints from plain navigation failures.
func (p *Pipeline) captureView(ctx context.Context, page core.PagePort, url string) (string, string) {
	if err := page.Navigate(ctx, url); err != nil {
		p.logger.Warn("Navigation failed", zap.String("url", url), zap.Error(err))
		return "", core.ReasonNavigation
	}

	current, err := page.CurrentURL(ctx)
	if err == nil {
		switch {
		case strings.Contains(current, "/checkpoint") || strings.Contains(current, "/challenge"):
			return "", p.resolveCheckpoint(ctx, page)
		case strings.Contains(current, "/authwall") || strings.Contains(current, "/login") || strings.Contains(current, "/uas/"):
			p.logger.Warn("Bounced to auth surface", zap.String("url", current))
			return "", core.ReasonNoSession
		}
	}

	// Scroll in a couple of bursts so lazy-loaded sections render.
	for i := 0; i < 3; i++ {
		if err := page.HumanScroll(ctx, "down", rand.Intn(500)+400); err != nil {
			p.logger.Debug("Scroll failed", zap.Error(err))
			break
		}
		page.RandomSleep(ctx, 0.8, 1.6)
	}

	html, err := page.HTML(ctx)
	if err != nil {
		p.logger.Warn("Failed to snapshot page HTML", zap.String("url", url), zap.Error(err))
		return "", core.ReasonNavigation
	}
	return html, ""
}

// classify settles the outcome: everything at primary confidence with at
// least one experience entry is a success, any degradation is partial, and
// a result with no substance at all is a soft failure.
func (p *Pipeline) classify(result *core.ExtractionResult) {
	if result.Name.Value == "" && len(result.Experience) == 0 {
		result.Outcome = core.OutcomeSoftFailure
		result.Reason = core.ReasonEmpty
		return
	}

	if len(result.Experience) > 0 && allPrimary(result) {
		result.Outcome = core.OutcomeSuccess
		result.Reason = ""
		return
	}

	result.Outcome = core.OutcomePartial
	result.Reason = ""
}

func allPrimary(result *core.ExtractionResult) bool {
	for _, f := range []core.Field{result.Name, result.Headline, result.Location, result.Summary} {
		if f.Confidence != core.ConfidencePrimary {
			return false
		}
	}
	for _, e := range result.Experience {
		for _, f := range []core.Field{e.Title, e.Company, e.DateRange, e.Description} {
			if f.Confidence != core.ConfidencePrimary {
				return false
			}
		}
	}
	return true
}

// rate asks the rating backend for a fit score. Failures never affect the
// scrape; rating is decoration.
func (p *Pipeline) rate(ctx context.Context, result *core.ExtractionResult) *core.Rating {
	if p.rater == nil || result.Outcome == core.OutcomeSoftFailure {
		return nil
	}

	rating, err := p.rater.Rate(ctx, result)
	if err != nil {
		p.logger.Warn("Profile rating failed", zap.Error(err))
		return nil
	}
	if rating != nil {
		p.logger.Info("Profile rated",
			zap.String("url", result.TargetURL),
			zap.Int("score", rating.Score))
	}
	return rating
}

// persist stores the scrape record. Uses a detached context so records land
// even when the job's deadline has expired.
func (p *Pipeline) persist(result *core.ExtractionResult, rating *core.Rating) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	record := &core.ScrapeRecord{
		TargetURL:     result.TargetURL,
		Name:          result.Name.Value,
		Headline:      result.Headline.Value,
		Outcome:       string(result.Outcome),
		Reason:        result.Reason,
		EntryCount:    len(result.Experience),
		LastScrapedAt: result.ScrapedAt,
	}
	if rating != nil {
		record.RatingScore = rating.Score
		record.RatingNote = rating.Narrative
	}

	if err := p.repo.SaveScrape(ctx, record); err != nil {
		p.logger.Warn("Failed to persist scrape record", zap.Error(err))
	}
}

func (p *Pipeline) saveSession(ctx context.Context, page core.PagePort) {
	if err := p.session.Save(ctx, page); err != nil {
		p.logger.Warn("Failed to save session", zap.Error(err))
	}
}

func (p *Pipeline) logAction(actionType, details string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entry := &core.ActionLog{
		ActionType: actionType,
		Details:    details,
		Timestamp:  time.Now(),
	}
	if err := p.repo.LogAction(ctx, entry); err != nil {
		p.logger.Warn("Failed to log action", zap.String("type", actionType), zap.Error(err))
	}
}

// dumpHTML writes the captured views to the data directory for selector
// debugging against whatever markup the page actually served.
func (p *Pipeline) dumpHTML(targetURL, mainHTML, detailHTML string) {
	if err := os.MkdirAll(p.cfg.Pipeline.DumpDir, 0755); err != nil {
		p.logger.Warn("Failed to create dump directory", zap.Error(err))
		return
	}

	slug := sanitizeSlug(targetURL)
	stamp := time.Now().Unix()
	for suffix, html := range map[string]string{"main": mainHTML, "detail": detailHTML} {
		if html == "" {
			continue
		}
		name := filepath.Join(p.cfg.Pipeline.DumpDir, fmt.Sprintf("failed_%s_%s_%d.html", slug, suffix, stamp))
		if err := os.WriteFile(name, []byte(html), 0644); err != nil {
			p.logger.Warn("Failed to dump page HTML", zap.String("path", name), zap.Error(err))
			continue
		}
		p.logger.Info("Dumped page HTML for debugging", zap.String("path", name))
	}
}

func sanitizeSlug(targetURL string) string {
	slug := targetURL
	if i := strings.Index(slug, "/in/"); i >= 0 {
		slug = slug[i+len("/in/"):]
	}
	slug = strings.Trim(slug, "/")
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, slug)
}
