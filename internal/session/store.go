package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"linkedin-scout/internal/core"
)

// recordVersion is bumped whenever the on-disk layout changes shape. A
// record with any other version is ignored and the pipeline falls back to a
// fresh login.
const recordVersion = 1

// Record is the persisted session snapshot. Timestamps let the store decide
// staleness without touching the browser; the user-agent hash flags cookie
// sets captured under a different fingerprint.
type Record struct {
	Version         int            `json:"version"`
	SavedAt         time.Time      `json:"savedAt"`
	LastValidatedAt time.Time      `json:"lastValidatedAt"`
	UAHash          string         `json:"uaHash"`
	DomainSummary   map[string]int `json:"domainSummary"`
	Cookies         []core.Cookie  `json:"cookies"`
}

// Store persists login cookies across restarts so the pipeline can skip the
// login dance. Save, Load and EnsureFresh each run under one mutex; a job
// saving cookies must never interleave with another reading or revalidating
// them.
type Store struct {
	cfg    *core.Config
	logger *zap.Logger
	mu     sync.Mutex
}

func New(cfg *core.Config, logger *zap.Logger) *Store {
	return &Store{
		cfg:    cfg,
		logger: logger,
	}
}

// Save snapshots the cookies visible to the authenticated origins and
// writes them to disk. Cookies outside the allowed domains are dropped,
// duplicates collapse to the first occurrence.
func (s *Store) Save(ctx context.Context, page core.PagePort) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cookies, err := page.Cookies(ctx, s.snapshotURLs()...)
	if err != nil {
		return fmt.Errorf("failed to snapshot cookies: %w", err)
	}

	kept := s.filterCookies(cookies)
	if len(kept) == 0 {
		return fmt.Errorf("no cookies matched allowed domains, refusing to save empty session")
	}

	now := time.Now()
	rec := &Record{
		Version:         recordVersion,
		SavedAt:         now,
		LastValidatedAt: now,
		UAHash:          hashUserAgent(s.cfg.Browser.UserAgent),
		DomainSummary:   summarize(kept),
		Cookies:         kept,
	}

	if err := s.writeRecord(rec); err != nil {
		return err
	}

	s.logger.Info("Session saved",
		zap.Int("cookies", len(kept)),
		zap.Int("domains", len(rec.DomainSummary)),
		zap.String("path", s.cfg.Session.Path))
	return nil
}

// Load reads the persisted session, injects its cookies into the page's
// browser and validates that the session is still accepted. It returns false
// with a nil error when there is nothing usable; the caller then performs a
// fresh login.
func (s *Store) Load(ctx context.Context, page core.PagePort) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.readRecord()
	if rec == nil {
		return false, nil
	}

	if rec.Version != recordVersion {
		s.logger.Warn("Session record has unknown version, ignoring",
			zap.Int("version", rec.Version),
			zap.Int("expected", recordVersion))
		return false, nil
	}

	if got := hashUserAgent(s.cfg.Browser.UserAgent); rec.UAHash != "" && rec.UAHash != got {
		// The cookies may still work; LinkedIn ties sessions loosely to
		// the UA. Worth noting, not worth discarding.
		s.logger.Warn("Session was captured under a different user agent",
			zap.String("saved", rec.UAHash),
			zap.String("current", got))
	}

	now := time.Now()
	live := make([]core.Cookie, 0, len(rec.Cookies))
	expired := 0
	for _, c := range rec.Cookies {
		if c.Expired(now) {
			expired++
			continue
		}
		live = append(live, c)
	}
	if expired > 0 {
		s.logger.Debug("Dropped expired cookies", zap.Int("count", expired))
	}
	if len(live) == 0 {
		s.logger.Info("All persisted cookies have expired")
		return false, nil
	}

	if err := s.inject(ctx, page, live); err != nil {
		return false, fmt.Errorf("failed to inject cookies: %w", err)
	}

	ok, err := s.validate(ctx, page)
	if err != nil {
		return false, err
	}
	if !ok {
		s.logger.Info("Persisted session was rejected, fresh login required")
		return false, nil
	}

	s.touch(rec)
	s.logger.Info("Session restored from disk",
		zap.Int("cookies", len(live)),
		zap.Time("savedAt", rec.SavedAt))
	return true, nil
}

// EnsureFresh makes sure the session was validated recently. Within the
// staleness window it is a no-op; past it the session is revalidated against
// the live site. Returns false when the session no longer holds.
func (s *Store) EnsureFresh(ctx context.Context, page core.PagePort) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.readRecord()
	if rec == nil || rec.Version != recordVersion {
		return false, nil
	}

	age := time.Since(rec.LastValidatedAt)
	if age < s.cfg.Session.StaleAfter {
		return true, nil
	}

	s.logger.Info("Session is stale, revalidating",
		zap.Duration("age", age),
		zap.Duration("staleAfter", s.cfg.Session.StaleAfter))

	ok, err := s.validate(ctx, page)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	s.touch(rec)
	return true, nil
}

// validate navigates to the feed and checks that LinkedIn kept us logged
// in rather than bouncing to an auth surface.
func (s *Store) validate(ctx context.Context, page core.PagePort) (bool, error) {
	if err := page.Navigate(ctx, s.cfg.Target.FeedURL); err != nil {
		return false, fmt.Errorf("failed to navigate for validation: %w", err)
	}

	url, err := page.CurrentURL(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read URL during validation: %w", err)
	}
	if isAuthRedirect(url) {
		s.logger.Debug("Validation landed on auth surface", zap.String("url", url))
		return false, nil
	}

	if err := page.WaitForElement(ctx, s.cfg.Selectors.FeedLandmark, s.cfg.Session.ValidateTimeout); err != nil {
		s.logger.Debug("Feed landmark never appeared", zap.Error(err))
		return false, nil
	}

	return true, nil
}

// inject pushes cookies into the browser in batches; very large cookie sets
// trip CDP message size limits when sent in one call.
func (s *Store) inject(ctx context.Context, page core.PagePort, cookies []core.Cookie) error {
	batch := s.cfg.Session.InjectBatchSize
	if batch <= 0 {
		batch = len(cookies)
	}

	for start := 0; start < len(cookies); start += batch {
		end := start + batch
		if end > len(cookies) {
			end = len(cookies)
		}
		if err := page.SetCookies(ctx, cookies[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// touch bumps the validation timestamp and persists the record. Callers
// hold mu.
func (s *Store) touch(rec *Record) {
	rec.LastValidatedAt = time.Now()

	if err := s.writeRecord(rec); err != nil {
		s.logger.Warn("Failed to persist validation timestamp", zap.Error(err))
	}
}

// snapshotURLs names the origins whose cookies are worth keeping. Scoping
// the snapshot avoids dragging in cookies from every page the browser
// happened to visit.
func (s *Store) snapshotURLs() []string {
	var urls []string
	for _, u := range []string{s.cfg.Target.BaseURL, s.cfg.Target.FeedURL} {
		if u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

func (s *Store) filterCookies(cookies []core.Cookie) []core.Cookie {
	type key struct {
		name   string
		domain string
		path   string
	}
	seen := make(map[key]bool)

	kept := make([]core.Cookie, 0, len(cookies))
	for _, c := range cookies {
		if !s.domainAllowed(c.Domain) {
			continue
		}
		k := key{c.Name, c.Domain, c.Path}
		if seen[k] {
			continue
		}
		seen[k] = true
		kept = append(kept, c)
	}
	return kept
}

func (s *Store) domainAllowed(domain string) bool {
	for _, allowed := range s.cfg.Session.AllowedDomains {
		if domain == allowed {
			return true
		}
	}
	return false
}

// writeRecord persists atomically: back up the previous record, write to a
// temp file, then rename over the live path. A crash at any point leaves
// either the old record or the new one, never a torn file. Callers hold mu.
func (s *Store) writeRecord(rec *Record) error {
	path := s.cfg.Session.Path
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	if prev, err := os.ReadFile(path); err == nil {
		if err := os.WriteFile(path+".bak", prev, 0600); err != nil {
			s.logger.Warn("Failed to write session backup", zap.Error(err))
		}
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

// readRecord loads the live record, falling back to the backup when the
// live file is missing or corrupt. Returns nil when neither is usable.
// Callers hold mu.
func (s *Store) readRecord() *Record {
	path := s.cfg.Session.Path

	if rec := s.readRecordFile(path); rec != nil {
		return rec
	}

	if rec := s.readRecordFile(path + ".bak"); rec != nil {
		s.logger.Warn("Recovered session from backup file")
		return rec
	}

	return nil
}

func (s *Store) readRecordFile(path string) *Record {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Failed to read session file", zap.String("path", path), zap.Error(err))
		}
		return nil
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn("Session file is corrupt", zap.String("path", path), zap.Error(err))
		return nil
	}
	return &rec
}

func summarize(cookies []core.Cookie) map[string]int {
	summary := make(map[string]int)
	for _, c := range cookies {
		summary[c.Domain]++
	}
	return summary
}

func hashUserAgent(ua string) string {
	sum := sha256.Sum256([]byte(ua))
	return hex.EncodeToString(sum[:])[:12]
}

var authRedirectMarkers = []string{
	"/login",
	"/checkpoint",
	"/challenge",
	"/authwall",
	"/uas/",
}

func isAuthRedirect(url string) bool {
	for _, marker := range authRedirectMarkers {
		if strings.Contains(url, marker) {
			return true
		}
	}
	return false
}
