package core

import (
	"context"
	"time"
)

// PagePort defines the operations available on one browsing context. Every
// interaction the pipeline performs goes through this surface; the rod
// wrapper behind it dispatches input as trusted CDP events.
type PagePort interface {
	// Navigate navigates to a URL with a human-like settle delay and waits
	// for the load event
	Navigate(ctx context.Context, url string) error

	// CurrentURL returns the page's current URL
	CurrentURL(ctx context.Context) (string, error)

	// HTML returns a snapshot of the full page markup
	HTML(ctx context.Context) (string, error)

	// WaitForElement waits for an element to appear with timeout
	WaitForElement(ctx context.Context, selector string, timeout time.Duration) error

	// ElementExists checks if an element exists on the page
	ElementExists(ctx context.Context, selector string) (bool, error)

	// IsElementVisible checks if an element exists and takes up real space
	IsElementVisible(ctx context.Context, selector string) (bool, error)

	// GetText extracts text content from an element
	GetText(ctx context.Context, selector string) (string, error)

	// HumanType types text into an element with human-like cadence and typos
	HumanType(ctx context.Context, selector string, text string) error

	// HumanClick clicks an element via a Bézier-path mouse movement
	HumanClick(ctx context.Context, selector string) error

	// HumanScroll scrolls the page in eased chunks
	HumanScroll(ctx context.Context, direction string, distance int) error

	// RandomSleep pauses for a jittered duration
	RandomSleep(ctx context.Context, minSeconds, maxSeconds float64)

	// Cookies snapshots the cookies visible to the given URLs (all browser
	// cookies when none are given)
	Cookies(ctx context.Context, urls ...string) ([]Cookie, error)

	// SetCookies injects cookies into the browsing context
	SetCookies(ctx context.Context, cookies []Cookie) error

	// Close releases the browsing context
	Close()
}

// BrowserPort defines the browser process manager surface. At most one live
// browser process exists behind it; all page creation goes through NewPage.
type BrowserPort interface {
	// NewPage returns a fresh fingerprint-normalized browsing context,
	// relaunching the browser once if page creation fails
	NewPage(ctx context.Context) (PagePort, error)

	// Status reports liveness and the browser version string
	Status(ctx context.Context) BrowserStatus

	// ForceRestart tears down the current process and launches a new one
	ForceRestart(ctx context.Context) error

	// Close shuts the browser down
	Close() error
}

// SessionPort defines the durable session record surface. All operations
// serialize through one in-process mutex.
type SessionPort interface {
	// Save snapshots, filters and atomically persists the page's cookies
	Save(ctx context.Context, page PagePort) error

	// Load restores the record into the page and validates it against the
	// live site; false means a fresh login is required
	Load(ctx context.Context, page PagePort) (bool, error)

	// EnsureFresh revalidates only when the record is older than the
	// staleness threshold; true means the session can be trusted as-is
	EnsureFresh(ctx context.Context, page PagePort) (bool, error)
}

// SchedulerPort is the single entry point exposed to the API layer. Schedule
// always returns a well-formed result; the error is non-nil only for hard
// failures (auth total failure, budget exhaustion, queue shutdown).
type SchedulerPort interface {
	Schedule(ctx context.Context, targetURL string) (*ExtractionResult, error)

	// QueueDepth reports how many jobs are waiting, for diagnostics
	QueueDepth() int

	// Close stops intake and resolves queued jobs with a hard error
	Close()
}

// PipelinePort runs one scrape job end to end. The result is always
// non-nil; soft failures come back as placeholder results, not errors.
type PipelinePort interface {
	Run(ctx context.Context, job *ScrapeJob) (*ExtractionResult, error)
}

// RepositoryPort defines the interface for scrape history persistence.
type RepositoryPort interface {
	// Scrape record operations
	SaveScrape(ctx context.Context, record *ScrapeRecord) error
	GetScrapeByURL(ctx context.Context, url string) (*ScrapeRecord, error)
	ListRecentScrapes(ctx context.Context, limit int) ([]*ScrapeRecord, error)

	// Action log operations
	LogAction(ctx context.Context, action *ActionLog) error
	GetTodayActionCount(ctx context.Context, actionType string) (int64, error)
	GetActionsByDateRange(ctx context.Context, start, end time.Time) ([]*ActionLog, error)

	// Rate limiting
	CanPerformAction(ctx context.Context, actionType string, dailyLimit int) (bool, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// RaterPort defines the reasoning-service client surface.
type RaterPort interface {
	// Rate scores an extracted profile; failures degrade to a nil rating at
	// the API layer, never to a failed scrape
	Rate(ctx context.Context, result *ExtractionResult) (*Rating, error)
}
