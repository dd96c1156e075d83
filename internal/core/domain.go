package core

import "time"

// Confidence marks which extraction strategy produced a field value.
type Confidence string

const (
	ConfidencePrimary   Confidence = "primary"   // structure-specific selector matched
	ConfidenceHeuristic Confidence = "heuristic" // text-node fallback pass produced the value
	ConfidenceFallback  Confidence = "fallback"  // nothing matched; explicit empty placeholder
)

// Field is one extracted value together with its provenance.
type Field struct {
	Value      string     `json:"value"`
	Confidence Confidence `json:"confidence"`
}

// JobOutcome classifies the overall result of one scrape job.
type JobOutcome string

const (
	OutcomeSuccess     JobOutcome = "success"      // all identity fields and at least one work entry at primary confidence
	OutcomePartial     JobOutcome = "partial"      // extracted, but some fields are heuristic or empty
	OutcomeSoftFailure JobOutcome = "soft_failure" // placeholder result; Reason names the cause
)

// Soft-failure reasons reported in ExtractionResult.Reason.
const (
	ReasonCheckpoint = "checkpoint"
	ReasonNoSession  = "no_session"
	ReasonNavigation = "navigation"
	ReasonEmpty      = "empty_profile"
)

// YearMonth is a parsed tenure boundary. Month is 0 when the source text
// carried only a year.
type YearMonth struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// WorkEntry is one work-history item in the order it appeared on the page.
type WorkEntry struct {
	Title       Field      `json:"title"`
	Company     Field      `json:"company"`
	DateRange   Field      `json:"date_range"` // free text as shown on the page
	StartDate   *YearMonth `json:"start_date,omitempty"`
	EndDate     *YearMonth `json:"end_date,omitempty"` // nil while Current is true
	Current     bool       `json:"current"`
	Description Field      `json:"description"`
}

// ExtractionResult is the structured output of one scrape job. It is handed
// to the caller and never retained by this core.
type ExtractionResult struct {
	TargetURL  string      `json:"target_url"`
	Name       Field       `json:"name"`
	Headline   Field       `json:"headline"`
	Location   Field       `json:"location"`
	Summary    Field       `json:"summary"`
	Experience []WorkEntry `json:"experience"`
	Outcome    JobOutcome  `json:"outcome"`
	Reason     string      `json:"reason,omitempty"`
	Rating     *Rating     `json:"rating,omitempty"` // set when the rating backend is enabled
	ScrapedAt  time.Time   `json:"scraped_at"`
}

// NewPlaceholderResult builds the well-formed soft-failure shape callers
// receive when a job could not extract anything.
func NewPlaceholderResult(targetURL, reason string) *ExtractionResult {
	empty := Field{Value: "", Confidence: ConfidenceFallback}
	return &ExtractionResult{
		TargetURL:  targetURL,
		Name:       empty,
		Headline:   empty,
		Location:   empty,
		Summary:    empty,
		Experience: []WorkEntry{},
		Outcome:    OutcomeSoftFailure,
		Reason:     reason,
		ScrapedAt:  time.Now(),
	}
}

// ScrapeJob is one request to extract one target's data. Owned by the
// scheduler from enqueue to completion; never persisted.
type ScrapeJob struct {
	TargetURL  string    `json:"target_url"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	StartedAt  time.Time `json:"started_at"`
}

// Cookie is the wire-independent cookie representation persisted in the
// session record. Expires is seconds since epoch; values <= 0 mean a
// session cookie without expiry.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// Expired reports whether the cookie carried an expiry that has passed.
func (c Cookie) Expired(now time.Time) bool {
	return c.Expires > 0 && time.Unix(int64(c.Expires), 0).Before(now)
}

// BrowserStatus is the cheap diagnostic reported to the health endpoint.
type BrowserStatus struct {
	Alive   bool   `json:"alive"`
	Version string `json:"version,omitempty"`
}

// Rating is the reasoning service's verdict on an extracted profile.
type Rating struct {
	Score     int    `json:"score"` // 1-10
	Narrative string `json:"narrative"`
	Model     string `json:"model,omitempty"`
}

// ScrapeRecord is the persisted outcome summary for one target URL.
type ScrapeRecord struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	TargetURL     string    `gorm:"uniqueIndex;not null" json:"target_url"`
	Name          string    `json:"name"`
	Headline      string    `json:"headline"`
	Outcome       string    `gorm:"index;not null" json:"outcome"`
	Reason        string    `json:"reason,omitempty"`
	EntryCount    int       `json:"entry_count"`
	ScrapeCount   int       `json:"scrape_count"`
	RatingScore   int       `json:"rating_score,omitempty"`
	RatingNote    string    `gorm:"type:text" json:"rating_note,omitempty"`
	LastScrapedAt time.Time `json:"last_scraped_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ActionLog is an append-only record of browser-touching actions, used by
// the daily action budget.
type ActionLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ActionType string    `gorm:"index;not null" json:"action_type"` // Scrape, Login, Checkpoint
	Details    string    `gorm:"type:text" json:"details"`
	Timestamp  time.Time `gorm:"index;not null" json:"timestamp"`
}

// Action types recorded in the ActionLog.
const (
	ActionScrape     = "Scrape"
	ActionLogin      = "Login"
	ActionCheckpoint = "Checkpoint"
)
