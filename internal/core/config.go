package core

import "time"

// CredentialsConfig holds the login identity for interactive authentication.
type CredentialsConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// BrowserConfig holds browser process launch settings.
type BrowserConfig struct {
	BinPath      string        `mapstructure:"bin_path"` // empty = resolve from PATH, then managed download
	Headless     bool          `mapstructure:"headless"`
	UserAgent    string        `mapstructure:"user_agent"`
	ProxyURL     string        `mapstructure:"proxy_url"`
	ProxyUser    string        `mapstructure:"proxy_user"`
	ProxyPass    string        `mapstructure:"proxy_pass"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"` // liveness round-trip bound
}

// SessionConfig holds session record persistence settings.
type SessionConfig struct {
	Path            string        `mapstructure:"path"`
	StaleAfter      time.Duration `mapstructure:"stale_after"`
	AllowedDomains  []string      `mapstructure:"allowed_domains"`
	InjectBatchSize int           `mapstructure:"inject_batch_size"`
	ValidateTimeout time.Duration `mapstructure:"validate_timeout"`
}

// SchedulerConfig holds job pacing settings.
type SchedulerConfig struct {
	MinJobInterval time.Duration `mapstructure:"min_job_interval"` // hard minimum between job starts
	QueueSize      int           `mapstructure:"queue_size"`
	JobTimeout     time.Duration `mapstructure:"job_timeout"`
}

// LimitsConfig holds the daily action budget and working hours window.
type LimitsConfig struct {
	MaxScrapesPerDay  int    `mapstructure:"max_scrapes_per_day"`
	WorkingHoursOnly  bool   `mapstructure:"working_hours_only"`
	WorkingHoursStart string `mapstructure:"working_hours_start"` // Format: "09:00"
	WorkingHoursEnd   string `mapstructure:"working_hours_end"`   // Format: "17:00"
}

// HumanConfig holds humanization parameters for typed input, mouse paths
// and scrolling.
type HumanConfig struct {
	TypingSpeedMin    int     `mapstructure:"typing_speed_min"` // WPM minimum
	TypingSpeedMax    int     `mapstructure:"typing_speed_max"` // WPM maximum
	TypoProbability   float64 `mapstructure:"typo_probability"` // 0.0-1.0
	MouseSpeedMin     float64 `mapstructure:"mouse_speed_min"`  // speed multiplier
	MouseSpeedMax     float64 `mapstructure:"mouse_speed_max"`
	OvershootChance   float64 `mapstructure:"overshoot_chance"` // 0.0-1.0
	ScrollChunkMin    int     `mapstructure:"scroll_chunk_min"` // pixels
	ScrollChunkMax    int     `mapstructure:"scroll_chunk_max"`
	BaseDelayMin      float64 `mapstructure:"base_delay_min"` // seconds
	BaseDelayMax      float64 `mapstructure:"base_delay_max"`
	ViewportWidthMin  int     `mapstructure:"viewport_width_min"`
	ViewportWidthMax  int     `mapstructure:"viewport_width_max"`
	ViewportHeightMin int     `mapstructure:"viewport_height_min"`
	ViewportHeightMax int     `mapstructure:"viewport_height_max"`
}

// SelectorsConfig holds the CSS selectors for the login/auth flow. The
// extraction strategy lists live in the extract package; these cover only
// the pages the pipeline must interact with.
type SelectorsConfig struct {
	LoginEmailInput    string `mapstructure:"login_email_input"`
	LoginPasswordInput string `mapstructure:"login_password_input"`
	LoginSubmitButton  string `mapstructure:"login_submit_button"`
	FeedLandmark       string `mapstructure:"feed_landmark"` // authenticated-only DOM landmark
	CaptchaFrame       string `mapstructure:"captcha_frame"`
	TwoFactorInput     string `mapstructure:"two_factor_input"`
}

// PipelineConfig holds navigation and extraction bounds.
type PipelineConfig struct {
	NavTimeout     time.Duration `mapstructure:"nav_timeout"`
	ElementTimeout time.Duration `mapstructure:"element_timeout"`
	LoginTimeout   time.Duration `mapstructure:"login_timeout"`
	DumpFailedHTML bool          `mapstructure:"dump_failed_html"` // write page HTML to dump_dir when extraction comes back empty
	DumpDir        string        `mapstructure:"dump_dir"`
}

// TargetConfig holds the target site URLs.
type TargetConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	LoginURL string `mapstructure:"login_url"`
	FeedURL  string `mapstructure:"feed_url"`
}

// DatabaseConfig holds the SQLite path for scrape history.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// RatingConfig holds the reasoning-service client settings.
type RatingConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// APIConfig holds the HTTP boundary settings.
type APIConfig struct {
	Addr string `mapstructure:"addr"`
}

// Config represents the application configuration.
type Config struct {
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Browser     BrowserConfig     `mapstructure:"browser"`
	Session     SessionConfig     `mapstructure:"session"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Limits      LimitsConfig      `mapstructure:"limits"`
	Human       HumanConfig       `mapstructure:"human"`
	Selectors   SelectorsConfig   `mapstructure:"selectors"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline"`
	Target      TargetConfig      `mapstructure:"target"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Rating      RatingConfig      `mapstructure:"rating"`
	API         APIConfig         `mapstructure:"api"`
}
