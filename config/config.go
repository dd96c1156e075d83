package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"linkedin-scout/internal/core"
)

// Load loads configuration from config.yaml and environment variables
func Load(configPath string) (*core.Config, error) {
	cfg := &core.Config{}

	// Set default values
	setDefaults()

	// Set config file path
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		// Default to config.yaml in current directory
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	// Enable environment variable support
	viper.SetEnvPrefix("SCOUT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, but we can continue with defaults and env vars
	}

	// Unmarshal into struct
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Override secrets from environment if present
	if email := os.Getenv("SCOUT_EMAIL"); email != "" {
		cfg.Credentials.Email = email
	}
	if password := os.Getenv("SCOUT_PASSWORD"); password != "" {
		cfg.Credentials.Password = password
	}
	if key := os.Getenv("SCOUT_RATING_API_KEY"); key != "" {
		cfg.Rating.APIKey = key
	}

	// Validate required fields
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Credentials (should be set via env or config)
	viper.SetDefault("credentials.email", "")
	viper.SetDefault("credentials.password", "")

	// Browser defaults
	viper.SetDefault("browser.bin_path", "")
	viper.SetDefault("browser.headless", true)
	viper.SetDefault("browser.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	viper.SetDefault("browser.proxy_url", "")
	viper.SetDefault("browser.proxy_user", "")
	viper.SetDefault("browser.proxy_pass", "")
	viper.SetDefault("browser.probe_timeout", "3s")

	// Session defaults
	viper.SetDefault("session.path", "data/session.json")
	viper.SetDefault("session.stale_after", "30m")
	viper.SetDefault("session.allowed_domains", []string{"linkedin.com", ".linkedin.com", "www.linkedin.com", ".www.linkedin.com"})
	viper.SetDefault("session.inject_batch_size", 50)
	viper.SetDefault("session.validate_timeout", "15s")

	// Scheduler defaults
	viper.SetDefault("scheduler.min_job_interval", "45s")
	viper.SetDefault("scheduler.queue_size", 32)
	viper.SetDefault("scheduler.job_timeout", "4m")

	// Limits defaults
	viper.SetDefault("limits.max_scrapes_per_day", 50)
	viper.SetDefault("limits.working_hours_only", false)
	viper.SetDefault("limits.working_hours_start", "09:00")
	viper.SetDefault("limits.working_hours_end", "17:00")

	// Humanization defaults
	viper.SetDefault("human.typing_speed_min", 40)
	viper.SetDefault("human.typing_speed_max", 80)
	viper.SetDefault("human.typo_probability", 0.02) // 1 in 50 chars
	viper.SetDefault("human.mouse_speed_min", 0.5)
	viper.SetDefault("human.mouse_speed_max", 1.5)
	viper.SetDefault("human.overshoot_chance", 0.3)
	viper.SetDefault("human.scroll_chunk_min", 50)
	viper.SetDefault("human.scroll_chunk_max", 200)
	viper.SetDefault("human.base_delay_min", 0.1)
	viper.SetDefault("human.base_delay_max", 0.5)
	viper.SetDefault("human.viewport_width_min", 1360)
	viper.SetDefault("human.viewport_width_max", 1920)
	viper.SetDefault("human.viewport_height_min", 768)
	viper.SetDefault("human.viewport_height_max", 1080)

	// Pipeline bounds
	viper.SetDefault("pipeline.nav_timeout", "30s")
	viper.SetDefault("pipeline.element_timeout", "10s")
	viper.SetDefault("pipeline.login_timeout", "45s")
	viper.SetDefault("pipeline.dump_failed_html", false)
	viper.SetDefault("pipeline.dump_dir", "data")

	// Target URLs
	viper.SetDefault("target.base_url", "https://www.linkedin.com")
	viper.SetDefault("target.login_url", "https://www.linkedin.com/login")
	viper.SetDefault("target.feed_url", "https://www.linkedin.com/feed/")

	// Database
	viper.SetDefault("database.path", "data/scout.db")

	// Rating service
	viper.SetDefault("rating.enabled", false)
	viper.SetDefault("rating.base_url", "https://api.openai.com/v1")
	viper.SetDefault("rating.api_key", "")
	viper.SetDefault("rating.model", "gpt-4o-mini")
	viper.SetDefault("rating.timeout", "60s")

	// HTTP API
	viper.SetDefault("api.addr", ":8080")

	// Selectors (default LinkedIn selectors - may need updates)
	viper.SetDefault("selectors.login_email_input", "#username")
	viper.SetDefault("selectors.login_password_input", "#password")
	viper.SetDefault("selectors.login_submit_button", "button[type='submit']")
	viper.SetDefault("selectors.feed_landmark", "div.feed-identity-module, aside[aria-label*='profile'], div.scaffold-layout__sidebar")
	viper.SetDefault("selectors.captcha_frame", "#captcha-internal")
	viper.SetDefault("selectors.two_factor_input", "input[type='text'][name='pin']")
}

// validateConfig validates that required configuration fields are set
func validateConfig(cfg *core.Config) error {
	if cfg.Credentials.Email == "" {
		return fmt.Errorf("credentials.email is required (set via config or SCOUT_EMAIL env var)")
	}
	if cfg.Credentials.Password == "" {
		return fmt.Errorf("credentials.password is required (set via config or SCOUT_PASSWORD env var)")
	}
	if cfg.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if cfg.Session.Path == "" {
		return fmt.Errorf("session.path is required")
	}
	if cfg.Scheduler.MinJobInterval <= 0 {
		return fmt.Errorf("scheduler.min_job_interval must be positive")
	}
	if len(cfg.Session.AllowedDomains) == 0 {
		return fmt.Errorf("session.allowed_domains must not be empty")
	}
	if cfg.Rating.Enabled && cfg.Rating.APIKey == "" {
		return fmt.Errorf("rating.api_key is required when rating.enabled is true (set via SCOUT_RATING_API_KEY)")
	}
	if cfg.Limits.WorkingHoursOnly {
		for _, v := range []string{cfg.Limits.WorkingHoursStart, cfg.Limits.WorkingHoursEnd} {
			if _, err := time.Parse("15:04", v); err != nil {
				return fmt.Errorf("working hours must use HH:MM format: %w", err)
			}
		}
	}
	return nil
}
