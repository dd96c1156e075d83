package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	rodstealth "github.com/go-rod/stealth"
	"go.uber.org/zap"

	"linkedin-scout/internal/core"
	"linkedin-scout/internal/human"
)

// Manager owns the single controlled browser process. All page creation
// goes through it; a failed liveness probe or page creation triggers one
// transparent relaunch before errors surface to the caller. A browser is
// never torn down mid-page-operation - in-flight calls fail with their own
// errors and the next NewPage recovers.
type Manager struct {
	cfg    *core.Config
	human  *human.Humanizer
	logger *zap.Logger

	mu       sync.RWMutex
	browser  *rod.Browser
	launcher *launcher.Launcher

	// lifecycle seams, replaced in tests; default to the real implementations
	launch   func(ctx context.Context) (*rod.Browser, *launcher.Launcher, error)
	probe    func(ctx context.Context, b *rod.Browser) (string, error)
	open     func(ctx context.Context, b *rod.Browser) (core.PagePort, error)
	shutdown func(b *rod.Browser, l *launcher.Launcher)
}

// NewManager creates a browser process manager. The browser itself is
// launched lazily on first use.
func NewManager(cfg *core.Config, humanizer *human.Humanizer, logger *zap.Logger) *Manager {
	m := &Manager{
		cfg:    cfg,
		human:  humanizer,
		logger: logger,
	}
	m.launch = m.launchBrowser
	m.probe = m.probeVersion
	m.open = m.openPage
	m.shutdown = m.shutdownBrowser
	return m
}

// Acquire returns a live browser, launching on first use and relaunching
// transparently when the cached process fails its liveness probe.
func (m *Manager) Acquire(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquireLocked(ctx)
}

func (m *Manager) acquireLocked(ctx context.Context) (*rod.Browser, error) {
	if m.browser != nil {
		_, err := m.probe(ctx, m.browser)
		if err == nil {
			return m.browser, nil
		}
		m.logger.Warn("Liveness probe failed, relaunching browser", zap.Error(err))
		m.cleanupLocked()
	}

	b, l, err := m.launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	m.browser = b
	m.launcher = l
	return b, nil
}

// NewPage obtains a fresh fingerprint-normalized browsing context. Page
// creation retries exactly once after a forced relaunch; a second failure
// is a hard error.
func (m *Manager) NewPage(ctx context.Context) (core.PagePort, error) {
	b, err := m.Acquire(ctx)
	if err != nil {
		return nil, core.NewScrapeError(core.ErrCodeBrowser, "browser unavailable", err)
	}

	page, err := m.open(ctx, b)
	if err == nil {
		return page, nil
	}

	m.logger.Warn("Page creation failed, forcing browser relaunch", zap.Error(err))
	if rerr := m.ForceRestart(ctx); rerr != nil {
		return nil, core.NewScrapeError(core.ErrCodeBrowser, "browser relaunch failed", rerr)
	}

	m.mu.RLock()
	b = m.browser
	m.mu.RUnlock()

	page, err = m.open(ctx, b)
	if err != nil {
		return nil, core.NewScrapeError(core.ErrCodeBrowser, "page creation failed after relaunch", err)
	}
	return page, nil
}

// Status reports process liveness and the browser version string.
func (m *Manager) Status(ctx context.Context) core.BrowserStatus {
	m.mu.RLock()
	b := m.browser
	m.mu.RUnlock()

	if b == nil {
		return core.BrowserStatus{Alive: false}
	}

	version, err := m.probe(ctx, b)
	if err != nil {
		return core.BrowserStatus{Alive: false}
	}

	return core.BrowserStatus{Alive: true, Version: version}
}

// ForceRestart tears down the current process and launches a new one.
func (m *Manager) ForceRestart(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cleanupLocked()
	if _, err := m.acquireLocked(ctx); err != nil {
		return err
	}
	return nil
}

// Close shuts the browser process down.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cleanupLocked()
	m.logger.Info("Browser closed")
	return nil
}

func (m *Manager) cleanupLocked() {
	if m.browser != nil || m.launcher != nil {
		m.shutdown(m.browser, m.launcher)
	}
	m.browser = nil
	m.launcher = nil
}

func (m *Manager) shutdownBrowser(b *rod.Browser, l *launcher.Launcher) {
	if b != nil {
		if err := b.Close(); err != nil {
			m.logger.Debug("Error closing browser", zap.Error(err))
		}
	}
	if l != nil {
		l.Cleanup()
	}
}

// launchBrowser starts the process with the anti-detection flag set and
// connects to its control channel.
func (m *Manager) launchBrowser(ctx context.Context) (*rod.Browser, *launcher.Launcher, error) {
	l := launcher.New().
		Headless(m.cfg.Browser.Headless).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-infobars").
		Set("disable-dev-shm-usage").
		Set("no-first-run").
		Set("no-default-browser-check").
		Delete("enable-automation")

	if m.cfg.Browser.ProxyURL != "" {
		l = l.Proxy(m.cfg.Browser.ProxyURL)
	}

	// Resolution order: explicit override, system install, managed download.
	bin := m.cfg.Browser.BinPath
	if bin == "" {
		if found, has := launcher.LookPath(); has {
			bin = found
		} else {
			downloaded, err := launcher.NewBrowser().Get()
			if err != nil {
				return nil, nil, fmt.Errorf("no browser executable found: %w", err)
			}
			bin = downloaded
		}
	}
	l = l.Bin(bin)

	controlURL, err := l.Launch()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	if m.cfg.Browser.ProxyUser != "" {
		go func() {
			_ = b.HandleAuth(m.cfg.Browser.ProxyUser, m.cfg.Browser.ProxyPass)()
		}()
	}

	m.logger.Info("Browser launched",
		zap.String("bin", bin),
		zap.Bool("headless", m.cfg.Browser.Headless),
	)

	return b, l, nil
}

// probeVersion is the liveness probe: a Browser.getVersion round-trip that
// must complete within the configured bound.
func (m *Manager) probeVersion(ctx context.Context, b *rod.Browser) (string, error) {
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.Browser.ProbeTimeout)
	defer cancel()

	res, err := proto.BrowserGetVersion{}.Call(b.Context(probeCtx))
	if err != nil {
		return "", fmt.Errorf("liveness probe failed: %w", err)
	}
	return res.Product, nil
}

// openPage creates a stealth page and normalizes its fingerprint before
// any navigation happens.
func (m *Manager) openPage(ctx context.Context, b *rod.Browser) (core.PagePort, error) {
	p, err := rodstealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("failed to create stealth page: %w", err)
	}

	width, height := m.human.Viewport()
	if err := normalize(p, m.cfg.Browser.UserAgent, width, height); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to normalize fingerprint: %w", err)
	}

	m.logger.Debug("Page created", zap.Int("width", width), zap.Int("height", height))

	return newPage(p, m.cfg, m.human, m.logger, float64(width), float64(height)), nil
}
