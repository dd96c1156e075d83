package session

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"linkedin-scout/internal/core"
)

// fakePage is a scripted PagePort: Cookies returns a fixed set, CurrentURL
// returns whatever URL the test planted, and every call is recorded.
type fakePage struct {
	cookies   []core.Cookie
	url       string
	waitErr   error
	navigated []string
	setCalls  [][]core.Cookie
}

func (f *fakePage) Navigate(_ context.Context, url string) error {
	f.navigated = append(f.navigated, url)
	return nil
}
func (f *fakePage) CurrentURL(context.Context) (string, error) { return f.url, nil }
func (f *fakePage) HTML(context.Context) (string, error)       { return "", nil }
func (f *fakePage) WaitForElement(context.Context, string, time.Duration) error {
	return f.waitErr
}
func (f *fakePage) ElementExists(context.Context, string) (bool, error)    { return false, nil }
func (f *fakePage) IsElementVisible(context.Context, string) (bool, error) { return false, nil }
func (f *fakePage) GetText(context.Context, string) (string, error)        { return "", nil }
func (f *fakePage) HumanType(context.Context, string, string) error        { return nil }
func (f *fakePage) HumanClick(context.Context, string) error               { return nil }
func (f *fakePage) HumanScroll(context.Context, string, int) error         { return nil }
func (f *fakePage) RandomSleep(context.Context, float64, float64)          {}
func (f *fakePage) Cookies(context.Context, ...string) ([]core.Cookie, error) {
	return f.cookies, nil
}
func (f *fakePage) SetCookies(_ context.Context, cookies []core.Cookie) error {
	batch := make([]core.Cookie, len(cookies))
	copy(batch, cookies)
	f.setCalls = append(f.setCalls, batch)
	return nil
}
func (f *fakePage) Close() {}

func (f *fakePage) injected() []core.Cookie {
	var all []core.Cookie
	for _, batch := range f.setCalls {
		all = append(all, batch...)
	}
	return all
}

func setup(t testing.TB) (*Store, *core.Config) {
	cfg := &core.Config{}
	cfg.Session.Path = filepath.Join(t.TempDir(), "session.json")
	cfg.Session.StaleAfter = 30 * time.Minute
	cfg.Session.AllowedDomains = []string{"linkedin.com", ".linkedin.com", "www.linkedin.com", ".www.linkedin.com"}
	cfg.Session.InjectBatchSize = 2
	cfg.Session.ValidateTimeout = time.Second
	cfg.Browser.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) Test/1.0"
	cfg.Target.FeedURL = "https://www.linkedin.com/feed/"
	cfg.Selectors.FeedLandmark = "div.feed-identity-module"
	return New(cfg, zap.NewNop()), cfg
}

func sessionCookie(name, domain string) core.Cookie {
	return core.Cookie{Name: name, Value: name + "-value", Domain: domain, Path: "/"}
}

func TestSaveFiltersAndPersists(t *testing.T) {
	store, cfg := setup(t)
	future := float64(time.Now().Add(24 * time.Hour).Unix())

	page := &fakePage{cookies: []core.Cookie{
		{Name: "li_at", Value: "tok", Domain: ".linkedin.com", Path: "/", Expires: future},
		sessionCookie("JSESSIONID", ".www.linkedin.com"),
		sessionCookie("li_at", ".linkedin.com"), // duplicate, first one wins
		sessionCookie("IDE", ".doubleclick.net"),
	}}

	require.NoError(t, store.Save(context.Background(), page))

	data, err := os.ReadFile(cfg.Session.Path)
	require.NoError(t, err)

	var rec Record
	require.NoError(t, json.Unmarshal(data, &rec))
	require.Equal(t, recordVersion, rec.Version)
	require.Len(t, rec.UAHash, 12)
	require.Len(t, rec.Cookies, 2)
	require.Equal(t, "tok", rec.Cookies[0].Value)
	require.Equal(t, map[string]int{".linkedin.com": 1, ".www.linkedin.com": 1}, rec.DomainSummary)
}

func TestSaveRefusesEmptySession(t *testing.T) {
	store, cfg := setup(t)

	page := &fakePage{cookies: []core.Cookie{sessionCookie("IDE", ".doubleclick.net")}}
	require.Error(t, store.Save(context.Background(), page))

	_, err := os.Stat(cfg.Session.Path)
	require.True(t, os.IsNotExist(err))
}

func TestLoadRoundTrip(t *testing.T) {
	store, _ := setup(t)
	ctx := context.Background()
	future := float64(time.Now().Add(24 * time.Hour).Unix())

	saver := &fakePage{cookies: []core.Cookie{
		{Name: "li_at", Value: "tok", Domain: ".linkedin.com", Path: "/", Expires: future},
		sessionCookie("JSESSIONID", ".www.linkedin.com"),
		sessionCookie("bcookie", ".linkedin.com"),
	}}
	require.NoError(t, store.Save(ctx, saver))

	loader := &fakePage{url: "https://www.linkedin.com/feed/"}
	ok, err := store.Load(ctx, loader)
	require.NoError(t, err)
	require.True(t, ok)

	// Three cookies at batch size two means two injection calls.
	require.Len(t, loader.setCalls, 2)
	require.Len(t, loader.setCalls[0], 2)
	require.Len(t, loader.setCalls[1], 1)
	require.Len(t, loader.injected(), 3)
	require.Equal(t, []string{"https://www.linkedin.com/feed/"}, loader.navigated)
}

func TestLoadDropsExpiredCookies(t *testing.T) {
	store, _ := setup(t)
	ctx := context.Background()

	past := float64(time.Now().Add(-time.Hour).Unix())
	future := float64(time.Now().Add(24 * time.Hour).Unix())
	saver := &fakePage{cookies: []core.Cookie{
		{Name: "stale", Value: "x", Domain: ".linkedin.com", Path: "/", Expires: past},
		{Name: "li_at", Value: "tok", Domain: ".linkedin.com", Path: "/", Expires: future},
	}}
	require.NoError(t, store.Save(ctx, saver))

	loader := &fakePage{url: "https://www.linkedin.com/feed/"}
	ok, err := store.Load(ctx, loader)
	require.NoError(t, err)
	require.True(t, ok)

	injected := loader.injected()
	require.Len(t, injected, 1)
	require.Equal(t, "li_at", injected[0].Name)
}

func TestLoadAllCookiesExpired(t *testing.T) {
	store, _ := setup(t)
	ctx := context.Background()

	past := float64(time.Now().Add(-time.Hour).Unix())
	saver := &fakePage{cookies: []core.Cookie{
		{Name: "stale", Value: "x", Domain: ".linkedin.com", Path: "/", Expires: past},
	}}
	require.NoError(t, store.Save(ctx, saver))

	loader := &fakePage{url: "https://www.linkedin.com/feed/"}
	ok, err := store.Load(ctx, loader)
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, loader.setCalls)
	require.Empty(t, loader.navigated)
}

func TestLoadRejectedByAuthRedirect(t *testing.T) {
	store, _ := setup(t)
	ctx := context.Background()

	saver := &fakePage{cookies: []core.Cookie{sessionCookie("li_at", ".linkedin.com")}}
	require.NoError(t, store.Save(ctx, saver))

	loader := &fakePage{url: "https://www.linkedin.com/login?session_redirect=%2Ffeed"}
	ok, err := store.Load(ctx, loader)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLoadRejectedWhenFeedLandmarkMissing(t *testing.T) {
	store, _ := setup(t)
	ctx := context.Background()

	saver := &fakePage{cookies: []core.Cookie{sessionCookie("li_at", ".linkedin.com")}}
	require.NoError(t, store.Save(ctx, saver))

	loader := &fakePage{
		url:     "https://www.linkedin.com/feed/",
		waitErr: context.DeadlineExceeded,
	}
	ok, err := store.Load(ctx, loader)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLoadWithoutRecord(t *testing.T) {
	store, _ := setup(t)

	page := &fakePage{}
	ok, err := store.Load(context.Background(), page)
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, page.navigated)
}

func TestLoadIgnoresUnknownVersion(t *testing.T) {
	store, cfg := setup(t)

	rec := Record{
		Version: recordVersion + 1,
		SavedAt: time.Now(),
		Cookies: []core.Cookie{sessionCookie("li_at", ".linkedin.com")},
	}
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.Session.Path), 0755))
	require.NoError(t, os.WriteFile(cfg.Session.Path, data, 0600))

	page := &fakePage{}
	ok, err := store.Load(context.Background(), page)
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, page.setCalls)
}

func TestLoadRecoversFromBackup(t *testing.T) {
	store, cfg := setup(t)
	ctx := context.Background()

	saver := &fakePage{cookies: []core.Cookie{sessionCookie("li_at", ".linkedin.com")}}
	require.NoError(t, store.Save(ctx, saver))
	// Second save moves the first record into the .bak slot.
	require.NoError(t, store.Save(ctx, saver))
	require.NoError(t, os.WriteFile(cfg.Session.Path, []byte("{torn"), 0600))

	loader := &fakePage{url: "https://www.linkedin.com/feed/"}
	ok, err := store.Load(ctx, loader)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, loader.injected(), 1)
}

func TestEnsureFreshWithinWindow(t *testing.T) {
	store, _ := setup(t)
	ctx := context.Background()

	saver := &fakePage{cookies: []core.Cookie{sessionCookie("li_at", ".linkedin.com")}}
	require.NoError(t, store.Save(ctx, saver))

	page := &fakePage{}
	ok, err := store.EnsureFresh(ctx, page)
	require.NoError(t, err)
	require.True(t, ok)
	// Fresh enough: no live revalidation.
	require.Empty(t, page.navigated)
}

func TestEnsureFreshRevalidatesStaleRecord(t *testing.T) {
	store, cfg := setup(t)
	ctx := context.Background()

	rec := Record{
		Version:         recordVersion,
		SavedAt:         time.Now().Add(-2 * time.Hour),
		LastValidatedAt: time.Now().Add(-2 * time.Hour),
		Cookies:         []core.Cookie{sessionCookie("li_at", ".linkedin.com")},
	}
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.Session.Path), 0755))
	require.NoError(t, os.WriteFile(cfg.Session.Path, data, 0600))

	page := &fakePage{url: "https://www.linkedin.com/feed/"}
	ok, err := store.EnsureFresh(ctx, page)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"https://www.linkedin.com/feed/"}, page.navigated)

	// Revalidation bumps the persisted timestamp.
	raw, err := os.ReadFile(cfg.Session.Path)
	require.NoError(t, err)
	var updated Record
	require.NoError(t, json.Unmarshal(raw, &updated))
	require.WithinDuration(t, time.Now(), updated.LastValidatedAt, 5*time.Second)
}

func TestEnsureFreshStaleAndRejected(t *testing.T) {
	store, cfg := setup(t)
	ctx := context.Background()

	rec := Record{
		Version:         recordVersion,
		SavedAt:         time.Now().Add(-2 * time.Hour),
		LastValidatedAt: time.Now().Add(-2 * time.Hour),
		Cookies:         []core.Cookie{sessionCookie("li_at", ".linkedin.com")},
	}
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.Session.Path), 0755))
	require.NoError(t, os.WriteFile(cfg.Session.Path, data, 0600))

	page := &fakePage{url: "https://www.linkedin.com/authwall?trk=..."}
	ok, err := store.EnsureFresh(ctx, page)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEnsureFreshWithoutRecord(t *testing.T) {
	store, _ := setup(t)

	ok, err := store.EnsureFresh(context.Background(), &fakePage{})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIsAuthRedirect(t *testing.T) {
	require.True(t, isAuthRedirect("https://www.linkedin.com/login"))
	require.True(t, isAuthRedirect("https://www.linkedin.com/checkpoint/challenge/xyz"))
	require.True(t, isAuthRedirect("https://www.linkedin.com/authwall?trk=x"))
	require.False(t, isAuthRedirect("https://www.linkedin.com/feed/"))
	require.False(t, isAuthRedirect("https://www.linkedin.com/in/someone/"))
}
