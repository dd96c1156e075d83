package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"linkedin-scout/internal/core"
	"linkedin-scout/internal/human"
)

// Page wraps one rod browsing context behind core.PagePort. Input is
// dispatched through CDP so the page sees isTrusted events, and the cursor
// position persists across calls so consecutive movements connect.
type Page struct {
	page   *rod.Page
	cfg    *core.Config
	human  *human.Humanizer
	logger *zap.Logger
	mouseX float64
	mouseY float64
}

func newPage(p *rod.Page, cfg *core.Config, humanizer *human.Humanizer, logger *zap.Logger, width, height float64) *Page {
	return &Page{
		page:   p,
		cfg:    cfg,
		human:  humanizer,
		logger: logger,
		mouseX: width / 2,
		mouseY: height / 2,
	}
}

// Navigate navigates to a URL with a human-like settle delay and waits for
// the load event.
func (p *Page) Navigate(ctx context.Context, url string) error {
	p.human.Sleep(ctx, 0.5, 1.0)

	page := p.page.Context(ctx).Timeout(p.cfg.Pipeline.NavTimeout)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("failed to wait for page load: %w", err)
	}

	p.human.Sleep(ctx, 1.0, 2.0)
	return nil
}

// CurrentURL returns the page's current URL.
func (p *Page) CurrentURL(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("failed to get page info: %w", err)
	}
	return info.URL, nil
}

// HTML returns a snapshot of the full page markup.
func (p *Page) HTML(ctx context.Context) (string, error) {
	html, err := p.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("failed to get page HTML: %w", err)
	}
	return html, nil
}

// WaitForElement waits for an element to appear with timeout.
func (p *Page) WaitForElement(ctx context.Context, selector string, timeout time.Duration) error {
	if _, err := p.page.Context(ctx).Timeout(timeout).Element(selector); err != nil {
		return fmt.Errorf("element not found: %s: %w", selector, err)
	}
	return nil
}

// ElementExists checks if an element exists on the page without waiting.
func (p *Page) ElementExists(ctx context.Context, selector string) (bool, error) {
	has, _, err := p.page.Context(ctx).Has(selector)
	if err != nil {
		return false, fmt.Errorf("failed to query element: %w", err)
	}
	return has, nil
}

// IsElementVisible checks if an element exists and takes up real space.
func (p *Page) IsElementVisible(ctx context.Context, selector string) (bool, error) {
	has, elem, err := p.page.Context(ctx).Has(selector)
	if err != nil || !has {
		return false, nil
	}

	visible, err := elem.Visible()
	if err != nil || !visible {
		return false, nil
	}

	// Ignore 1x1 tracking pixels and collapsed frames; a real challenge
	// frame or landmark has substance.
	res, err := elem.Eval(`() => {
const rect = this.getBoundingClientRect();
return rect.width > 50 && rect.height > 50;
}`)
	if err != nil {
		return false, nil
	}

	return res.Value.Bool(), nil
}

// GetText extracts text content from an element.
func (p *Page) GetText(ctx context.Context, selector string) (string, error) {
	elem, err := p.page.Context(ctx).Timeout(p.cfg.Pipeline.ElementTimeout).Element(selector)
	if err != nil {
		return "", fmt.Errorf("element not found: %s: %w", selector, err)
	}

	text, err := elem.Text()
	if err != nil {
		return "", fmt.Errorf("failed to get text: %w", err)
	}
	return text, nil
}

// HumanType types text into an element with human-like cadence; typos are
// made and corrected, backspace goes through the keyboard so the page sees
// the edit.
func (p *Page) HumanType(ctx context.Context, selector string, text string) error {
	page := p.page.Context(ctx)
	if _, err := page.Timeout(p.cfg.Pipeline.ElementTimeout).Element(selector); err != nil {
		return fmt.Errorf("element not found: %s: %w", selector, err)
	}

	elem, err := page.Element(selector)
	if err != nil {
		return fmt.Errorf("failed to get element: %w", err)
	}

	// Click to focus
	if err := p.HumanClick(ctx, selector); err != nil {
		return fmt.Errorf("failed to focus element: %w", err)
	}

	actions, err := p.human.TypingActions(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to generate typing actions: %w", err)
	}

	for _, action := range actions {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if action.Kind == human.ActionKey {
			if action.Key == "\b" {
				if err := p.page.Keyboard.Press(input.Backspace); err != nil {
					return fmt.Errorf("failed to press backspace: %w", err)
				}
			} else if err := elem.Input(action.Key); err != nil {
				return fmt.Errorf("failed to input key: %w", err)
			}
		}

		if action.Delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(action.Delay):
			}
		}
	}

	return nil
}

// HumanClick clicks an element via a Bézier-path mouse movement.
func (p *Page) HumanClick(ctx context.Context, selector string) error {
	page := p.page.Context(ctx)
	if _, err := page.Timeout(p.cfg.Pipeline.ElementTimeout).Element(selector); err != nil {
		return fmt.Errorf("element not found: %s: %w", selector, err)
	}

	elem, err := page.Element(selector)
	if err != nil {
		return fmt.Errorf("failed to get element: %w", err)
	}

	return p.clickElement(ctx, elem)
}

func (p *Page) clickElement(ctx context.Context, elem *rod.Element) error {
	centerX, centerY, err := elementCenter(elem)
	if err != nil {
		return err
	}

	// CDP-dispatched movement produces isTrusted events, unlike anything
	// generated from page JavaScript.
	for _, pt := range p.human.CursorPath(p.mouseX, p.mouseY, centerX, centerY) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := proto.InputDispatchMouseEvent{
			Type: proto.InputDispatchMouseEventTypeMouseMoved,
			X:    pt.X,
			Y:    pt.Y,
		}.Call(p.page)
		if err != nil {
			p.logger.Debug("Failed to move mouse", zap.Error(err))
		}

		p.mouseX = pt.X
		p.mouseY = pt.Y

		time.Sleep(time.Duration(rand.Intn(11)+5) * time.Millisecond)
	}

	p.human.Sleep(ctx, 0.1, 0.2)

	err = proto.InputDispatchMouseEvent{
		Type:       proto.InputDispatchMouseEventTypeMousePressed,
		X:          centerX,
		Y:          centerY,
		Button:     proto.InputMouseButtonLeft,
		ClickCount: 1,
	}.Call(p.page)
	if err != nil {
		return fmt.Errorf("failed to mouse down: %w", err)
	}

	// Human click duration
	time.Sleep(time.Duration(rand.Intn(50)+50) * time.Millisecond)

	err = proto.InputDispatchMouseEvent{
		Type:       proto.InputDispatchMouseEventTypeMouseReleased,
		X:          centerX,
		Y:          centerY,
		Button:     proto.InputMouseButtonLeft,
		ClickCount: 1,
	}.Call(p.page)
	if err != nil {
		return fmt.Errorf("failed to mouse up: %w", err)
	}

	return nil
}

// HumanScroll scrolls the page in eased chunks via mouse wheel events.
func (p *Page) HumanScroll(ctx context.Context, direction string, distance int) error {
	actions, err := p.human.ScrollActions(ctx, direction, distance)
	if err != nil {
		return fmt.Errorf("failed to generate scroll actions: %w", err)
	}

	for _, action := range actions {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if action.Distance != 0 {
			err := proto.InputDispatchMouseEvent{
				Type:   proto.InputDispatchMouseEventTypeMouseWheel,
				X:      p.mouseX,
				Y:      p.mouseY,
				DeltaX: 0,
				DeltaY: float64(action.Distance),
			}.Call(p.page)
			if err != nil {
				p.logger.Debug("CDP scroll failed, falling back to keyboard", zap.Error(err))
				if action.Distance > 0 {
					_ = p.page.Keyboard.Press(input.ArrowDown)
				} else {
					_ = p.page.Keyboard.Press(input.ArrowUp)
				}
			}
		}

		if action.Delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(action.Delay):
			}
		}
	}

	return nil
}

// RandomSleep pauses for a jittered duration.
func (p *Page) RandomSleep(ctx context.Context, minSeconds, maxSeconds float64) {
	p.human.Sleep(ctx, minSeconds, maxSeconds)
}

// Cookies snapshots the cookies visible to the given URLs; with no URLs it
// returns every cookie in the browsing context.
func (p *Page) Cookies(ctx context.Context, urls ...string) ([]core.Cookie, error) {
	cookies, err := p.page.Context(ctx).Cookies(urls)
	if err != nil {
		return nil, fmt.Errorf("failed to get cookies: %w", err)
	}

	out := make([]core.Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, core.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  float64(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}
	return out, nil
}

// SetCookies injects cookies into the browsing context.
func (p *Page) SetCookies(ctx context.Context, cookies []core.Cookie) error {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		param := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if c.Expires > 0 {
			param.Expires = proto.TimeSinceEpoch(c.Expires)
		}
		if c.SameSite != "" {
			param.SameSite = proto.NetworkCookieSameSite(c.SameSite)
		}
		params = append(params, param)
	}

	if err := p.page.Context(ctx).SetCookies(params); err != nil {
		return fmt.Errorf("failed to set cookies: %w", err)
	}
	return nil
}

// Close releases the browsing context.
func (p *Page) Close() {
	if err := p.page.Close(); err != nil {
		p.logger.Debug("Error closing page", zap.Error(err))
	}
}

// elementCenter reads the element's viewport-space center through the page
// itself; rod's box model can disagree with what the compositor shows for
// sticky or transformed elements.
func elementCenter(elem *rod.Element) (float64, float64, error) {
	res, err := elem.Eval(`() => {
const rect = this.getBoundingClientRect();
return {
x: rect.left + rect.width / 2,
y: rect.top + rect.height / 2
};
}`)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get element position: %w", err)
	}

	var box struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	data, err := res.Value.MarshalJSON()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to marshal element position: %w", err)
	}
	if err := json.Unmarshal(data, &box); err != nil {
		return 0, 0, fmt.Errorf("failed to parse element position: %w", err)
	}

	return box.X, box.Y, nil
}
