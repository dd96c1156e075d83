package browser

import (
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// normalizeScript runs before any page script and patches the properties
// automation detectors inspect. The stealth page already covers the broad
// cases; this pins the values a desktop Chrome on Windows would report so
// they stay consistent with the user-agent override.
const normalizeScript = `(() => {
try {
	Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
	Object.defineProperty(navigator, 'platform', { get: () => 'Win32' });
	Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
	Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
	Object.defineProperty(navigator, 'hardwareConcurrency', { get: () => 8 });
	window.chrome = window.chrome || { runtime: {} };

	const originalQuery = window.navigator.permissions.query;
	window.navigator.permissions.query = (parameters) => (
		parameters.name === 'notifications'
			? Promise.resolve({ state: Notification.permission })
			: originalQuery(parameters)
	);

	const getParameter = WebGLRenderingContext.prototype.getParameter;
	WebGLRenderingContext.prototype.getParameter = function (parameter) {
		// UNMASKED_VENDOR_WEBGL / UNMASKED_RENDERER_WEBGL
		if (parameter === 37445) { return 'Google Inc. (Intel)'; }
		if (parameter === 37446) { return 'ANGLE (Intel, Intel(R) UHD Graphics 630 Direct3D11 vs_5_0 ps_5_0, D3D11)'; }
		return getParameter.call(this, parameter);
	};
} catch (e) {}
})();`

// normalize applies the fingerprint profile to a fresh page: user-agent
// pairing, a realistic viewport, and the automation-telltale patches. Must
// run before the first navigation.
func normalize(p *rod.Page, userAgent string, width, height int) error {
	if userAgent != "" {
		err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      userAgent,
			AcceptLanguage: "en-US,en;q=0.9",
			Platform:       "Win32",
		})
		if err != nil {
			return fmt.Errorf("failed to set user agent: %w", err)
		}
	}

	err := p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
		Mobile:            false,
	})
	if err != nil {
		return fmt.Errorf("failed to set viewport: %w", err)
	}

	if _, err := p.EvalOnNewDocument(normalizeScript); err != nil {
		return fmt.Errorf("failed to install fingerprint script: %w", err)
	}

	return nil
}
