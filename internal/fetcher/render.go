package fetcher

import (
	"context"
	"sync"
	"time"

	"github.com/aleister1102/postwatch/internal/common/errorwrapper"
	"github.com/aleister1102/postwatch/internal/config"
	"github.com/aleister1102/postwatch/internal/rslimiter"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
)

const captureTimeout = 5 * time.Second

// Renderer loads pages in a headless Chromium so client-side content is present.
// One browser process is shared; every render gets its own incognito context.
type Renderer struct {
	cfg       config.HeadlessBrowserConfig
	userAgent string
	guard     *rslimiter.MemoryGuard
	logger    zerolog.Logger

	// openSession opens the isolated context a single render runs in.
	openSession func() (renderSession, error)

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
}

// renderSession is one isolated browsing context. Close must be called once
// the render is done, whatever its outcome.
type renderSession interface {
	Render(ctx context.Context, url string) (*RawContent, error)
	Close() error
}

// NewRenderer creates a renderer. The browser is launched on first use.
func NewRenderer(cfg config.HeadlessBrowserConfig, userAgent string, guard *rslimiter.MemoryGuard, logger zerolog.Logger) *Renderer {
	r := &Renderer{
		cfg:       cfg,
		userAgent: userAgent,
		guard:     guard,
		logger:    logger.With().Str("component", "Renderer").Logger(),
	}
	r.openSession = r.openIncognito
	return r
}

// Name returns the phase name.
func (r *Renderer) Name() string { return "render" }

// Fetch renders url and returns the resulting DOM. Memory pressure, a disabled
// renderer and launch failures are permanent for the current tick.
func (r *Renderer) Fetch(ctx context.Context, url string) (*RawContent, error) {
	if !r.cfg.Enabled {
		return nil, errorwrapper.Permanent(ErrPhaseUnavailable)
	}
	if err := r.guard.Check(); err != nil {
		return nil, errorwrapper.Permanent(err)
	}

	session, err := r.openSession()
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			r.logger.Debug().Err(cerr).Str("url", url).Msg("Failed to close incognito context")
		}
	}()

	content, err := session.Render(ctx, url)
	if err != nil {
		return nil, err
	}
	r.logger.Debug().Str("url", url).Str("final_url", content.FinalURL).Int("bytes", len(content.Body)).Msg("Render completed")
	return content, nil
}

func (r *Renderer) openIncognito() (renderSession, error) {
	browser, err := r.ensureBrowser()
	if err != nil {
		return nil, errorwrapper.Permanent(errorwrapper.WrapError(err, "failed to start browser"))
	}

	incognito, err := browser.Incognito()
	if err != nil {
		r.resetBrowser()
		return nil, errorwrapper.WrapError(err, "failed to open incognito context")
	}
	return &incognitoSession{browser: incognito, cfg: r.cfg, userAgent: r.userAgent, logger: r.logger}, nil
}

type incognitoSession struct {
	browser   *rod.Browser
	cfg       config.HeadlessBrowserConfig
	userAgent string
	logger    zerolog.Logger
}

func (s *incognitoSession) Close() error { return s.browser.Close() }

func (s *incognitoSession) Render(ctx context.Context, url string) (*RawContent, error) {
	renderCtx, cancel := context.WithTimeout(ctx, s.cfg.RenderTimeout())
	defer cancel()

	page, err := s.browser.Context(renderCtx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, errorwrapper.WrapError(err, "failed to create page")
	}

	if s.userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: s.userAgent}); err != nil {
			s.logger.Debug().Err(err).Msg("Failed to set user agent")
		}
	}

	waitIdle := page.WaitRequestIdle(s.cfg.Idle(), nil, nil, nil)
	if err := page.Navigate(url); err != nil {
		return nil, errorwrapper.NewNetworkError(url, "navigation failed", err)
	}
	// Returns on idle or when the render timeout expires; a page that never
	// goes quiet is captured as it stands.
	waitIdle()

	captureCtx, cancelCapture := context.WithTimeout(ctx, captureTimeout)
	defer cancelCapture()
	capture := page.Context(captureCtx)

	html, err := capture.HTML()
	if err != nil {
		return nil, errorwrapper.WrapError(err, "failed to capture rendered document")
	}

	finalURL := url
	if info, err := capture.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}
	return &RawContent{Body: []byte(html), FinalURL: finalURL, Phase: "render"}, nil
}

func (r *Renderer) ensureBrowser() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		return r.browser, nil
	}

	l := launcher.New().Headless(true)
	if r.cfg.ChromePath != "" {
		l = l.Bin(r.cfg.ChromePath)
	}
	for _, arg := range r.cfg.BrowserArgs {
		l = l.Set(flags.Flag(arg))
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, err
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, err
	}

	r.browser = browser
	r.launcher = l
	r.logger.Info().Msg("Headless browser launched")
	return browser, nil
}

func (r *Renderer) resetBrowser() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeLocked()
}

func (r *Renderer) closeLocked() {
	if r.browser != nil {
		_ = r.browser.Close()
		r.browser = nil
	}
	if r.launcher != nil {
		r.launcher.Cleanup()
		r.launcher = nil
	}
}

// Close shuts the shared browser down.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeLocked()
	r.logger.Info().Msg("Headless browser stopped")
}
