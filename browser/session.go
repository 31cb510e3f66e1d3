package browser

import (
	"context"
	"strings"
	"sync"
	"time"

	"booking-pipeline/utils"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// DocumentSource is the fetch contract shared by the discoverer and the
// extractor: load a URL and return a stable HTML snapshot of the page.
type DocumentSource interface {
	Load(ctx context.Context, url, readySelector string) (string, error)
}

// Options configures a browser session.
type Options struct {
	Headless    bool
	NavTimeout  time.Duration // full navigate-to-stable budget per attempt
	WaitTimeout time.Duration // wait budget for the ready selector
	MaxRetries  int
	RateDelay   time.Duration
}

// Session owns one chromedp browser process for the duration of a cycle. It
// is opened at cycle start and must be closed on every exit path; it is not
// safe for concurrent cycles.
type Session struct {
	opts    Options
	logger  *zap.Logger
	limiter *utils.RateLimiter

	// nav performs one navigation attempt; tests substitute a fake.
	nav func(ctx context.Context, url, readySelector string, html *string) error

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSession launches a browser and returns the session handle.
func NewSession(opts Options, logger *zap.Logger) (*Session, error) {
	s := &Session{
		opts:    opts,
		logger:  logger,
		limiter: utils.NewRateLimiter(opts.RateDelay),
	}
	s.nav = s.loadOnce
	if err := s.start(); err != nil {
		return nil, err
	}
	return s, nil
}

// start creates a fresh chromedp context (one browser, one tab at a time).
func (s *Session) start() error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.opts.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("lang", "en-US"),
		chromedp.Flag("log-level", "3"), // suppress Chrome logs
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
		chromedp.WindowSize(1280, 900),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancelCtx := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	// Launch the browser process now so a broken environment fails fast.
	if err := chromedp.Run(ctx); err != nil {
		cancelCtx()
		cancelAlloc()
		return &FetchError{Reason: ReasonSessionDead, Err: err}
	}

	s.ctx = ctx
	s.cancel = func() {
		cancelCtx()
		cancelAlloc()
	}
	return nil
}

// Restart tears the browser down and launches a new one. Used once per fetch
// when the session itself has died.
func (s *Session) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Warn("restarting browser session")
	if s.cancel != nil {
		s.cancel()
	}
	return s.start()
}

// Close shuts the browser down.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Load navigates to url and returns the page HTML once it is stable: load
// complete, consent overlay dismissed and readySelector visible. Waits are
// bounded polls, never fixed sleeps. Transient failures are retried with
// exponential backoff; a dead session triggers one full restart before the
// fetch is given up.
func (s *Session) Load(ctx context.Context, url, readySelector string) (string, error) {
	var html string
	restarted := false

	err := utils.RetryWithBackoff(ctx, s.opts.MaxRetries, time.Second, s.logger, func() error {
		s.limiter.Wait()

		attemptErr := s.nav(ctx, url, readySelector, &html)
		if attemptErr == nil {
			return nil
		}
		// An interrupted cycle surfaces as a cancellation from inside the
		// navigation; that is not a dead browser, so bail out before the
		// restart logic can misread it.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if isSessionDead(attemptErr) && !restarted {
			restarted = true
			if rerr := s.Restart(); rerr != nil {
				return rerr
			}
		}
		return attemptErr
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &FetchError{URL: url, Reason: classify(err), Err: err}
	}
	return html, nil
}

func (s *Session) loadOnce(ctx context.Context, url, readySelector string, html *string) error {
	s.mu.Lock()
	tabCtx := s.ctx
	s.mu.Unlock()

	navCtx, cancel := context.WithTimeout(tabCtx, s.opts.NavTimeout)
	defer cancel()

	// Abort the navigation as soon as the cycle is interrupted.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return err
	}

	s.dismissConsent(navCtx)

	// Lazy-loaded target content: poll for the selector under its own budget.
	// A missing selector is not fatal on its own, the extractor degrades per
	// field, but we give the page every chance to settle first.
	waitCtx, cancelWait := context.WithTimeout(navCtx, s.opts.WaitTimeout)
	defer cancelWait()
	if err := chromedp.Run(waitCtx, chromedp.WaitVisible(readySelector, chromedp.ByQuery)); err != nil {
		s.logger.Debug("ready selector never became visible",
			zap.String("url", url),
			zap.String("selector", readySelector))
	}

	return chromedp.Run(navCtx,
		chromedp.Evaluate(`document.documentElement.outerHTML`, html))
}

// dismissConsent clicks the cookie/consent banner away when present. Best
// effort: pages without the overlay are already stable.
func (s *Session) dismissConsent(ctx context.Context) {
	var clicked bool
	err := chromedp.Run(ctx, chromedp.Evaluate(`
		(function() {
			var btn = document.querySelector('#onetrust-accept-btn-handler') ||
			          document.querySelector('button[aria-label="Accept cookies"]') ||
			          document.querySelector('[data-testid="cookie-banner"] button');
			if (btn) { btn.click(); return true; }
			return false;
		})()
	`, &clicked))
	if err == nil && clicked {
		s.logger.Debug("consent overlay dismissed")
	}
}

func classify(err error) string {
	switch {
	case isSessionDead(err):
		return ReasonSessionDead
	case strings.Contains(err.Error(), "deadline exceeded"):
		return ReasonTimeout
	default:
		return ReasonNavigation
	}
}

// isSessionDead recognizes errors that mean the browser process itself is
// gone, as opposed to a slow or failed page load.
func isSessionDead(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, pattern := range []string{
		"websocket",
		"chrome failed to start",
		"target closed",
		"context canceled",
		"session not found",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
