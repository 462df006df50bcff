// File: internal/browser/session.go
package browser

import (
	"context"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/planpilot-cli/api/schemas"
	"github.com/xkilldash9x/planpilot-cli/internal/config"
)

// Session represents one live browser tab used for a single plan run. It
// exposes the five primitive operations as blocking calls; each one mutates
// shared page state, so operations on the same session must be strictly
// sequential. A Session is not safe for concurrent invocation.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	cfg    *config.Config

	onClose func()

	mu       sync.Mutex
	isClosed bool
}

func newSession(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, logger *zap.Logger) *Session {
	sessionID := uuid.New().String()
	return &Session{
		id:     sessionID,
		ctx:    ctx,
		cancel: cancel,
		logger: logger.Named("session").With(zap.String("session_id", sessionID)),
		cfg:    cfg,
	}
}

// ID returns the unique identifier for the session.
func (s *Session) ID() string {
	return s.id
}

// setup applies per-session overrides before the first navigation: a custom
// user agent and extra HTTP headers attached to every request.
func (s *Session) setup(ctx context.Context) error {
	var tasks chromedp.Tasks

	if ua := s.cfg.Browser.UserAgent; ua != "" {
		tasks = append(tasks, emulation.SetUserAgentOverride(ua))
	}

	if len(s.cfg.Network.Headers) > 0 {
		headers := make(network.Headers, len(s.cfg.Network.Headers))
		for k, v := range s.cfg.Network.Headers {
			headers[k] = v
		}
		tasks = append(tasks, network.Enable(), network.SetExtraHTTPHeaders(headers))
	}

	if len(tasks) == 0 {
		return nil
	}
	if err := s.run(ctx, tasks); err != nil {
		return &schemas.SessionError{Op: "setup", Cause: err}
	}
	return nil
}

// Close releases the browser tab. Safe to call more than once; only the
// first call has effect.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")

	if s.cancel != nil {
		s.cancel()
	}
	if s.onClose != nil {
		s.onClose()
	}
	return nil
}

// run executes chromedp actions bounded by both the session lifetime and the
// caller's context (which carries the per-step deadline).
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// pause applies the configured slow-motion delay between actions.
func (s *Session) pause(ctx context.Context) {
	if s.cfg.Browser.SlowMo <= 0 {
		return
	}
	_ = s.run(ctx, chromedp.Sleep(s.cfg.Browser.SlowMo))
}

// Navigate loads the URL in the current page and waits for the document to
// become ready.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating.", zap.String("url", url))

	navCtx, cancel := context.WithTimeout(ctx, s.cfg.Network.NavigationTimeout)
	defer cancel()

	if err := s.run(navCtx, chromedp.Navigate(url)); err != nil {
		return &schemas.NavigationError{URL: url, Cause: err}
	}

	// Post-load settle. A slow readiness wait is non-fatal as long as the
	// navigation itself committed.
	if err := s.run(navCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		if navCtx.Err() != nil && ctx.Err() == nil {
			s.logger.Debug("Document readiness wait expired after navigation.", zap.Error(err))
		} else if ctx.Err() != nil {
			return &schemas.NavigationError{URL: url, Cause: ctx.Err()}
		}
	}

	if s.cfg.Network.PostLoadWait > 0 {
		_ = s.run(ctx, chromedp.Sleep(s.cfg.Network.PostLoadWait))
	}
	return nil
}

// Click waits for the element matching selector to become visible and
// clicks it.
func (s *Session) Click(ctx context.Context, selector string) error {
	s.logger.Debug("Clicking element.", zap.String("selector", selector))

	if err := s.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return &schemas.ElementNotFoundError{Selector: selector, Cause: err}
	}
	if err := s.run(ctx,
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	); err != nil {
		return &schemas.ElementNotActionableError{Selector: selector, Cause: err}
	}

	s.pause(ctx)
	return nil
}

// Type inputs text into the element matching selector. With clear set, the
// field is emptied first so it ends up containing exactly the new text.
func (s *Session) Type(ctx context.Context, selector, text string, clear bool) error {
	s.logger.Debug("Typing into element.",
		zap.String("selector", selector),
		zap.Int("text_length", len(text)),
		zap.Bool("clear", clear),
	)

	if err := s.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return &schemas.ElementNotFoundError{Selector: selector, Cause: err}
	}

	actions := []chromedp.Action{chromedp.ScrollIntoView(selector, chromedp.ByQuery)}
	if clear {
		actions = append(actions, chromedp.SetValue(selector, "", chromedp.ByQuery))
	}
	actions = append(actions, chromedp.SendKeys(selector, text, chromedp.ByQuery))

	if err := s.run(ctx, actions...); err != nil {
		return &schemas.ElementNotActionableError{Selector: selector, Cause: err}
	}

	s.pause(ctx)
	return nil
}

// WaitFor blocks until the element matching selector reaches the requested
// state or the deadline on ctx expires.
func (s *Session) WaitFor(ctx context.Context, selector string, state schemas.ElementState) error {
	s.logger.Debug("Waiting for element state.",
		zap.String("selector", selector),
		zap.String("state", string(state)),
	)

	var action chromedp.Action
	switch state {
	case schemas.StateVisible:
		action = chromedp.WaitVisible(selector, chromedp.ByQuery)
	case schemas.StateHidden:
		action = chromedp.WaitNotVisible(selector, chromedp.ByQuery)
	case schemas.StateAttached:
		action = chromedp.WaitReady(selector, chromedp.ByQuery)
	case schemas.StateDetached:
		action = chromedp.WaitNotPresent(selector, chromedp.ByQuery)
	default:
		// ParseStep rejects unknown states before dispatch; this guards
		// direct callers.
		return &schemas.TimeoutError{Selector: selector, State: state}
	}

	if err := s.run(ctx, action); err != nil {
		return &schemas.TimeoutError{Selector: selector, State: state, Cause: err}
	}
	return nil
}

// ExtractText waits for a matching element and returns its trimmed text
// content.
func (s *Session) ExtractText(ctx context.Context, selector string) (string, error) {
	s.logger.Debug("Extracting text.", zap.String("selector", selector))

	var text string
	if err := s.run(ctx, chromedp.Text(selector, &text, chromedp.ByQuery)); err != nil {
		return "", &schemas.ElementNotFoundError{Selector: selector, Cause: err}
	}
	return strings.TrimSpace(text), nil
}
