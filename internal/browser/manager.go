// File: internal/browser/manager.go
package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/planpilot-cli/api/schemas"
	"github.com/xkilldash9x/planpilot-cli/internal/config"
)

const (
	sessionStartTimeout = 60 * time.Second
	closeGracePeriod    = 10 * time.Second
)

// Manager owns the shared Chrome process (via a chromedp exec allocator) and
// creates one isolated tab per plan run. The allocator is started lazily on
// the first session request.
type Manager struct {
	logger *zap.Logger
	cfg    *config.Config

	allocCtx    context.Context
	allocCancel context.CancelFunc

	sessions map[string]*Session
	mu       sync.RWMutex
	// wg tracks live sessions so Shutdown can wait for them to close.
	wg sync.WaitGroup

	initOnce sync.Once
}

// NewManager creates a new browser manager. Browser startup is deferred
// until the first session is requested.
func NewManager(cfg *config.Config, logger *zap.Logger) *Manager {
	return &Manager{
		logger:   logger.Named("browser_manager"),
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// initialize builds the exec allocator that spawns and manages the Chrome
// process.
func (m *Manager) initialize() {
	m.initOnce.Do(func() {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.NoSandbox,
			chromedp.DisableGPU,
			chromedp.Flag("headless", m.cfg.Browser.Headless),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("no-first-run", true),
			chromedp.Flag("no-default-browser-check", true),
		)
		for _, arg := range m.cfg.Browser.Args {
			opts = append(opts, chromedp.Flag(trimFlagPrefix(arg), true))
		}

		m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
		m.logger.Info("Browser allocator initialized.", zap.Bool("headless", m.cfg.Browser.Headless))
	})
}

func trimFlagPrefix(arg string) string {
	for len(arg) > 0 && arg[0] == '-' {
		arg = arg[1:]
	}
	return arg
}

// NewSession creates a fresh browser tab for a single plan run. The returned
// session is owned by the caller, which must Close it exactly once on every
// exit path. Failure to create the underlying target is a SessionError.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	m.initialize()

	tabCtx, tabCancel := chromedp.NewContext(m.allocCtx)

	// The first Run on a fresh context connects CDP and creates the target.
	startCtx, startCancel := CombineContext(tabCtx, ctx)
	defer startCancel()
	startCtx, timeoutCancel := context.WithTimeout(startCtx, sessionStartTimeout)
	defer timeoutCancel()

	if err := chromedp.Run(startCtx); err != nil {
		tabCancel()
		return nil, &schemas.SessionError{Op: "create", Cause: err}
	}

	session := newSession(tabCtx, tabCancel, m.cfg, m.logger)

	if err := session.setup(startCtx); err != nil {
		tabCancel()
		return nil, err
	}

	m.wg.Add(1)
	session.onClose = func() {
		m.mu.Lock()
		delete(m.sessions, session.ID())
		m.mu.Unlock()
		m.wg.Done()
		m.logger.Debug("Session removed from manager.", zap.String("session_id", session.ID()))
	}

	m.mu.Lock()
	m.sessions[session.ID()] = session
	m.mu.Unlock()

	m.logger.Info("New session created.", zap.String("session_id", session.ID()))
	return session, nil
}

// Shutdown closes all live sessions and then tears down the Chrome process.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down browser manager.")

	if m.allocCtx == nil {
		m.logger.Debug("Manager never initialized, nothing to shut down.")
		return nil
	}

	m.mu.RLock()
	toClose := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		toClose = append(toClose, s)
	}
	m.mu.RUnlock()

	for _, s := range toClose {
		go func(s *Session) {
			if err := s.Close(ctx); err != nil {
				m.logger.Warn("Error closing session during shutdown.",
					zap.String("session_id", s.ID()), zap.Error(err))
			}
		}(s)
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("All sessions closed gracefully.")
	case <-ctx.Done():
		m.logger.Warn("Timeout waiting for sessions to close, forcing shutdown.", zap.Error(ctx.Err()))
	}

	m.allocCancel()
	m.logger.Info("Browser manager shutdown complete.")
	return nil
}
