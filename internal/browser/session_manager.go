// Package browser owns the live browser session of a run: launching Chrome,
// navigating to the page under test, an optional login, console capture and
// the page primitives the step executor drives.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"testpilot/internal/failure"
	"testpilot/internal/logging"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
)

// SessionManager launches sessions and tracks them until they close.
type SessionManager struct {
	cfg      Config
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionManager creates a new session manager.
func NewSessionManager(cfg Config) *SessionManager {
	return &SessionManager{
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Open launches (or connects to) Chrome, opens a page with a fixed viewport
// and starts console and page-error capture for the lifetime of the session.
func (m *SessionManager) Open(ctx context.Context) (*Session, error) {
	timer := logging.StartTimer(logging.CategoryBrowser, "open session")
	defer timer.Stop()

	controlURL := m.cfg.DebuggerURL
	var l *launcher.Launcher
	if controlURL == "" {
		l = launcher.New().Headless(m.cfg.Headless)
		if m.cfg.Bin != "" {
			l = l.Bin(m.cfg.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, failure.Wrap(failure.SessionUnavailable, err, "launch chrome: %v", err)
		}
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		killLauncher(l)
		return nil, failure.Wrap(failure.SessionUnavailable, err, "connect to chrome: %v", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		if l != nil {
			_ = b.Close()
		}
		killLauncher(l)
		return nil, failure.Wrap(failure.SessionUnavailable, err, "open page: %v", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             m.cfg.GetViewportWidth(),
		Height:            m.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1,
	}).Call(page); err != nil {
		logging.BrowserWarn("set viewport: %v", err)
	}

	s := &Session{
		ID:       uuid.NewString(),
		cfg:      m.cfg,
		browser:  b,
		launcher: l,
		page:     page,
		console:  NewConsoleLog(),
		release:  m.forget,
	}
	s.listen()

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	logging.Browser("session %s opened (%dx%d, headless=%t)", s.ID, m.cfg.GetViewportWidth(), m.cfg.GetViewportHeight(), m.cfg.Headless)
	return s, nil
}

// Active returns the number of sessions that have not been closed.
func (m *SessionManager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown closes every session that is still open.
func (m *SessionManager) Shutdown() error {
	m.mu.Lock()
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()

	var errs []error
	for _, s := range open {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *SessionManager) forget(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Session is one browser page owned by one run. Every page access goes
// through mu so analyzers only ever see snapshots.
type Session struct {
	ID string

	cfg      Config
	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rod.Page
	console  *ConsoleLog
	stop     context.CancelFunc
	release  func(id string)
	closed   bool
}

func (s *Session) listen() {
	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	wait := s.page.Context(ctx).EachEvent(
		s.console.onConsole,
		s.console.onException,
	)
	go wait()
}

// livePage returns the page or an error once the session is closed. Callers hold mu.
func (s *Session) livePage() (*rod.Page, error) {
	if s.closed || s.page == nil {
		return nil, failure.New(failure.SessionUnavailable, "browser session is closed")
	}
	return s.page, nil
}

// NavigateToPage loads url, waits for DOMContentLoaded and lets the page settle.
func (s *Session) NavigateToPage(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, err := s.livePage()
	if err != nil {
		return err
	}

	timeout := s.cfg.GetNavigationTimeout()
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p := page.Context(navCtx)
	wait := p.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := p.Navigate(url); err != nil {
		if navCtx.Err() != nil {
			return failure.Wrap(failure.NavigationTimeout, err, "Navigation to %s timed out after %s", url, timeout)
		}
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	wait()
	if errors.Is(navCtx.Err(), context.DeadlineExceeded) {
		return failure.New(failure.NavigationTimeout, "Navigation to %s timed out after %s", url, timeout)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	logging.BrowserDebug("loaded %s, settling for %s", url, s.cfg.SettleDelay)
	return sleep(ctx, s.cfg.SettleDelay)
}

// Login fills the first matching username and password fields and submits
// the form. It never fails the run: every problem is logged and reported as
// false.
func (s *Session) Login(ctx context.Context, username, password string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, err := s.livePage()
	if err != nil {
		logging.BrowserWarn("login skipped: %v", err)
		return false
	}

	userEl, userSel := firstMatch(ctx, page, s.cfg.usernameSelectors())
	passEl, passSel := firstMatch(ctx, page, s.cfg.passwordSelectors())
	if userEl == nil || passEl == nil {
		logging.BrowserWarn("no login form found, continuing without authentication")
		return false
	}
	logging.BrowserDebug("login form: user=%s pass=%s", userSel, passSel)

	if err := userEl.Input(username); err != nil {
		logging.BrowserWarn("type username: %v", err)
		return false
	}
	if err := passEl.Input(password); err != nil {
		logging.BrowserWarn("type password: %v", err)
		return false
	}

	submit, _ := firstMatch(ctx, page, s.cfg.submitSelectors())
	if submit == nil {
		logging.BrowserWarn("no submit control found for login form")
		return false
	}

	loginCtx, cancel := context.WithTimeout(ctx, s.cfg.GetLoginTimeout())
	defer cancel()
	wait := page.Context(loginCtx).WaitNavigation(proto.PageLifecycleEventNameLoad)
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		logging.BrowserWarn("click submit: %v", err)
		return false
	}
	wait()
	if loginCtx.Err() != nil {
		logging.BrowserWarn("no navigation within %s after login submit", s.cfg.GetLoginTimeout())
	}
	return true
}

// Close releases the page and, when the session launched it, the browser.
// Calling it more than once is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.stop != nil {
		s.stop()
	}

	var errs []error
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close page: %w", err))
		}
		s.page = nil
	}
	if s.launcher != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
		killLauncher(s.launcher)
	}
	s.mu.Unlock()

	if s.release != nil {
		s.release(s.ID)
	}
	logging.Browser("session %s closed", s.ID)
	return errors.Join(errs...)
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Console returns a copy of the captured console output.
func (s *Session) Console() ConsoleSnapshot {
	return s.console.Snapshot()
}

func firstMatch(ctx context.Context, page *rod.Page, selectors []string) (*rod.Element, string) {
	for _, sel := range selectors {
		has, el, err := page.Context(ctx).Has(sel)
		if err != nil || !has {
			continue
		}
		return el, sel
	}
	return nil, ""
}

func killLauncher(l *launcher.Launcher) {
	if l == nil {
		return
	}
	l.Kill()
	l.Cleanup()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
