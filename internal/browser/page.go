package browser

import (
	"context"
	"errors"
	"time"

	"testpilot/internal/failure"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Click waits up to timeout for selector and clicks it.
func (s *Session) Click(ctx context.Context, selector string, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	el, err := s.waitElement(actx, selector)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return failure.Wrap(failure.InteractionFailed, err, "Failed to click %s: %v", selector, err)
	}
	return nil
}

// Type waits up to timeout for selector and types value into it. Existing
// content is kept.
func (s *Session) Type(ctx context.Context, selector, value string, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	el, err := s.waitElement(actx, selector)
	if err != nil {
		return err
	}
	if err := el.Input(value); err != nil {
		return failure.Wrap(failure.InteractionFailed, err, "Failed to type into %s: %v", selector, err)
	}
	return nil
}

// Goto performs a full navigation and waits for network idle.
func (s *Session) Goto(ctx context.Context, url string) error {
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
	wait := p.WaitNavigation(proto.PageLifecycleEventNameNetworkIdle)
	if err := p.Navigate(url); err != nil {
		if navCtx.Err() != nil {
			return failure.Wrap(failure.NavigationTimeout, err, "Navigation to %s timed out after %s", url, timeout)
		}
		return failure.Wrap(failure.InteractionFailed, err, "Navigation to %s failed: %v", url, err)
	}
	wait()
	if errors.Is(navCtx.Err(), context.DeadlineExceeded) {
		return failure.New(failure.NavigationTimeout, "Navigation to %s timed out after %s", url, timeout)
	}
	return nil
}

// TextContent reads the textContent of the first element matching selector
// without waiting. found is false when nothing matches.
func (s *Session) TextContent(ctx context.Context, selector string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, err := s.livePage()
	if err != nil {
		return "", false, err
	}

	has, el, err := page.Context(ctx).Has(selector)
	if err != nil {
		return "", false, failure.Wrap(failure.InteractionFailed, err, "Failed to query %s: %v", selector, err)
	}
	if !has {
		return "", false, nil
	}
	prop, err := el.Property("textContent")
	if err != nil {
		return "", true, failure.Wrap(failure.InteractionFailed, err, "Failed to read text of %s: %v", selector, err)
	}
	if prop.Nil() {
		return "", true, nil
	}
	return prop.Str(), true, nil
}

// Screenshot captures the visible viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, err := s.livePage()
	if err != nil {
		return nil, err
	}
	return page.Context(ctx).Screenshot(false, nil)
}

// HTML returns the serialized DOM of the current page.
func (s *Session) HTML(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, err := s.livePage()
	if err != nil {
		return "", err
	}
	return page.Context(ctx).HTML()
}

// URL returns the address of the current page.
func (s *Session) URL() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, err := s.livePage()
	if err != nil {
		return "", err
	}
	info, err := page.Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

// waitElement waits for selector under ctx. Callers hold mu.
func (s *Session) waitElement(ctx context.Context, selector string) (*rod.Element, error) {
	page, err := s.livePage()
	if err != nil {
		return nil, err
	}
	el, err := page.Context(ctx).Element(selector)
	if err == nil {
		return el, nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, failure.Wrap(failure.SelectorTimeout, err, "Timeout waiting for selector: %s", selector)
	}
	return nil, failure.Wrap(failure.InteractionFailed, err, "Failed to locate %s: %v", selector, err)
}
