package healing

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"testpilot/internal/types"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Snapshotter yields the serialized DOM of the page under test.
type Snapshotter interface {
	HTML(ctx context.Context) (string, error)
}

// DOMHealer looks for a unique element in a DOM snapshot that plausibly
// replaces the broken selector.
type DOMHealer struct {
	page  Snapshotter
	floor float64
}

// DOMOption configures a DOMHealer.
type DOMOption func(*DOMHealer)

// WithCandidateFloor skips candidates scoring below c, so a weak match never
// hides a stronger one further down the list or in a later healer.
func WithCandidateFloor(c float64) DOMOption {
	return func(h *DOMHealer) { h.floor = c }
}

// NewDOMHealer creates a healer reading snapshots from page.
func NewDOMHealer(page Snapshotter, opts ...DOMOption) *DOMHealer {
	h := &DOMHealer{page: page}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type candidate struct {
	selector   string
	strategy   string
	confidence float64
}

var (
	simpleID    = regexp.MustCompile(`^#([A-Za-z_][A-Za-z0-9_-]*)$`)
	simpleClass = regexp.MustCompile(`^\.([A-Za-z_][A-Za-z0-9_-]*)$`)
	baseToken   = regexp.MustCompile(`^[A-Za-z]+`)
)

const textMatchConfidence = 0.5

const textTargets = "button, a, input[type='submit'], [role='button'], label, h1, h2, h3, h4, h5, h6, p, span, li, td"

// Heal proposes a replacement selector or declines.
func (h *DOMHealer) Heal(ctx context.Context, tc types.TestCase, _ error) (Outcome, error) {
	if tc.Selector == "" {
		return Declined{Reason: "no selector to repair"}, nil
	}
	html, err := h.page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot dom: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse dom: %w", err)
	}

	for _, c := range candidates(tc.Selector) {
		if c.confidence < h.floor || c.selector == tc.Selector || ValidateSelector(c.selector) != nil {
			continue
		}
		m, err := cascadia.Compile(c.selector)
		if err != nil {
			continue
		}
		found := doc.FindMatcher(m)
		if found.Length() != 1 {
			continue
		}
		if out := h.healed(tc, found, c); out.TestCase.Selector != tc.Selector {
			return out, nil
		}
	}

	if text := targetText(tc); text != "" && textMatchConfidence >= h.floor {
		var matches []*goquery.Selection
		doc.Find(textTargets).Each(func(_ int, s *goquery.Selection) {
			if strings.TrimSpace(s.Text()) == text {
				matches = append(matches, s)
			}
		})
		if len(matches) == 1 {
			if sel, ok := stableSelector(matches[0]); ok && sel != tc.Selector {
				return h.healed(tc, matches[0], candidate{selector: sel, strategy: "text_match", confidence: textMatchConfidence}), nil
			}
		}
	}

	return Declined{Reason: fmt.Sprintf("no unique replacement for %s", tc.Selector)}, nil
}

func (h *DOMHealer) healed(tc types.TestCase, s *goquery.Selection, c candidate) Healed {
	sel := c.selector
	if stable, ok := stableSelector(s); ok {
		sel = stable
	}
	return Healed{
		TestCase:    tc.WithSelector(sel),
		Strategy:    c.strategy,
		Confidence:  c.confidence,
		Explanation: fmt.Sprintf("%s no longer matches; %s matched %s", tc.Selector, c.selector, describe(s)),
	}
}

// candidates derives replacement selectors from the broken one, most specific first.
func candidates(selector string) []candidate {
	if m := simpleID.FindStringSubmatch(selector); m != nil {
		id := m[1]
		out := []candidate{
			{fmt.Sprintf("[id^='%s']", id), "id_prefix", 0.7},
			{fmt.Sprintf("[data-testid='%s']", id), "testid_match", 0.6},
			{fmt.Sprintf("[name='%s']", id), "name_match", 0.6},
			{fmt.Sprintf("[id*='%s']", id), "id_contains", 0.5},
		}
		if base := baseToken.FindString(id); base != "" && base != id {
			out = append(out, candidate{fmt.Sprintf("[id^='%s']", base), "id_stem", 0.4})
		}
		return out
	}
	if m := simpleClass.FindStringSubmatch(selector); m != nil {
		cls := m[1]
		return []candidate{
			{fmt.Sprintf("[class^='%s'], [class*=' %s']", cls, cls), "structural_match", 0.4},
		}
	}
	return nil
}

func targetText(tc types.TestCase) string {
	if tc.Expected != "" {
		return strings.TrimSpace(tc.Expected)
	}
	if tc.Type == types.KindClick {
		return strings.TrimSpace(tc.Value)
	}
	return ""
}

// stableSelector prefers the element's id, then its data-testid.
func stableSelector(s *goquery.Selection) (string, bool) {
	if id, ok := s.Attr("id"); ok {
		if sel, ok := idSelector(id); ok {
			return sel, true
		}
	}
	if tid, ok := s.Attr("data-testid"); ok && tid != "" && !strings.ContainsAny(tid, `'"\`) {
		return fmt.Sprintf("[data-testid='%s']", tid), true
	}
	return "", false
}

func describe(s *goquery.Selection) string {
	tag := goquery.NodeName(s)
	if id, ok := s.Attr("id"); ok {
		return fmt.Sprintf("<%s id=%q>", tag, id)
	}
	return "<" + tag + ">"
}
