// Package generate derives test cases from a live page when a run brings none.
package generate

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"testpilot/internal/logging"
	"testpilot/internal/types"

	"github.com/PuerkitoBio/goquery"
)

// Snapshotter yields the serialized DOM of the page under test.
type Snapshotter interface {
	HTML(ctx context.Context) (string, error)
}

// Generator produces test cases for the page behind a session.
type Generator interface {
	Generate(ctx context.Context, page Snapshotter) ([]types.TestCase, error)
}

// DefaultLimit caps how many cases DOMGenerator emits.
const DefaultLimit = 20

// DOMGenerator emits presence assertions for the identifiable landmarks of a
// page: headings, forms, buttons and named inputs. Concealed elements are
// skipped.
type DOMGenerator struct {
	Limit int
}

var cssIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// Generate walks the DOM snapshot in document order.
func (g DOMGenerator) Generate(ctx context.Context, page Snapshotter) ([]types.TestCase, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot dom: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse dom: %w", err)
	}

	limit := g.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	var out []types.TestCase
	names := map[string]int{}
	seen := map[string]bool{}
	add := func(name, selector, expected string) {
		if len(out) >= limit || seen[selector] {
			return
		}
		seen[selector] = true
		names[name]++
		if n := names[name]; n > 1 {
			name = fmt.Sprintf("%s (%d)", name, n)
		}
		out = append(out, types.TestCase{
			Name:     name,
			Type:     types.KindAssertion,
			Selector: selector,
			Expected: expected,
		})
	}

	doc.Find("h1, h2, h3, form, button, input, select, textarea").Each(func(_ int, s *goquery.Selection) {
		sel, ok := locate(s)
		if !ok {
			return
		}
		if c, hidden := Concealed(s); hidden {
			logging.Get(logging.CategoryRunner).Debug("skipping %s: %s", sel, strings.Join(c.Reasons, ", "))
			return
		}
		tag := goquery.NodeName(s)
		text := collapse(s.Text())
		switch tag {
		case "h1", "h2", "h3":
			if text == "" {
				return
			}
			// Assertions compare textContent exactly.
			expected := ""
			if s.Text() == text {
				expected = text
			}
			add(fmt.Sprintf("heading %q is shown", clip(text)), sel, expected)
		case "form":
			add(fmt.Sprintf("form %s is present", sel), sel, "")
		case "button":
			label := text
			if label == "" {
				label = sel
			}
			add(fmt.Sprintf("button %q is present", clip(label)), sel, "")
		default:
			add(fmt.Sprintf("field %s is present", sel), sel, "")
		}
	})

	logging.Runner("generated %d test cases from dom", len(out))
	return out, nil
}

// locate returns a selector stable enough to assert on: the id, a
// data-testid, or the name attribute of a form control.
func locate(s *goquery.Selection) (string, bool) {
	if id, ok := s.Attr("id"); ok && cssIdent.MatchString(id) {
		return "#" + id, true
	}
	if tid, ok := s.Attr("data-testid"); ok && cssIdent.MatchString(tid) {
		return fmt.Sprintf("[data-testid='%s']", tid), true
	}
	if name, ok := s.Attr("name"); ok && cssIdent.MatchString(name) {
		return fmt.Sprintf("%s[name='%s']", goquery.NodeName(s), name), true
	}
	return "", false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func clip(s string) string {
	if len(s) <= 40 {
		return s
	}
	return s[:40] + "..."
}
