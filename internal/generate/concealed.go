package generate

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Concealment explains why an element is probably not meant for a user:
// hidden inputs, honeypot fields and off-screen traps.
type Concealment struct {
	Reasons    []string
	Confidence float64
}

var offscreen = regexp.MustCompile(`(?:left|top)\s*:\s*-(\d+)px`)

// Concealed inspects the element and its ancestors. Only markup is visible
// in a DOM snapshot, so computed styles from stylesheets are not considered.
func Concealed(s *goquery.Selection) (Concealment, bool) {
	var reasons []string
	add := func(r string) {
		for _, have := range reasons {
			if have == r {
				return
			}
		}
		reasons = append(reasons, r)
	}

	for node := s.First(); node.Length() > 0; node = node.Parent() {
		if goquery.NodeName(node) == "#document" {
			break
		}
		if _, ok := node.Attr("hidden"); ok {
			add("Hidden via hidden attribute")
		}
		if v, _ := node.Attr("aria-hidden"); v == "true" {
			add("Marked as aria-hidden")
		}
		style := normalizeStyle(node.AttrOr("style", ""))
		switch {
		case strings.Contains(style, "display:none"):
			add("Hidden via display:none")
		case strings.Contains(style, "visibility:hidden"):
			add("Hidden via visibility:hidden")
		case strings.Contains(style, "opacity:0;") || strings.HasSuffix(style, "opacity:0"):
			add("Hidden via opacity:0")
		}
		if strings.Contains(style, "pointer-events:none") {
			add("Pointer events disabled")
		}
		if m := offscreen.FindStringSubmatch(node.AttrOr("style", "")); m != nil {
			if px, err := strconv.Atoi(m[1]); err == nil && px >= 1000 {
				add("Positioned off-screen")
			}
		}
	}
	if v, _ := s.Attr("tabindex"); v == "-1" {
		add("Not keyboard accessible (negative tabindex)")
	}
	if t, _ := s.Attr("type"); t == "hidden" {
		add("Hidden input")
	}

	if len(reasons) == 0 {
		return Concealment{}, false
	}
	confidence := 0.5 + float64(len(reasons))*0.15
	if confidence > 1 {
		confidence = 1
	}
	return Concealment{Reasons: reasons, Confidence: confidence}, true
}

func normalizeStyle(style string) string {
	return strings.ToLower(strings.Join(strings.Fields(style), ""))
}
