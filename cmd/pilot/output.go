package main

import (
	"fmt"
	"io"
	"strings"

	"testpilot/internal/report"
	"testpilot/internal/types"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#008000", Dark: "#55FF55"}).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#D00000", Dark: "#FF5555"}).Bold(true)
	healStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#FFAA00"})
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1).Border(lipgloss.RoundedBorder())
)

// progress renders a progress bar while a run executes.
type progress struct {
	out    io.Writer
	bar    *progressbar.ProgressBar
	passed int
	failed int
}

func newProgress(out io.Writer) *progress {
	return &progress{out: out}
}

func (p *progress) RunStarted(runID string, cases []types.TestCase) {
	p.passed, p.failed = 0, 0
	p.bar = progressbar.NewOptions(len(cases),
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("run "+shortID(runID)),
		progressbar.OptionShowCount(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(p.out)
		}),
	)
}

func (p *progress) StepStarted(_ int, tc types.TestCase) {
	p.bar.Describe(fmt.Sprintf("%s [ok %d | failed %d]", tc.Name, p.passed, p.failed))
}

func (p *progress) StepFinished(_ int, _ types.TestCase, r types.TestResult) {
	if r.Passed() {
		p.passed++
	} else {
		p.failed++
	}
	_ = p.bar.Add(1)
}

func (p *progress) RunFinished(report.Summary) {
	_ = p.bar.Finish()
}

// renderSummary formats a summary for the terminal. Commentary and the
// markdown report are rendered through glamour.
func renderSummary(name string, s report.Summary) string {
	var b strings.Builder

	title := fmt.Sprintf("%s  %d/%d passed", name, s.TestsPassed, s.TotalTests)
	if s.Success {
		b.WriteString(headerStyle.Render(passStyle.Render("PASS") + "  " + title))
	} else {
		b.WriteString(headerStyle.Render(failStyle.Render("FAIL") + "  " + title))
	}
	b.WriteString("\n")

	for _, r := range s.Details {
		b.WriteString(resultLine(r))
		b.WriteString("\n")
	}
	for _, e := range s.Errors {
		b.WriteString(dimStyle.Render("  page: "+e) + "\n")
	}
	if s.RunID != "" {
		b.WriteString(dimStyle.Render("  run "+s.RunID) + "\n")
	}

	if s.Commentary != "" || !s.Success {
		b.WriteString(renderMarkdown(report.Markdown(s)))
	}
	return b.String()
}

func resultLine(r types.TestResult) string {
	mark := passStyle.Render("✓")
	if !r.Passed() {
		mark = failStyle.Render("✗")
	}
	line := fmt.Sprintf("  %s %s %s", mark, r.Name, dimStyle.Render(fmt.Sprintf("(%dms)", r.Duration)))
	if r.Healed && r.HealingInfo != nil {
		line += " " + healStyle.Render(fmt.Sprintf("healed via %s (%.2f)", r.HealingInfo.Strategy, r.HealingInfo.Confidence))
	}
	if r.Message != "" {
		line += "\n      " + r.Message
	}
	return line
}

func renderMarkdown(md string) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return md
	}
	out, err := renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
