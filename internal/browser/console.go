package browser

import (
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

// ConsoleMessage is one captured console call.
type ConsoleMessage struct {
	Level string    `json:"level"`
	Text  string    `json:"text"`
	Time  time.Time `json:"time"`
}

// ConsoleSnapshot is an immutable copy of what a session captured so far.
type ConsoleSnapshot struct {
	Errors     []ConsoleMessage `json:"errors"`
	Warnings   []ConsoleMessage `json:"warnings"`
	PageErrors []string         `json:"pageErrors"`
}

// ConsoleLog accumulates console output of one session. Each session owns
// its own log so concurrent runs never share buffers.
type ConsoleLog struct {
	mu         sync.Mutex
	errors     []ConsoleMessage
	warnings   []ConsoleMessage
	pageErrors []string
}

// NewConsoleLog returns an empty log.
func NewConsoleLog() *ConsoleLog {
	return &ConsoleLog{}
}

// Record stores a console message; levels other than error and warning are dropped.
func (c *ConsoleLog) Record(level, text string) {
	msg := ConsoleMessage{Level: level, Text: text, Time: time.Now()}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch level {
	case string(proto.RuntimeConsoleAPICalledTypeError), string(proto.RuntimeConsoleAPICalledTypeAssert):
		c.errors = append(c.errors, msg)
	case string(proto.RuntimeConsoleAPICalledTypeWarning):
		c.warnings = append(c.warnings, msg)
	}
}

// RecordPageError stores an uncaught page exception.
func (c *ConsoleLog) RecordPageError(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pageErrors = append(c.pageErrors, text)
}

// Snapshot copies the current buffers.
func (c *ConsoleLog) Snapshot() ConsoleSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ConsoleSnapshot{
		Errors:     append([]ConsoleMessage(nil), c.errors...),
		Warnings:   append([]ConsoleMessage(nil), c.warnings...),
		PageErrors: append([]string(nil), c.pageErrors...),
	}
}

// RunErrors flattens page errors and console errors into the strings reported
// in a run summary.
func (s ConsoleSnapshot) RunErrors() []string {
	out := make([]string, 0, len(s.PageErrors)+len(s.Errors))
	for _, e := range s.PageErrors {
		out = append(out, "Page error: "+e)
	}
	for _, e := range s.Errors {
		out = append(out, "Console error: "+e.Text)
	}
	return out
}

func (c *ConsoleLog) onConsole(ev *proto.RuntimeConsoleAPICalled) {
	c.Record(string(ev.Type), stringifyConsoleArgs(ev.Args))
}

func (c *ConsoleLog) onException(ev *proto.RuntimeExceptionThrown) {
	c.RecordPageError(exceptionText(ev.ExceptionDetails))
}

func stringifyConsoleArgs(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		if !a.Value.Nil() {
			parts = append(parts, a.Value.String())
			continue
		}
		if a.Description != "" {
			parts = append(parts, a.Description)
		}
	}
	return strings.Join(parts, " ")
}

func exceptionText(d *proto.RuntimeExceptionDetails) string {
	if d == nil {
		return "unknown exception"
	}
	if d.Exception != nil && d.Exception.Description != "" {
		return d.Exception.Description
	}
	return d.Text
}
