// Package diagnostic carries compiler messages from the front end to whoever displays
// them. A Diagnostic is a plain record; Sinks decide what to do with it.
package diagnostic

import (
	"fmt"
	"strings"
)

// Diagnostic is a single error or warning, positioned by a byte offset into Source.
type Diagnostic struct {
	Path    string
	Source  string
	Message string
	Line    int
	Offset  int
	Length  int
	Warning bool
}

func (d Diagnostic) Severity() string {
	if d.Warning {
		return "warning"
	}
	return "error"
}

// Column is 1-based and computed from Offset.
func (d Diagnostic) Column() int {
	return d.clampedOffset() - d.lineStart() + 1
}

func (d Diagnostic) lineStart() int {
	offset := d.clampedOffset()
	return strings.LastIndexByte(d.Source[:offset], '\n') + 1
}

func (d Diagnostic) clampedOffset() int {
	if d.Offset < 0 {
		return 0
	}
	if d.Offset > len(d.Source) {
		return len(d.Source)
	}
	return d.Offset
}

// SourceLine returns the full line of Source the diagnostic points into, without the
// trailing newline.
func (d Diagnostic) SourceLine() string {
	start := d.lineStart()
	end := strings.IndexByte(d.Source[start:], '\n')
	if end < 0 {
		return d.Source[start:]
	}
	return strings.TrimRight(d.Source[start:start+end], "\r")
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s: %s", d.Path, d.Line, d.Column(), d.Severity(), d.Message)
}

// Sink consumes diagnostics as they are produced.
type Sink interface {
	Report(d Diagnostic)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(d Diagnostic)

func (f SinkFunc) Report(d Diagnostic) {
	f(d)
}

// Collector keeps every diagnostic it sees and optionally forwards it to another sink.
type Collector struct {
	next  Sink
	items []Diagnostic
}

func NewCollector(next Sink) *Collector {
	return &Collector{next: next}
}

func (c *Collector) Report(d Diagnostic) {
	c.items = append(c.items, d)
	if c.next != nil {
		c.next.Report(d)
	}
}

// HasErrors ignores warnings: they never fail a compilation.
func (c *Collector) HasErrors() bool {
	return c.ErrorCount() > 0
}

func (c *Collector) ErrorCount() int {
	count := 0
	for _, item := range c.items {
		if !item.Warning {
			count++
		}
	}
	return count
}

func (c *Collector) WarningCount() int {
	return len(c.items) - c.ErrorCount()
}

func (c *Collector) All() []Diagnostic {
	return c.items
}

// Messages is mostly useful in tests.
func (c *Collector) Messages() []string {
	messages := make([]string, 0, len(c.items))
	for _, item := range c.items {
		messages = append(messages, item.Message)
	}
	return messages
}
