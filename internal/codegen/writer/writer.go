// Package writer accumulates generated source text with block indentation.
package writer

import (
	"fmt"
	"strings"
)

// Writer builds indented source text line by line
type Writer struct {
	sb         strings.Builder
	unit       string
	depth      int
	prefix     string
	lineOpened bool
}

// NewWriter creates a writer that indents each level with unit
func NewWriter(unit string) *Writer {
	return &Writer{unit: unit}
}

// Indent opens one more indentation level
func (w *Writer) Indent() {
	w.depth++
	w.prefix = strings.Repeat(w.unit, w.depth)
}

// Dedent closes one indentation level. It stops at zero.
func (w *Writer) Dedent() {
	if w.depth == 0 {
		return
	}
	w.depth--
	w.prefix = strings.Repeat(w.unit, w.depth)
}

// Write appends s to the current line, indenting it if the line is new
func (w *Writer) Write(s string) {
	if s == "" {
		return
	}
	if !w.lineOpened {
		w.sb.WriteString(w.prefix)
		w.lineOpened = true
	}
	w.sb.WriteString(s)
}

// Writef is Write with formatting
func (w *Writer) Writef(format string, args ...any) {
	w.Write(fmt.Sprintf(format, args...))
}

// WriteLine appends s and ends the line
func (w *Writer) WriteLine(s string) {
	w.Write(s)
	w.Newline()
}

// WriteLinef is WriteLine with formatting
func (w *Writer) WriteLinef(format string, args ...any) {
	w.Writef(format, args...)
	w.Newline()
}

// Newline ends the current line
func (w *Writer) Newline() {
	w.sb.WriteByte('\n')
	w.lineOpened = false
}

// BlankLine separates sections. Consecutive calls and a call at the very
// start produce at most one empty line.
func (w *Writer) BlankLine() {
	out := w.sb.String()
	if out == "" || strings.HasSuffix(out, "\n\n") {
		return
	}
	if !strings.HasSuffix(out, "\n") {
		w.Newline()
	}
	w.Newline()
}

// WriteBlock writes opener, the indented content and closer on their own lines
func (w *Writer) WriteBlock(opener, closer string, content func()) {
	w.WriteLine(opener)
	w.Indent()
	content()
	w.Dedent()
	w.WriteLine(closer)
}

// WriteComment writes a line comment
func (w *Writer) WriteComment(comment string) {
	w.WriteLine("// " + comment)
}

// WriteDocComment writes doc as a KDoc block. Single lines stay on one line.
// A "*/" inside doc would end the block early and is defused.
func (w *Writer) WriteDocComment(doc string) {
	doc = strings.TrimSpace(doc)
	if doc == "" {
		return
	}
	doc = strings.ReplaceAll(doc, "*/", "*&#47;")
	lines := strings.Split(doc, "\n")
	if len(lines) == 1 {
		w.WriteLine("/** " + lines[0] + " */")
		return
	}
	w.WriteLine("/**")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			w.WriteLine(" *")
			continue
		}
		w.WriteLine(" * " + line)
	}
	w.WriteLine(" */")
}

// String returns the text written so far
func (w *Writer) String() string {
	return w.sb.String()
}

// Bytes returns the text written so far
func (w *Writer) Bytes() []byte {
	return []byte(w.sb.String())
}
