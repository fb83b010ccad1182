package diagnostics

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Reporter renders Diagnostics against a source file's text, Rust-style:
// a colored header line, a `-->` location line, and a caret-underlined
// source excerpt when source is available.
type Reporter struct {
	filename string
	lines    []string
}

// NewReporter builds a reporter for one source file. source may be empty
// for diagnostics that have no backing text (construction/verify/pass/
// runtime kinds use Location, not Position).
func NewReporter(filename, source string) *Reporter {
	return &Reporter{filename: filename, lines: strings.Split(source, "\n")}
}

// Format renders one diagnostic as a multi-line string.
func (r *Reporter) Format(d *Diagnostic) string {
	var out strings.Builder
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()
	errColor := color.New(color.FgRed, color.Bold).SprintFunc()

	out.WriteString(fmt.Sprintf("%s[%s]: %s\n", errColor("error"), d.Code, d.Message))

	if d.Kind == KindParse {
		width := lineNumberWidth(d.Pos.Line)
		indent := strings.Repeat(" ", width)
		out.WriteString(fmt.Sprintf("%s %s %s:%d:%d\n", indent, dim("-->"), r.filename, d.Pos.Line, d.Pos.Column))
		out.WriteString(fmt.Sprintf("%s %s\n", indent, dim("│")))
		if d.Pos.Line >= 1 && d.Pos.Line <= len(r.lines) {
			out.WriteString(fmt.Sprintf("%s %s %s\n",
				bold(fmt.Sprintf("%*d", width, d.Pos.Line)), dim("│"), r.lines[d.Pos.Line-1]))
			marker := strings.Repeat(" ", max(0, d.Pos.Column-1)) + errColor("^")
			out.WriteString(fmt.Sprintf("%s %s %s\n", indent, dim("│"), marker))
		}
	} else {
		out.WriteString(fmt.Sprintf("  %s @%s", dim("-->"), d.Loc.Function))
		if d.Loc.Block != "" {
			out.WriteString(fmt.Sprintf("/%%%s", d.Loc.Block))
		}
		out.WriteString(fmt.Sprintf("#%d\n", d.Loc.Index))
	}

	for _, n := range d.Notes {
		out.WriteString(fmt.Sprintf("  %s %s\n", color.New(color.FgBlue).Sprint("note:"), n))
	}
	return out.String()
}

func lineNumberWidth(line int) int {
	w := len(fmt.Sprintf("%d", line))
	if w < 3 {
		w = 3
	}
	return w
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
