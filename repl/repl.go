// SPDX-License-Identifier: Apache-2.0

// Package repl is an interactive loop over the IRL parser and optimizer:
// read a whole program (terminated by a blank line), parse, verify,
// optimize, print, repeat until EOF.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"irl/internal/diagnostics"
	"irl/internal/ir"
	"irl/internal/parser"
)

const PROMPT = ">> "

func Start(in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, PROMPT)
		var lines []string
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				break
			}
			lines = append(lines, line)
		}
		if len(lines) == 0 {
			return
		}
		source := strings.Join(lines, "\n")

		prog, d := parser.ParseSource("<repl>", source)
		if d != nil {
			printDiagnostic(out, "<repl>", source, d)
			continue
		}

		failed := false
		for _, fn := range prog.Functions {
			if d := ir.Verify(fn); d != nil {
				printDiagnostic(out, "<repl>", source, d)
				failed = true
				break
			}
		}
		if failed {
			continue
		}

		for _, fn := range prog.Functions {
			if d := ir.RunPipeline(fn, ir.PipelineConfig{}); d != nil {
				printDiagnostic(out, "<repl>", source, d)
				failed = true
				break
			}
		}
		if failed {
			continue
		}

		fmt.Fprint(out, ir.Print(prog.Program))
	}
}

func printDiagnostic(out io.Writer, filename, source string, d *diagnostics.Diagnostic) {
	r := diagnostics.NewReporter(filename, source)
	fmt.Fprint(out, r.Format(d))
}
