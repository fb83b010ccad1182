package repl

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStartPrintsOptimizedProgramForWellFormedInput(t *testing.T) {
	src := "fn @id($x: i32) -> i32 {\n%entry:\n\tret $x;\n}\n\n"
	var out bytes.Buffer
	Start(strings.NewReader(src), &out)

	got := out.String()
	assert.Contains(t, got, PROMPT)
	assert.Contains(t, got, "fn @id")
	assert.Contains(t, got, "ret")
}

func TestStartReportsParseDiagnosticAndContinues(t *testing.T) {
	src := "fn @broken( {\n\tret;\n}\n\nfn @id($x: i32) -> i32 {\n%entry:\n\tret $x;\n}\n\n"
	var out bytes.Buffer
	Start(strings.NewReader(src), &out)

	got := out.String()
	assert.Contains(t, got, "error[P-001]", "the malformed first program must be reported")
	assert.Contains(t, got, "fn @id", "the well-formed second program must still run after the first failed")
}

func TestStartExitsCleanlyOnEOFWithNoInput(t *testing.T) {
	var out bytes.Buffer
	Start(strings.NewReader(""), &out)
	assert.Equal(t, PROMPT, out.String())
}
