package diagnostics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReporterFormatRendersParseDiagnosticWithCaret(t *testing.T) {
	source := "fn @f() {\n  bad\n}\n"
	d := New(KindParse, CodeUnexpectedToken, "unexpected token \"bad\"", Position{Line: 2, Column: 3})
	r := NewReporter("t.irl", source)

	out := r.Format(d)
	assert.Contains(t, out, "P-001")
	assert.Contains(t, out, "unexpected token")
	assert.Contains(t, out, "t.irl:2:3")
	assert.Contains(t, out, "bad")
}

func TestReporterFormatRendersLocationDiagnosticWithoutSource(t *testing.T) {
	d := NewAt(KindVerify, CodeDominanceViolation, "bad use", Location{Function: "f", Block: "B", Index: 1})
	r := NewReporter("t.irl", "")

	out := r.Format(d)
	assert.Contains(t, out, "S-003")
	assert.Contains(t, out, "@f")
	assert.Contains(t, out, "%B")
}

func TestReporterFormatAppendsNotes(t *testing.T) {
	d := NewAt(KindPass, CodeBudgetExceeded, "pipeline did not converge", Location{Function: "f"})
	d.Notes = []string{"raise MaxIterations or inspect the offending pass"}
	r := NewReporter("t.irl", "")

	out := r.Format(d)
	assert.Contains(t, out, "note:")
	assert.Contains(t, out, "raise MaxIterations")
}
