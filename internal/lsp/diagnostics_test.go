package lsp

import (
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/stretchr/testify/assert"

	"irl/internal/diagnostics"
)

func TestToProtocolAnchorsParseDiagnosticAtItsPosition(t *testing.T) {
	d := diagnostics.New(diagnostics.KindParse, diagnostics.CodeUnexpectedToken, "unexpected token", diagnostics.Position{Line: 3, Column: 5})
	out := toProtocol(d, "")

	assert.Equal(t, uint32(2), out.Range.Start.Line, "LSP lines are 0-based, source positions are 1-based")
	assert.Equal(t, uint32(4), out.Range.Start.Character)
	assert.Equal(t, protocol.DiagnosticSeverityError, *out.Severity)
	assert.Contains(t, out.Message, "P-001")
}

func TestToProtocolClampsNegativePositionToZero(t *testing.T) {
	d := diagnostics.New(diagnostics.KindParse, diagnostics.CodeUnexpectedToken, "bad", diagnostics.Position{Line: 0, Column: 0})
	out := toProtocol(d, "")
	assert.Equal(t, uint32(0), out.Range.Start.Line)
	assert.Equal(t, uint32(0), out.Range.Start.Character)
}

func TestToProtocolAnnotatesLocatedDiagnosticWithFunctionName(t *testing.T) {
	d := diagnostics.NewAt(diagnostics.KindVerify, diagnostics.CodeDominanceViolation, "bad use",
		diagnostics.Location{Function: "f", Block: "B", Index: 2})
	out := toProtocol(d, "")
	assert.Contains(t, out.Message, "S-003")
	assert.Contains(t, out.Message, "@f")
}

func TestURIToPathRoundTripsAFilePathURI(t *testing.T) {
	path, err := uriToPath("file:///home/user/prog.irl")
	assert := assert.New(t)
	assert.NoError(err)
	assert.Equal("/home/user/prog.irl", path)
}
