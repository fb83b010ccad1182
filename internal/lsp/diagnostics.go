package lsp

import (
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"irl/internal/diagnostics"
)

// toProtocol converts one IRL diagnostic into an LSP diagnostic. Parse
// diagnostics carry a source Position and get a caret-width range;
// construction/verify/pass/runtime diagnostics carry a graph Location
// instead, which has no column, so they're anchored to line 0.
func toProtocol(d *diagnostics.Diagnostic, source string) protocol.Diagnostic {
	if d.Kind == diagnostics.KindParse {
		line := uint32(max0(d.Pos.Line - 1))
		col := uint32(max0(d.Pos.Column - 1))
		return protocol.Diagnostic{
			Range: protocol.Range{
				Start: protocol.Position{Line: line, Character: col},
				End:   protocol.Position{Line: line, Character: col + 1},
			},
			Severity: ptrSeverity(protocol.DiagnosticSeverityError),
			Source:   ptrString("irl"),
			Message:  d.Code + ": " + d.Message,
		}
	}

	msg := d.Message
	if d.Loc.Function != "" {
		msg = strings.TrimSpace(msg) + " (in @" + d.Loc.Function + ")"
	}
	return protocol.Diagnostic{
		Range: protocol.Range{
			Start: protocol.Position{Line: 0, Character: 0},
			End:   protocol.Position{Line: 0, Character: 1},
		},
		Severity: ptrSeverity(protocol.DiagnosticSeverityError),
		Source:   ptrString("irl"),
		Message:  d.Code + ": " + msg,
	}
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func ptrSeverity(s protocol.DiagnosticSeverity) *protocol.DiagnosticSeverity { return &s }
func ptrString(s string) *string                                            { return &s }
