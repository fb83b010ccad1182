package parser

import (
	"fmt"
	"os"

	"github.com/alecthomas/participle/v2"

	"irl/internal/diagnostics"
	"irl/internal/ir"
)

var irlParser = buildParser()

func buildParser() *participle.Parser[AST] {
	p, err := participle.Build[AST](
		participle.Lexer(IRLLexer),
		participle.Elide("Whitespace", "Comment"),
		participle.UseLookahead(2),
	)
	if err != nil {
		panic(fmt.Errorf("failed to build IRL parser: %w", err))
	}
	return p
}

// ParseFile reads and parses an IRL source file into a program graph, as
// ParseSource does.
func ParseFile(path string) (*Program, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	prog, d := ParseSource(path, string(source))
	if d != nil {
		return nil, d
	}
	return prog, nil
}

// Program is the result of a successful parse and build: the program
// graph plus the source it was parsed from, kept for diagnostic
// rendering.
type Program struct {
	*ir.Program
	Source string
}

// ParseSource parses source (named sourceName for diagnostics) into a
// program graph and lowers it via Build. Parse errors are reported as
// diagnostics.Diagnostic{Kind: KindParse}; construction errors (unknown
// type alias, duplicate symbol, etc.) as KindConstruct.
func ParseSource(sourceName, source string) (*Program, *diagnostics.Diagnostic) {
	tree, err := irlParser.ParseString(sourceName, source)
	if err != nil {
		return nil, parseErrorToDiagnostic(err)
	}
	prog, d := Build(tree)
	if d != nil {
		return nil, d
	}
	return &Program{Program: prog, Source: source}, nil
}

func parseErrorToDiagnostic(err error) *diagnostics.Diagnostic {
	pe, ok := err.(participle.Error)
	if !ok {
		return diagnostics.New(diagnostics.KindParse, diagnostics.CodeUnexpectedToken, err.Error(), diagnostics.Position{})
	}
	pos := pe.Position()
	return diagnostics.New(diagnostics.KindParse, diagnostics.CodeUnexpectedToken, pe.Message(),
		diagnostics.Position{Line: pos.Line, Column: pos.Column})
}
