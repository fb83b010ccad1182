// Package parser turns IRL textual source (spec.md §6) into an in-memory
// program graph: a participle/v2 grammar produces a parse tree, which
// build.go then lowers into *ir.Program, checking calls with
// ir.VerifyCalls. SSA verification (ir.Verify) is left to the caller.
package parser

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// IRLLexer tokenizes IRL source. Rule order matters: more specific forms
// (arrows, sigil-prefixed symbols) must be tried before the generic
// identifier rule that also carries every keyword as plain text (IRL has
// no reserved-word token type, matching how the grammar below spells
// keywords as quoted literals compared against Ident/whatever-matches).
var IRLLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"Comment", `//[^\n]*`, nil},
		{"Whitespace", `[ \t\r\n]+`, nil},
		{"Arrow", `<-|->`, nil},
		{"LocalSym", `\$[a-zA-Z_][a-zA-Z0-9_]*(\.[0-9]+)?`, nil},
		{"GlobalSym", `@[a-zA-Z_][a-zA-Z0-9_]*`, nil},
		{"Label", `%[a-zA-Z_][a-zA-Z0-9_]*`, nil},
		{"Int", `-?[0-9]+`, nil},
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_]*`, nil},
		{"Punct", `[{}()\[\]:,;?=]`, nil},
	},
})
