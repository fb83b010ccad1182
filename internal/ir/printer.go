package ir

import (
	"fmt"
	"strings"
)

// Print renders a whole program back to IRL's textual form (spec.md §6):
// type aliases sorted by name, then globals and functions in declaration
// order.
// Instruction lines reuse each Instruction's own String(); this file
// assembles them into blocks, functions, and the program.
func Print(p *Program) string {
	var b strings.Builder
	for _, name := range sortedAliasNames(p.Aliases) {
		fmt.Fprintf(&b, "type @%s = %s;\n", name, p.Aliases[name].Underlying)
	}
	if len(p.Aliases) > 0 {
		b.WriteByte('\n')
	}
	for _, g := range p.Globals {
		if g.Init != nil {
			fmt.Fprintf(&b, "@%s: %s <- %d;\n", g.Name, g.Type, *g.Init)
		} else {
			fmt.Fprintf(&b, "@%s: %s;\n", g.Name, g.Type)
		}
	}
	if len(p.Globals) > 0 {
		b.WriteByte('\n')
	}
	for i, fn := range p.Functions {
		if i > 0 {
			b.WriteByte('\n')
		}
		PrintFunction(&b, fn)
	}
	return b.String()
}

// sortedAliasNames returns alias names in a deterministic order matching
// nothing in particular but stable across calls (insertion order isn't
// tracked by the map, so this falls back to a simple sort).
func sortedAliasNames(aliases map[string]*AliasType) []string {
	names := make([]string, 0, len(aliases))
	for n := range aliases {
		names = append(names, n)
	}
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j-1] > names[j]; j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
	return names
}

// PrintFunction writes fn's signature and every block to b.
func PrintFunction(b *strings.Builder, fn *Function) {
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = fmt.Sprintf("$%s: %s", p.Name, p.Type)
	}
	if fn.ReturnType != nil {
		fmt.Fprintf(b, "fn @%s(%s) -> %s {\n", fn.Name, strings.Join(params, ", "), fn.ReturnType)
	} else {
		fmt.Fprintf(b, "fn @%s(%s) {\n", fn.Name, strings.Join(params, ", "))
	}
	for _, blk := range fn.Blocks {
		PrintBlock(b, blk)
	}
	b.WriteString("}\n")
}

// PrintBlock writes one block's label and instruction lines to b.
func PrintBlock(b *strings.Builder, blk *BasicBlock) {
	fmt.Fprintf(b, "  %%%s:\n", blk.Label)
	for _, inst := range blk.AllInstrs() {
		fmt.Fprintf(b, "    %s\n", inst.String())
	}
}
