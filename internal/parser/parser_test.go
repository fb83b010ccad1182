package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"irl/internal/diagnostics"
	"irl/internal/ir"
)

func TestParseSourceAcceptsGlobalsAliasesAndFunctions(t *testing.T) {
	src := `
type @point = struct { x: i32, y: i32 };

@counter: i32 <- 0;

fn @add($x: i32, $y: i32) -> i32 {
%entry:
	$s <- add i32 $x, $y;
	ret $s;
}
`
	prog, d := ParseSource("t.irl", src)
	require.Nil(t, d, "well-formed source must parse without a diagnostic")
	require.NotNil(t, prog)

	assert.Len(t, prog.Aliases, 1)
	al, ok := prog.Aliases["point"]
	require.True(t, ok)
	st, ok := al.Underlying.(*ir.StructType)
	require.True(t, ok)
	assert.Len(t, st.Fields, 2)

	g := prog.GlobalByName("counter")
	require.NotNil(t, g)
	require.NotNil(t, g.Init)
	assert.Equal(t, int64(0), *g.Init)

	fn := prog.FuncByName("add")
	require.NotNil(t, fn)
	assert.Len(t, fn.Params, 2)
	assert.NotNil(t, fn.Entry)
	assert.Equal(t, "entry", fn.Entry.Label)
}

func TestParseSourceAcceptsMultiBlockFunctionWithBranchAndPhi(t *testing.T) {
	src := `
fn @max($a: i32, $b: i32) -> i32 {
%entry:
	$c <- gt i32 $a, $b;
	br $c ? %T : %F;
%T:
	jmp %join;
%F:
	jmp %join;
%join:
	$r <- phi i32 [%T: $a][%F: $b];
	ret $r;
}
`
	prog, d := ParseSource("t.irl", src)
	require.Nil(t, d)
	require.NotNil(t, prog)

	fn := prog.FuncByName("max")
	require.NotNil(t, fn)
	join := fn.BlockByLabel("join")
	require.NotNil(t, join)
	assert.Len(t, join.Phis(), 1)
	assert.Nil(t, ir.Verify(fn), "the constructed function must be structurally valid SSA")
}

func TestParseSourceAcceptsMemoryAndCallInstructions(t *testing.T) {
	src := `
fn @store_and_call() {
%entry:
	$p <- alloc i32;
	st i32 $p, 7;
	$v <- ld i32 $p;
	$w <- call i32 @helper($v);
	call @observe($w);
	ret;
}
`
	prog, d := ParseSource("t.irl", src)
	require.Nil(t, d)
	fn := prog.FuncByName("store_and_call")
	require.NotNil(t, fn)
	entry := fn.Entry
	var kinds []string
	for _, inst := range entry.AllInstrs() {
		kinds = append(kinds, instrKindName(inst))
	}
	assert.Equal(t, []string{"alloc", "store", "load", "call", "call", "ret"}, kinds)
}

func instrKindName(inst ir.Instruction) string {
	switch inst.(type) {
	case *ir.Alloc:
		return "alloc"
	case *ir.Store:
		return "store"
	case *ir.Load:
		return "load"
	case *ir.Call:
		return "call"
	case *ir.Ret:
		return "ret"
	case *ir.Move:
		return "mov"
	case *ir.Binary:
		return "bin"
	case *ir.Phi:
		return "phi"
	case *ir.Jmp:
		return "jmp"
	case *ir.Br:
		return "br"
	}
	return "?"
}

func TestParseSourceRejectsUnterminatedBlock(t *testing.T) {
	src := `
fn @broken() {
%entry:
	$x <- mov i32 1;
}
`
	_, d := ParseSource("t.irl", src)
	require.NotNil(t, d, "a block with no terminator must fail construction")
	assert.Equal(t, diagnostics.KindConstruct, d.Kind)
	assert.Equal(t, diagnostics.CodeMissingTerminator, d.Code)
}

func TestParseSourceRejectsUnknownJumpTarget(t *testing.T) {
	src := `
fn @broken() {
%entry:
	jmp %nowhere;
}
`
	_, d := ParseSource("t.irl", src)
	require.NotNil(t, d)
	assert.Equal(t, diagnostics.KindConstruct, d.Kind)
	assert.Equal(t, diagnostics.CodeUnknownLabel, d.Code)
}

func TestParseSourceRejectsUnknownTypeAlias(t *testing.T) {
	src := `
@g: @nope;
`
	_, d := ParseSource("t.irl", src)
	require.NotNil(t, d)
	assert.Equal(t, diagnostics.KindConstruct, d.Kind)
	assert.Equal(t, diagnostics.CodeUndefinedSymbol, d.Code)
}

func TestParseSourceRejectsDuplicateTypeAlias(t *testing.T) {
	src := `
type @dup = i32;
type @dup = i64;
`
	_, d := ParseSource("t.irl", src)
	require.NotNil(t, d)
	assert.Equal(t, diagnostics.KindConstruct, d.Kind)
	assert.Equal(t, diagnostics.CodeDuplicateDef, d.Code)
}

func TestParseSourceRejectsSyntaxError(t *testing.T) {
	src := `
fn @broken(x i32) {
%entry:
	ret;
}
`
	_, d := ParseSource("t.irl", src)
	require.NotNil(t, d, "a malformed parameter list must fail at the grammar level")
	assert.Equal(t, diagnostics.KindParse, d.Kind)
}

func TestParseSourceRejectsCallArityMismatch(t *testing.T) {
	src := `
fn @callee($a: i32) -> i32 {
%entry:
	ret $a;
}

fn @caller() -> i32 {
%entry:
	$r <- call i32 @callee(1, 2);
	ret $r;
}
`
	_, d := ParseSource("t.irl", src)
	require.NotNil(t, d, "a call passing more arguments than the callee declares must fail construction")
	assert.Equal(t, diagnostics.KindConstruct, d.Kind)
	assert.Equal(t, diagnostics.CodeArityMismatch, d.Code)
}

func TestParseSourceAcceptsCallToUndeclaredFunctionAtConstructionTime(t *testing.T) {
	src := `
fn @caller() {
%entry:
	call @later();
	ret;
}
`
	_, d := ParseSource("t.irl", src)
	assert.Nil(t, d, "a call to a name no function declares is a runtime concern, not a construction error")
}

func TestParseSourceIsPositionalOnSyntaxErrors(t *testing.T) {
	src := "fn @broken( {\n%entry:\n\tret;\n}\n"
	_, d := ParseSource("t.irl", src)
	require.NotNil(t, d)
	assert.Equal(t, diagnostics.KindParse, d.Kind)
	assert.Greater(t, d.Pos.Line, 0, "a parse error must carry a usable source position")
}
