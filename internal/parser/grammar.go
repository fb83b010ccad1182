package parser

import "github.com/alecthomas/participle/v2/lexer"

// AST is the parse tree's root (spec.md §6): type aliases, globals, and
// functions in any order, matching their declaration order in source.
type AST struct {
	Items []*TopLevel `@@*`
}

type TopLevel struct {
	Alias  *AliasDecl  `  @@`
	Global *GlobalDecl `| @@`
	Func   *FuncDecl   `| @@`
}

// AliasDecl is `type @N = T;`.
type AliasDecl struct {
	Pos  lexer.Position
	Name string    `"type" @GlobalSym "="`
	Type *TypeNode `@@ ";"`
}

// GlobalDecl is `@N: T` optionally `<- literal`, terminated by `;`.
type GlobalDecl struct {
	Pos  lexer.Position
	Name string    `@GlobalSym ":"`
	Type *TypeNode `@@`
	Init *string   `[ "<-" @Int ] ";"`
}

// FuncDecl is `fn @N(params) [-> T] { blocks }`.
type FuncDecl struct {
	Pos     lexer.Position
	Name    string       `"fn" @GlobalSym "("`
	Params  []*ParamNode `[ @@ ( "," @@ )* ] ")"`
	Return  *TypeNode    `[ "->" @@ ]`
	Blocks  []*BlockNode `"{" @@* "}"`
}

type ParamNode struct {
	Name string    `@LocalSym ":"`
	Type *TypeNode `@@`
}

// TypeNode covers every type form in spec.md §3: scalar, pointer,
// array, struct, and named alias reference.
type TypeNode struct {
	Scalar *string         `(  @( "i8" | "i16" | "i32" | "i64" )`
	Alias  *string         ` | @GlobalSym`
	Ptr    *TypeNode       ` | "ptr" @@`
	Array  *ArrayTypeNode  ` | @@`
	Struct *StructTypeNode ` | @@ )`
}

type ArrayTypeNode struct {
	Len  string    `"[" @Int "]"`
	Elem *TypeNode `@@`
}

type StructTypeNode struct {
	Fields []*StructFieldNode `"struct" "{" ( @@ ( "," @@ )* )? "}"`
}

type StructFieldNode struct {
	Name string    `@Ident ":"`
	Type *TypeNode `@@`
}

// BlockNode is `%Label:` followed by instruction lines.
type BlockNode struct {
	Label  string       `@Label ":"`
	Instrs []*InstrLine `@@*`
}

// ValueNode is an operand: an integer literal, a global reference, or a
// (possibly versioned) local reference.
type ValueNode struct {
	Pos    lexer.Position
	Int    *string `(  @Int`
	Global *string  ` | @GlobalSym`
	Local  *string  ` | @LocalSym )`
}

// InstrLine is one instruction, dispatched by its leading token: an
// assignment (`$dst <- op ...`), or one of the bare (destination-less)
// forms (st, call, jmp, br, ret). Each alternative's own keyword(s)
// disambiguate it with one token of lookahead, per spec.md §6 "LL(2)".
type InstrLine struct {
	Assign *AssignLine   `(  @@`
	Store  *StoreLine    ` | @@`
	CallV  *CallVoidLine ` | @@`
	Jmp    *JmpLine      ` | @@`
	Br     *BrLine       ` | @@`
	Ret    *RetLine      ` | @@ ) [ ";" ]`
}

type AssignLine struct {
	Dst string    `@LocalSym "<-"`
	Op  *AssignOp `@@`
}

type AssignOp struct {
	Mov   *MovRHS   `(  @@`
	Bin   *BinRHS   ` | @@`
	Un    *UnRHS    ` | @@`
	Alloc *AllocRHS ` | @@`
	New   *NewRHS   ` | @@`
	Load  *LoadRHS  ` | @@`
	Addr  *AddrRHS  ` | @@`
	Call  *CallRHS  ` | @@`
	Phi   *PhiRHS   ` | @@ )`
}

type MovRHS struct {
	Type *TypeNode  `"mov" @@`
	Src  *ValueNode `@@`
}

type BinRHS struct {
	Op   string     `@( "add" | "sub" | "mul" | "div" | "mod" | "and" | "or" | "xor" | "shl" | "shr" | "eq" | "ne" | "lt" | "le" | "gt" | "ge" )`
	Type *TypeNode  `@@`
	X    *ValueNode `@@ ","`
	Y    *ValueNode `@@`
}

type UnRHS struct {
	Op   string     `@( "neg" | "not" )`
	Type *TypeNode  `@@`
	X    *ValueNode `@@`
}

type AllocRHS struct {
	Elem *TypeNode `"alloc" @@`
}

type NewRHS struct {
	Elem  *TypeNode  `"new" @@`
	Count *ValueNode `"[" @@ "]"`
}

type LoadRHS struct {
	Type *TypeNode  `"ld" @@`
	Addr *ValueNode `@@`
}

type AddrRHS struct {
	Type    *TypeNode    `"ptr" @@`
	Base    *ValueNode   `@@`
	Indices []*ValueNode `( "[" @@ "]" )*`
}

type CallRHS struct {
	Type   *TypeNode    `"call" @@`
	Callee string       `@GlobalSym "("`
	Args   []*ValueNode `[ @@ ( "," @@ )* ] ")"`
}

type PhiRHS struct {
	Type *TypeNode     `"phi" @@`
	Arms []*PhiArmNode `( "[" @@ "]" )*`
}

type PhiArmNode struct {
	Pred string     `@Label ":"`
	Val  *ValueNode `@@`
}

// StoreLine is `st T addr, val` — no destination.
type StoreLine struct {
	Type *TypeNode  `"st" @@`
	Addr *ValueNode `@@ ","`
	Val  *ValueNode `@@`
}

// CallVoidLine is `call @callee(args)` with no destination and no type.
type CallVoidLine struct {
	Callee string       `"call" @GlobalSym "("`
	Args   []*ValueNode `[ @@ ( "," @@ )* ] ")"`
}

type JmpLine struct {
	Target string `"jmp" @Label`
}

type BrLine struct {
	Cond  *ValueNode `"br" @@ "?"`
	True  string     `@Label ":"`
	False string     `@Label`
}

type RetLine struct {
	Val *ValueNode `"ret" @@?`
}
