package ir

import (
	"fmt"
	"strings"
)

// BinOp is the opcode of a binary instruction: arithmetic, bitwise, or
// comparison (spec.md §3). Comparisons produce 0 or 1, typed like their
// operands.
type BinOp string

const (
	OpAdd BinOp = "add"
	OpSub BinOp = "sub"
	OpMul BinOp = "mul"
	OpDiv BinOp = "div"
	OpMod BinOp = "mod"

	OpAnd BinOp = "and"
	OpOr  BinOp = "or"
	OpXor BinOp = "xor"
	OpShl BinOp = "shl"
	OpShr BinOp = "shr"

	OpEq BinOp = "eq"
	OpNe BinOp = "ne"
	OpLt BinOp = "lt"
	OpLe BinOp = "le"
	OpGt BinOp = "gt"
	OpGe BinOp = "ge"
)

// Commutative reports whether operand order does not affect the result,
// per spec.md §4.3 point 2 (used by GVN to compare operands as unordered
// multisets and by GVN-PRE's algebraic simplification to canonicalise
// operand order).
func (op BinOp) Commutative() bool {
	switch op {
	case OpAdd, OpMul, OpAnd, OpOr, OpXor, OpEq, OpNe:
		return true
	default:
		return false
	}
}

// UnOp is the opcode of a unary instruction.
type UnOp string

const (
	OpNeg UnOp = "neg"
	OpNot UnOp = "not"
)

// Instruction is the common interface of every IRL instruction. Rather
// than an open class hierarchy, the instruction set is a small closed
// tagged union (spec.md §9 "Polymorphic instruction set"): each concrete
// type below implements this interface with a small fixed arity of
// operand slots, plus an overflow slice for phi/call.
type Instruction interface {
	// ID is a stable id, unique within the owning block, used to order
	// instructions deterministically for fixed-point analyses.
	ID() int
	Block() *BasicBlock
	setBlock(b *BasicBlock)
	// Dest returns the instruction's single destination, or nil.
	Dest() *Value
	// Operands returns the instruction's operand values in a stable order.
	Operands() []*Value
	// SetOperand replaces the i'th operand as returned by Operands().
	SetOperand(i int, v *Value)
	IsTerminator() bool
	String() string
}

// Terminator is the subset of instructions that may end a block.
type Terminator interface {
	Instruction
	Successors() []*BasicBlock
}

type instBase struct {
	id  int
	blk *BasicBlock
}

func (b *instBase) ID() int             { return b.id }
func (b *instBase) Block() *BasicBlock  { return b.blk }
func (b *instBase) setBlock(bb *BasicBlock) { b.blk = bb }

// Move is `dst <- mov T src`.
type Move struct {
	instBase
	Dst *Value
	Src *Value
}

func (m *Move) Dest() *Value          { return m.Dst }
func (m *Move) Operands() []*Value    { return []*Value{m.Src} }
func (m *Move) SetOperand(i int, v *Value) {
	if i == 0 {
		m.Src = v
	}
}
func (m *Move) IsTerminator() bool { return false }
func (m *Move) String() string {
	return fmt.Sprintf("%s <- mov %s %s", m.Dst, m.Dst.Type(), m.Src)
}

// Binary is a two-operand arithmetic/bitwise/comparison instruction.
type Binary struct {
	instBase
	Dst *Value
	Op  BinOp
	X, Y *Value
}

func (b *Binary) Dest() *Value       { return b.Dst }
func (b *Binary) Operands() []*Value { return []*Value{b.X, b.Y} }
func (b *Binary) SetOperand(i int, v *Value) {
	switch i {
	case 0:
		b.X = v
	case 1:
		b.Y = v
	}
}
func (b *Binary) IsTerminator() bool { return false }
func (b *Binary) String() string {
	return fmt.Sprintf("%s <- %s %s %s, %s", b.Dst, b.Op, b.Dst.Type(), b.X, b.Y)
}

// Unary is a one-operand arithmetic/bitwise instruction (neg, not).
type Unary struct {
	instBase
	Dst *Value
	Op  UnOp
	X   *Value
}

func (u *Unary) Dest() *Value       { return u.Dst }
func (u *Unary) Operands() []*Value { return []*Value{u.X} }
func (u *Unary) SetOperand(i int, v *Value) {
	if i == 0 {
		u.X = v
	}
}
func (u *Unary) IsTerminator() bool { return false }
func (u *Unary) String() string {
	return fmt.Sprintf("%s <- %s %s %s", u.Dst, u.Op, u.Dst.Type(), u.X)
}

// Alloc reserves stack space for a value of type Elem, yielding ptr Elem.
type Alloc struct {
	instBase
	Dst  *Value
	Elem Type
}

func (a *Alloc) Dest() *Value          { return a.Dst }
func (a *Alloc) Operands() []*Value    { return nil }
func (a *Alloc) SetOperand(int, *Value) {}
func (a *Alloc) IsTerminator() bool    { return false }
func (a *Alloc) String() string {
	return fmt.Sprintf("%s <- alloc %s", a.Dst, a.Elem)
}

// New heap-allocates Count elements of type Elem, yielding ptr Elem.
type New struct {
	instBase
	Dst   *Value
	Elem  Type
	Count *Value
}

func (n *New) Dest() *Value       { return n.Dst }
func (n *New) Operands() []*Value { return []*Value{n.Count} }
func (n *New) SetOperand(i int, v *Value) {
	if i == 0 {
		n.Count = v
	}
}
func (n *New) IsTerminator() bool { return false }
func (n *New) String() string {
	return fmt.Sprintf("%s <- new %s[%s]", n.Dst, n.Elem, n.Count)
}

// Load reads through a pointer.
type Load struct {
	instBase
	Dst  *Value
	Addr *Value
}

func (l *Load) Dest() *Value       { return l.Dst }
func (l *Load) Operands() []*Value { return []*Value{l.Addr} }
func (l *Load) SetOperand(i int, v *Value) {
	if i == 0 {
		l.Addr = v
	}
}
func (l *Load) IsTerminator() bool { return false }
func (l *Load) String() string {
	return fmt.Sprintf("%s <- ld %s %s", l.Dst, l.Dst.Type(), l.Addr)
}

// Store writes a value through a pointer; it has no destination.
type Store struct {
	instBase
	Addr *Value
	Val  *Value
}

func (s *Store) Dest() *Value       { return nil }
func (s *Store) Operands() []*Value { return []*Value{s.Addr, s.Val} }
func (s *Store) SetOperand(i int, v *Value) {
	switch i {
	case 0:
		s.Addr = v
	case 1:
		s.Val = v
	}
}
func (s *Store) IsTerminator() bool { return false }
func (s *Store) String() string {
	return fmt.Sprintf("st %s %s, %s", s.Val.Type(), s.Addr, s.Val)
}

// Addr computes base + index-list address arithmetic for aggregate
// indexing (spec.md §3 "ptr, with base plus optional element-index list").
type Addr struct {
	instBase
	Dst     *Value
	Base    *Value
	Indices []*Value
}

func (a *Addr) Dest() *Value { return a.Dst }
func (a *Addr) Operands() []*Value {
	ops := make([]*Value, 0, len(a.Indices)+1)
	ops = append(ops, a.Base)
	return append(ops, a.Indices...)
}
func (a *Addr) SetOperand(i int, v *Value) {
	if i == 0 {
		a.Base = v
		return
	}
	if idx := i - 1; idx < len(a.Indices) {
		a.Indices[idx] = v
	}
}
func (a *Addr) IsTerminator() bool { return false }
func (a *Addr) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s <- ptr %s %s", a.Dst, a.Dst.Type(), a.Base)
	for _, ix := range a.Indices {
		fmt.Fprintf(&b, "[%s]", ix)
	}
	return b.String()
}

// Call invokes a function by symbol name, passing a list of argument
// values; Dst is nil for void calls.
type Call struct {
	instBase
	Dst    *Value
	Callee string
	Args   []*Value
}

func (c *Call) Dest() *Value       { return c.Dst }
func (c *Call) Operands() []*Value { return c.Args }
func (c *Call) SetOperand(i int, v *Value) {
	if i < len(c.Args) {
		c.Args[i] = v
	}
}
func (c *Call) IsTerminator() bool { return false }
func (c *Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	if c.Dst == nil {
		return fmt.Sprintf("call @%s(%s)", c.Callee, strings.Join(args, ", "))
	}
	return fmt.Sprintf("%s <- call %s @%s(%s)", c.Dst, c.Dst.Type(), c.Callee, strings.Join(args, ", "))
}

// PhiArm is one (predecessor, value) pair of a Phi instruction.
type PhiArm struct {
	Pred *BasicBlock
	Val  *Value
}

// Phi selects an operand by the predecessor control arrived from
// (spec.md GLOSSARY). Arms are unordered relative to predecessor
// enumeration (spec.md §9); verification canonicalises before comparing.
type Phi struct {
	instBase
	Dst  *Value
	Arms []PhiArm
}

func (p *Phi) Dest() *Value { return p.Dst }
func (p *Phi) Operands() []*Value {
	ops := make([]*Value, len(p.Arms))
	for i, a := range p.Arms {
		ops[i] = a.Val
	}
	return ops
}
func (p *Phi) SetOperand(i int, v *Value) {
	if i < len(p.Arms) {
		p.Arms[i].Val = v
	}
}
func (p *Phi) IsTerminator() bool { return false }

// ArmFor returns the value flowing in from pred, and whether one exists.
func (p *Phi) ArmFor(pred *BasicBlock) (*Value, bool) {
	for _, a := range p.Arms {
		if a.Pred == pred {
			return a.Val, true
		}
	}
	return nil, false
}

func (p *Phi) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s <- phi %s", p.Dst, p.Dst.Type())
	for _, a := range p.Arms {
		fmt.Fprintf(&b, " [%s: %s]", a.Pred.Label, a.Val)
	}
	return b.String()
}

// Jmp is an unconditional branch.
type Jmp struct {
	instBase
	Target *BasicBlock
}

func (j *Jmp) Dest() *Value              { return nil }
func (j *Jmp) Operands() []*Value        { return nil }
func (j *Jmp) SetOperand(int, *Value)    {}
func (j *Jmp) IsTerminator() bool        { return true }
func (j *Jmp) Successors() []*BasicBlock { return []*BasicBlock{j.Target} }
func (j *Jmp) String() string            { return fmt.Sprintf("jmp %%%s", j.Target.Label) }

// Br is a conditional branch.
type Br struct {
	instBase
	Cond        *Value
	True, False *BasicBlock
}

func (b *Br) Dest() *Value       { return nil }
func (b *Br) Operands() []*Value { return []*Value{b.Cond} }
func (b *Br) SetOperand(i int, v *Value) {
	if i == 0 {
		b.Cond = v
	}
}
func (b *Br) IsTerminator() bool { return true }
func (b *Br) Successors() []*BasicBlock {
	return []*BasicBlock{b.True, b.False}
}
func (b *Br) String() string {
	return fmt.Sprintf("br %s ? %%%s : %%%s", b.Cond, b.True.Label, b.False.Label)
}

// Ret returns from the function, optionally with a value.
type Ret struct {
	instBase
	Val *Value
}

func (r *Ret) Dest() *Value { return nil }
func (r *Ret) Operands() []*Value {
	if r.Val == nil {
		return nil
	}
	return []*Value{r.Val}
}
func (r *Ret) SetOperand(i int, v *Value) {
	if i == 0 {
		r.Val = v
	}
}
func (r *Ret) IsTerminator() bool        { return true }
func (r *Ret) Successors() []*BasicBlock { return nil }
func (r *Ret) String() string {
	if r.Val == nil {
		return "ret"
	}
	return fmt.Sprintf("ret %s", r.Val)
}

// IsPure reports whether an instruction is a pure computation with no
// observable side effect.
func IsPure(inst Instruction) bool {
	switch inst.(type) {
	case *Binary, *Unary, *Addr, *Move:
		return true
	default:
		return false
	}
}

// IsObservable reports whether an instruction is a DCE root: terminators,
// stores, and calls are kept regardless of whether their result (if any)
// is used, per spec.md §4.2.
func IsObservable(inst Instruction) bool {
	switch inst.(type) {
	case *Store, *Call:
		return true
	default:
		return inst.IsTerminator()
	}
}
