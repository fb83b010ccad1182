package ir

// Builder is a small programmatic construction API for IRL functions,
// used by tests and by the textual parser's conversion stage. It mirrors
// the bookkeeping style of the teacher's AST→IR Builder (per-function
// counters, an addInstruction helper) but does not need that builder's
// variable-stack/phi-insertion machinery: the textual form (and test
// fixtures built through this API) are already in SSA form, so
// "building" IRL is pure name/label resolution, not SSA construction.
type Builder struct {
	Fn *Function
}

// NewBuilder starts building a fresh function.
func NewBuilder(name string, params []*Parameter, ret Type) *Builder {
	return &Builder{Fn: NewFunction(name, params, ret)}
}

// Block creates a new block in the function under construction.
func (b *Builder) Block(label string) *BasicBlock {
	return b.Fn.NewBlock(label)
}

func (b *Builder) nextID() int { return b.Fn.NextInstID() }

// Move emits `dst <- mov T src` into blk.
func (b *Builder) Move(blk *BasicBlock, dst, src *Value) *Move {
	m := &Move{instBase: instBase{id: b.nextID()}, Dst: dst, Src: src}
	dst.Def = m
	blk.AddInstr(m)
	return m
}

// Bin emits a binary instruction into blk.
func (b *Builder) Bin(blk *BasicBlock, op BinOp, dst, x, y *Value) *Binary {
	inst := &Binary{instBase: instBase{id: b.nextID()}, Dst: dst, Op: op, X: x, Y: y}
	dst.Def = inst
	blk.AddInstr(inst)
	return inst
}

// Un emits a unary instruction into blk.
func (b *Builder) Un(blk *BasicBlock, op UnOp, dst, x *Value) *Unary {
	inst := &Unary{instBase: instBase{id: b.nextID()}, Dst: dst, Op: op, X: x}
	dst.Def = inst
	blk.AddInstr(inst)
	return inst
}

// AllocInst emits `dst <- alloc T` into blk.
func (b *Builder) AllocInst(blk *BasicBlock, dst *Value, elem Type) *Alloc {
	inst := &Alloc{instBase: instBase{id: b.nextID()}, Dst: dst, Elem: elem}
	dst.Def = inst
	blk.AddInstr(inst)
	return inst
}

// NewInst emits `dst <- new T[count]` into blk.
func (b *Builder) NewInst(blk *BasicBlock, dst *Value, elem Type, count *Value) *New {
	inst := &New{instBase: instBase{id: b.nextID()}, Dst: dst, Elem: elem, Count: count}
	dst.Def = inst
	blk.AddInstr(inst)
	return inst
}

// LoadInst emits `dst <- ld T addr` into blk.
func (b *Builder) LoadInst(blk *BasicBlock, dst, addr *Value) *Load {
	inst := &Load{instBase: instBase{id: b.nextID()}, Dst: dst, Addr: addr}
	dst.Def = inst
	blk.AddInstr(inst)
	return inst
}

// StoreInst emits `st T addr, val` into blk.
func (b *Builder) StoreInst(blk *BasicBlock, addr, val *Value) *Store {
	inst := &Store{instBase: instBase{id: b.nextID()}, Addr: addr, Val: val}
	blk.AddInstr(inst)
	return inst
}

// AddrInst emits `dst <- ptr T base[i0][i1]...` into blk.
func (b *Builder) AddrInst(blk *BasicBlock, dst, base *Value, indices ...*Value) *Addr {
	inst := &Addr{instBase: instBase{id: b.nextID()}, Dst: dst, Base: base, Indices: indices}
	dst.Def = inst
	blk.AddInstr(inst)
	return inst
}

// CallInst emits a call instruction into blk; dst may be nil for void calls.
func (b *Builder) CallInst(blk *BasicBlock, dst *Value, callee string, args ...*Value) *Call {
	inst := &Call{instBase: instBase{id: b.nextID()}, Dst: dst, Callee: callee, Args: args}
	if dst != nil {
		dst.Def = inst
	}
	blk.AddInstr(inst)
	return inst
}

// PhiInst creates and inserts a phi instruction with the given arms.
func (b *Builder) PhiInst(blk *BasicBlock, dst *Value, arms ...PhiArm) *Phi {
	inst := &Phi{instBase: instBase{id: b.nextID()}, Dst: dst, Arms: arms}
	dst.Def = inst
	blk.AddPhi(inst)
	return inst
}

// Jump sets blk's terminator to an unconditional jump.
func (b *Builder) Jump(blk *BasicBlock, target *BasicBlock) *Jmp {
	j := &Jmp{instBase: instBase{id: b.nextID()}, Target: target}
	blk.SetTerminator(j)
	return j
}

// Branch sets blk's terminator to a conditional branch.
func (b *Builder) Branch(blk *BasicBlock, cond *Value, t, f *BasicBlock) *Br {
	br := &Br{instBase: instBase{id: b.nextID()}, Cond: cond, True: t, False: f}
	blk.SetTerminator(br)
	return br
}

// Return sets blk's terminator to a return; val may be nil for void.
func (b *Builder) Return(blk *BasicBlock, val *Value) *Ret {
	r := &Ret{instBase: instBase{id: b.nextID()}, Val: val}
	blk.SetTerminator(r)
	return r
}

// Finish links predecessor sets from the terminators built so far. Call
// once after constructing every block of the function.
func (b *Builder) Finish() *Function {
	LinkPredecessors(b.Fn)
	return b.Fn
}
