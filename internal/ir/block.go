package ir

// BasicBlock is a straight-line instruction sequence ending in exactly one
// terminator (spec.md §3). Phi instructions, if present, precede all
// non-phi instructions.
type BasicBlock struct {
	Label        string
	Func         *Function
	Instrs       []Instruction
	Term         Terminator
	Preds        []*BasicBlock
	succsCache   []*BasicBlock
	succsValid   bool
}

// Phis returns the block's leading phi instructions, in order.
func (b *BasicBlock) Phis() []*Phi {
	var out []*Phi
	for _, inst := range b.Instrs {
		p, ok := inst.(*Phi)
		if !ok {
			break
		}
		out = append(out, p)
	}
	return out
}

// AllInstrs returns the block's non-terminator instructions followed by
// its terminator; when no terminator is set yet it returns only the
// non-terminator instructions.
func (b *BasicBlock) AllInstrs() []Instruction {
	if b.Term == nil {
		return b.Instrs
	}
	return append(append([]Instruction{}, b.Instrs...), b.Term)
}

// AddPhi appends a phi instruction; phis must precede all non-phi
// instructions (spec.md §3), so it is inserted after any existing phis.
func (b *BasicBlock) AddPhi(p *Phi) {
	p.setBlock(b)
	idx := 0
	for idx < len(b.Instrs) {
		if _, ok := b.Instrs[idx].(*Phi); !ok {
			break
		}
		idx++
	}
	b.Instrs = append(b.Instrs, nil)
	copy(b.Instrs[idx+1:], b.Instrs[idx:])
	b.Instrs[idx] = p
	b.invalidateSuccessors()
}

// AddInstr appends a non-terminator, non-phi instruction to the end of
// the block's instruction list.
func (b *BasicBlock) AddInstr(inst Instruction) {
	inst.setBlock(b)
	b.Instrs = append(b.Instrs, inst)
}

// SetTerminator installs the block's terminator and invalidates the
// cached successor list. Predecessor lists on the targets are not
// touched here; LinkPredecessors rebuilds them.
func (b *BasicBlock) SetTerminator(t Terminator) {
	t.setBlock(b)
	b.Term = t
	b.invalidateSuccessors()
}

// RemoveInstr deletes inst from the block's instruction list. It must
// have no remaining uses (spec.md §3 "Lifecycles").
func (b *BasicBlock) RemoveInstr(inst Instruction) {
	for i, cur := range b.Instrs {
		if cur == inst {
			b.Instrs = append(b.Instrs[:i], b.Instrs[i+1:]...)
			return
		}
	}
}

// Successors returns the block's successors, derived from its terminator.
// The list is cached and rebuilt lazily: callers that mutate Term must
// call invalidateSuccessors (done automatically by SetTerminator).
func (b *BasicBlock) Successors() []*BasicBlock {
	if b.succsValid {
		return b.succsCache
	}
	if b.Term == nil {
		return nil
	}
	b.succsCache = b.Term.Successors()
	b.succsValid = true
	return b.succsCache
}

func (b *BasicBlock) invalidateSuccessors() {
	b.succsValid = false
	b.succsCache = nil
}

// LinkPredecessors recomputes every block's Preds from every other
// block's successors. Call after any structural mutation (splicing,
// new blocks, retargeted terminators) before running an analysis that
// reads Preds.
func LinkPredecessors(fn *Function) {
	for _, b := range fn.Blocks {
		b.Preds = nil
		b.invalidateSuccessors()
	}
	for _, b := range fn.Blocks {
		for _, s := range b.Successors() {
			s.Preds = append(s.Preds, b)
		}
	}
}
