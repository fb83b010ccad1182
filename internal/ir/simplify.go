package ir

// AlgebraicSimplify rewrites binary instructions that fold to a constant
// or to one of their own operands (spec.md §4.5 "Algebraic
// simplification"): constant folding, and identities x+0, x*1, x-x,
// x&x, x|0, x^0, x<<0/x>>0. Each rewrite keeps the original destination
// symbol alive (as a `mov` of the simpler value) so existing uses need
// no renaming. Reports whether anything changed.
func AlgebraicSimplify(fn *Function, du *DefUse) bool {
	changed := false
	for _, b := range fn.Blocks {
		for _, inst := range append([]Instruction{}, b.Instrs...) {
			bin, ok := inst.(*Binary)
			if !ok {
				continue
			}
			repl, isConst, cval := simplifyBinary(bin)
			if repl == nil && !isConst {
				continue
			}
			var src *Value
			if isConst {
				src = NewConst(cval, bin.Dst.Type())
			} else {
				src = repl
			}
			mov := &Move{instBase: instBase{id: bin.ID()}, Dst: bin.Dst, Src: src}
			replaceInBlock(b, bin, mov)
			du.RemoveInstr(bin)
			du.RecordInstr(mov)
			changed = true
		}
	}
	return changed
}

func simplifyBinary(b *Binary) (repl *Value, isConst bool, cval int64) {
	xc, xIsConst := IsConstInt(b.X)
	yc, yIsConst := IsConstInt(b.Y)
	if xIsConst && yIsConst {
		return nil, true, evalBinOp(b.Op, xc, yc)
	}
	switch b.Op {
	case OpAdd:
		if yIsConst && yc == 0 {
			return b.X, false, 0
		}
		if xIsConst && xc == 0 {
			return b.Y, false, 0
		}
	case OpSub:
		if yIsConst && yc == 0 {
			return b.X, false, 0
		}
		if sameOperand(b.X, b.Y) {
			return nil, true, 0
		}
	case OpMul:
		if yIsConst && yc == 1 {
			return b.X, false, 0
		}
		if xIsConst && xc == 1 {
			return b.Y, false, 0
		}
		if (yIsConst && yc == 0) || (xIsConst && xc == 0) {
			return nil, true, 0
		}
	case OpAnd:
		if sameOperand(b.X, b.Y) {
			return b.X, false, 0
		}
		if (yIsConst && yc == 0) || (xIsConst && xc == 0) {
			return nil, true, 0
		}
	case OpOr:
		if yIsConst && yc == 0 {
			return b.X, false, 0
		}
		if xIsConst && xc == 0 {
			return b.Y, false, 0
		}
		if sameOperand(b.X, b.Y) {
			return b.X, false, 0
		}
	case OpXor:
		if yIsConst && yc == 0 {
			return b.X, false, 0
		}
		if xIsConst && xc == 0 {
			return b.Y, false, 0
		}
		if sameOperand(b.X, b.Y) {
			return nil, true, 0
		}
	case OpShl, OpShr:
		if yIsConst && yc == 0 {
			return b.X, false, 0
		}
	}
	return nil, false, 0
}

func sameOperand(a, b *Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == ValueConst {
		return a.Const == b.Const
	}
	return a.SameSymbol(b)
}

// replaceInBlock swaps old for new at old's current position in b,
// preserving block order (unlike RemoveInstr+AddInstr, which would move
// the replacement to the end).
func replaceInBlock(b *BasicBlock, old, repl Instruction) {
	for i, cur := range b.Instrs {
		if cur == old {
			repl.setBlock(b)
			b.Instrs[i] = repl
			return
		}
	}
}
