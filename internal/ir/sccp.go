package ir

import "irl/internal/support"

// latKind is SCCP's three-level lattice (spec.md §4.4).
type latKind int

const (
	latTop latKind = iota
	latConstK
	latBottom
)

type lat struct {
	kind latKind
	val  int64
}

var topLat = lat{kind: latTop}
var bottomLat = lat{kind: latBottom}

func constLat(v int64) lat { return lat{kind: latConstK, val: v} }

// meetLat computes the lattice meet; movement is monotone Top -> Const ->
// Bottom, which is why the fixed-point loop below terminates.
func meetLat(a, b lat) lat {
	if a.kind == latTop {
		return b
	}
	if b.kind == latTop {
		return a
	}
	if a.kind == latBottom || b.kind == latBottom {
		return bottomLat
	}
	if a.val == b.val {
		return a
	}
	return bottomLat
}

type edgeKey struct{ from, to *BasicBlock }

// SCCP runs sparse conditional constant propagation over fn (spec.md
// §4.4): a lattice value per SSA name, a CFG-edge worklist marking
// reachable blocks, and an SSA-edge worklist propagating lattice changes
// from a definition to its uses. RunSCCP drives it to a fixed point,
// then rewrites constants, folds branches, drops unreachable blocks, and
// sweeps dead code. Reports whether anything changed.
func RunSCCP(fn *Function, cfg *CFG, du *DefUse) bool {
	s := &sccpState{
		fn: fn, cfg: cfg, du: du,
		vals:      make(map[symKey]lat),
		reachable: make(map[*BasicBlock]bool),
		execEdge:  make(map[edgeKey]bool),
	}
	s.run()
	return s.rewrite()
}

type sccpState struct {
	fn  *Function
	cfg *CFG
	du  *DefUse

	vals      map[symKey]lat
	reachable map[*BasicBlock]bool
	execEdge  map[edgeKey]bool

	cfgWork *support.Worklist[*BasicBlock]
	ssaWork *support.Worklist[Instruction]
}

func (s *sccpState) run() {
	s.cfgWork = support.NewWorklist[*BasicBlock]()
	s.ssaWork = support.NewWorklist[Instruction]()
	s.reachable[s.fn.Entry] = true
	s.cfgWork.Push(s.fn.Entry)

	for !s.cfgWork.Empty() || !s.ssaWork.Empty() {
		if b, ok := s.cfgWork.Pop(); ok {
			s.visitBlockEntry(b)
			continue
		}
		if inst, ok := s.ssaWork.Pop(); ok {
			s.visitInst(inst)
		}
	}
}

func (s *sccpState) visitBlockEntry(b *BasicBlock) {
	for _, phi := range b.Phis() {
		s.visitInst(phi)
	}
	for _, inst := range b.Instrs {
		if _, ok := inst.(*Phi); ok {
			continue
		}
		s.visitInst(inst)
	}
	if b.Term != nil {
		s.visitInst(b.Term)
	}
}

func (s *sccpState) visitInst(inst Instruction) {
	b := inst.Block()
	if b == nil || !s.reachable[b] {
		return
	}
	switch t := inst.(type) {
	case *Phi:
		if s.setLat(t.Dst, s.evalPhi(t)) {
			s.pushUses(t.Dst)
		}
	case *Binary:
		if s.setLat(t.Dst, s.evalBinary(t)) {
			s.pushUses(t.Dst)
		}
	case *Unary:
		if s.setLat(t.Dst, s.evalUnary(t)) {
			s.pushUses(t.Dst)
		}
	case *Move:
		if s.setLat(t.Dst, s.valueLat(t.Src)) {
			s.pushUses(t.Dst)
		}
	default:
		if d := inst.Dest(); d != nil && d.Kind == ValueLocal {
			if s.setLat(d, bottomLat) {
				s.pushUses(d)
			}
		}
		if inst.IsTerminator() {
			s.visitTerm(b)
		}
	}
}

func (s *sccpState) evalPhi(phi *Phi) lat {
	acc := topLat
	for _, arm := range phi.Arms {
		if !s.execEdge[edgeKey{arm.Pred, phi.Block()}] {
			continue
		}
		acc = meetLat(acc, s.valueLat(arm.Val))
	}
	return acc
}

func (s *sccpState) evalBinary(b *Binary) lat {
	x, y := s.valueLat(b.X), s.valueLat(b.Y)
	if b.Op == OpMul || b.Op == OpAnd {
		if (x.kind == latConstK && x.val == 0) || (y.kind == latConstK && y.val == 0) {
			return constLat(0)
		}
	}
	if x.kind == latTop || y.kind == latTop {
		return topLat
	}
	if x.kind == latBottom || y.kind == latBottom {
		return bottomLat
	}
	if (b.Op == OpDiv || b.Op == OpMod) && y.val == 0 {
		return bottomLat
	}
	return constLat(evalBinOp(b.Op, x.val, y.val))
}

func evalBinOp(op BinOp, x, y int64) int64 {
	b2i := func(b bool) int64 {
		if b {
			return 1
		}
		return 0
	}
	switch op {
	case OpAdd:
		return x + y
	case OpSub:
		return x - y
	case OpMul:
		return x * y
	case OpDiv:
		return x / y
	case OpMod:
		return x % y
	case OpAnd:
		return x & y
	case OpOr:
		return x | y
	case OpXor:
		return x ^ y
	case OpShl:
		return x << uint(y)
	case OpShr:
		return x >> uint(y)
	case OpEq:
		return b2i(x == y)
	case OpNe:
		return b2i(x != y)
	case OpLt:
		return b2i(x < y)
	case OpLe:
		return b2i(x <= y)
	case OpGt:
		return b2i(x > y)
	case OpGe:
		return b2i(x >= y)
	}
	return 0
}

func (s *sccpState) evalUnary(u *Unary) lat {
	x := s.valueLat(u.X)
	if x.kind == latTop {
		return topLat
	}
	if x.kind == latBottom {
		return bottomLat
	}
	switch u.Op {
	case OpNeg:
		return constLat(-x.val)
	case OpNot:
		return constLat(^x.val)
	}
	return bottomLat
}

func (s *sccpState) valueLat(v *Value) lat {
	switch v.Kind {
	case ValueConst:
		return constLat(v.Const)
	case ValueGlobal:
		return bottomLat
	case ValueLocal:
		if _, ok := s.du.DefOf(v); !ok {
			return bottomLat // function parameter
		}
		if l, ok := s.vals[keyOf(v)]; ok {
			return l
		}
		return topLat
	}
	return bottomLat
}

func (s *sccpState) setLat(v *Value, l lat) bool {
	k := keyOf(v)
	old, ok := s.vals[k]
	if !ok {
		old = topLat
	}
	merged := meetLat(old, l)
	if merged == old {
		return false
	}
	s.vals[k] = merged
	return true
}

func (s *sccpState) pushUses(v *Value) {
	for _, u := range s.du.UsesOf(v) {
		s.ssaWork.Push(u.Inst)
	}
}

func (s *sccpState) visitTerm(b *BasicBlock) {
	switch t := b.Term.(type) {
	case *Jmp:
		s.markEdge(b, t.Target)
	case *Br:
		c := s.valueLat(t.Cond)
		switch c.kind {
		case latConstK:
			if c.val != 0 {
				s.markEdge(b, t.True)
			} else {
				s.markEdge(b, t.False)
			}
		case latBottom:
			s.markEdge(b, t.True)
			s.markEdge(b, t.False)
		}
	}
}

func (s *sccpState) markEdge(from, to *BasicBlock) {
	ek := edgeKey{from, to}
	if s.execEdge[ek] {
		return
	}
	s.execEdge[ek] = true
	s.reachable[to] = true
	s.cfgWork.Push(to)
}

// rewrite applies the post-fixpoint transform spec.md §4.4 describes:
// replace every Const name with its literal, fold constant branches to
// jmp, drop unreachable blocks (narrowing phi operand lists in
// surviving successors to match), and sweep dead code.
func (s *sccpState) rewrite() bool {
	changed := false

	for _, inst := range s.fn.Instructions() {
		d := inst.Dest()
		if d == nil || d.Kind != ValueLocal {
			continue
		}
		l, ok := s.vals[keyOf(d)]
		if !ok || l.kind != latConstK {
			continue
		}
		ReplaceAllUses(s.du, s.cfg, d, NewConst(l.val, d.Type()))
		changed = true
	}

	for _, b := range s.fn.Blocks {
		br, ok := b.Term.(*Br)
		if !ok {
			continue
		}
		l := s.valueLat(br.Cond)
		if l.kind != latConstK {
			continue
		}
		target := br.False
		if l.val != 0 {
			target = br.True
		}
		jmp := &Jmp{instBase: instBase{id: s.fn.NextInstID()}, Target: target}
		s.du.RemoveInstr(br)
		b.SetTerminator(jmp)
		s.du.RecordInstr(jmp)
		changed = true
	}

	var toRemove []*BasicBlock
	for _, b := range s.fn.Blocks {
		if !s.reachable[b] {
			toRemove = append(toRemove, b)
		}
	}
	for _, b := range toRemove {
		for _, inst := range b.AllInstrs() {
			s.du.RemoveInstr(inst)
		}
		s.fn.RemoveBlock(b)
		changed = true
	}
	LinkPredecessors(s.fn)

	for _, b := range s.fn.Blocks {
		predSet := make(map[*BasicBlock]bool, len(b.Preds))
		for _, p := range b.Preds {
			predSet[p] = true
		}
		for _, phi := range b.Phis() {
			var kept []PhiArm
			for _, arm := range phi.Arms {
				if predSet[arm.Pred] {
					kept = append(kept, arm)
				}
			}
			if len(kept) != len(phi.Arms) {
				phi.Arms = kept
				changed = true
			}
		}
	}

	if DCE(s.fn, s.du) {
		changed = true
	}
	return changed
}
