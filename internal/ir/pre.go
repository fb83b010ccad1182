package ir

import "fmt"

// maxPREInsertionRounds bounds the insertion fixed-point loop; a single
// function has finitely many (block, expression) insertion opportunities
// so this is a safety backstop, not expected to bind in practice.
const maxPREInsertionRounds = 16

// RunPRE performs GVN-based partial redundancy elimination (spec.md
// §4.5): computes EXP_GEN/PHI_GEN/TMP_GEN/AVAIL_OUT/ANTIC_IN, inserts
// copies on paths missing a partially-redundant expression (splitting
// critical edges as needed), then eliminates dominated redundant
// recomputations. gvn must have been computed over fn's current state.
// Reports whether anything changed.
//
// Simplification, documented here and in DESIGN.md: ANTIC_IN's
// "translate through b->successor phi edges" step is approximated by
// plain set intersection across successors' ANTIC_IN sets (no per-edge
// operand substitution). This stays sound — it only ever under-
// anticipates, never wrongly hoists a computation — at the cost of
// missing some phi-translated hoisting opportunities a full
// implementation would catch.
func RunPRE(fn *Function, cfg *CFG, du *DefUse, gvn *GVN) bool {
	p := &preState{fn: fn, cfg: cfg, du: du, gvn: gvn, leader: make(map[int]*Value)}
	p.computeGenSets()
	p.computeAvailOut()
	p.computeAnticIn()
	changed := p.insert()
	if p.eliminate() {
		changed = true
	}
	return changed
}

type preState struct {
	fn  *Function
	cfg *CFG
	du  *DefUse
	gvn *GVN

	expGen map[*BasicBlock]map[int]bool
	phiGen map[*BasicBlock]map[int]bool
	tmpGen map[*BasicBlock]map[int]bool

	availOut map[*BasicBlock]map[int]*Value
	anticIn  map[*BasicBlock]map[int]bool

	// leader overrides the GVN-computed leader for classes whose leader
	// is a phi inserted by this pass (GVN itself is not recomputed
	// mid-pass).
	leader map[int]*Value
}

func (p *preState) computeGenSets() {
	p.expGen = make(map[*BasicBlock]map[int]bool)
	p.phiGen = make(map[*BasicBlock]map[int]bool)
	p.tmpGen = make(map[*BasicBlock]map[int]bool)
	for _, b := range p.fn.Blocks {
		exp, phiG, tmp := map[int]bool{}, map[int]bool{}, map[int]bool{}
		for _, inst := range b.Instrs {
			d := inst.Dest()
			if d == nil || d.Kind != ValueLocal {
				continue
			}
			cid := p.gvn.ClassOf(d)
			switch inst.(type) {
			case *Phi:
				phiG[cid] = true
			case *Binary:
				exp[cid] = true
				tmp[cid] = true
			default:
				tmp[cid] = true
			}
		}
		p.expGen[b], p.phiGen[b], p.tmpGen[b] = exp, phiG, tmp
	}
}

func (p *preState) computeAvailOut() {
	p.availOut = make(map[*BasicBlock]map[int]*Value)
	var visit func(b *BasicBlock, parent map[int]*Value)
	visit = func(b *BasicBlock, parent map[int]*Value) {
		cur := make(map[int]*Value, len(parent))
		for k, v := range parent {
			cur[k] = v
		}
		for _, inst := range b.Instrs {
			d := inst.Dest()
			if d == nil || d.Kind != ValueLocal {
				continue
			}
			cid := p.gvn.ClassOf(d)
			if _, ok := cur[cid]; !ok {
				cur[cid] = d
			}
		}
		p.availOut[b] = cur
		for _, child := range p.cfg.DomChildren(b) {
			visit(child, cur)
		}
	}
	if p.fn.Entry != nil {
		visit(p.fn.Entry, map[int]*Value{})
	}
}

func (p *preState) leaderFor(cid int) *Value {
	if v, ok := p.leader[cid]; ok {
		return v
	}
	return p.gvn.LeaderOf(cid)
}

func (p *preState) computeAnticIn() {
	p.anticIn = make(map[*BasicBlock]map[int]bool)
	for _, b := range p.cfg.RPO {
		p.anticIn[b] = map[int]bool{}
	}
	killed := make(map[*BasicBlock]map[int]bool, len(p.cfg.RPO))
	for _, b := range p.cfg.RPO {
		killed[b] = p.killedByOwnPhis(b)
	}

	changed := true
	for changed {
		changed = false
		for i := len(p.cfg.RPO) - 1; i >= 0; i-- {
			b := p.cfg.RPO[i]
			succs := b.Successors()
			var anticOut map[int]bool
			switch len(succs) {
			case 0:
				anticOut = map[int]bool{}
			default:
				anticOut = map[int]bool{}
				for cid := range p.anticIn[succs[0]] {
					anticOut[cid] = true
				}
				for _, s := range succs[1:] {
					for cid := range anticOut {
						if !p.anticIn[s][cid] {
							delete(anticOut, cid)
						}
					}
				}
			}
			merged := map[int]bool{}
			for cid := range anticOut {
				merged[cid] = true
			}
			for cid := range p.expGen[b] {
				if killed[b][cid] {
					continue
				}
				merged[cid] = true
			}
			if !sameIntSet(merged, p.anticIn[b]) {
				p.anticIn[b] = merged
				changed = true
			}
		}
	}
}

// killedByOwnPhis finds expression classes generated in b whose operands
// are themselves defined by a phi in b: such an expression cannot be
// anticipated above b (a predecessor can't compute it without knowing
// which arm of the phi it would take).
func (p *preState) killedByOwnPhis(b *BasicBlock) map[int]bool {
	phiDefined := map[int]bool{}
	for _, phi := range b.Phis() {
		phiDefined[p.gvn.ClassOf(phi.Dst)] = true
	}
	killed := map[int]bool{}
	for _, inst := range b.Instrs {
		bin, ok := inst.(*Binary)
		if !ok {
			continue
		}
		if phiDefined[p.gvn.ClassOf(bin.X)] || phiDefined[p.gvn.ClassOf(bin.Y)] {
			killed[p.gvn.ClassOf(bin.Dst)] = true
		}
	}
	return killed
}

func sameIntSet(a, b map[int]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// insert runs the insertion phase to a fixed point.
func (p *preState) insert() bool {
	anyChanged := false
	for round := 0; round < maxPREInsertionRounds; round++ {
		changed := false
		for _, b := range p.fn.Blocks {
			if len(b.Preds) < 2 {
				continue
			}
			idom := p.cfg.IDom(b)
			var aboveAvail map[int]*Value
			if idom != nil {
				aboveAvail = p.availOut[idom]
			}
			for cid := range p.anticIn[b] {
				if aboveAvail != nil {
					if _, ok := aboveAvail[cid]; ok {
						continue
					}
				}
				if _, ok := p.availOut[b][cid]; ok {
					continue
				}
				if p.tryInsert(b, cid) {
					changed = true
				}
			}
		}
		if !changed {
			break
		}
		anyChanged = true
	}
	return anyChanged
}

// tryInsert materialises expression cid in every predecessor of b that
// lacks it (splitting critical edges as needed) and installs a merging
// phi in b, provided cid is available in at least one predecessor
// already (otherwise there is nothing to merge from).
func (p *preState) tryInsert(b *BasicBlock, cid int) bool {
	members := p.gvn.MembersOf(cid)
	var tmpl *Binary
	for _, m := range members {
		if bin, ok := m.(*Binary); ok {
			tmpl = bin
			break
		}
	}
	if tmpl == nil {
		return false
	}

	presentAnywhere := false
	for _, pred := range b.Preds {
		if _, ok := p.availOut[pred][cid]; ok {
			presentAnywhere = true
			break
		}
	}
	if !presentAnywhere {
		return false
	}

	relinked := false
	for _, pred := range append([]*BasicBlock{}, b.Preds...) {
		if _, ok := p.availOut[pred][cid]; ok {
			continue
		}
		target := splitCriticalEdge(p.fn, pred, b)
		if target != pred {
			relinked = true
		}
		x := p.leaderFor(p.gvn.ClassOf(tmpl.X))
		y := p.leaderFor(p.gvn.ClassOf(tmpl.Y))
		if x == nil || y == nil {
			continue
		}
		dst := NewLocal(fmt.Sprintf("pre.%d", p.fn.NextInstID()), 0, tmpl.Dst.Type())
		newInst := &Binary{instBase: instBase{id: p.fn.NextInstID()}, Dst: dst, Op: tmpl.Op, X: x, Y: y}
		target.AddInstr(newInst)
		p.du.RecordInstr(newInst)
		p.availOut[target] = extendAvail(p.availOut[target], cid, dst)
	}
	if relinked {
		LinkPredecessors(p.fn)
	}

	arms := make([]PhiArm, 0, len(b.Preds))
	for _, pred := range b.Preds {
		v, ok := p.availOut[pred][cid]
		if !ok {
			return false
		}
		arms = append(arms, PhiArm{Pred: pred, Val: v})
	}
	dst := NewLocal(fmt.Sprintf("pre.%d", p.fn.NextInstID()), 0, tmpl.Dst.Type())
	phi := &Phi{instBase: instBase{id: p.fn.NextInstID()}, Dst: dst, Arms: arms}
	b.AddPhi(phi)
	p.du.RecordInstr(phi)
	p.leader[cid] = dst
	p.availOut[b] = extendAvail(p.availOut[b], cid, dst)
	p.phiGen[b][cid] = true
	return true
}

func extendAvail(m map[int]*Value, cid int, v *Value) map[int]*Value {
	out := make(map[int]*Value, len(m)+1)
	for k, vv := range m {
		out[k] = vv
	}
	out[cid] = v
	return out
}

// splitCriticalEdge inserts a fresh block between pred and succ if pred
// has more than one successor, retargeting pred's terminator and any
// phis in succ that referenced pred directly.
func splitCriticalEdge(fn *Function, pred, succ *BasicBlock) *BasicBlock {
	if len(pred.Successors()) <= 1 {
		return pred
	}
	label := fmt.Sprintf("%s.%s.split", pred.Label, succ.Label)
	nb := fn.InsertBlockAfter(pred, label)
	retargetSuccessor(pred, succ, nb)
	jmp := &Jmp{instBase: instBase{id: fn.NextInstID()}, Target: succ}
	nb.SetTerminator(jmp)
	for _, phi := range succ.Phis() {
		for i, arm := range phi.Arms {
			if arm.Pred == pred {
				phi.Arms[i].Pred = nb
			}
		}
	}
	return nb
}

func retargetSuccessor(pred *BasicBlock, oldSucc, newSucc *BasicBlock) {
	switch t := pred.Term.(type) {
	case *Jmp:
		if t.Target == oldSucc {
			t.Target = newSucc
		}
	case *Br:
		if t.True == oldSucc {
			t.True = newSucc
		}
		if t.False == oldSucc {
			t.False = newSucc
		}
	}
	pred.invalidateSuccessors()
}

// eliminate walks every block and replaces a computation's uses with its
// class's dominating leader, deleting the now-redundant instruction via
// the following DCE sweep.
func (p *preState) eliminate() bool {
	changed := false
	for _, b := range p.fn.Blocks {
		for _, inst := range append([]Instruction{}, b.Instrs...) {
			bin, ok := inst.(*Binary)
			if !ok {
				continue
			}
			cid := p.gvn.ClassOf(bin.Dst)
			leader := p.leaderFor(cid)
			if leader == nil || leader.SameSymbol(bin.Dst) {
				continue
			}
			if !p.leaderDominates(leader, b, bin) {
				continue
			}
			ReplaceAllUses(p.du, p.cfg, bin.Dst, leader)
			changed = true
		}
	}
	if DCE(p.fn, p.du) {
		changed = true
	}
	return changed
}

func (p *preState) leaderDominates(leader *Value, useBlk *BasicBlock, useInst Instruction) bool {
	if leader.Kind != ValueLocal {
		return true
	}
	def, ok := p.du.DefOf(leader)
	if !ok {
		return true // parameter
	}
	if def.Block() == useBlk {
		return def.ID() < useInst.ID()
	}
	return p.cfg.Dominates(def.Block(), useBlk)
}
