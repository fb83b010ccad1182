package ir

import "fmt"

// RunOSR performs operator strength reduction (spec.md §4.6): finds
// induction variables by running Tarjan SCC over the SSA value graph
// restricted to add/sub/phi/mov edges, then rewrites derived expressions
// of the form `iv op rc` (op in add, sub, mul, shl) into a fresh
// induction variable advanced by addition alone, followed by linear
// function test replacement on loop-exit comparisons. Reports whether
// anything changed.
func RunOSR(fn *Function, cfg *CFG, du *DefUse) bool {
	o := &osrState{fn: fn, cfg: cfg, du: du}
	o.buildGraph()
	sccs := o.tarjanSCCs()
	changed := false
	for _, scc := range sccs {
		fam, ok := o.classifyFamily(scc)
		if !ok {
			continue
		}
		if o.reduceFamily(fam) {
			changed = true
		}
	}
	return changed
}

type osrState struct {
	fn  *Function
	cfg *CFG
	du  *DefUse

	// adj[i] holds the indices of instructions i's value depends on,
	// restricted to phi/add/sub/mov instructions.
	nodes []Instruction
	index map[Instruction]int
	adj   [][]int
}

// buildGraph collects the instructions eligible to take part in an
// induction-variable cycle (phi, mov, and additive binary ops) and the
// dependency edges among them.
func (o *osrState) buildGraph() {
	o.index = make(map[Instruction]int)
	for _, b := range o.cfg.RPO {
		for _, inst := range b.Instrs {
			if !isIVCarrier(inst) {
				continue
			}
			o.index[inst] = len(o.nodes)
			o.nodes = append(o.nodes, inst)
		}
	}
	o.adj = make([][]int, len(o.nodes))
	for i, inst := range o.nodes {
		for _, operand := range inst.Operands() {
			if operand.Kind != ValueLocal {
				continue
			}
			def, ok := o.du.DefOf(operand)
			if !ok {
				continue
			}
			if j, ok := o.index[def]; ok {
				o.adj[i] = append(o.adj[i], j)
			}
		}
	}
}

func isIVCarrier(inst Instruction) bool {
	switch t := inst.(type) {
	case *Phi, *Move:
		return true
	case *Binary:
		return t.Op == OpAdd || t.Op == OpSub
	}
	return false
}

// tarjanSCCs returns every non-trivial strongly connected component
// (size > 1, or a single node with a self-loop) in node-index order.
func (o *osrState) tarjanSCCs() [][]int {
	n := len(o.nodes)
	indexOf := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	for i := range indexOf {
		indexOf[i] = -1
	}
	var stack []int
	counter := 0
	var sccs [][]int

	var strongconnect func(v int)
	strongconnect = func(v int) {
		indexOf[v] = counter
		low[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range o.adj[v] {
			if indexOf[w] == -1 {
				strongconnect(w)
				if low[w] < low[v] {
					low[v] = low[w]
				}
			} else if onStack[w] {
				if indexOf[w] < low[v] {
					low[v] = indexOf[w]
				}
			}
		}

		if low[v] == indexOf[v] {
			var comp []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			selfLoop := len(comp) == 1 && containsEdge(o.adj[v], v)
			if len(comp) > 1 || selfLoop {
				sccs = append(sccs, comp)
			}
		}
	}

	for v := 0; v < n; v++ {
		if indexOf[v] == -1 {
			strongconnect(v)
		}
	}
	return sccs
}

func containsEdge(adj []int, target int) bool {
	for _, w := range adj {
		if w == target {
			return true
		}
	}
	return false
}

// ivFamily describes one induction-variable cycle: its header phi, the
// per-iteration step, the header phi's block, and the set of the cycle's
// member instructions.
type ivFamily struct {
	header *Phi
	step   int64
	blk    *BasicBlock
	memIdx map[Instruction]bool
}

// classifyFamily accepts an SCC as an induction-variable family only if
// it contains exactly one phi (the header), every other member is an
// add/sub/mov, and every external input is a region-constant (a literal,
// or a value defined outside the cycle entirely, i.e. loop-invariant
// with respect to it).
func (o *osrState) classifyFamily(sccIdx []int) (ivFamily, bool) {
	memIdx := make(map[Instruction]bool, len(sccIdx))
	for _, i := range sccIdx {
		memIdx[o.nodes[i]] = true
	}

	var header *Phi
	for inst := range memIdx {
		if p, ok := inst.(*Phi); ok {
			if header != nil {
				return ivFamily{}, false // more than one phi: not a simple family
			}
			header = p
		}
	}
	if header == nil {
		return ivFamily{}, false
	}

	var step int64
	for inst := range memIdx {
		bin, ok := inst.(*Binary)
		if !ok {
			continue
		}
		rc, _, ok := splitAdditive(bin, memIdx)
		if !ok {
			return ivFamily{}, false
		}
		switch bin.Op {
		case OpAdd:
			step += rc
		case OpSub:
			step -= rc
		}
	}

	for inst := range memIdx {
		for _, operand := range inst.Operands() {
			if operand.Kind != ValueLocal {
				continue
			}
			def, ok := o.du.DefOf(operand)
			if ok && memIdx[def] {
				continue // internal edge
			}
			if !o.isRegionConstant(operand, header.Block()) {
				return ivFamily{}, false
			}
		}
	}

	return ivFamily{header: header, step: step, blk: header.Block(), memIdx: memIdx}, true
}

// splitAdditive reports, for a member add/sub instruction, the constant
// operand rc and whether the other operand is internal to the family.
func splitAdditive(bin *Binary, memIdx map[Instruction]bool) (rc int64, innerIsFamily bool, ok bool) {
	xInFamily := isFamilyOperand(bin.X, memIdx)
	yInFamily := isFamilyOperand(bin.Y, memIdx)
	xc, xIsConst := IsConstInt(bin.X)
	yc, yIsConst := IsConstInt(bin.Y)
	switch {
	case xInFamily && yIsConst:
		return yc, true, true
	case yInFamily && xIsConst && bin.Op == OpAdd:
		return xc, true, true
	}
	return 0, false, false
}

func isFamilyOperand(v *Value, memIdx map[Instruction]bool) bool {
	for inst := range memIdx {
		if d := inst.Dest(); d != nil && d.SameSymbol(v) {
			return true
		}
	}
	return false
}

// isRegionConstant reports whether v holds a loop-invariant value with
// respect to the header block: either a literal, a global, or a local
// defined in a block that does not belong to the loop (approximated as
// "dominates the header and is not reached back through it").
func (o *osrState) isRegionConstant(v *Value, header *BasicBlock) bool {
	switch v.Kind {
	case ValueConst, ValueGlobal:
		return true
	case ValueLocal:
		def, ok := o.du.DefOf(v)
		if !ok {
			return true // parameter: defined once at entry
		}
		return o.cfg.Dominates(def.Block(), header) && def.Block() != header
	}
	return false
}

// reduceFamily rewrites every candidate derived expression `op(iv, c)`
// found outside the family into a fresh induction variable advanced by
// addition, then applies linear function test replacement to comparisons
// against the original induction variable at the loop exit. Only the form
// with the header phi as first operand and an integer literal c is
// rewritten; a non-literal region-constant operand is left unreduced.
func (o *osrState) reduceFamily(fam ivFamily) bool {
	changed := false
	initVal := o.headerInitValue(fam.header)
	if initVal == nil {
		return false
	}

	var candidates []lftrCandidate
	for _, b := range o.fn.Blocks {
		for _, inst := range append([]Instruction{}, b.Instrs...) {
			bin, ok := inst.(*Binary)
			if !ok || fam.memIdx[inst] {
				continue
			}
			if bin.X.Kind != ValueLocal || !bin.X.SameSymbol(fam.header.Dst) {
				continue
			}
			rc, isConst := IsConstInt(bin.Y)
			if !isConst {
				continue
			}
			var newStep int64
			switch bin.Op {
			case OpAdd:
				newStep = fam.step
			case OpSub:
				newStep = fam.step
			case OpMul:
				newStep = fam.step * rc
			case OpShl:
				newStep = fam.step << uint(rc)
			default:
				continue
			}
			newInit := evalBinOp(bin.Op, constIntOf(initVal), rc)
			newDst, ok := o.materializeIV(fam, b, bin, newInit, newStep)
			if ok {
				changed = true
				candidates = append(candidates, lftrCandidate{dst: newDst, op: bin.Op, rc: rc})
			}
		}
	}
	if o.lftrRewriteExits(fam, candidates) {
		changed = true
	}
	return changed
}

// lftrCandidate records one linear map f(x) = x `op` rc realized as a
// fresh strength-reduced induction variable, available to retarget exit
// comparisons still written against the family's original header phi.
type lftrCandidate struct {
	dst *Value
	op  BinOp
	rc  int64
}

// lftrRewriteExits implements linear function test replacement (spec.md
// §4.6): a comparison `header cmp const` found outside the family is
// rewritten to `newIV cmp f(const)`, where newIV and f are taken from one
// of the family's strength-reduced variables, so the original header phi
// can become dead once every other use has likewise been reduced away.
func (o *osrState) lftrRewriteExits(fam ivFamily, candidates []lftrCandidate) bool {
	if len(candidates) == 0 {
		return false
	}
	cand := candidates[0]
	changed := false
	for _, b := range o.fn.Blocks {
		for _, inst := range append([]Instruction{}, b.Instrs...) {
			cmp, ok := inst.(*Binary)
			if !ok || fam.memIdx[inst] || !isComparisonOp(cmp.Op) {
				continue
			}
			ivIsX := cmp.X.Kind == ValueLocal && cmp.X.SameSymbol(fam.header.Dst)
			ivIsY := cmp.Y.Kind == ValueLocal && cmp.Y.SameSymbol(fam.header.Dst)
			if ivIsX == ivIsY {
				continue // neither side is the bare header value, or both are
			}
			boundSide := cmp.Y
			if ivIsY {
				boundSide = cmp.X
			}
			bound, isConst := IsConstInt(boundSide)
			if !isConst || !lftrPreservesComparison(cmp.Op, cand.op, cand.rc) {
				continue
			}
			newBound := NewConst(evalBinOp(cand.op, bound, cand.rc), boundSide.Type())
			o.du.RemoveInstr(cmp)
			if ivIsX {
				cmp.X, cmp.Y = cand.dst, newBound
			} else {
				cmp.Y, cmp.X = cand.dst, newBound
			}
			o.du.RecordInstr(cmp)
			changed = true
		}
	}
	return changed
}

func isComparisonOp(op BinOp) bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// lftrPreservesComparison reports whether substituting the linear map
// x -> x `transformOp` rc into cmpOp keeps its meaning: equality survives
// any injective map, ordered comparisons only an order-preserving one.
func lftrPreservesComparison(cmpOp, transformOp BinOp, rc int64) bool {
	switch transformOp {
	case OpAdd, OpSub, OpShl:
		return true
	case OpMul:
		if rc > 0 {
			return true
		}
		return cmpOp == OpEq || cmpOp == OpNe
	default:
		return false
	}
}

func constIntOf(v *Value) int64 {
	n, _ := IsConstInt(v)
	return n
}

// headerInitValue returns the value the header phi takes on entry to the
// loop, i.e. the arm whose predecessor is outside the family's blocks.
func (o *osrState) headerInitValue(header *Phi) *Value {
	for _, arm := range header.Arms {
		if !o.cfg.Dominates(header.Block(), arm.Pred) {
			return arm.Val
		}
	}
	return nil
}

// materializeIV installs `newIV <- phi [header-preds]` mirroring the
// family's header, with initial value newInit and step newStep, and
// replaces bin's result with newIV everywhere.
func (o *osrState) materializeIV(fam ivFamily, owner *BasicBlock, bin *Binary, newInit, newStep int64) (*Value, bool) {
	header := fam.header
	hb := header.Block()
	ty := bin.Dst.Type()

	ivName := fmt.Sprintf("osr.%d", o.fn.NextInstID())
	ivPhi := &Phi{instBase: instBase{id: o.fn.NextInstID()}, Dst: NewLocal(ivName, 0, ty)}

	stepName := fmt.Sprintf("osr.%d", o.fn.NextInstID())
	stepDst := NewLocal(stepName, 0, ty)

	for _, arm := range header.Arms {
		if o.cfg.Dominates(hb, arm.Pred) {
			// back edge: iv' = iv_new + step
			stepInst := &Binary{instBase: instBase{id: o.fn.NextInstID()}, Dst: stepDst, Op: OpAdd, X: ivPhi.Dst, Y: NewConst(newStep, ty)}
			arm.Pred.AddInstr(stepInst)
			o.du.RecordInstr(stepInst)
			ivPhi.Arms = append(ivPhi.Arms, PhiArm{Pred: arm.Pred, Val: stepDst})
		} else {
			ivPhi.Arms = append(ivPhi.Arms, PhiArm{Pred: arm.Pred, Val: NewConst(newInit, ty)})
		}
	}
	hb.AddPhi(ivPhi)
	o.du.RecordInstr(ivPhi)

	ReplaceAllUses(o.du, o.cfg, bin.Dst, ivPhi.Dst)
	owner.RemoveInstr(bin)
	o.du.RemoveInstr(bin)
	return ivPhi.Dst, true
}
