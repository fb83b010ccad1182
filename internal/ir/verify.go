package ir

import (
	"fmt"
	"sort"

	"irl/internal/diagnostics"
)

// Verify checks every invariant of spec.md §3 against fn, returning the
// first violation found (construction and verification abort on the
// first error with no partial mutation, per spec.md §7 policy).
func Verify(fn *Function) *diagnostics.Diagnostic {
	if d := verifyTerminators(fn); d != nil {
		return d
	}
	if d := verifyBranchTargets(fn); d != nil {
		return d
	}
	cfg := BuildCFG(fn)
	if d := verifyReachability(fn, cfg); d != nil {
		return d
	}
	if d := verifySSA1(fn); d != nil {
		return d
	}
	if d := verifyPhiCompleteness(fn); d != nil {
		return d
	}
	if d := verifyDominance(fn, cfg); d != nil {
		return d
	}
	if d := verifyTypes(fn); d != nil {
		return d
	}
	return nil
}

func loc(fn *Function, b *BasicBlock, idx int) diagnostics.Location {
	label := ""
	if b != nil {
		label = b.Label
	}
	return diagnostics.Location{Function: fn.Name, Block: label, Index: idx}
}

// verifyTerminators checks invariant 1: each block ends with exactly one
// terminator, appearing nowhere else.
func verifyTerminators(fn *Function) *diagnostics.Diagnostic {
	for _, b := range fn.Blocks {
		if b.Term == nil {
			return diagnostics.NewAt(diagnostics.KindVerify, diagnostics.CodeTerminatorPlacement,
				fmt.Sprintf("block %%%s has no terminator", b.Label), loc(fn, b, len(b.Instrs)))
		}
		for i, inst := range b.Instrs {
			if inst.IsTerminator() {
				return diagnostics.NewAt(diagnostics.KindVerify, diagnostics.CodeTerminatorPlacement,
					fmt.Sprintf("terminator %q appears before end of block %%%s", inst.String(), b.Label),
					loc(fn, b, i))
			}
		}
	}
	return nil
}

// verifyBranchTargets checks invariant 2: every branch target names an
// existing block in the same function.
func verifyBranchTargets(fn *Function) *diagnostics.Diagnostic {
	known := make(map[*BasicBlock]bool, len(fn.Blocks))
	for _, b := range fn.Blocks {
		known[b] = true
	}
	for _, b := range fn.Blocks {
		for _, s := range b.Term.Successors() {
			if s != nil && !known[s] {
				return diagnostics.NewAt(diagnostics.KindConstruct, diagnostics.CodeUnknownLabel,
					fmt.Sprintf("branch from %%%s targets a block outside this function", b.Label),
					loc(fn, b, len(b.Instrs)))
			}
		}
	}
	return nil
}

// verifyReachability checks the "unreachable blocks are forbidden after
// verification" rule (spec.md §3 "Functions").
func verifyReachability(fn *Function, cfg *CFG) *diagnostics.Diagnostic {
	reached := make(map[*BasicBlock]bool, len(cfg.RPO))
	for _, b := range cfg.RPO {
		reached[b] = true
	}
	for _, b := range fn.Blocks {
		if !reached[b] {
			return diagnostics.NewAt(diagnostics.KindVerify, diagnostics.CodeDominanceViolation,
				fmt.Sprintf("block %%%s is unreachable from entry", b.Label), loc(fn, b, 0))
		}
	}
	return nil
}

// verifySSA1 checks invariant 4: every local symbol is defined by at
// most one instruction in the function.
func verifySSA1(fn *Function) *diagnostics.Diagnostic {
	seen := make(map[symKey]Instruction)
	for _, b := range fn.Blocks {
		for i, inst := range b.AllInstrs() {
			d := inst.Dest()
			if d == nil || d.Kind != ValueLocal {
				continue
			}
			k := keyOf(d)
			if prev, ok := seen[k]; ok && prev != inst {
				return diagnostics.NewAt(diagnostics.KindVerify, diagnostics.CodeNonUniqueDef,
					fmt.Sprintf("local %s is defined more than once", d), loc(fn, b, i))
			}
			seen[k] = inst
		}
	}
	return nil
}

// verifyPhiCompleteness checks invariant 6: a phi lists exactly the set
// of predecessors of its block, once each (operand order insignificant,
// per spec.md §9 — canonicalised here by comparing as sets).
func verifyPhiCompleteness(fn *Function) *diagnostics.Diagnostic {
	for _, b := range fn.Blocks {
		preds := make(map[*BasicBlock]bool, len(b.Preds))
		for _, p := range b.Preds {
			preds[p] = true
		}
		for i, phi := range b.Phis() {
			seen := make(map[*BasicBlock]bool, len(phi.Arms))
			for _, arm := range phi.Arms {
				if !preds[arm.Pred] {
					return diagnostics.NewAt(diagnostics.KindVerify, diagnostics.CodeIncompletePhi,
						fmt.Sprintf("phi %s lists %%%s, which is not a predecessor of %%%s",
							phi.Dst, arm.Pred.Label, b.Label), loc(fn, b, i))
				}
				if seen[arm.Pred] {
					return diagnostics.NewAt(diagnostics.KindVerify, diagnostics.CodeIncompletePhi,
						fmt.Sprintf("phi %s lists predecessor %%%s more than once", phi.Dst, arm.Pred.Label),
						loc(fn, b, i))
				}
				seen[arm.Pred] = true
			}
			if len(seen) != len(preds) {
				return diagnostics.NewAt(diagnostics.KindVerify, diagnostics.CodeIncompletePhi,
					fmt.Sprintf("phi %s does not list every predecessor of %%%s", phi.Dst, b.Label),
					loc(fn, b, i))
			}
		}
	}
	return nil
}

// verifyDominance checks invariant 5 (SSA-2): every use of a local is
// dominated by its definition; a phi operand's definition must dominate
// the end of the listed predecessor block rather than the phi's own
// block.
func verifyDominance(fn *Function, cfg *CFG) *diagnostics.Diagnostic {
	du := BuildDefUse(fn)
	for _, b := range fn.Blocks {
		for idx, inst := range b.AllInstrs() {
			if phi, ok := inst.(*Phi); ok {
				for _, arm := range phi.Arms {
					if arm.Val.Kind != ValueLocal {
						continue
					}
					def, ok := du.DefOf(arm.Val)
					if !ok {
						return undefinedUse(fn, b, idx, arm.Val)
					}
					if !cfg.Dominates(def.Block(), arm.Pred) {
						return diagnostics.NewAt(diagnostics.KindVerify, diagnostics.CodeDominanceViolation,
							fmt.Sprintf("definition of %s does not dominate predecessor %%%s of phi in %%%s",
								arm.Val, arm.Pred.Label, b.Label), loc(fn, b, idx))
					}
				}
				continue
			}
			for _, op := range inst.Operands() {
				if op == nil || op.Kind != ValueLocal || params[keyOf(op)] {
					continue
				}
				def, ok := du.DefOf(op)
				if !ok {
					return undefinedUse(fn, b, idx, op)
				}
				if def.Block() == b {
					// A phi executes conceptually before the rest of its
					// block regardless of its numeric id, which a pass
					// inserting a new phi into an already-built block may
					// assign higher than instructions physically ahead of it.
					if _, isPhi := def.(*Phi); !isPhi && def.ID() >= inst.ID() {
						return diagnostics.NewAt(diagnostics.KindVerify, diagnostics.CodeDominanceViolation,
							fmt.Sprintf("use of %s precedes its definition in %%%s", op, b.Label),
							loc(fn, b, idx))
					}
					continue
				}
				if !cfg.Dominates(def.Block(), b) {
					return diagnostics.NewAt(diagnostics.KindVerify, diagnostics.CodeDominanceViolation,
						fmt.Sprintf("definition of %s does not dominate its use in %%%s", op, b.Label),
						loc(fn, b, idx))
				}
			}
		}
	}
	return nil
}

// verifyTypes checks invariant 3: every operand is type-compatible with
// its instruction's signature. Call is checked separately by
// VerifyCalls, which needs the whole program to resolve a callee's
// parameter and return types; a bare operand's own type is unconstrained
// (nil) when nothing upstream could infer one, and is treated as
// compatible with anything rather than flagged here.
func verifyTypes(fn *Function) *diagnostics.Diagnostic {
	for _, b := range fn.Blocks {
		for idx, inst := range b.AllInstrs() {
			if d := verifyInstrTypes(fn, b, idx, inst); d != nil {
				return d
			}
		}
	}
	for _, b := range fn.Blocks {
		ret, ok := b.Term.(*Ret)
		if !ok || ret.Val == nil {
			continue
		}
		if !typesCompatible(ret.Val.Type(), fn.ReturnType) {
			return typeMismatch(fn, b, len(b.Instrs),
				fmt.Sprintf("ret %s has type %s, expected %s", ret.Val, ret.Val.Type(), fn.ReturnType))
		}
	}
	return nil
}

func typeMismatch(fn *Function, b *BasicBlock, idx int, msg string) *diagnostics.Diagnostic {
	return diagnostics.NewAt(diagnostics.KindConstruct, diagnostics.CodeTypeMismatch, msg, loc(fn, b, idx))
}

// typesCompatible treats a missing static type as unconstrained: Call
// arguments carry no declared type of their own (the grammar has no
// per-argument type annotation), so comparing against nil would always
// fail rather than signal anything real.
func typesCompatible(a, b Type) bool {
	if a == nil || b == nil {
		return true
	}
	return TypesEqual(a, b)
}

func verifyInstrTypes(fn *Function, b *BasicBlock, idx int, inst Instruction) *diagnostics.Diagnostic {
	switch n := inst.(type) {
	case *Move:
		if !typesCompatible(n.Dst.Type(), n.Src.Type()) {
			return typeMismatch(fn, b, idx,
				fmt.Sprintf("mov destination %s has type %s but source %s has type %s", n.Dst, n.Dst.Type(), n.Src, n.Src.Type()))
		}
	case *Binary:
		if !typesCompatible(n.Dst.Type(), n.X.Type()) || !typesCompatible(n.Dst.Type(), n.Y.Type()) {
			return typeMismatch(fn, b, idx,
				fmt.Sprintf("%s %s has operand types %s, %s inconsistent with destination type %s",
					n.Op, n.Dst, n.X.Type(), n.Y.Type(), n.Dst.Type()))
		}
	case *Unary:
		if !typesCompatible(n.Dst.Type(), n.X.Type()) {
			return typeMismatch(fn, b, idx,
				fmt.Sprintf("%s %s has operand type %s inconsistent with destination type %s", n.Op, n.Dst, n.X.Type(), n.Dst.Type()))
		}
	case *Alloc:
		want := &PointerType{Elem: n.Elem}
		if !typesCompatible(n.Dst.Type(), want) {
			return typeMismatch(fn, b, idx,
				fmt.Sprintf("alloc destination %s has type %s, expected %s", n.Dst, n.Dst.Type(), want))
		}
	case *New:
		want := &PointerType{Elem: n.Elem}
		if !typesCompatible(n.Dst.Type(), want) {
			return typeMismatch(fn, b, idx,
				fmt.Sprintf("new destination %s has type %s, expected %s", n.Dst, n.Dst.Type(), want))
		}
		if !typesCompatible(n.Count.Type(), &ScalarType{Bits: 64}) {
			return typeMismatch(fn, b, idx,
				fmt.Sprintf("new count %s has type %s, expected i64", n.Count, n.Count.Type()))
		}
	case *Load:
		want := &PointerType{Elem: n.Dst.Type()}
		if !typesCompatible(n.Addr.Type(), want) {
			return typeMismatch(fn, b, idx,
				fmt.Sprintf("ld address %s has type %s, expected %s", n.Addr, n.Addr.Type(), want))
		}
	case *Store:
		want := &PointerType{Elem: n.Val.Type()}
		if !typesCompatible(n.Addr.Type(), want) {
			return typeMismatch(fn, b, idx,
				fmt.Sprintf("st address %s has type %s, expected %s", n.Addr, n.Addr.Type(), want))
		}
	case *Addr:
		if !typesCompatible(n.Base.Type(), n.Dst.Type()) {
			return typeMismatch(fn, b, idx,
				fmt.Sprintf("ptr base %s has type %s inconsistent with destination type %s", n.Base, n.Base.Type(), n.Dst.Type()))
		}
		for _, ix := range n.Indices {
			if !typesCompatible(ix.Type(), &ScalarType{Bits: 64}) {
				return typeMismatch(fn, b, idx,
					fmt.Sprintf("ptr index %s has type %s, expected i64", ix, ix.Type()))
			}
		}
	case *Phi:
		for _, arm := range n.Arms {
			if !typesCompatible(n.Dst.Type(), arm.Val.Type()) {
				return typeMismatch(fn, b, idx,
					fmt.Sprintf("phi %s arm from %%%s has type %s inconsistent with destination type %s",
						n.Dst, arm.Pred.Label, arm.Val.Type(), n.Dst.Type()))
			}
		}
	}
	return nil
}

func undefinedUse(fn *Function, b *BasicBlock, idx int, v *Value) *diagnostics.Diagnostic {
	return diagnostics.NewAt(diagnostics.KindVerify, diagnostics.CodeUseBeforeDef,
		fmt.Sprintf("use of %s has no definition reaching %%%s", v, b.Label), loc(fn, b, idx))
}

// VerifyCalls checks every Call in prog against its callee's declared
// signature: argument count must match parameter count, and, when the
// call has a destination, its type must match the callee's return type.
// A call to a name no function in prog declares is left to the vm's own
// CodeUndefinedCall diagnostic at run time rather than flagged here.
func VerifyCalls(prog *Program) *diagnostics.Diagnostic {
	for _, fn := range prog.Functions {
		for _, b := range fn.Blocks {
			for idx, inst := range b.AllInstrs() {
				call, ok := inst.(*Call)
				if !ok {
					continue
				}
				callee := prog.FuncByName(call.Callee)
				if callee == nil {
					continue
				}
				if len(call.Args) != len(callee.Params) {
					return diagnostics.NewAt(diagnostics.KindConstruct, diagnostics.CodeArityMismatch,
						fmt.Sprintf("call to @%s passes %d argument(s), expected %d", call.Callee, len(call.Args), len(callee.Params)),
						loc(fn, b, idx))
				}
				if call.Dst != nil && !typesCompatible(call.Dst.Type(), callee.ReturnType) {
					return diagnostics.NewAt(diagnostics.KindConstruct, diagnostics.CodeTypeMismatch,
						fmt.Sprintf("call to @%s yields %s, destination %s expects %s", call.Callee, callee.ReturnType, call.Dst, call.Dst.Type()),
						loc(fn, b, idx))
				}
			}
		}
	}
	return nil
}

// CanonicalizePhiArms sorts each phi's arm list by predecessor label, so
// that two phis differing only in listed order compare equal (spec.md §9
// phi-operand-order open question).
func CanonicalizePhiArms(fn *Function) {
	for _, b := range fn.Blocks {
		for _, phi := range b.Phis() {
			sort.Slice(phi.Arms, func(i, j int) bool {
				return phi.Arms[i].Pred.Label < phi.Arms[j].Pred.Label
			})
		}
	}
}
