package ir

import (
	"fmt"

	"irl/internal/diagnostics"
)

// Pass is a single named transformation over a function's current
// analyses, returning whether it changed anything (spec.md §4.7).
type Pass interface {
	Name() string
	Apply(fn *Function, a *Analyses) bool
}

// Analyses bundles the memoised, on-demand analyses a pass may request.
// The driver recomputes whichever of these a pass's mutation invalidates
// before the next pass runs (spec.md §4.7's invalidation rules): block
// structure changes invalidate CFG/dominators/def-use/GVN; operand
// changes invalidate def-use/GVN/SCCP; pure dead-code removal invalidates
// only def-use.
type Analyses struct {
	fn  *Function
	cfg *CFG
	du  *DefUse
	gvn *GVN
}

// CFG returns the current control-flow/dominator analysis, computing it
// on first use after invalidation.
func (a *Analyses) CFG() *CFG {
	if a.cfg == nil {
		a.cfg = BuildCFG(a.fn)
	}
	return a.cfg
}

// DefUse returns the current def/use index, computing it on first use
// after invalidation.
func (a *Analyses) DefUse() *DefUse {
	if a.du == nil {
		a.du = BuildDefUse(a.fn)
	}
	return a.du
}

// GVN returns the current congruence-class partition, computing it (over
// the current CFG/DefUse) on first use after invalidation.
func (a *Analyses) GVN() *GVN {
	if a.gvn == nil {
		a.gvn = ComputeGVN(a.fn, a.CFG(), a.DefUse())
	}
	return a.gvn
}

// invalidateBlocks drops every analysis; a block-structure mutation
// (new/removed block, retargeted terminator) can move dominance,
// def/use, and value-numbering all at once.
func (a *Analyses) invalidateBlocks() {
	a.cfg, a.du, a.gvn = nil, nil, nil
}

// invalidateOperands drops def/use and value numbering but keeps CFG
// structure, for passes that only rewrite operands/instructions in
// place without touching block shape.
func (a *Analyses) invalidateOperands() {
	a.du, a.gvn = nil, nil
}

// invalidateDefUse drops only the def/use index, for passes (plain DCE)
// that remove dead instructions without otherwise touching block shape
// or remaining operands.
func (a *Analyses) invalidateDefUse() {
	a.du = nil
}

type passFunc struct {
	name    string
	blocks  bool // invalidates block structure
	operand bool // invalidates operands (implied by blocks)
	run     func(fn *Function, a *Analyses) bool
}

func (p *passFunc) Name() string { return p.name }
func (p *passFunc) Apply(fn *Function, a *Analyses) bool {
	changed := p.run(fn, a)
	if changed {
		switch {
		case p.blocks:
			a.invalidateBlocks()
		case p.operand:
			a.invalidateOperands()
		default:
			a.invalidateDefUse()
		}
	}
	return changed
}

var sccpPass = &passFunc{name: "sccp", blocks: true, run: func(fn *Function, a *Analyses) bool {
	return RunSCCP(fn, a.CFG(), a.DefUse())
}}

var copyPropPass = &passFunc{name: "copy-prop", operand: true, run: func(fn *Function, a *Analyses) bool {
	return CopyProp(fn, a.CFG(), a.DefUse())
}}

var dcePass = &passFunc{name: "dce", run: func(fn *Function, a *Analyses) bool {
	return DCE(fn, a.DefUse())
}}

var simplifyPass = &passFunc{name: "algebraic-simplify", operand: true, run: func(fn *Function, a *Analyses) bool {
	return AlgebraicSimplify(fn, a.DefUse())
}}

var prePass = &passFunc{name: "gvn-pre", blocks: true, run: func(fn *Function, a *Analyses) bool {
	return RunPRE(fn, a.CFG(), a.DefUse(), a.GVN())
}}

var osrPass = &passFunc{name: "osr", blocks: true, run: func(fn *Function, a *Analyses) bool {
	return RunOSR(fn, a.CFG(), a.DefUse())
}}

// DefaultPipeline is spec.md §4.7's default pipeline:
// SCCP -> CopyProp -> DCE -> GVN-PRE (with its algebraic-simplification
// pre-step) -> CopyProp -> DCE -> OSR -> DCE, iterated to a fixed point.
func DefaultPipeline() []Pass {
	return []Pass{
		sccpPass, copyPropPass, dcePass,
		simplifyPass, prePass,
		copyPropPass, dcePass,
		osrPass, dcePass,
	}
}

// PipelineConfig bounds the driver's fixed-point search (spec.md §5's
// cooperative cancellation: a pass-count budget checked between passes).
type PipelineConfig struct {
	Passes        []Pass
	MaxIterations int // outer full-sweep iterations; 0 uses the default
}

const defaultMaxIterations = 64

// RunPipeline drives cfg.Passes over fn to a fixed point (no full sweep
// changes anything), re-verifying after each sweep. It returns nil on a
// clean fixed point, a non-fatal O-001 diagnostic if MaxIterations is
// exhausted first (the last verified state is left in place, per
// spec.md §5), or a fatal O-002 diagnostic if a pass leaves the program
// graph failing verification (an internal invariant violation in the
// pass itself, not a budget concern).
func RunPipeline(fn *Function, cfg PipelineConfig) *diagnostics.Diagnostic {
	passes := cfg.Passes
	if passes == nil {
		passes = DefaultPipeline()
	}
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}

	a := &Analyses{fn: fn}
	for iter := 0; iter < maxIter; iter++ {
		sweepChanged := false
		for _, p := range passes {
			if p.Apply(fn, a) {
				sweepChanged = true
			}
		}
		if d := Verify(fn); d != nil {
			d.Fatal = true
			d.Code = diagnostics.CodeInternalInvalid
			d.Message = fmt.Sprintf("pipeline left an invalid program graph: %s", d.Message)
			return d
		}
		if !sweepChanged {
			return nil
		}
	}
	return &diagnostics.Diagnostic{
		Kind:    diagnostics.KindPass,
		Code:    diagnostics.CodeBudgetExceeded,
		Message: fmt.Sprintf("pass budget of %d iterations exceeded without reaching a fixed point", maxIter),
		Loc:     diagnostics.Location{Function: fn.Name},
		Fatal:   false,
	}
}
