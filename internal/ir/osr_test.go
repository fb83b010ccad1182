package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildInductionLoop builds spec.md §8 scenario 4: a derived expression
// `mul i, 4` computed each iteration from a loop induction variable.
//
//	entry -> header
//	header: $i <- phi i32 [entry: 0][body: $i.next]
//	        br $cond ? body : exit
//	body:   $t <- mul i32 $i, 4
//	        $i.next <- add i32 $i, 1
//	        jmp header
//	exit:   ret $t   (approximated: read through a phi at exit for a well-formed use)
func buildInductionLoop() (fn *Function, header, body, exit *BasicBlock, i, t *Value) {
	cond := NewLocal("cond", 0, i32)
	b := NewBuilder("iv", []*Parameter{{Name: "cond", Type: i32, Value: cond}}, i32)
	entry := b.Block("entry")
	header = b.Block("header")
	body = b.Block("body")
	exit = b.Block("exit")

	i = NewLocal("i", 1, i32)
	iNext := NewLocal("i", 2, i32)
	t = NewLocal("t", 0, i32)

	b.Jump(entry, header)
	b.PhiInst(header, i, PhiArm{Pred: entry, Val: NewConst(0, i32)}, PhiArm{Pred: body, Val: iNext})
	cond := NewLocal("cond", 0, i32)
	b.Branch(header, cond, body, exit)

	b.Bin(body, OpMul, t, i, NewConst(4, i32))
	b.Bin(body, OpAdd, iNext, i, NewConst(1, i32))
	b.Jump(body, header)

	tExit := NewLocal("t", 3, i32)
	b.PhiInst(exit, tExit, PhiArm{Pred: header, Val: NewConst(0, i32)})
	b.Return(exit, tExit)

	fn = b.Finish()
	return
}

func TestOSRReplacesMultiplyWithAdditiveInductionVariable(t *testing.T) {
	fn, _, body, _, _, _ := buildInductionLoop()
	cfg := BuildCFG(fn)
	du := BuildDefUse(fn)

	changed := RunOSR(fn, cfg, du)
	require.True(t, changed)

	for _, inst := range body.Instrs {
		if bin, ok := inst.(*Binary); ok {
			assert.NotEqual(t, OpMul, bin.Op, "the original mul i,4 must be replaced by additive strength reduction")
		}
	}

	var newPhiCount int
	for _, b := range fn.Blocks {
		for range b.Phis() {
			newPhiCount++
		}
	}
	assert.GreaterOrEqual(t, newPhiCount, 2, "the original induction phi plus the new strength-reduced phi must both be present")
}

func TestOSRIsIdempotent(t *testing.T) {
	fn, _, _, _, _, _ := buildInductionLoop()
	cfg := BuildCFG(fn)
	du := BuildDefUse(fn)
	RunOSR(fn, cfg, du)

	cfg2 := BuildCFG(fn)
	du2 := BuildDefUse(fn)
	changed := RunOSR(fn, cfg2, du2)
	assert.False(t, changed, "a second OSR pass over an already-reduced loop finds no further candidate")
}

// buildInductionLoopWithExitTest is buildInductionLoop's shape, plus a
// loop-exit comparison computed directly from the induction variable, so
// linear function test replacement has an exit test to retarget once the
// derived multiply has been strength-reduced away.
//
//	entry -> header
//	header: $i <- phi i32 [entry: 0][body: $i.next]
//	        $cond <- lt i32 $i, 10
//	        br $cond ? body : exit
//	body:   $t <- mul i32 $i, 4
//	        $i.next <- add i32 $i, 1
//	        jmp header
//	exit:   ret $t (through a phi, for a well-formed exit use)
func buildInductionLoopWithExitTest() (fn *Function, header, body, exit *BasicBlock) {
	b := NewBuilder("ivexit", nil, i32)
	entry := b.Block("entry")
	header = b.Block("header")
	body = b.Block("body")
	exit = b.Block("exit")

	i := NewLocal("i", 1, i32)
	iNext := NewLocal("i", 2, i32)
	t := NewLocal("t", 0, i32)
	cond := NewLocal("cond", 0, i32)

	b.Jump(entry, header)
	b.PhiInst(header, i, PhiArm{Pred: entry, Val: NewConst(0, i32)}, PhiArm{Pred: body, Val: iNext})
	b.Bin(header, OpLt, cond, i, NewConst(10, i32))
	b.Branch(header, cond, body, exit)

	b.Bin(body, OpMul, t, i, NewConst(4, i32))
	b.Bin(body, OpAdd, iNext, i, NewConst(1, i32))
	b.Jump(body, header)

	tExit := NewLocal("t", 3, i32)
	b.PhiInst(exit, tExit, PhiArm{Pred: header, Val: NewConst(0, i32)})
	b.Return(exit, tExit)

	fn = b.Finish()
	return
}

func TestOSRRewritesLoopExitComparisonViaLFTR(t *testing.T) {
	fn, header, _, _ := buildInductionLoopWithExitTest()
	cfg := BuildCFG(fn)
	du := BuildDefUse(fn)

	changed := RunOSR(fn, cfg, du)
	require.True(t, changed)

	var exitCmp *Binary
	for _, inst := range header.Instrs {
		if bin, ok := inst.(*Binary); ok && bin.Op == OpLt {
			exitCmp = bin
		}
	}
	require.NotNil(t, exitCmp, "the loop-exit comparison must still be present in the header")

	assert.NotEqual(t, "i", exitCmp.X.Name,
		"the comparison must be retargeted off the original induction variable onto the new additive one")
	bound, isConst := IsConstInt(exitCmp.Y)
	require.True(t, isConst, "the exit comparison's bound operand must remain a constant")
	assert.Equal(t, int64(40), bound,
		"the bound must be scaled by the same factor (x4) as the strength-reduced induction variable")

	assert.Nil(t, Verify(fn), "OSR plus LFTR must leave a structurally valid SSA graph")
}

func TestOSRPreservesVerifiability(t *testing.T) {
	fn, _, _, _, _, _ := buildInductionLoop()
	cfg := BuildCFG(fn)
	du := BuildDefUse(fn)
	RunOSR(fn, cfg, du)

	d := Verify(fn)
	assert.Nil(t, d, "OSR's new induction phi and rewritten uses must leave a structurally valid SSA graph")
}
