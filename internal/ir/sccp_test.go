package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildConstantBranch builds:
//
//	entry: $c <- eq i32 1, 1
//	       br $c ? %T : %F
//	T:     $r <- mov i32 1
//	       jmp %join
//	F:     jmp %join
//	join:  $v <- phi i32 [T: $r][F: 9]
//	       ret $v
//
// %F is unreachable once $c folds to 1, so SCCP must jmp straight to %T,
// drop %F, and narrow join's phi to its single remaining arm.
func buildConstantBranch() (*Function, *BasicBlock, *BasicBlock, *BasicBlock) {
	b := NewBuilder("constbr", nil, i32)
	entry := b.Block("entry")
	tblk := b.Block("T")
	fblk := b.Block("F")
	join := b.Block("join")

	c := NewLocal("c", 0, i32)
	b.Bin(entry, OpEq, c, NewConst(1, i32), NewConst(1, i32))
	b.Branch(entry, c, tblk, fblk)

	r := NewLocal("r", 0, i32)
	b.Move(tblk, r, NewConst(1, i32))
	b.Jump(tblk, join)

	b.Jump(fblk, join)

	v := NewLocal("v", 0, i32)
	b.PhiInst(join, v, PhiArm{Pred: tblk, Val: r}, PhiArm{Pred: fblk, Val: NewConst(9, i32)})
	b.Return(join, v)

	fn := b.Finish()
	return fn, entry, tblk, fblk
}

func TestSCCPFoldsConstantBranchAndPrunesDeadArm(t *testing.T) {
	fn, entry, tblk, fblk := buildConstantBranch()
	cfg := BuildCFG(fn)
	du := BuildDefUse(fn)

	changed := RunSCCP(fn, cfg, du)
	require.True(t, changed)

	jmp, ok := entry.Term.(*Jmp)
	require.True(t, ok, "the branch on a folded-true condition must become an unconditional jump")
	assert.Equal(t, tblk, jmp.Target)

	assert.Nil(t, fn.BlockByLabel("F"), "the unreachable false arm must be dropped entirely")
	_ = fblk

	join := fn.BlockByLabel("join")
	require.NotNil(t, join)
	phis := join.Phis()
	require.Len(t, phis, 0, "the join phi folds to the constant 1, its uses are replaced, and SCCP's DCE sweep removes it")
}

func TestSCCPIsIdempotentOnAlreadyFoldedProgram(t *testing.T) {
	fn, _, _, _ := buildConstantBranch()
	cfg := BuildCFG(fn)
	du := BuildDefUse(fn)
	RunSCCP(fn, cfg, du)

	cfg2 := BuildCFG(fn)
	du2 := BuildDefUse(fn)
	changed := RunSCCP(fn, cfg2, du2)
	assert.False(t, changed, "re-running SCCP on an already-folded program must report no change")
}

func TestSCCPPropagatesThroughMoveChain(t *testing.T) {
	b := NewBuilder("movechain", nil, i32)
	entry := b.Block("entry")
	a := NewLocal("a", 0, i32)
	c := NewLocal("c", 0, i32)
	s := NewLocal("s", 0, i32)
	b.Move(entry, a, NewConst(7, i32))
	b.Move(entry, c, a)
	b.Bin(entry, OpAdd, s, c, NewConst(1, i32))
	b.Return(entry, s)
	fn := b.Finish()

	cfg := BuildCFG(fn)
	du := BuildDefUse(fn)
	changed := RunSCCP(fn, cfg, du)
	require.True(t, changed)

	ret, ok := entry.Term.(*Ret)
	require.True(t, ok)
	n, isConst := IsConstInt(ret.Val)
	require.True(t, isConst, "7 -> mov -> +1 must fold all the way down to a constant return")
	assert.Equal(t, int64(8), n)
}
