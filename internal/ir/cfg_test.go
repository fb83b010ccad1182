package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var i32 = &ScalarType{Bits: 32}

// buildDiamond constructs:
//
//	entry -> left, right
//	left, right -> join
//	join -> ret
func buildDiamond() (*Function, *BasicBlock, *BasicBlock, *BasicBlock, *BasicBlock) {
	cond := NewLocal("cond", 0, i32)
	b := NewBuilder("diamond", []*Parameter{{Name: "cond", Type: i32, Value: cond}}, i32)
	entry := b.Block("entry")
	left := b.Block("left")
	right := b.Block("right")
	join := b.Block("join")

	b.Branch(entry, cond, left, right)
	b.Jump(left, join)
	b.Jump(right, join)
	b.Return(join, NewConst(0, i32))

	fn := b.Finish()
	return fn, entry, left, right, join
}

func TestCFGDiamondDominators(t *testing.T) {
	fn, entry, left, right, join := buildDiamond()
	cfg := BuildCFG(fn)

	assert.Equal(t, entry, cfg.IDom(left), "left's immediate dominator is entry")
	assert.Equal(t, entry, cfg.IDom(right), "right's immediate dominator is entry")
	assert.Equal(t, entry, cfg.IDom(join), "join is reached from both arms, so its idom is the branch point, not either arm")
	assert.Nil(t, cfg.IDom(entry), "the entry block has no immediate dominator")

	assert.True(t, cfg.Dominates(entry, join))
	assert.False(t, cfg.Dominates(left, join), "left does not dominate join: right reaches it too")
	assert.False(t, cfg.Dominates(right, join))
}

func TestCFGDiamondDominanceFrontier(t *testing.T) {
	fn, _, left, right, join := buildDiamond()
	cfg := BuildCFG(fn)

	assert.ElementsMatch(t, []*BasicBlock{join}, cfg.DominanceFrontier(left))
	assert.ElementsMatch(t, []*BasicBlock{join}, cfg.DominanceFrontier(right))
	assert.Empty(t, cfg.DominanceFrontier(join), "join's own dominance frontier is empty: nothing merges above it")
}

func TestCFGRPOOrdersEntryFirst(t *testing.T) {
	fn, entry, _, _, _ := buildDiamond()
	cfg := BuildCFG(fn)

	require.NotEmpty(t, cfg.RPO)
	assert.Equal(t, entry, cfg.RPO[0])
	assert.Less(t, cfg.RPOIndex(entry), cfg.RPOIndex(fn.BlockByLabel("join")))
}

// buildLoop constructs a single-back-edge loop:
//
//	entry -> header
//	header -> body, exit   (loop test)
//	body -> header         (back edge)
func buildLoop() (*Function, *BasicBlock, *BasicBlock, *BasicBlock, *BasicBlock) {
	b := NewBuilder("loop", nil, nil)
	entry := b.Block("entry")
	header := b.Block("header")
	body := b.Block("body")
	exit := b.Block("exit")

	b.Jump(entry, header)
	cond := NewLocal("cond", 0, i32)
	b.Branch(header, cond, body, exit)
	b.Jump(body, header)
	b.Return(exit, nil)

	fn := b.Finish()
	return fn, entry, header, body, exit
}

func TestCFGLoopHeaderDominatesBody(t *testing.T) {
	fn, entry, header, body, exit := buildLoop()
	cfg := BuildCFG(fn)

	assert.True(t, cfg.Dominates(header, body))
	assert.True(t, cfg.Dominates(header, exit))
	assert.Equal(t, header, cfg.IDom(body))
	assert.Equal(t, entry, cfg.IDom(header))

	// the back edge puts header in body's dominance frontier: body reaches
	// header through the back edge but does not strictly dominate it.
	assert.Contains(t, cfg.DominanceFrontier(body), header)
}

func TestCFGDomChildren(t *testing.T) {
	fn, entry, left, right, join := buildDiamond()
	cfg := BuildCFG(fn)
	_ = fn

	children := cfg.DomChildren(entry)
	assert.ElementsMatch(t, []*BasicBlock{left, right, join}, children)
}
