package ir

// CFG holds the control-flow facts derived for one function: reverse
// post-order, immediate dominators, the dominator tree, and dominance
// frontiers (spec.md §4.1). It is a pure derived view over Function/
// BasicBlock and is never mutated in place; a structural change to the
// function invalidates it and the pass driver must recompute a fresh one.
type CFG struct {
	Fn  *Function
	RPO []*BasicBlock

	rpoIndex map[*BasicBlock]int
	idom     map[*BasicBlock]*BasicBlock
	children map[*BasicBlock][]*BasicBlock
	frontier map[*BasicBlock][]*BasicBlock
}

// BuildCFG computes RPO, dominators, and dominance frontiers for fn.
// fn.Entry must be set and every block must be reachable from it; blocks
// unreachable from Entry are dropped from the RPO (and thus never appear
// in the dominator tree), matching the "every block reachable from entry"
// well-formedness rule.
func BuildCFG(fn *Function) *CFG {
	c := &CFG{Fn: fn}
	c.computeRPO()
	c.computeDominators()
	c.computeFrontiers()
	return c
}

// computeRPO performs a post-order DFS from Entry and reverses it.
func (c *CFG) computeRPO() {
	if c.Fn.Entry == nil {
		return
	}
	visited := make(map[*BasicBlock]bool)
	var post []*BasicBlock
	var visit func(b *BasicBlock)
	visit = func(b *BasicBlock) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, s := range b.Successors() {
			visit(s)
		}
		post = append(post, b)
	}
	visit(c.Fn.Entry)

	c.RPO = make([]*BasicBlock, len(post))
	for i, b := range post {
		c.RPO[len(post)-1-i] = b
	}
	c.rpoIndex = make(map[*BasicBlock]int, len(c.RPO))
	for i, b := range c.RPO {
		c.rpoIndex[b] = i
	}
}

// RPOIndex returns b's position in reverse post-order, or -1 if b is
// unreachable from entry (and so absent from the CFG).
func (c *CFG) RPOIndex(b *BasicBlock) int {
	if i, ok := c.rpoIndex[b]; ok {
		return i
	}
	return -1
}

// computeDominators runs the iterative Cooper-Harvey-Kennedy algorithm
// over RPO to a fixed point (spec.md §4.1).
func (c *CFG) computeDominators() {
	c.idom = make(map[*BasicBlock]*BasicBlock)
	if len(c.RPO) == 0 {
		return
	}
	entry := c.RPO[0]
	c.idom[entry] = entry

	changed := true
	for changed {
		changed = false
		for _, b := range c.RPO[1:] {
			var newIdom *BasicBlock
			for _, p := range b.Preds {
				if _, ok := c.idom[p]; !ok {
					continue
				}
				if newIdom == nil {
					newIdom = p
					continue
				}
				newIdom = c.intersect(newIdom, p)
			}
			if newIdom == nil {
				continue
			}
			if c.idom[b] != newIdom {
				c.idom[b] = newIdom
				changed = true
			}
		}
	}
	delete(c.idom, entry) // entry has no strict dominator

	c.children = make(map[*BasicBlock][]*BasicBlock)
	for b, d := range c.idom {
		c.children[d] = append(c.children[d], b)
	}
}

func (c *CFG) intersect(a, b *BasicBlock) *BasicBlock {
	for a != b {
		for c.rpoIndex[a] > c.rpoIndex[b] {
			a = c.idom[a]
		}
		for c.rpoIndex[b] > c.rpoIndex[a] {
			b = c.idom[b]
		}
	}
	return a
}

// IDom returns b's immediate dominator, or nil for the entry block.
func (c *CFG) IDom(b *BasicBlock) *BasicBlock { return c.idom[b] }

// Dominates reports whether a dominates b (reflexively: a dominates a).
func (c *CFG) Dominates(a, b *BasicBlock) bool {
	for cur := b; ; {
		if cur == a {
			return true
		}
		next, ok := c.idom[cur]
		if !ok {
			return cur == a
		}
		if next == cur {
			return cur == a
		}
		cur = next
	}
}

// DomChildren returns the immediate-dominator-tree children of b.
func (c *CFG) DomChildren(b *BasicBlock) []*BasicBlock { return c.children[b] }

// computeFrontiers derives dominance frontiers by the standard two-loop
// method: for each block with 2+ preds, walk up from each predecessor to
// (but not past) the block's idom, adding the join block to each
// intermediate block's frontier (spec.md §4.1).
func (c *CFG) computeFrontiers() {
	c.frontier = make(map[*BasicBlock][]*BasicBlock)
	for _, b := range c.RPO {
		if len(b.Preds) < 2 {
			continue
		}
		for _, p := range b.Preds {
			if _, ok := c.idom[p]; !ok && p != c.Fn.Entry {
				continue
			}
			runner := p
			for runner != c.idom[b] {
				if !containsBlock(c.frontier[runner], b) {
					c.frontier[runner] = append(c.frontier[runner], b)
				}
				next, ok := c.idom[runner]
				if !ok {
					break
				}
				runner = next
			}
		}
	}
}

func containsBlock(list []*BasicBlock, b *BasicBlock) bool {
	for _, x := range list {
		if x == b {
			return true
		}
	}
	return false
}

// DominanceFrontier returns b's dominance frontier.
func (c *CFG) DominanceFrontier(b *BasicBlock) []*BasicBlock { return c.frontier[b] }
