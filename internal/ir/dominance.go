package ir

// ComputeDominance fills IDom, DomTreeChildren, and DominanceFrontier on
// sub. Immediate dominators are computed with the iterative
// Cooper-Harvey-Kennedy algorithm (an "or equivalent" to Lengauer-Tarjan);
// dominance frontiers follow the DF-local + DF-up dominator-tree walk.
func ComputeDominance(sub *Subroutine) error {
	if len(sub.Blocks) == 0 {
		return nil
	}
	sub.DominanceRoot = sub.EntryVertex
	idom, err := computeIDoms(sub)
	if err != nil {
		return err
	}
	sub.IDom = idom

	children := make(map[CFGVertex][]CFGVertex)
	for v := range sub.Blocks {
		vv := CFGVertex(v)
		if vv == sub.DominanceRoot {
			continue
		}
		d, ok := idom[vv]
		if !ok {
			continue
		}
		children[d] = append(children[d], vv)
	}
	sub.DomTreeChildren = children

	df := make(map[CFGVertex][]CFGVertex)
	dfSet := make(map[CFGVertex]map[CFGVertex]bool)
	var compute func(b CFGVertex)
	compute = func(b CFGVertex) {
		set := make(map[CFGVertex]bool)
		for _, s := range sub.CFG.Successors(b) {
			if idom[s] != b {
				set[s] = true
			}
		}
		for _, c := range children[b] {
			compute(c)
			for w := range dfSet[c] {
				if idom[w] != b {
					set[w] = true
				}
			}
		}
		dfSet[b] = set
	}
	compute(sub.DominanceRoot)
	for v, set := range dfSet {
		for w := range set {
			df[v] = append(df[v], w)
		}
	}
	sub.DominanceFrontier = df
	return nil
}

// computeIDoms is the classic Cooper-Harvey-Kennedy worklist algorithm over
// reverse post-order.
func computeIDoms(sub *Subroutine) (map[CFGVertex]CFGVertex, error) {
	rpo := reversePostOrder(sub)
	rpoIndex := make(map[CFGVertex]int, len(rpo))
	for i, v := range rpo {
		rpoIndex[v] = i
	}

	idom := make(map[CFGVertex]CFGVertex)
	idom[sub.EntryVertex] = sub.EntryVertex

	changed := true
	for changed {
		changed = false
		for _, v := range rpo {
			if v == sub.EntryVertex {
				continue
			}
			var newIdom CFGVertex
			set := false
			for _, p := range sub.CFG.Predecessors(v) {
				if _, ok := idom[p]; !ok {
					continue
				}
				if !set {
					newIdom = p
					set = true
					continue
				}
				newIdom = intersect(newIdom, p, idom, rpoIndex)
			}
			if !set {
				continue
			}
			if cur, ok := idom[v]; !ok || cur != newIdom {
				idom[v] = newIdom
				changed = true
			}
		}
	}
	return idom, nil
}

func intersect(a, b CFGVertex, idom map[CFGVertex]CFGVertex, rpoIndex map[CFGVertex]int) CFGVertex {
	for a != b {
		for rpoIndex[a] > rpoIndex[b] {
			a = idom[a]
		}
		for rpoIndex[b] > rpoIndex[a] {
			b = idom[b]
		}
	}
	return a
}

func reversePostOrder(sub *Subroutine) []CFGVertex {
	visited := make(map[CFGVertex]bool)
	var post []CFGVertex
	var visit func(v CFGVertex)
	visit = func(v CFGVertex) {
		if visited[v] {
			return
		}
		visited[v] = true
		for _, s := range sub.CFG.Successors(v) {
			visit(s)
		}
		post = append(post, v)
	}
	if len(sub.Blocks) > 0 {
		visit(sub.EntryVertex)
	}
	rpo := make([]CFGVertex, len(post))
	for i, v := range post {
		rpo[len(post)-1-i] = v
	}
	return rpo
}

// Dominates reports whether a dominates b (non-strict: a dominates a).
func (s *Subroutine) Dominates(a, b CFGVertex) bool {
	if a == b {
		return true
	}
	for v := b; ; {
		d, ok := s.IDom[v]
		if !ok || d == v {
			return false
		}
		if d == a {
			return true
		}
		v = d
	}
}

// StrictlyDominates reports whether a strictly dominates b.
func (s *Subroutine) StrictlyDominates(a, b CFGVertex) bool {
	return a != b && s.Dominates(a, b)
}

// VerifyDominanceFrontiers checks the three properties §4.5 requires of
// every computed frontier; a violation is a fatal internal error.
func VerifyDominanceFrontiers(sub *Subroutine) error {
	for b, frontier := range sub.DominanceFrontier {
		for _, w := range frontier {
			dominatesAPred := false
			for _, p := range sub.CFG.Predecessors(w) {
				if sub.Dominates(b, p) {
					dominatesAPred = true
					break
				}
			}
			if !dominatesAPred {
				return malformed(0, "dominance frontier violation: %v does not dominate any predecessor of %v", b, w)
			}
			if sub.StrictlyDominates(b, w) {
				return malformed(0, "dominance frontier violation: %v strictly dominates %v", b, w)
			}
			// b == w is valid whenever b dominates one of its own predecessors
			// (a back edge into b from a block b dominates, including a literal
			// self-loop) — already established by dominatesAPred above.
		}
	}
	return nil
}
