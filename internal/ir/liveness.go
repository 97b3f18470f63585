package ir

// ComputeLiveness fills DefSet/UseSet/InSet/OutSet on every block of sub.
// DEF/USE come from a single forward scan per block tracking a "defined
// here already" set; IN/OUT converge by backward iterative dataflow.
// Globals (negative ids) are never tracked.
func ComputeLiveness(sub *Subroutine) {
	for _, b := range sub.Blocks {
		computeDefUse(b)
	}

	order := postOrder(sub)

	for _, b := range sub.Blocks {
		b.InSet = make(map[int]bool)
		b.OutSet = make(map[int]bool)
	}

	changed := true
	for changed {
		changed = false
		for _, v := range order {
			b := sub.Blocks[v]
			out := make(map[int]bool)
			for _, s := range sub.CFG.Successors(v) {
				for id := range sub.Blocks[s].InSet {
					out[id] = true
				}
			}
			in := make(map[int]bool)
			for id := range b.UseSet {
				in[id] = true
			}
			for id := range out {
				if !b.DefSet[id] {
					in[id] = true
				}
			}
			if !setEqual(out, b.OutSet) || !setEqual(in, b.InSet) {
				changed = true
			}
			b.OutSet = out
			b.InSet = in
		}
	}
}

func computeDefUse(b *BasicBlock) {
	b.DefSet = make(map[int]bool)
	b.UseSet = make(map[int]bool)
	definedHere := make(map[int]bool)

	noteUse := func(o Operand) {
		if o.Kind == OperandVariable && o.Var >= 0 && !definedHere[o.Var] {
			b.UseSet[o.Var] = true
		}
	}
	noteDef := func(o Operand) {
		if o.Kind == OperandVariable && o.Var >= 0 {
			definedHere[o.Var] = true
			b.DefSet[o.Var] = true
		}
	}

	for _, instr := range b.Instructions {
		switch instr.Op {
		case STORE:
			noteUse(instr.Src1)
			noteUse(instr.Src2)
		case PHI:
			noteDef(instr.Tgt)
		default:
			noteUse(instr.Src1)
			noteUse(instr.Src2)
			if !instr.Tgt.IsNull() && instr.Tgt.Kind == OperandVariable {
				noteDef(instr.Tgt)
			}
		}
	}
}

// postOrder returns subroutine block indices in post-order DFS from entry.
// The exact traversal order only tightens convergence speed, not
// correctness of the fixed point.
func postOrder(sub *Subroutine) []CFGVertex {
	visited := make(map[CFGVertex]bool)
	var order []CFGVertex
	var visit func(v CFGVertex)
	visit = func(v CFGVertex) {
		if visited[v] {
			return
		}
		visited[v] = true
		for _, s := range sub.CFG.Successors(v) {
			visit(s)
		}
		order = append(order, v)
	}
	if len(sub.Blocks) > 0 {
		visit(sub.EntryVertex)
	}
	for i := range sub.Blocks {
		visit(CFGVertex(i))
	}
	return order
}

func setEqual(a, b map[int]bool) bool {
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
