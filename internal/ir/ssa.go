package ir

import "sort"

// BuildSSA inserts phi functions via the Cytron et al. dominance-frontier
// worklist, renames variables by dominator-tree DFS, renumbers the result
// into dense per-subroutine ids, and verifies the outcome. On success
// sub.SSA is set true.
func BuildSSA(sub *Subroutine) error {
	buildDefUseMaps(sub)
	insertPhiFunctions(sub)
	nextID := rename(sub)
	renumber(sub, nextID)
	if err := VerifySSA(sub); err != nil {
		return err
	}
	sub.SSA = true
	return nil
}

func buildDefUseMaps(sub *Subroutine) {
	sub.DefMap = make(map[int][]int)
	sub.UseMap = make(map[int][]int)
	for bi, b := range sub.Blocks {
		for _, instr := range b.Instructions {
			if instr.Op != PHI && !instr.Tgt.IsNull() && instr.Tgt.Kind == OperandVariable && instr.Tgt.Var >= 0 {
				sub.DefMap[instr.Tgt.Var] = appendUnique(sub.DefMap[instr.Tgt.Var], bi)
			}
			for _, src := range []Operand{instr.Src1, instr.Src2} {
				if src.Kind == OperandVariable && src.Var >= 0 {
					sub.UseMap[src.Var] = appendUnique(sub.UseMap[src.Var], bi)
				}
			}
		}
	}
}

func appendUnique(s []int, v int) []int {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}

// insertPhiFunctions runs the classic worklist over dominance frontiers for
// every local register that has at least one definition, including
// registers defined in a single block.
func insertPhiFunctions(sub *Subroutine) {
	for v, defBlocks := range sub.DefMap {
		hasPhi := make(map[int]bool)
		worklist := append([]int(nil), defBlocks...)
		defSet := make(map[int]bool)
		for _, d := range defBlocks {
			defSet[d] = true
		}

		for len(worklist) > 0 {
			x := worklist[0]
			worklist = worklist[1:]
			for _, y := range sub.DominanceFrontier[CFGVertex(x)] {
				yi := int(y)
				if hasPhi[yi] {
					continue
				}
				phi, err := NewPhi(VarOperand(v))
				if err != nil {
					panic(err)
				}
				block := sub.Blocks[yi]
				block.Instructions = append([]Instruction{phi}, block.Instructions...)
				hasPhi[yi] = true
				for _, p := range sub.CFG.Predecessors(y) {
					phi.PhiIncomings[sub.Blocks[p].Label] = PhiIncoming{Var: v, DefiningBlock: sub.Blocks[x].Label}
				}
				if !defSet[yi] {
					defSet[yi] = true
					worklist = append(worklist, yi)
				}
			}
		}
	}
}

type renameState struct {
	counters map[int]int
	stacks   map[int][]int
}

// rename performs dominator-tree DFS renaming with per-variable counters
// and stacks, and returns the next-fresh-id counters keyed by original var.
func rename(sub *Subroutine) map[int]int {
	st := &renameState{counters: make(map[int]int), stacks: make(map[int][]int)}

	fresh := func(orig int) int {
		id := st.counters[orig]
		st.counters[orig]++
		newName := orig<<20 | id // disambiguated temporary name, renumbered later
		st.stacks[orig] = append(st.stacks[orig], newName)
		return newName
	}
	current := func(orig int) (int, bool) {
		s := st.stacks[orig]
		if len(s) == 0 {
			return 0, false
		}
		return s[len(s)-1], true
	}
	pop := func(orig int) {
		s := st.stacks[orig]
		st.stacks[orig] = s[:len(s)-1]
	}

	originalOf := make(map[int]int) // renamed id -> original id, for successor-phi patching

	var walk func(v CFGVertex)
	walk = func(v CFGVertex) {
		b := sub.Blocks[v]
		pushedHere := []int{}

		for i := range b.Instructions {
			instr := &b.Instructions[i]
			if instr.Op == PHI {
				orig := instr.Tgt.Var
				newName := fresh(orig)
				originalOf[newName] = orig
				instr.Tgt = VarOperand(newName)
				pushedHere = append(pushedHere, orig)
				continue
			}
			if instr.Src1.Kind == OperandVariable && instr.Src1.Var >= 0 {
				if cur, ok := current(instr.Src1.Var); ok {
					instr.Src1 = VarOperand(cur)
				}
			}
			if instr.Src2.Kind == OperandVariable && instr.Src2.Var >= 0 {
				if cur, ok := current(instr.Src2.Var); ok {
					instr.Src2 = VarOperand(cur)
				}
			}
			if !instr.Tgt.IsNull() && instr.Tgt.Kind == OperandVariable && instr.Tgt.Var >= 0 {
				orig := instr.Tgt.Var
				newName := fresh(orig)
				originalOf[newName] = orig
				instr.Tgt = VarOperand(newName)
				pushedHere = append(pushedHere, orig)
			}
		}

		for _, s := range sub.CFG.Successors(v) {
			succ := sub.Blocks[s]
			for i := range succ.Instructions {
				instr := &succ.Instructions[i]
				if instr.Op != PHI {
					continue
				}
				incoming, ok := instr.PhiIncomings[b.Label]
				if !ok {
					continue
				}
				if cur, ok := current(incoming.Var); ok {
					instr.PhiIncomings[b.Label] = PhiIncoming{Var: cur, DefiningBlock: b.Label}
				}
			}
		}

		for _, c := range sub.DomTreeChildren[v] {
			walk(c)
		}

		for _, orig := range pushedHere {
			pop(orig)
		}
	}

	if len(sub.Blocks) > 0 {
		walk(sub.DominanceRoot)
	}
	return st.counters
}

// renumber compacts SSA names into dense [0..n) per subroutine.
func renumber(sub *Subroutine, _ map[int]int) {
	seen := make(map[int]int)
	next := 0
	assign := func(id int) int {
		if n, ok := seen[id]; ok {
			return n
		}
		n := next
		seen[id] = n
		next++
		return n
	}

	var order []int
	for _, b := range sub.Blocks {
		for _, instr := range b.Instructions {
			if !instr.Tgt.IsNull() && instr.Tgt.Kind == OperandVariable && instr.Tgt.Var >= 0 {
				order = append(order, instr.Tgt.Var)
			}
		}
	}
	sort.Ints(order)
	for _, id := range order {
		assign(id)
	}

	remap := func(o Operand) Operand {
		if o.Kind == OperandVariable && o.Var >= 0 {
			return VarOperand(assign(o.Var))
		}
		return o
	}

	for _, b := range sub.Blocks {
		for i := range b.Instructions {
			instr := &b.Instructions[i]
			instr.Tgt = remap(instr.Tgt)
			instr.Src1 = remap(instr.Src1)
			instr.Src2 = remap(instr.Src2)
			for pred, inc := range instr.PhiIncomings {
				if inc.Var >= 0 {
					instr.PhiIncomings[pred] = PhiIncoming{Var: assign(inc.Var), DefiningBlock: inc.DefiningBlock}
				}
			}
		}
	}
}

// VerifySSA runs the two-sweep check described in §4.6: single definition
// per local id, and phi-incoming keys exactly matching CFG predecessors.
func VerifySSA(sub *Subroutine) error {
	defCount := make(map[int]int)
	for _, b := range sub.Blocks {
		for _, instr := range b.Instructions {
			if !instr.Tgt.IsNull() && instr.Tgt.Kind == OperandVariable && instr.Tgt.Var >= 0 {
				defCount[instr.Tgt.Var]++
				if defCount[instr.Tgt.Var] > 1 {
					return malformed(instr.Op, "SSA violation: local %d assigned more than once", instr.Tgt.Var)
				}
			}
		}
	}

	for bi, b := range sub.Blocks {
		preds := make(map[string]bool)
		for _, p := range sub.CFG.Predecessors(CFGVertex(bi)) {
			preds[sub.Blocks[p].Label] = true
		}
		for _, instr := range b.Instructions {
			if instr.Op != PHI {
				continue
			}
			if len(instr.PhiIncomings) != len(preds) {
				return malformed(PHI, "phi in block %q has %d incomings, want %d predecessors",
					b.Label, len(instr.PhiIncomings), len(preds))
			}
			for pred := range instr.PhiIncomings {
				if !preds[pred] {
					return malformed(PHI, "phi in block %q has incoming from non-predecessor %q", b.Label, pred)
				}
			}
			for pred := range preds {
				if _, ok := instr.PhiIncomings[pred]; !ok {
					return malformed(PHI, "phi in block %q is missing incoming from predecessor %q", b.Label, pred)
				}
			}
		}
	}
	return nil
}
