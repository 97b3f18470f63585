package ir

// BuildCFG links a subroutine's basic blocks into a directed graph by
// inspecting each block's terminator, per the terminator-dispatch table:
// empty/fallthrough blocks and CALL link to the linear successor; taken
// conditional branches add an edge to both the target and the linear
// successor; JMP links only to its target; RET/HALT have no successors.
//
// Calls never cross into callees here — there is no interprocedural CFG.
func BuildCFG(sub *Subroutine) error {
	g := NewCFG()
	sub.CFG = g
	if len(sub.Blocks) == 0 {
		return nil
	}
	sub.EntryVertex = 0
	g.Entry = 0

	for i, b := range sub.Blocks {
		v := CFGVertex(i)
		term, ok := b.Terminator()
		linearSucc := CFGVertex(i + 1)
		hasLinearSucc := i+1 < len(sub.Blocks)

		switch {
		case !ok:
			if hasLinearSucc {
				g.AddEdge(v, linearSucc)
			}
		case term.Op == JE, term.Op == JNE, term.Op == JGT, term.Op == JLT,
			term.Op == JGE, term.Op == JLE, term.Op == JZ, term.Op == JNZ:
			tgtIdx, found := sub.LabelIndex[term.Tgt.Label]
			if !found {
				return malformed(term.Op, "branch target %q is not a known label in subroutine %q",
					term.Tgt.Label, sub.Name)
			}
			g.AddEdge(v, CFGVertex(tgtIdx))
			if hasLinearSucc {
				g.AddEdge(v, linearSucc)
			}
		case term.Op == JMP:
			tgtIdx, found := sub.LabelIndex[term.Tgt.Label]
			if !found {
				return malformed(term.Op, "branch target %q is not a known label in subroutine %q",
					term.Tgt.Label, sub.Name)
			}
			g.AddEdge(v, CFGVertex(tgtIdx))
		case term.Op == RET, term.Op == HALT:
			// no outgoing edges
		default:
			// CALL or any other terminator: returns to its linear successor
			if hasLinearSucc {
				g.AddEdge(v, linearSucc)
			}
		}
	}
	return nil
}

// BuildProgramCFG runs BuildCFG over every subroutine in the program.
func BuildProgramCFG(prog *Program) error {
	for _, sub := range prog.Subroutines {
		if err := BuildCFG(sub); err != nil {
			return err
		}
	}
	return nil
}
