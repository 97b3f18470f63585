package ir

import (
	"fmt"
	"html"
	"strings"
)

// Graphviz renders the whole program as one `digraph` with a nested
// `subgraph` per subroutine, one HTML-table vertex per basic block. The
// entry vertex is a diamond; every other vertex is a rect.
func Graphviz(prog *Program) string {
	var b strings.Builder
	b.WriteString("digraph Program {\n  node [shape=rect, fontname=\"monospace\"];\n")
	for si, sub := range prog.Subroutines {
		fmt.Fprintf(&b, "  subgraph cluster_%d {\n    label=%q;\n", si, sub.Name)
		for bi, blk := range sub.Blocks {
			nodeID := fmt.Sprintf("s%d_b%d", si, bi)
			shape := "rect"
			if CFGVertex(bi) == sub.EntryVertex {
				shape = "diamond"
			}
			fmt.Fprintf(&b, "    %s [shape=%s, label=<%s>];\n", nodeID, shape, blockTable(blk))
		}
		if sub.CFG != nil {
			for from, tos := range sub.CFG.Succ {
				for _, to := range tos {
					fmt.Fprintf(&b, "    s%d_b%d -> s%d_b%d;\n", si, from, si, to)
				}
			}
		}
		b.WriteString("  }\n")
	}
	b.WriteString("}\n")
	return b.String()
}

func blockTable(blk *BasicBlock) string {
	var b strings.Builder
	b.WriteString(`<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0">`)
	fmt.Fprintf(&b, "<TR><TD BGCOLOR=\"lightgrey\"><B>%s</B></TD></TR>", html.EscapeString(blk.Label))
	for _, instr := range blk.Instructions {
		fmt.Fprintf(&b, "<TR><TD ALIGN=\"LEFT\">%s</TD></TR>",
			html.EscapeString(PrintInstruction(instr, StyleVirtualRegister)))
	}
	b.WriteString("</TABLE>")
	return b.String()
}
