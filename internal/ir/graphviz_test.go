package ir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphvizEmitsOneClusterPerSubroutine(t *testing.T) {
	prog := NewProgram()
	sub := diamondSub()
	require.NoError(t, BuildCFG(sub))
	prog.AddSubroutine(sub)

	out := Graphviz(prog)
	assert.True(t, strings.HasPrefix(out, "digraph Program {"))
	assert.Contains(t, out, "subgraph cluster_0 {")
	assert.Contains(t, out, `label="diamond"`)
}

func TestGraphvizMarksEntryVertexAsDiamond(t *testing.T) {
	prog := NewProgram()
	sub := diamondSub()
	require.NoError(t, BuildCFG(sub))
	prog.AddSubroutine(sub)

	out := Graphviz(prog)
	assert.Contains(t, out, "s0_b0 [shape=diamond")
	// a non-entry block must not also claim the diamond shape
	assert.Contains(t, out, "s0_b1 [shape=rect")
}

func TestGraphvizEmitsEdgesForEveryCFGSuccessor(t *testing.T) {
	prog := NewProgram()
	sub := diamondSub()
	require.NoError(t, BuildCFG(sub))
	prog.AddSubroutine(sub)

	out := Graphviz(prog)
	total := 0
	for from, tos := range sub.CFG.Succ {
		for _, to := range tos {
			total++
			assert.Contains(t, out, "s0_b"+itoa(int(from))+" -> s0_b"+itoa(int(to))+";")
		}
	}
	assert.Greater(t, total, 0)
}

func TestGraphvizEscapesInstructionTextInBlockTable(t *testing.T) {
	prog := NewProgram()
	sub := NewSubroutine("f", false, false)
	b := NewBasicBlock("entry")
	jz, _ := NewUnaryBranch(JZ, LabelOperand("<exit>"), VarOperand(0))
	b.Instructions = []Instruction{jz}
	sub.AddBlock(b)
	prog.AddSubroutine(sub)

	out := Graphviz(prog)
	assert.Contains(t, out, "<TABLE")
	assert.Contains(t, out, "jz")
	assert.Contains(t, out, "&lt;exit&gt;")
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}
