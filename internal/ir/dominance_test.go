package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDominanceDiamond(t *testing.T) {
	sub := diamondSub()
	require.NoError(t, BuildCFG(sub))
	require.NoError(t, ComputeDominance(sub))

	entry := CFGVertex(sub.LabelIndex["entry"])
	then := CFGVertex(sub.LabelIndex["then"])
	els := CFGVertex(sub.LabelIndex["else"])
	merge := CFGVertex(sub.LabelIndex["merge"])

	assert.Equal(t, entry, sub.IDom[then])
	assert.Equal(t, entry, sub.IDom[els])
	assert.Equal(t, entry, sub.IDom[merge]) // merge has two preds, idom is their join

	assert.True(t, sub.Dominates(entry, merge))
	assert.False(t, sub.Dominates(then, merge))
	assert.False(t, sub.Dominates(els, merge))

	assert.ElementsMatch(t, []CFGVertex{merge}, sub.DominanceFrontier[then])
	assert.ElementsMatch(t, []CFGVertex{merge}, sub.DominanceFrontier[els])
	assert.Empty(t, sub.DominanceFrontier[entry])

	require.NoError(t, VerifyDominanceFrontiers(sub))
}

func TestComputeDominanceLoopHeaderInOwnBodyFrontier(t *testing.T) {
	sub := loopSub()
	require.NoError(t, BuildCFG(sub))
	require.NoError(t, ComputeDominance(sub))

	header := CFGVertex(sub.LabelIndex["header"])
	body := CFGVertex(sub.LabelIndex["body"])

	assert.Equal(t, header, sub.IDom[body])
	assert.Equal(t, header, sub.IDom[CFGVertex(sub.LabelIndex["exit"])])
	assert.ElementsMatch(t, []CFGVertex{header}, sub.DominanceFrontier[body])

	require.NoError(t, VerifyDominanceFrontiers(sub))
}

func TestDominatesIsReflexive(t *testing.T) {
	sub := diamondSub()
	require.NoError(t, BuildCFG(sub))
	require.NoError(t, ComputeDominance(sub))

	merge := CFGVertex(sub.LabelIndex["merge"])
	assert.True(t, sub.Dominates(merge, merge))
	assert.False(t, sub.StrictlyDominates(merge, merge))
}

// preheaderLoopSub builds entry -> header -[JZ]-> exit / body -> header,
// i.e. a loop whose header is NOT the subroutine's entry vertex. The back
// edge into header comes from body, which header strictly dominates, so
// header legitimately lands in its own dominance frontier even though no
// block has a literal self-edge.
func preheaderLoopSub() *Subroutine {
	sub := NewSubroutine("preheaderLoop", false, false)

	entry := NewBasicBlock("entry")
	jmp0, _ := NewJump(LabelOperand("header"))
	entry.Instructions = []Instruction{jmp0}
	sub.AddBlock(entry)

	header := NewBasicBlock("header")
	jz, _ := NewUnaryBranch(JZ, LabelOperand("exit"), VarOperand(0))
	header.Instructions = []Instruction{jz}
	sub.AddBlock(header)

	body := NewBasicBlock("body")
	jmp, _ := NewJump(LabelOperand("header"))
	body.Instructions = []Instruction{jmp}
	sub.AddBlock(body)

	exit := NewBasicBlock("exit")
	ret, _ := NewReturn(NullOperand())
	exit.Instructions = []Instruction{ret}
	sub.AddBlock(exit)

	return sub
}

func TestComputeDominanceHeaderInOwnFrontierWithPreheader(t *testing.T) {
	sub := preheaderLoopSub()
	require.NoError(t, BuildCFG(sub))
	require.NoError(t, ComputeDominance(sub))

	entry := CFGVertex(sub.LabelIndex["entry"])
	header := CFGVertex(sub.LabelIndex["header"])
	body := CFGVertex(sub.LabelIndex["body"])

	assert.Equal(t, entry, sub.IDom[header])
	assert.Equal(t, header, sub.IDom[body])
	assert.ElementsMatch(t, []CFGVertex{header}, sub.DominanceFrontier[header])
	assert.Empty(t, sub.DominanceFrontier[entry])

	require.NoError(t, VerifyDominanceFrontiers(sub))
}

func TestVerifyDominanceFrontiersCatchesCorruption(t *testing.T) {
	sub := diamondSub()
	require.NoError(t, BuildCFG(sub))
	require.NoError(t, ComputeDominance(sub))

	entry := CFGVertex(sub.LabelIndex["entry"])
	merge := CFGVertex(sub.LabelIndex["merge"])
	sub.DominanceFrontier[entry] = []CFGVertex{merge} // entry strictly dominates merge: invalid

	err := VerifyDominanceFrontiers(sub)
	require.Error(t, err)
	var ie *InternalError
	assert.ErrorAs(t, err, &ie)
}
