package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrlc/internal/lexer"
	"hrlc/internal/parser"
	"hrlc/internal/semantic"
)

func generateFrom(t *testing.T, src string) *Program {
	t.Helper()
	l := lexer.New(src)
	p := parser.New(l)
	prog := p.ParseProgram()
	require.Empty(t, p.Errors(), "parse errors: %v", p.Errors())

	r := semantic.NewResolver()
	r.Resolve(prog)
	require.Empty(t, r.Errors(), "resolve errors: %v", r.Errors())

	out, err := Generate(prog)
	require.NoError(t, err)
	return out
}

func allInstructions(sub *Subroutine) []Instruction {
	var all []Instruction
	for _, b := range sub.Blocks {
		all = append(all, b.Instructions...)
	}
	return all
}

func countOp(instrs []Instruction, op Opcode) int {
	n := 0
	for _, i := range instrs {
		if i.Op == op {
			n++
		}
	}
	return n
}

func TestGenerateEmitsGlobalAndEntrySubroutines(t *testing.T) {
	src := `function start() {
		outbox(1);
	}`
	out := generateFrom(t, src)

	global, ok := out.SubroutineByName(GlobalSubroutineName)
	require.True(t, ok)
	globalInstrs := allInstructions(global)
	require.Len(t, globalInstrs, 2)
	assert.Equal(t, CALL, globalInstrs[0].Op)
	assert.Equal(t, EntryPointName, globalInstrs[0].Src1.Label)
	assert.Equal(t, RET, globalInstrs[1].Op)

	start, ok := out.SubroutineByName("start")
	require.True(t, ok)
	assert.Equal(t, 1, countOp(allInstructions(start), OUTPUT))
}

func TestGenerateArithmeticExpression(t *testing.T) {
	src := `function start() {
		let x = 1 + 2 * 3;
		outbox(x);
	}`
	out := generateFrom(t, src)
	start, _ := out.SubroutineByName("start")
	instrs := allInstructions(start)

	assert.Equal(t, 1, countOp(instrs, MUL))
	assert.Equal(t, 1, countOp(instrs, ADD))
	assert.Equal(t, 1, countOp(instrs, OUTPUT))
}

func TestGenerateIfElseBranchesIntoThreeBlocks(t *testing.T) {
	src := `function start() {
		let x = inbox();
		if (x == 0) {
			outbox(1);
		} else {
			outbox(2);
		}
	}`
	out := generateFrom(t, src)
	start, _ := out.SubroutineByName("start")

	// if/else with both arms produces at least 4 blocks: entry, then, else, fi
	assert.GreaterOrEqual(t, len(start.Blocks), 4)

	instrs := allInstructions(start)
	assert.Equal(t, 1, countOp(instrs, INPUT))
	assert.Equal(t, 2, countOp(instrs, OUTPUT))
	assert.Equal(t, 1, countOp(instrs, EQ))
	assert.Equal(t, 1, countOp(instrs, JZ))
}

func TestGenerateWhileLoopProducesBackEdge(t *testing.T) {
	src := `function start() {
		let i = 0;
		while (i < 3) {
			outbox(i);
			i = i + 1;
		}
	}`
	out := generateFrom(t, src)
	start, _ := out.SubroutineByName("start")
	require.NoError(t, BuildCFG(start))

	// find the block whose label contains "while" (condition check block)
	whileIdx := -1
	for label, idx := range start.LabelIndex {
		if containsSubstr(label, "while") {
			whileIdx = idx
		}
	}
	require.NotEqual(t, -1, whileIdx, "expected a while-condition block")

	preds := start.CFG.Predecessors(CFGVertex(whileIdx))
	assert.GreaterOrEqual(t, len(preds), 2, "loop header should have both the fallthrough and the back-edge predecessor")
}

func containsSubstr(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func TestGenerateForLoopEmitsInitCondUpdate(t *testing.T) {
	src := `function start() {
		for (let i = 0; i < 5; i = i + 1) {
			outbox(i);
		}
	}`
	out := generateFrom(t, src)
	start, _ := out.SubroutineByName("start")
	instrs := allInstructions(start)

	assert.Equal(t, 1, countOp(instrs, LT))
	assert.Equal(t, 1, countOp(instrs, OUTPUT))
	assert.GreaterOrEqual(t, countOp(instrs, ADD), 1) // the i = i + 1 update
}

func TestGenerateFunctionCallWithReturnValue(t *testing.T) {
	src := `function double(n) {
		return n * 2;
	}
	function start() {
		let x = double(21);
		outbox(x);
	}`
	out := generateFrom(t, src)

	double, ok := out.SubroutineByName("double")
	require.True(t, ok)
	assert.True(t, double.HasParam)
	assert.True(t, double.HasReturn)
	doubleInstrs := allInstructions(double)
	assert.Equal(t, ENTER, doubleInstrs[0].Op)
	assert.Equal(t, 1, countOp(doubleInstrs, MUL))
	assert.Equal(t, 1, countOp(doubleInstrs, RET))

	start, _ := out.SubroutineByName("start")
	startInstrs := allInstructions(start)
	require.Equal(t, 1, countOp(startInstrs, CALL))
	for _, i := range startInstrs {
		if i.Op == CALL {
			assert.Equal(t, "double", i.Src1.Label)
			assert.False(t, i.Tgt.IsNull()) // return value captured
		}
	}
}

func TestGenerateSubwordHasNoParamOrReturn(t *testing.T) {
	src := `subword greet() {
		outbox(7);
	}
	function start() {
		greet();
	}`
	out := generateFrom(t, src)
	greet, ok := out.SubroutineByName("greet")
	require.True(t, ok)
	assert.False(t, greet.HasParam)
	assert.False(t, greet.HasReturn)
}

func TestGenerateFloorAccessEmitsLoadAndStore(t *testing.T) {
	src := `init floor[0] = 5;
	function start() {
		floor[1] = floor[0] + 1;
		outbox(floor[1]);
	}`
	out := generateFrom(t, src)
	assert.Equal(t, 5, out.Metadata.FloorInits[0])

	start, _ := out.SubroutineByName("start")
	instrs := allInstructions(start)
	// one LOAD reading floor[0] for the sum, one more reading floor[1] for outbox
	assert.Equal(t, 2, countOp(instrs, LOAD))
	assert.Equal(t, 1, countOp(instrs, STORE))
}

func TestGenerateMissingSubroutineIsAnError(t *testing.T) {
	l := lexer.New(`function start() {
		nope();
	}`)
	p := parser.New(l)
	prog := p.ParseProgram()
	require.Empty(t, p.Errors())

	r := semantic.NewResolver()
	r.Resolve(prog)
	require.NotEmpty(t, r.Errors(), "resolver should flag a call to an undeclared subroutine")
}

func TestGenerateFunctionWithoutExplicitReturnGetsSyntheticZero(t *testing.T) {
	src := `function f() {
		let x = 1;
	}
	function start() {
		let y = f();
		outbox(y);
	}`
	out := generateFrom(t, src)
	f, ok := out.SubroutineByName("f")
	require.True(t, ok)
	instrs := allInstructions(f)
	require.NotEmpty(t, instrs)
	assert.Equal(t, RET, instrs[len(instrs)-1].Op)
	assert.False(t, instrs[len(instrs)-1].Src1.IsNull())
}
