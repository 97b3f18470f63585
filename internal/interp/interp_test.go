package interp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrlc/internal/ir"
	"hrlc/internal/lexer"
	"hrlc/internal/parser"
	"hrlc/internal/semantic"
)

// compile drives src through the full front end and middle end, returning
// the fully-optimized, SSA-verified program ready for execution.
func compile(t *testing.T, src string) *ir.Program {
	t.Helper()
	l := lexer.New(src)
	p := parser.New(l)
	astProg := p.ParseProgram()
	require.Empty(t, p.Errors(), "parse errors: %v", p.Errors())

	r := semantic.NewResolver()
	r.Resolve(astProg)
	require.Empty(t, r.Errors(), "resolve errors: %v", r.Errors())

	prog, err := ir.Generate(astProg)
	require.NoError(t, err)

	require.NoError(t, ir.FullPipeline().Run(prog, true))
	return prog
}

func runWith(t *testing.T, prog *ir.Program, input []int) []Box {
	t.Helper()
	in := make([]Box, len(input))
	for i, v := range input {
		in[i] = IntBox(v)
	}
	m := New(prog, in)
	require.NoError(t, m.Run())
	return m.Output()
}

func outputInts(t *testing.T, boxes []Box) []int {
	t.Helper()
	out := make([]int, len(boxes))
	for i, b := range boxes {
		require.Equal(t, BoxInt, b.Kind)
		out[i] = b.Int
	}
	return out
}

func TestInterpEchoesInputToOutput(t *testing.T) {
	prog := compile(t, `function start() {
		let x = inbox();
		outbox(x);
	}`)
	out := runWith(t, prog, []int{7})
	assert.Equal(t, []int{7}, outputInts(t, out))
}

func TestInterpSumsTwoInputs(t *testing.T) {
	prog := compile(t, `function start() {
		let a = inbox();
		let b = inbox();
		outbox(a + b);
	}`)
	out := runWith(t, prog, []int{3, 4})
	assert.Equal(t, []int{7}, outputInts(t, out))
}

func TestInterpCountdownLoop(t *testing.T) {
	prog := compile(t, `function start() {
		let i = 3;
		while (i > 0) {
			outbox(i);
			i = i - 1;
		}
	}`)
	out := runWith(t, prog, nil)
	assert.Equal(t, []int{3, 2, 1}, outputInts(t, out))
}

func TestInterpReadsFloorInitializedValue(t *testing.T) {
	prog := compile(t, `init floor[3] = 9;
	function start() {
		outbox(floor[3]);
	}`)
	out := runWith(t, prog, nil)
	assert.Equal(t, []int{9}, outputInts(t, out))
}

func TestInterpFunctionCallWithReturnValue(t *testing.T) {
	prog := compile(t, `function double(n) {
		return n * 2;
	}
	function start() {
		outbox(double(21));
	}`)
	out := runWith(t, prog, nil)
	assert.Equal(t, []int{42}, outputInts(t, out))
}

func TestInterpIfElseBranch(t *testing.T) {
	prog := compile(t, `function start() {
		let x = inbox();
		if (x == 0) {
			outbox(100);
		} else {
			outbox(200);
		}
	}`)

	outThen := runWith(t, prog, []int{0})
	assert.Equal(t, []int{100}, outputInts(t, outThen))

	outElse := runWith(t, prog, []int{1})
	assert.Equal(t, []int{200}, outputInts(t, outElse))
}

func TestInterpEndOfInputIsAnError(t *testing.T) {
	prog := compile(t, `function start() {
		let x = inbox();
		outbox(x);
	}`)
	m := New(prog, nil)
	err := m.Run()
	assert.ErrorIs(t, err, ErrEndOfInput)
}

func TestInterpDivisionByZeroIsAnError(t *testing.T) {
	prog := compile(t, `function start() {
		let z = 0;
		outbox(1 / z);
	}`)
	m := New(prog, nil)
	err := m.Run()
	assert.ErrorIs(t, err, ErrValueIsZero)
}

func TestInterpReadingUninitializedFloorIsAnError(t *testing.T) {
	prog := compile(t, `function start() {
		outbox(floor[5]);
	}`)
	m := New(prog, nil)
	err := m.Run()
	assert.ErrorIs(t, err, ErrFloorIsEmpty)
}

func TestInterpHaltStopsExecution(t *testing.T) {
	prog := ir.NewProgram()
	sub := ir.NewSubroutine(ir.GlobalSubroutineName, false, false)
	b := ir.NewBasicBlock("entry")
	load1, _ := ir.NewLoadImmediate(ir.VarOperand(0), ir.ImmOperand(1))
	out1, _ := ir.NewOutput(ir.VarOperand(0))
	halt := ir.NewHalt()
	load2, _ := ir.NewLoadImmediate(ir.VarOperand(1), ir.ImmOperand(2))
	out2, _ := ir.NewOutput(ir.VarOperand(1))
	b.Instructions = []ir.Instruction{load1, out1, halt, load2, out2}
	sub.AddBlock(b)
	prog.AddSubroutine(sub)

	m := New(prog, nil)
	err := m.Run()
	assert.ErrorIs(t, err, ErrHaltRequested)
	assert.Equal(t, []int{1}, outputInts(t, m.Output()))
}
