package ir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintOperandStyles(t *testing.T) {
	assert.Equal(t, "-", PrintOperand(NullOperand(), StyleNamed))

	imm := ImmOperand(42)
	assert.Equal(t, "42", PrintOperand(imm, StyleNamed))
	assert.Equal(t, "#42", PrintOperand(imm, StyleVirtualRegister))
	assert.Equal(t, "#42", PrintOperand(imm, StyleSSA))

	local := VarOperand(0)
	assert.Equal(t, "a", PrintOperand(local, StyleNamed))
	assert.Equal(t, "v0", PrintOperand(local, StyleVirtualRegister))
	assert.Equal(t, "%0", PrintOperand(local, StyleSSA))

	// globals are encoded as negative variable ids (-1 => global 0)
	global := VarOperand(-1)
	assert.Equal(t, "a_", PrintOperand(global, StyleNamed))
	assert.Equal(t, "gv0", PrintOperand(global, StyleVirtualRegister))
	assert.Equal(t, "glb%0", PrintOperand(global, StyleSSA))

	label := LabelOperand("exit")
	assert.Equal(t, "exit", PrintOperand(label, StyleNamed))
}

func TestLetterNameWrapsPastZ(t *testing.T) {
	assert.Equal(t, "a", letterName(0))
	assert.Equal(t, "z", letterName(25))
	assert.Equal(t, "aa", letterName(26))
	assert.Equal(t, "ab", letterName(27))
}

func TestPrintInstructionOmitsNullOperandsAndPadsName(t *testing.T) {
	ret, _ := NewReturn(NullOperand())
	line := PrintInstruction(ret, StyleVirtualRegister)
	assert.Equal(t, "ret    ", line, "RET with a null operand prints no operand list")

	add, _ := NewArithBinary(ADD, VarOperand(2), VarOperand(0), VarOperand(1))
	line = PrintInstruction(add, StyleVirtualRegister)
	assert.True(t, strings.HasPrefix(line, "add"))
	assert.Contains(t, line, "v2,v0,v1")
}

func TestPrintSubroutineHeaderReflectsParamAndReturn(t *testing.T) {
	sub := NewSubroutine("double", true, true)
	b := NewBasicBlock("entry")
	ret, _ := NewReturn(VarOperand(0))
	b.Instructions = []Instruction{ret}
	sub.AddBlock(b)

	out := PrintSubroutine(sub, StyleVirtualRegister)
	assert.Contains(t, out, "def double(param) -> (value):")
	assert.Contains(t, out, "entry:")
	assert.Contains(t, out, "ret")
}

func TestPrintSubroutineVoidNoParamHeader(t *testing.T) {
	sub := NewSubroutine("greet", false, false)
	b := NewBasicBlock("entry")
	ret, _ := NewReturn(NullOperand())
	b.Instructions = []Instruction{ret}
	sub.AddBlock(b)

	out := PrintSubroutine(sub, StyleNamed)
	assert.Contains(t, out, "def greet() -> (void):")
}

func TestPrintProgramIncludesEverySubroutine(t *testing.T) {
	prog := NewProgram()

	one := NewSubroutine("one", false, false)
	b1 := NewBasicBlock("entry")
	ret1, _ := NewReturn(NullOperand())
	b1.Instructions = []Instruction{ret1}
	one.AddBlock(b1)
	prog.AddSubroutine(one)

	two := NewSubroutine("two", false, true)
	b2 := NewBasicBlock("entry")
	ret2, _ := NewReturn(VarOperand(0))
	b2.Instructions = []Instruction{ret2}
	two.AddBlock(b2)
	prog.AddSubroutine(two)

	out := PrintProgram(prog, StyleVirtualRegister)
	assert.Contains(t, out, "def one(")
	assert.Contains(t, out, "def two(")
}
