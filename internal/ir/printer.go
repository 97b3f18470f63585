package ir

import (
	"fmt"
	"strings"
)

// Style selects how Print renders Variable and Immediate operands.
type Style int

const (
	// StyleNamed renders locals as letters (a, b, ... z, aa, ab, ...) and
	// globals as the same letter suffixed with "_"; immediates as plain
	// decimal.
	StyleNamed Style = iota
	// StyleVirtualRegister renders locals as v<n> and globals as gv<n>;
	// immediates as #<decimal>.
	StyleVirtualRegister
	// StyleSSA renders locals as %<n> and globals as glb%<n>; immediates
	// as #<decimal>.
	StyleSSA
)

func letterName(n int) string {
	if n < 0 {
		n = -n - 1
	}
	s := ""
	n++
	for n > 0 {
		n--
		s = string(rune('a'+n%26)) + s
		n /= 26
	}
	return s
}

// PrintOperand renders o under the given style.
func PrintOperand(o Operand, style Style) string {
	switch o.Kind {
	case OperandNull:
		return "-"
	case OperandLabel:
		return o.Label
	case OperandImmediate:
		if style == StyleNamed {
			return fmt.Sprintf("%d", o.Imm)
		}
		return fmt.Sprintf("#%d", o.Imm)
	case OperandVariable:
		global := o.Var < 0
		switch style {
		case StyleNamed:
			if global {
				return letterName(o.Var) + "_"
			}
			return letterName(o.Var)
		case StyleVirtualRegister:
			if global {
				return fmt.Sprintf("gv%d", -o.Var-1)
			}
			return fmt.Sprintf("v%d", o.Var)
		default: // StyleSSA
			if global {
				return fmt.Sprintf("glb%%%d", -o.Var-1)
			}
			return fmt.Sprintf("%%%d", o.Var)
		}
	default:
		return "?"
	}
}

// PrintInstruction renders one instruction as `opname<padded to 7>tgt,src1,src2`
// with the op name in lower case and only the populated operands printed.
func PrintInstruction(instr Instruction, style Style) string {
	name := strings.ToLower(instr.Op.String())
	padded := name
	if len(padded) < 7 {
		padded += strings.Repeat(" ", 7-len(padded))
	}
	var operands []string
	for _, o := range []Operand{instr.Tgt, instr.Src1, instr.Src2} {
		if !o.IsNull() {
			operands = append(operands, PrintOperand(o, style))
		}
	}
	if len(operands) == 0 {
		return padded
	}
	return padded + strings.Join(operands, ",")
}

// PrintSubroutine renders one subroutine's header and blocks.
func PrintSubroutine(sub *Subroutine, style Style) string {
	var b strings.Builder
	kind := "void"
	if sub.HasReturn {
		kind = "value"
	}
	param := ""
	if sub.HasParam {
		param = "param"
	}
	fmt.Fprintf(&b, "def %s(%s) -> (%s):\n", sub.Name, param, kind)
	for _, blk := range sub.Blocks {
		fmt.Fprintf(&b, "%s:\n", blk.Label)
		for _, instr := range blk.Instructions {
			fmt.Fprintf(&b, "    %s\n", PrintInstruction(instr, style))
		}
	}
	return b.String()
}

// PrintProgram renders the whole program as a `.hrasm`-style textual dump.
func PrintProgram(prog *Program, style Style) string {
	var b strings.Builder
	for _, sub := range prog.Subroutines {
		b.WriteString(PrintSubroutine(sub, style))
		b.WriteString("\n")
	}
	return b.String()
}
