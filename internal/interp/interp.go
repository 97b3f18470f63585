package interp

import (
	"fmt"

	"hrlc/internal/ir"
)

// Frame is one call frame: its subroutine, register file, the set of block
// labels visited so far (for SSA-enforcement back-edge tolerance), and the
// label of the block currently executing.
type Frame struct {
	Subroutine   string
	Variables    map[int]Box
	Visited      map[string]bool
	CurrentBlock string
}

func newFrame(name string) *Frame {
	return &Frame{Subroutine: name, Variables: make(map[int]Box), Visited: make(map[string]bool)}
}

// Machine is the VM: floor memory, input/output FIFOs, global store, call
// stack, and the one-slot return register written by RET and read by CALL.
type Machine struct {
	Prog *ir.Program

	floor    map[int]Box
	floorMax int

	input  []Box
	output []Box

	global map[int]Box

	callStack []*Frame

	returnSlot    Box
	returnPresent bool

	SSAEnforce bool
}

// New builds a Machine for prog, seeding the floor from its metadata and
// the input queue from in.
func New(prog *ir.Program, in []Box) *Machine {
	m := &Machine{
		Prog:     prog,
		floor:    make(map[int]Box),
		floorMax: prog.Metadata.FloorMax,
		input:    append([]Box(nil), in...),
		global:   make(map[int]Box),
	}
	for idx, v := range prog.Metadata.FloorInits {
		m.floor[idx] = IntBox(v)
	}
	return m
}

// Output returns everything written to the output queue so far.
func (m *Machine) Output() []Box { return m.output }

// Run starts execution at the `<global>` subroutine and returns once it
// returns or a runtime error occurs.
func (m *Machine) Run() error {
	global, ok := m.Prog.SubroutineByName(ir.GlobalSubroutineName)
	if !ok {
		return fmt.Errorf("program has no %s subroutine", ir.GlobalSubroutineName)
	}
	_, err := m.call(global, nil)
	return err
}

// call pushes a new frame for sub, executes it block-at-a-time, and
// returns its return-slot value (if any).
func (m *Machine) call(sub *ir.Subroutine, arg *Box) (Box, error) {
	frame := newFrame(sub.Name)
	m.callStack = append(m.callStack, frame)
	defer func() { m.callStack = m.callStack[:len(m.callStack)-1] }()

	if len(sub.Blocks) == 0 {
		return Box{}, nil
	}

	curIdx := 0
	predLabel := ""
	pendingParam := arg

	for {
		block := sub.Blocks[curIdx]
		visitedBefore := frame.Visited[block.Label]
		frame.Visited[block.Label] = true
		frame.CurrentBlock = block.Label

		nextIdx := curIdx + 1
		returned := false
		var retErr error

	instrLoop:
		for _, instr := range block.Instructions {
			idx, taken, isReturn, retVal, err := m.step(instr, frame, &pendingParam, predLabel, sub, visitedBefore)
			if err != nil {
				retErr = err
				break instrLoop
			}
			if isReturn {
				returned = true
				if retVal != nil {
					m.returnSlot = *retVal
					m.returnPresent = true
				} else {
					m.returnPresent = false
				}
				break instrLoop
			}
			if taken {
				nextIdx = idx
				break instrLoop
			}
		}

		if retErr != nil {
			return Box{}, retErr
		}
		if returned {
			if m.returnPresent {
				return m.returnSlot, nil
			}
			return Box{}, nil
		}

		predLabel = block.Label

		if nextIdx >= len(sub.Blocks) {
			return Box{}, nil
		}
		curIdx = nextIdx
	}
}

func (m *Machine) readOperand(frame *Frame, o ir.Operand) (Box, error) {
	switch o.Kind {
	case ir.OperandImmediate:
		return IntBox(o.Imm), nil
	case ir.OperandVariable:
		if o.Var < 0 {
			v, ok := m.global[o.GlobalSlot()]
			if !ok {
				return Box{}, ErrRegisterEmpty
			}
			return v, nil
		}
		v, ok := frame.Variables[o.Var]
		if !ok {
			return Box{}, ErrRegisterEmpty
		}
		return v, nil
	default:
		return Box{}, fmt.Errorf("cannot read operand kind %v", o.Kind)
	}
}

func (m *Machine) writeOperand(frame *Frame, o ir.Operand, value Box, visitedBefore bool) error {
	if o.Kind != ir.OperandVariable {
		return fmt.Errorf("cannot write operand kind %v", o.Kind)
	}
	if o.Var < 0 {
		m.global[o.GlobalSlot()] = value
		return nil
	}
	if m.SSAEnforce {
		if _, exists := frame.Variables[o.Var]; exists && !visitedBefore {
			return fmt.Errorf("ssa violation: register r%d redefined in frame %s", o.Var, frame.Subroutine)
		}
	}
	frame.Variables[o.Var] = value
	return nil
}

func (m *Machine) readFloor(idx int) (Box, error) {
	v, ok := m.floor[idx]
	if !ok {
		return Box{}, ErrFloorIsEmpty
	}
	return v, nil
}

// step executes one instruction. It returns (targetBlockIndex, branchTaken,
// isReturn, returnValue, error).
func (m *Machine) step(instr ir.Instruction, frame *Frame, pendingParam **Box, predLabel string, sub *ir.Subroutine, visitedBefore bool) (int, bool, bool, *Box, error) {
	switch instr.Op {
	case ir.MOV:
		v, err := m.readOperand(frame, instr.Src1)
		if err != nil {
			return 0, false, false, nil, err
		}
		return 0, false, false, nil, m.writeOperand(frame, instr.Tgt, v, visitedBefore)

	case ir.LOAD:
		addr, err := m.readOperand(frame, instr.Src1)
		if err != nil {
			return 0, false, false, nil, err
		}
		v, err := m.readFloor(addr.AsInt())
		if err != nil {
			return 0, false, false, nil, err
		}
		return 0, false, false, nil, m.writeOperand(frame, instr.Tgt, v, visitedBefore)

	case ir.STORE:
		addr, err := m.readOperand(frame, instr.Src1)
		if err != nil {
			return 0, false, false, nil, err
		}
		v, err := m.readOperand(frame, instr.Src2)
		if err != nil {
			return 0, false, false, nil, err
		}
		m.floor[addr.AsInt()] = v
		return 0, false, false, nil, nil

	case ir.LOADI:
		return 0, false, false, nil, m.writeOperand(frame, instr.Tgt, IntBox(instr.Src1.Imm), visitedBefore)

	case ir.ADD, ir.SUB, ir.MUL, ir.DIV, ir.MOD:
		a, err := m.readOperand(frame, instr.Src1)
		if err != nil {
			return 0, false, false, nil, err
		}
		b, err := m.readOperand(frame, instr.Src2)
		if err != nil {
			return 0, false, false, nil, err
		}
		res, err := arith(instr.Op, a.AsInt(), b.AsInt())
		if err != nil {
			return 0, false, false, nil, err
		}
		return 0, false, false, nil, m.writeOperand(frame, instr.Tgt, IntBox(res), visitedBefore)

	case ir.NEG:
		a, err := m.readOperand(frame, instr.Src1)
		if err != nil {
			return 0, false, false, nil, err
		}
		return 0, false, false, nil, m.writeOperand(frame, instr.Tgt, IntBox(-a.AsInt()), visitedBefore)

	case ir.AND, ir.OR:
		a, err := m.readOperand(frame, instr.Src1)
		if err != nil {
			return 0, false, false, nil, err
		}
		b, err := m.readOperand(frame, instr.Src2)
		if err != nil {
			return 0, false, false, nil, err
		}
		var res bool
		if instr.Op == ir.AND {
			res = a.AsInt() != 0 && b.AsInt() != 0
		} else {
			res = a.AsInt() != 0 || b.AsInt() != 0
		}
		return 0, false, false, nil, m.writeOperand(frame, instr.Tgt, IntBox(boolInt(res)), visitedBefore)

	case ir.NOT:
		a, err := m.readOperand(frame, instr.Src1)
		if err != nil {
			return 0, false, false, nil, err
		}
		return 0, false, false, nil, m.writeOperand(frame, instr.Tgt, IntBox(boolInt(a.AsInt() == 0)), visitedBefore)

	case ir.EQ, ir.NE, ir.LT, ir.LE, ir.GT, ir.GE:
		a, err := m.readOperand(frame, instr.Src1)
		if err != nil {
			return 0, false, false, nil, err
		}
		b, err := m.readOperand(frame, instr.Src2)
		if err != nil {
			return 0, false, false, nil, err
		}
		res := compare(instr.Op, a.AsInt(), b.AsInt())
		return 0, false, false, nil, m.writeOperand(frame, instr.Tgt, IntBox(boolInt(res)), visitedBefore)

	case ir.JE, ir.JNE, ir.JGT, ir.JLT, ir.JGE, ir.JLE:
		a, err := m.readOperand(frame, instr.Src1)
		if err != nil {
			return 0, false, false, nil, err
		}
		b, err := m.readOperand(frame, instr.Src2)
		if err != nil {
			return 0, false, false, nil, err
		}
		if compare(fusedToComparison(instr.Op), a.AsInt(), b.AsInt()) {
			idx, ok := sub.LabelIndex[instr.Tgt.Label]
			if !ok {
				return 0, false, false, nil, fmt.Errorf("unknown branch target %q", instr.Tgt.Label)
			}
			return idx, true, false, nil, nil
		}
		return 0, false, false, nil, nil

	case ir.JZ, ir.JNZ:
		a, err := m.readOperand(frame, instr.Src1)
		if err != nil {
			return 0, false, false, nil, err
		}
		taken := a.AsInt() == 0
		if instr.Op == ir.JNZ {
			taken = !taken
		}
		if taken {
			idx, ok := sub.LabelIndex[instr.Tgt.Label]
			if !ok {
				return 0, false, false, nil, fmt.Errorf("unknown branch target %q", instr.Tgt.Label)
			}
			return idx, true, false, nil, nil
		}
		return 0, false, false, nil, nil

	case ir.JMP:
		idx, ok := sub.LabelIndex[instr.Tgt.Label]
		if !ok {
			return 0, false, false, nil, fmt.Errorf("unknown branch target %q", instr.Tgt.Label)
		}
		return idx, true, false, nil, nil

	case ir.CALL:
		callee, ok := m.Prog.SubroutineByName(instr.Src1.Label)
		if !ok {
			return 0, false, false, nil, fmt.Errorf("call to unknown subroutine %q", instr.Src1.Label)
		}
		var arg *Box
		if !instr.Src2.IsNull() {
			v, err := m.readOperand(frame, instr.Src2)
			if err != nil {
				return 0, false, false, nil, err
			}
			arg = &v
		}
		ret, err := m.call(callee, arg)
		if err != nil {
			return 0, false, false, nil, err
		}
		if !instr.Tgt.IsNull() {
			if err := m.writeOperand(frame, instr.Tgt, ret, visitedBefore); err != nil {
				return 0, false, false, nil, err
			}
		}
		return 0, false, false, nil, nil

	case ir.ENTER:
		if *pendingParam == nil {
			return 0, false, false, nil, fmt.Errorf("ENTER with no argument passed")
		}
		v := **pendingParam
		*pendingParam = nil
		return 0, false, false, nil, m.writeOperand(frame, instr.Tgt, v, visitedBefore)

	case ir.RET:
		if instr.Src1.IsNull() {
			return 0, false, true, nil, nil
		}
		v, err := m.readOperand(frame, instr.Src1)
		if err != nil {
			return 0, false, false, nil, err
		}
		return 0, false, true, &v, nil

	case ir.INPUT:
		if len(m.input) == 0 {
			return 0, false, false, nil, ErrEndOfInput
		}
		v := m.input[0]
		m.input = m.input[1:]
		return 0, false, false, nil, m.writeOperand(frame, instr.Tgt, v, visitedBefore)

	case ir.OUTPUT:
		v, err := m.readOperand(frame, instr.Src1)
		if err != nil {
			return 0, false, false, nil, err
		}
		m.output = append(m.output, v)
		return 0, false, false, nil, nil

	case ir.NOP:
		return 0, false, false, nil, nil

	case ir.HALT:
		return 0, false, false, nil, ErrHaltRequested

	case ir.PHI:
		inc, ok := instr.PhiIncomings[predLabel]
		if !ok {
			return 0, false, false, nil, fmt.Errorf("phi in block %q has no incoming from %q", frame.CurrentBlock, predLabel)
		}
		v, err := m.readOperand(frame, ir.VarOperand(inc.Var))
		if err != nil {
			return 0, false, false, nil, err
		}
		return 0, false, false, nil, m.writeOperand(frame, instr.Tgt, v, visitedBefore)

	default:
		return 0, false, false, nil, fmt.Errorf("unhandled opcode %s", instr.Op)
	}
}

func arith(op ir.Opcode, a, b int) (int, error) {
	switch op {
	case ir.ADD:
		return a + b, nil
	case ir.SUB:
		return a - b, nil
	case ir.MUL:
		return a * b, nil
	case ir.DIV:
		if b == 0 {
			return 0, ErrValueIsZero
		}
		return a / b, nil
	case ir.MOD:
		if b == 0 {
			return 0, ErrValueIsZero
		}
		return a % b, nil
	default:
		return 0, fmt.Errorf("not an arithmetic opcode: %s", op)
	}
}

func compare(op ir.Opcode, a, b int) bool {
	switch op {
	case ir.EQ:
		return a == b
	case ir.NE:
		return a != b
	case ir.LT:
		return a < b
	case ir.LE:
		return a <= b
	case ir.GT:
		return a > b
	case ir.GE:
		return a >= b
	default:
		return false
	}
}

func fusedToComparison(op ir.Opcode) ir.Opcode {
	switch op {
	case ir.JE:
		return ir.EQ
	case ir.JNE:
		return ir.NE
	case ir.JGT:
		return ir.GT
	case ir.JLT:
		return ir.LT
	case ir.JGE:
		return ir.GE
	case ir.JLE:
		return ir.LE
	default:
		return ir.EQ
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
