package ir

import (
	"fmt"

	"hrlc/internal/ast"
	"hrlc/token"
)

// Generate lowers a resolved ast.Program into an ir.Program: one
// subroutine per function/subword declaration plus the synthetic
// `<global>` subroutine, and floor_inits metadata from `init floor[...]`
// declarations.
func Generate(prog *ast.Program) (*Program, error) {
	out := NewProgram()

	decls := make(map[string]*ast.SubroutineDecl)
	for _, d := range prog.Declarations {
		if sub, ok := d.(*ast.SubroutineDecl); ok {
			decls[sub.Name] = sub
		}
	}

	for _, d := range prog.Declarations {
		if init, ok := d.(*ast.InitFloorDecl); ok {
			lit, ok := init.Value.(*ast.IntegerLiteral)
			if !ok {
				return nil, fmt.Errorf("line %d: init floor value must be an integer literal", init.Token.Line)
			}
			out.Metadata.FloorInits[init.Index] = lit.Value
		}
	}

	for _, d := range prog.Declarations {
		sub, ok := d.(*ast.SubroutineDecl)
		if !ok {
			continue
		}
		irSub, err := generateSubroutine(sub, decls)
		if err != nil {
			return nil, err
		}
		out.AddSubroutine(irSub)
	}

	out.AddSubroutine(generateGlobalSubroutine())
	return out, nil
}

func generateGlobalSubroutine() *Subroutine {
	b := newBuilder(GlobalSubroutineName, false, false)
	call, _ := NewCall(NullOperand(), LabelOperand(EntryPointName), NullOperand())
	b.emit(call)
	b.emit(mustReturn(NullOperand()))
	b.finish()
	return b.sub
}

func mustReturn(v Operand) Instruction {
	instr, err := NewReturn(v)
	if err != nil {
		panic(err)
	}
	return instr
}

// builder accumulates a linear instruction stream for one subroutine before
// partitioning it into basic blocks.
type builder struct {
	sub      *Subroutine
	instrs   []Instruction
	labelsAt map[int][]string // instruction index -> labels marked just before it
	pending  []string

	nextReg    int
	nextSynth  int
	regOf      map[*ast.Symbol]int

	breakLabels    []string
	continueLabels []string
}

func newBuilder(name string, hasParam, hasReturn bool) *builder {
	return &builder{
		sub:      NewSubroutine(name, hasParam, hasReturn),
		labelsAt: make(map[int][]string),
		regOf:    make(map[*ast.Symbol]int),
	}
}

func (b *builder) newReg() int {
	r := b.nextReg
	b.nextReg++
	return r
}

func (b *builder) regFor(sym *ast.Symbol) Operand {
	if id, ok := b.regOf[sym]; ok {
		return VarOperand(id)
	}
	id := b.newReg()
	b.regOf[sym] = id
	return VarOperand(id)
}

func (b *builder) newLabel(tag string) string {
	l := fmt.Sprintf("%s.%s%d", b.sub.Name, tag, b.nextSynth)
	b.nextSynth++
	return l
}

func (b *builder) mark(label string) {
	b.pending = append(b.pending, label)
}

func (b *builder) emit(instr Instruction) {
	idx := len(b.instrs)
	if len(b.pending) > 0 {
		b.labelsAt[idx] = append(b.labelsAt[idx], b.pending...)
		b.pending = nil
	}
	b.instrs = append(b.instrs, instr)
}

// materialize forces op into a Variable operand, emitting a LOADI if it is
// an Immediate. Arithmetic/logical/comparison factories require Var
// operands in every slot.
func (b *builder) materialize(op Operand) Operand {
	if op.Kind == OperandVariable {
		return op
	}
	if op.Kind == OperandImmediate {
		reg := VarOperand(b.newReg())
		instr, err := NewLoadImmediate(reg, op)
		if err != nil {
			panic(err)
		}
		b.emit(instr)
		return reg
	}
	panic(fmt.Sprintf("cannot materialize operand kind %v", op.Kind))
}

// finish partitions the linear instruction stream into basic blocks and
// attaches them (and label aliasing) to b.sub.
func (b *builder) finish() {
	if len(b.pending) > 0 {
		b.labelsAt[len(b.instrs)] = append(b.labelsAt[len(b.instrs)], b.pending...)
		b.pending = nil
	}

	if len(b.instrs) == 0 {
		blk := NewBasicBlock(b.sub.Name)
		b.sub.AddBlock(blk)
		return
	}

	starts := map[int]bool{0: true}
	for idx := range b.labelsAt {
		if idx < len(b.instrs) {
			starts[idx] = true
		}
	}
	for i, instr := range b.instrs {
		if instr.IsControlTransfer() && i+1 < len(b.instrs) {
			starts[i+1] = true
		}
	}

	var ordered []int
	for idx := range starts {
		ordered = append(ordered, idx)
	}
	sortInts(ordered)

	alias := make(map[string]string)
	canonicalAt := make(map[int]string)
	for _, idx := range ordered {
		labels := b.labelsAt[idx]
		canon := ""
		if len(labels) > 0 {
			canon = labels[0]
			for _, l := range labels[1:] {
				alias[l] = canon
			}
		} else {
			canon = b.newLabel("XB")
		}
		canonicalAt[idx] = canon
	}

	for i, idx := range ordered {
		end := len(b.instrs)
		if i+1 < len(ordered) {
			end = ordered[i+1]
		}
		blk := NewBasicBlock(canonicalAt[idx])
		blk.Instructions = append(blk.Instructions, b.instrs[idx:end]...)
		b.sub.AddBlock(blk)
	}

	for _, blk := range b.sub.Blocks {
		for i := range blk.Instructions {
			instr := &blk.Instructions[i]
			if instr.Tgt.Kind == OperandLabel {
				if canon, ok := alias[instr.Tgt.Label]; ok {
					instr.Tgt.Label = canon
				}
			}
		}
	}
}

func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func generateSubroutine(decl *ast.SubroutineDecl, decls map[string]*ast.SubroutineDecl) (*Subroutine, error) {
	b := newBuilder(decl.Name, decl.HasParam, decl.HasReturn)
	g := &subGen{b: b, decls: decls}

	if decl.HasParam {
		paramReg := b.regFor(decl.ParamSym)
		instr, err := NewEnter(paramReg)
		if err != nil {
			return nil, err
		}
		b.emit(instr)
	}

	if err := g.genBlock(decl.Body); err != nil {
		return nil, err
	}

	if !endsInReturn(decl.Body) {
		if decl.HasReturn {
			zero := VarOperand(b.newReg())
			instr, _ := NewLoadImmediate(zero, ImmOperand(0))
			b.emit(instr)
			b.emit(mustReturn(zero))
		} else {
			b.emit(mustReturn(NullOperand()))
		}
	}

	b.finish()
	return b.sub, nil
}

func endsInReturn(block *ast.BlockStatement) bool {
	if len(block.Statements) == 0 {
		return false
	}
	_, ok := block.Statements[len(block.Statements)-1].(*ast.ReturnStatement)
	return ok
}

// subGen walks one subroutine's AST body, emitting into its builder.
type subGen struct {
	b     *builder
	decls map[string]*ast.SubroutineDecl
}

func (g *subGen) genBlock(block *ast.BlockStatement) error {
	for _, stmt := range block.Statements {
		if err := g.genStatement(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (g *subGen) genStatement(stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.LetStatement:
		val, err := g.genExpr(s.Value)
		if err != nil {
			return err
		}
		val = g.b.materialize(val)
		dst := g.b.regFor(s.Sym)
		instr, err := NewMov(dst, val)
		if err != nil {
			return err
		}
		g.b.emit(instr)
		return nil

	case *ast.AssignStatement:
		return g.genAssign(s)

	case *ast.IncDecStatement:
		return g.genIncDec(s)

	case *ast.ExpressionStatement:
		_, err := g.genExpr(s.Expression)
		return err

	case *ast.IfStatement:
		return g.genIf(s)

	case *ast.WhileStatement:
		return g.genWhile(s)

	case *ast.ForStatement:
		return g.genFor(s)

	case *ast.BreakStatement:
		if len(g.b.breakLabels) == 0 {
			return fmt.Errorf("line %d: break outside of loop", s.Token.Line)
		}
		instr, _ := NewJump(LabelOperand(g.b.breakLabels[len(g.b.breakLabels)-1]))
		g.b.emit(instr)
		return nil

	case *ast.ContinueStatement:
		if len(g.b.continueLabels) == 0 {
			return fmt.Errorf("line %d: continue outside of loop", s.Token.Line)
		}
		instr, _ := NewJump(LabelOperand(g.b.continueLabels[len(g.b.continueLabels)-1]))
		g.b.emit(instr)
		return nil

	case *ast.ReturnStatement:
		if s.ReturnValue == nil {
			g.b.emit(mustReturn(NullOperand()))
			return nil
		}
		val, err := g.genExpr(s.ReturnValue)
		if err != nil {
			return err
		}
		val = g.b.materialize(val)
		g.b.emit(mustReturn(val))
		return nil

	default:
		return fmt.Errorf("unhandled statement type %T", stmt)
	}
}

func (g *subGen) genAssign(s *ast.AssignStatement) error {
	value, err := g.genExpr(s.Value)
	if err != nil {
		return err
	}
	value = g.b.materialize(value)

	if s.Operator != token.ASSIGN {
		cur, addr, err := g.readTarget(s.Target)
		if err != nil {
			return err
		}
		op := compoundOp(s.Operator)
		result := VarOperand(g.b.newReg())
		instr, err := NewArithBinary(op, result, cur, value)
		if err != nil {
			return err
		}
		g.b.emit(instr)
		return g.writeTarget(s.Target, addr, result)
	}

	return g.writeTarget(s.Target, NullOperand(), value)
}

func compoundOp(t token.Type) Opcode {
	switch t {
	case token.PLUS_ASSIGN:
		return ADD
	case token.MINUS_ASSIGN:
		return SUB
	case token.STAR_ASSIGN:
		return MUL
	case token.SLASH_ASSIGN:
		return DIV
	case token.PERCENT_ASSIGN:
		return MOD
	default:
		return ADD
	}
}

// readTarget returns the target's current value and, for a floor target,
// the materialized address operand (reused by writeTarget to avoid
// recomputing the index expression).
func (g *subGen) readTarget(target ast.Expression) (value, addr Operand, err error) {
	switch t := target.(type) {
	case *ast.Identifier:
		return g.b.regFor(t.Sym), NullOperand(), nil
	case *ast.FloorAccessExpression:
		idx, err := g.genExpr(t.Index)
		if err != nil {
			return Operand{}, Operand{}, err
		}
		addr = g.b.materialize(idx)
		dst := VarOperand(g.b.newReg())
		instr, err := NewLoad(dst, addr)
		if err != nil {
			return Operand{}, Operand{}, err
		}
		g.b.emit(instr)
		return dst, addr, nil
	default:
		return Operand{}, Operand{}, fmt.Errorf("unsupported assignment target %T", target)
	}
}

func (g *subGen) writeTarget(target ast.Expression, addr, value Operand) error {
	switch t := target.(type) {
	case *ast.Identifier:
		dst := g.b.regFor(t.Sym)
		instr, err := NewMov(dst, value)
		if err != nil {
			return err
		}
		g.b.emit(instr)
		return nil
	case *ast.FloorAccessExpression:
		if addr.IsNull() {
			idx, err := g.genExpr(t.Index)
			if err != nil {
				return err
			}
			addr = g.b.materialize(idx)
		}
		instr, err := NewStore(addr, value)
		if err != nil {
			return err
		}
		g.b.emit(instr)
		return nil
	default:
		return fmt.Errorf("unsupported assignment target %T", target)
	}
}

func (g *subGen) genIncDec(s *ast.IncDecStatement) error {
	cur, addr, err := g.readTarget(s.Target)
	if err != nil {
		return err
	}
	one := VarOperand(g.b.newReg())
	loadOne, _ := NewLoadImmediate(one, ImmOperand(1))
	g.b.emit(loadOne)

	op := ADD
	if s.Operator == token.MINUSMIN {
		op = SUB
	}
	result := VarOperand(g.b.newReg())
	instr, err := NewArithBinary(op, result, cur, one)
	if err != nil {
		return err
	}
	g.b.emit(instr)
	return g.writeTarget(s.Target, addr, result)
}

func (g *subGen) genIf(s *ast.IfStatement) error {
	cond, err := g.genExpr(s.Condition)
	if err != nil {
		return err
	}
	cond = g.b.materialize(cond)

	elseLabel := g.b.newLabel("if.else")
	fiLabel := g.b.newLabel("if.fi")

	jz, _ := NewUnaryBranch(JZ, LabelOperand(elseLabel), cond)
	g.b.emit(jz)

	if err := g.genBlock(s.Consequence); err != nil {
		return err
	}
	jmp, _ := NewJump(LabelOperand(fiLabel))
	g.b.emit(jmp)

	g.b.mark(elseLabel)
	if s.Alternative != nil {
		if err := g.genBlock(s.Alternative); err != nil {
			return err
		}
	}
	g.b.mark(fiLabel)
	return nil
}

func (g *subGen) genWhile(s *ast.WhileStatement) error {
	whileLabel := g.b.newLabel("while")
	elihwLabel := g.b.newLabel("elihw")

	g.b.mark(whileLabel)
	cond, err := g.genExpr(s.Condition)
	if err != nil {
		return err
	}
	cond = g.b.materialize(cond)
	jz, _ := NewUnaryBranch(JZ, LabelOperand(elihwLabel), cond)
	g.b.emit(jz)

	g.b.breakLabels = append(g.b.breakLabels, elihwLabel)
	g.b.continueLabels = append(g.b.continueLabels, whileLabel)
	if err := g.genBlock(s.Body); err != nil {
		return err
	}
	g.b.breakLabels = g.b.breakLabels[:len(g.b.breakLabels)-1]
	g.b.continueLabels = g.b.continueLabels[:len(g.b.continueLabels)-1]

	jmp, _ := NewJump(LabelOperand(whileLabel))
	g.b.emit(jmp)
	g.b.mark(elihwLabel)
	return nil
}

func (g *subGen) genFor(s *ast.ForStatement) error {
	if s.Init != nil {
		if err := g.genStatement(s.Init); err != nil {
			return err
		}
	}

	condLabel := g.b.newLabel("for.cond")
	updateLabel := g.b.newLabel("for.update")
	rofLabel := g.b.newLabel("for.rof")

	g.b.mark(condLabel)
	if s.Condition != nil {
		cond, err := g.genExpr(s.Condition)
		if err != nil {
			return err
		}
		cond = g.b.materialize(cond)
		jz, _ := NewUnaryBranch(JZ, LabelOperand(rofLabel), cond)
		g.b.emit(jz)
	}

	g.b.breakLabels = append(g.b.breakLabels, rofLabel)
	g.b.continueLabels = append(g.b.continueLabels, updateLabel)
	if err := g.genBlock(s.Body); err != nil {
		return err
	}
	g.b.breakLabels = g.b.breakLabels[:len(g.b.breakLabels)-1]
	g.b.continueLabels = g.b.continueLabels[:len(g.b.continueLabels)-1]

	g.b.mark(updateLabel)
	if s.Post != nil {
		if err := g.genStatement(s.Post); err != nil {
			return err
		}
	}
	jmp, _ := NewJump(LabelOperand(condLabel))
	g.b.emit(jmp)
	g.b.mark(rofLabel)
	return nil
}

func (g *subGen) genExpr(expr ast.Expression) (Operand, error) {
	switch e := expr.(type) {
	case *ast.IntegerLiteral:
		return g.loadImmediate(e.Value)
	case *ast.BooleanLiteral:
		if e.Value {
			return g.loadImmediate(1)
		}
		return g.loadImmediate(0)
	case *ast.Identifier:
		return g.b.regFor(e.Sym), nil
	case *ast.FloorAccessExpression:
		idx, err := g.genExpr(e.Index)
		if err != nil {
			return Operand{}, err
		}
		dst := VarOperand(g.b.newReg())
		instr, err := NewLoad(dst, idx)
		if err != nil {
			return Operand{}, err
		}
		g.b.emit(instr)
		return dst, nil
	case *ast.PrefixExpression:
		right, err := g.genExpr(e.Right)
		if err != nil {
			return Operand{}, err
		}
		right = g.b.materialize(right)
		dst := VarOperand(g.b.newReg())
		switch e.Operator {
		case token.MINUS:
			instr, err := NewArithUnary(dst, right)
			if err != nil {
				return Operand{}, err
			}
			g.b.emit(instr)
		case token.BANG:
			instr, err := NewLogicalUnary(dst, right)
			if err != nil {
				return Operand{}, err
			}
			g.b.emit(instr)
		default:
			return Operand{}, fmt.Errorf("unsupported prefix operator %s", e.Operator)
		}
		return dst, nil
	case *ast.InfixExpression:
		return g.genInfix(e)
	case *ast.CallExpression:
		return g.genCall(e)
	default:
		return Operand{}, fmt.Errorf("unhandled expression type %T", expr)
	}
}

func (g *subGen) loadImmediate(v int) (Operand, error) {
	dst := VarOperand(g.b.newReg())
	instr, err := NewLoadImmediate(dst, ImmOperand(v))
	if err != nil {
		return Operand{}, err
	}
	g.b.emit(instr)
	return dst, nil
}

func (g *subGen) genInfix(e *ast.InfixExpression) (Operand, error) {
	left, err := g.genExpr(e.Left)
	if err != nil {
		return Operand{}, err
	}
	left = g.b.materialize(left)
	right, err := g.genExpr(e.Right)
	if err != nil {
		return Operand{}, err
	}
	right = g.b.materialize(right)
	dst := VarOperand(g.b.newReg())

	var instr Instruction
	switch e.Operator {
	case token.PLUS:
		instr, err = NewArithBinary(ADD, dst, left, right)
	case token.MINUS:
		instr, err = NewArithBinary(SUB, dst, left, right)
	case token.STAR:
		instr, err = NewArithBinary(MUL, dst, left, right)
	case token.SLASH:
		instr, err = NewArithBinary(DIV, dst, left, right)
	case token.PERCENT:
		instr, err = NewArithBinary(MOD, dst, left, right)
	case token.AND:
		instr, err = NewLogicalBinary(AND, dst, left, right)
	case token.OR:
		instr, err = NewLogicalBinary(OR, dst, left, right)
	case token.EQ:
		instr, err = NewComparison(EQ, dst, left, right)
	case token.NOT_EQ:
		instr, err = NewComparison(NE, dst, left, right)
	case token.LT:
		instr, err = NewComparison(LT, dst, left, right)
	case token.LE:
		instr, err = NewComparison(LE, dst, left, right)
	case token.GT:
		instr, err = NewComparison(GT, dst, left, right)
	case token.GE:
		instr, err = NewComparison(GE, dst, left, right)
	default:
		return Operand{}, fmt.Errorf("unsupported infix operator %s", e.Operator)
	}
	if err != nil {
		return Operand{}, err
	}
	g.b.emit(instr)
	return dst, nil
}

func (g *subGen) genCall(e *ast.CallExpression) (Operand, error) {
	switch e.Name {
	case "inbox":
		dst := VarOperand(g.b.newReg())
		instr, err := NewInput(dst)
		if err != nil {
			return Operand{}, err
		}
		g.b.emit(instr)
		return dst, nil
	case "outbox":
		if len(e.Arguments) != 1 {
			return Operand{}, fmt.Errorf("line %d: outbox expects exactly one argument", e.Token.Line)
		}
		arg, err := g.genExpr(e.Arguments[0])
		if err != nil {
			return Operand{}, err
		}
		arg = g.b.materialize(arg)
		instr, err := NewOutput(arg)
		if err != nil {
			return Operand{}, err
		}
		g.b.emit(instr)
		return NullOperand(), nil
	default:
		decl, ok := g.decls[e.Name]
		if !ok {
			return Operand{}, fmt.Errorf("line %d: call to undeclared subroutine %q", e.Token.Line, e.Name)
		}
		arg := NullOperand()
		if len(e.Arguments) > 0 {
			a, err := g.genExpr(e.Arguments[0])
			if err != nil {
				return Operand{}, err
			}
			arg = g.b.materialize(a)
		}
		tgt := NullOperand()
		if decl.HasReturn {
			tgt = VarOperand(g.b.newReg())
		}
		instr, err := NewCall(tgt, LabelOperand(decl.Name), arg)
		if err != nil {
			return Operand{}, err
		}
		g.b.emit(instr)
		return tgt, nil
	}
}
