// Package parser is a hand-rolled recursive-descent / Pratt parser for HRL.
//
// spec.md names "recursive-descent parsing" as the excluded front-end
// technique; this package exists only so the middle end has a real AST to
// consume, not to explore parsing theory.
package parser

import (
	"fmt"

	"hrlc/internal/ast"
	"hrlc/internal/lexer"
	"hrlc/token"
)

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

const (
	_ int = iota
	LOWEST
	LOGICAL     // && ||
	EQUALITY    // == !=
	COMPARISON  // < > <= >=
	SUM         // + -
	PRODUCT     // * / %
	PREFIX      // !x -x
	CALL        // fn(...)
	INDEX       // floor[...]
)

var precedences = map[token.Type]int{
	token.AND:      LOGICAL,
	token.OR:       LOGICAL,
	token.EQ:       EQUALITY,
	token.NOT_EQ:   EQUALITY,
	token.LT:       COMPARISON,
	token.LE:       COMPARISON,
	token.GT:       COMPARISON,
	token.GE:       COMPARISON,
	token.PLUS:     SUM,
	token.MINUS:    SUM,
	token.STAR:     PRODUCT,
	token.SLASH:    PRODUCT,
	token.PERCENT:  PRODUCT,
	token.LPAREN:   CALL,
	token.LBRACKET: INDEX,
}

type Parser struct {
	l      *lexer.Lexer
	errors []string

	curToken  token.Token
	peekToken token.Token

	prefixParseFns map[token.Type]prefixParseFn
	infixParseFns  map[token.Type]infixParseFn
}

func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}

	p.prefixParseFns = make(map[token.Type]prefixParseFn)
	p.registerPrefix(token.IDENT, p.parseIdentifier)
	p.registerPrefix(token.INT, p.parseIntegerLiteral)
	p.registerPrefix(token.TRUE, p.parseBooleanLiteral)
	p.registerPrefix(token.FALSE, p.parseBooleanLiteral)
	p.registerPrefix(token.BANG, p.parsePrefixExpression)
	p.registerPrefix(token.MINUS, p.parsePrefixExpression)
	p.registerPrefix(token.LPAREN, p.parseGroupedExpression)
	p.registerPrefix(token.FLOOR, p.parseFloorAccess)

	p.infixParseFns = make(map[token.Type]infixParseFn)
	for _, t := range []token.Type{token.PLUS, token.MINUS, token.STAR, token.SLASH,
		token.PERCENT, token.EQ, token.NOT_EQ, token.LT, token.LE, token.GT, token.GE,
		token.AND, token.OR} {
		p.registerInfix(t, p.parseInfixExpression)
	}
	p.registerInfix(token.LPAREN, p.parseCallExpression)

	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) registerPrefix(t token.Type, fn prefixParseFn) { p.prefixParseFns[t] = fn }
func (p *Parser) registerInfix(t token.Type, fn infixParseFn)   { p.infixParseFns[t] = fn }

func (p *Parser) Errors() []string { return p.errors }

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) curIs(t token.Type) bool  { return p.curToken.Type == t }
func (p *Parser) peekIs(t token.Type) bool { return p.peekToken.Type == t }

func (p *Parser) expectPeek(t token.Type) bool {
	if p.peekIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

func (p *Parser) peekError(t token.Type) {
	p.errors = append(p.errors, fmt.Sprintf("line %d: expected next token to be %s, got %s instead",
		p.peekToken.Line, t, p.peekToken.Type))
}

func (p *Parser) peekPrecedence() int {
	if pr, ok := precedences[p.peekToken.Type]; ok {
		return pr
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if pr, ok := precedences[p.curToken.Type]; ok {
		return pr
	}
	return LOWEST
}

// ParseProgram parses a full compilation unit: init-floor declarations
// followed by subroutine declarations.
func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{}
	for !p.curIs(token.EOF) {
		decl := p.parseDeclaration()
		if decl != nil {
			program.Declarations = append(program.Declarations, decl)
		}
		p.nextToken()
	}
	return program
}

func (p *Parser) parseDeclaration() ast.Declaration {
	switch p.curToken.Type {
	case token.INIT:
		return p.parseInitFloorDecl()
	case token.FUNCTION, token.SUBWORD:
		return p.parseSubroutineDecl()
	default:
		p.errors = append(p.errors, fmt.Sprintf("line %d: unexpected token %s at top level",
			p.curToken.Line, p.curToken.Type))
		return nil
	}
}

func (p *Parser) parseInitFloorDecl() ast.Declaration {
	decl := &ast.InitFloorDecl{Token: p.curToken}
	if !p.expectPeek(token.FLOOR) {
		return nil
	}
	if !p.expectPeek(token.LBRACKET) {
		return nil
	}
	if !p.expectPeek(token.INT) {
		return nil
	}
	decl.Index = parseIntLiteral(p.curToken.Literal)
	if !p.expectPeek(token.RBRACKET) {
		return nil
	}
	if !p.expectPeek(token.ASSIGN) {
		return nil
	}
	p.nextToken()
	decl.Value = p.parseExpression(LOWEST)
	if p.peekIs(token.SEMICOLON) {
		p.nextToken()
	}
	return decl
}

func (p *Parser) parseSubroutineDecl() ast.Declaration {
	decl := &ast.SubroutineDecl{Token: p.curToken, HasReturn: p.curIs(token.FUNCTION)}
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	decl.Name = p.curToken.Literal
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	if !p.peekIs(token.RPAREN) {
		if !p.expectPeek(token.IDENT) {
			return nil
		}
		decl.HasParam = true
		decl.ParamName = p.curToken.Literal
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	decl.Body = p.parseBlockStatement()
	return decl
}

func (p *Parser) parseBlockStatement() *ast.BlockStatement {
	block := &ast.BlockStatement{Token: p.curToken}
	p.nextToken()
	for !p.curIs(token.RBRACE) && !p.curIs(token.EOF) {
		stmt := p.parseStatement()
		if stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
		p.nextToken()
	}
	return block
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Type {
	case token.LET:
		return p.parseLetStatement()
	case token.IF:
		return p.parseIfStatement()
	case token.WHILE:
		return p.parseWhileStatement()
	case token.FOR:
		return p.parseForStatement()
	case token.BREAK:
		stmt := &ast.BreakStatement{Token: p.curToken}
		if p.peekIs(token.SEMICOLON) {
			p.nextToken()
		}
		return stmt
	case token.CONTINUE:
		stmt := &ast.ContinueStatement{Token: p.curToken}
		if p.peekIs(token.SEMICOLON) {
			p.nextToken()
		}
		return stmt
	case token.RETURN:
		return p.parseReturnStatement()
	case token.IDENT, token.FLOOR:
		return p.parseSimpleStatement()
	case token.PLUSPLUS, token.MINUSMIN:
		return p.parsePrefixIncDecStatement()
	default:
		p.errors = append(p.errors, fmt.Sprintf("line %d: unexpected token %s in statement",
			p.curToken.Line, p.curToken.Type))
		return nil
	}
}

func (p *Parser) parseLetStatement() ast.Statement {
	stmt := &ast.LetStatement{Token: p.curToken}
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	stmt.Name = p.curToken.Literal
	if !p.expectPeek(token.ASSIGN) {
		return nil
	}
	p.nextToken()
	stmt.Value = p.parseExpression(LOWEST)
	if p.peekIs(token.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

// parseSimpleStatement handles assignment, compound-assignment, pre/post
// increment/decrement, and bare call expressions, all of which start with
// an identifier or a floor access.
func (p *Parser) parseSimpleStatement() ast.Statement {
	tok := p.curToken
	target := p.parseExpression(LOWEST)

	switch p.peekToken.Type {
	case token.ASSIGN, token.PLUS_ASSIGN, token.MINUS_ASSIGN, token.STAR_ASSIGN,
		token.SLASH_ASSIGN, token.PERCENT_ASSIGN:
		op := p.peekToken.Type
		p.nextToken()
		p.nextToken()
		value := p.parseExpression(LOWEST)
		if p.peekIs(token.SEMICOLON) {
			p.nextToken()
		}
		return &ast.AssignStatement{Token: tok, Target: target, Operator: op, Value: value}
	case token.PLUSPLUS, token.MINUSMIN:
		op := p.peekToken.Type
		p.nextToken()
		if p.peekIs(token.SEMICOLON) {
			p.nextToken()
		}
		return &ast.IncDecStatement{Token: tok, Target: target, Operator: op, Prefix: false}
	}

	if p.peekIs(token.SEMICOLON) {
		p.nextToken()
	}
	return &ast.ExpressionStatement{Token: tok, Expression: target}
}

// parsePrefixIncDecStatement handles `++x;`/`--x;` used as a statement.
func (p *Parser) parsePrefixIncDecStatement() ast.Statement {
	tok := p.curToken
	op := p.curToken.Type
	p.nextToken()
	target := p.parseExpression(LOWEST)
	if p.peekIs(token.SEMICOLON) {
		p.nextToken()
	}
	return &ast.IncDecStatement{Token: tok, Target: target, Operator: op, Prefix: true}
}

func (p *Parser) parseIfStatement() ast.Statement {
	stmt := &ast.IfStatement{Token: p.curToken}
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()
	stmt.Condition = p.parseExpression(LOWEST)
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	stmt.Consequence = p.parseBlockStatement()

	if p.peekIs(token.ELSE) {
		p.nextToken()
		if p.peekIs(token.IF) {
			p.nextToken()
			nested := p.parseIfStatement()
			stmt.Alternative = &ast.BlockStatement{Token: p.curToken, Statements: []ast.Statement{nested}}
		} else if p.expectPeek(token.LBRACE) {
			stmt.Alternative = p.parseBlockStatement()
		}
	}
	return stmt
}

func (p *Parser) parseWhileStatement() ast.Statement {
	stmt := &ast.WhileStatement{Token: p.curToken}
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()
	stmt.Condition = p.parseExpression(LOWEST)
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	stmt.Body = p.parseBlockStatement()
	return stmt
}

func (p *Parser) parseForStatement() ast.Statement {
	stmt := &ast.ForStatement{Token: p.curToken}
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()
	if !p.curIs(token.SEMICOLON) {
		stmt.Init = p.parseStatement()
		if !p.curIs(token.SEMICOLON) {
			p.nextToken()
		}
	}
	p.nextToken()
	if !p.curIs(token.SEMICOLON) {
		stmt.Condition = p.parseExpression(LOWEST)
		p.nextToken()
	}
	p.nextToken()
	if !p.curIs(token.RPAREN) {
		stmt.Post = p.parseStatement()
	}
	if !p.curIs(token.RPAREN) {
		if !p.expectPeek(token.RPAREN) {
			return nil
		}
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	stmt.Body = p.parseBlockStatement()
	return stmt
}

func (p *Parser) parseReturnStatement() ast.Statement {
	stmt := &ast.ReturnStatement{Token: p.curToken}
	if !p.peekIs(token.SEMICOLON) {
		p.nextToken()
		stmt.ReturnValue = p.parseExpression(LOWEST)
	}
	if p.peekIs(token.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.errors = append(p.errors, fmt.Sprintf("line %d: no prefix parse function for %s",
			p.curToken.Line, p.curToken.Type))
		return nil
	}
	left := prefix()

	for !p.peekIs(token.SEMICOLON) && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return left
		}
		p.nextToken()
		left = infix(left)
	}
	return left
}

func (p *Parser) parseIdentifier() ast.Expression {
	return &ast.Identifier{Token: p.curToken, Name: p.curToken.Literal}
}

func (p *Parser) parseIntegerLiteral() ast.Expression {
	return &ast.IntegerLiteral{Token: p.curToken, Value: parseIntLiteral(p.curToken.Literal)}
}

func (p *Parser) parseBooleanLiteral() ast.Expression {
	return &ast.BooleanLiteral{Token: p.curToken, Value: p.curIs(token.TRUE)}
}

func (p *Parser) parsePrefixExpression() ast.Expression {
	expr := &ast.PrefixExpression{Token: p.curToken, Operator: p.curToken.Type}
	p.nextToken()
	expr.Right = p.parseExpression(PREFIX)
	return expr
}

func (p *Parser) parseInfixExpression(left ast.Expression) ast.Expression {
	expr := &ast.InfixExpression{Token: p.curToken, Left: left, Operator: p.curToken.Type}
	precedence := p.curPrecedence()
	p.nextToken()
	expr.Right = p.parseExpression(precedence)
	return expr
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	p.nextToken()
	expr := p.parseExpression(LOWEST)
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return expr
}

func (p *Parser) parseFloorAccess() ast.Expression {
	expr := &ast.FloorAccessExpression{Token: p.curToken}
	if !p.expectPeek(token.LBRACKET) {
		return nil
	}
	p.nextToken()
	expr.Index = p.parseExpression(LOWEST)
	if !p.expectPeek(token.RBRACKET) {
		return nil
	}
	return expr
}

func (p *Parser) parseCallExpression(fn ast.Expression) ast.Expression {
	ident, ok := fn.(*ast.Identifier)
	if !ok {
		p.errors = append(p.errors, fmt.Sprintf("line %d: call target must be an identifier",
			p.curToken.Line))
		return nil
	}
	expr := &ast.CallExpression{Token: p.curToken, Name: ident.Name}
	expr.Arguments = p.parseCallArguments()
	return expr
}

func (p *Parser) parseCallArguments() []ast.Expression {
	var args []ast.Expression
	if p.peekIs(token.RPAREN) {
		p.nextToken()
		return args
	}
	p.nextToken()
	args = append(args, p.parseExpression(LOWEST))
	for p.peekIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		args = append(args, p.parseExpression(LOWEST))
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return args
}

func parseIntLiteral(lit string) int {
	n := 0
	for _, ch := range lit {
		n = n*10 + int(ch-'0')
	}
	return n
}
