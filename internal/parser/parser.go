// Package parser is a recursive-descent parser for Compiscript, built on
// top of internal/lexer, producing the internal/ast tree the semantic
// analyzer and IR builder consume.
//
// Per spec.md §1 the lexer/parser are external collaborators specified only
// by the interface the core consumes (a visitor-walkable AST with token
// positions and an error stream); this package is kept intentionally small
// — just enough to drive the core end to end.
package parser

import (
	"fmt"

	"compiscript/internal/ast"
	"compiscript/internal/lexer"
	"compiscript/internal/token"
)

// Error is a syntax error: a source position plus a message (spec.md §6.1).
type Error struct {
	Pos token.Position
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%d:%d] %s", e.Pos.Line, e.Pos.Col, e.Msg)
}

// precedence assigns a binding power to each binary operator token, lowest
// first, for precedence-climbing expression parsing.
var precedence = map[token.Kind]int{
	token.OrOr:    1,
	token.AndAnd:  2,
	token.Eq:      3,
	token.NotEq:   3,
	token.Lt:      3,
	token.Le:      3,
	token.Gt:      3,
	token.Ge:      3,
	token.Plus:    4,
	token.Minus:   4,
	token.Star:    5,
	token.Slash:   5,
	token.Percent: 5,
}

// Parser holds parse state over a token stream.
type Parser struct {
	toks    []token.Token
	current int
	Errors  []error
}

// New creates a Parser over a token stream.
func New(toks []token.Token) *Parser {
	return &Parser{toks: toks}
}

// ParseSource scans and parses a complete source file into a *ast.Program.
// Lexical errors, if any, halt the pipeline before parsing per spec.md §6.1.
func ParseSource(src string) (*ast.Program, []error) {
	toks, lexErrs := lexer.ScanAll(src)
	if len(lexErrs) > 0 {
		return nil, lexErrs
	}
	p := New(toks)
	prog := p.ParseProgram()
	return prog, p.Errors
}

// ParseProgram parses a whole source file.
func (p *Parser) ParseProgram() *ast.Program {
	at := p.peek().Pos
	prog := &ast.Program{Loc: ast.NewLoc(at)}
	for !p.atEnd() {
		prog.Stmts = append(prog.Stmts, p.topLevel())
	}
	return prog
}

func (p *Parser) topLevel() ast.Stmt {
	if p.check(token.KwFunction) {
		return p.functionDecl()
	}
	if p.check(token.KwClass) {
		return p.classDecl()
	}
	return p.statement()
}

// ---- statements ----

func (p *Parser) statement() ast.Stmt {
	switch {
	case p.match(token.KwLet):
		return p.varDecl(false)
	case p.match(token.KwConst):
		return p.varDecl(true)
	case p.match(token.KwIf):
		return p.ifStmt()
	case p.match(token.KwWhile):
		return p.whileStmt()
	case p.match(token.KwDo):
		return p.doWhileStmt()
	case p.match(token.KwFor):
		return p.forOrForeachStmt()
	case p.match(token.KwForeach):
		at := p.previous().Pos
		p.consume(token.LParen, "expect '(' after 'foreach'")
		name := p.consume(token.IDENT, "expect loop variable name").Lexeme
		p.consume(token.KwIn, "expect 'in' after loop variable")
		iter := p.expression()
		p.consume(token.RParen, "expect ')' after foreach iterable")
		return &ast.Foreach{Loc: ast.NewLoc(at), Var: name, Iterable: iter, Body: p.statement()}
	case p.match(token.KwSwitch):
		return p.switchStmt()
	case p.match(token.KwTry):
		return p.tryCatchStmt()
	case p.match(token.KwReturn):
		return p.returnStmt()
	case p.match(token.KwBreak):
		loc := p.previous().Pos
		p.consumeSemi()
		return &ast.Break{Loc: ast.NewLoc(loc)}
	case p.match(token.KwContinue):
		loc := p.previous().Pos
		p.consumeSemi()
		return &ast.Continue{Loc: ast.NewLoc(loc)}
	case p.check(token.LBrace):
		return p.block()
	}
	return p.exprOrAssignStmt()
}

func (p *Parser) block() *ast.Block {
	at := p.peek().Pos
	p.consume(token.LBrace, "expect '{'")
	b := &ast.Block{Loc: ast.NewLoc(at)}
	for !p.check(token.RBrace) && !p.atEnd() {
		if p.check(token.KwFunction) {
			b.Stmts = append(b.Stmts, p.functionDecl())
		} else if p.check(token.KwClass) {
			b.Stmts = append(b.Stmts, p.classDecl())
		} else {
			b.Stmts = append(b.Stmts, p.statement())
		}
	}
	p.consume(token.RBrace, "expect '}' after block")
	return b
}

func (p *Parser) typeAnn() *ast.TypeAnn {
	if !p.check(token.IDENT) && !p.check(token.KwVoid) {
		return nil
	}
	at := p.peek().Pos
	base := p.advance().Lexeme
	depth := 0
	for p.check(token.LBracket) {
		p.advance()
		p.consume(token.RBracket, "expect ']' after '[' in type annotation")
		depth++
	}
	return &ast.TypeAnn{Base: base, ArrayDepth: depth, At: at}
}

func (p *Parser) varDecl(isConst bool) ast.Stmt {
	at := p.previous().Pos
	name := p.consume(token.IDENT, "expect identifier").Lexeme
	var ann *ast.TypeAnn
	if p.match(token.Colon) {
		ann = p.typeAnn()
	}
	var init ast.Expr
	if p.match(token.Assign) {
		init = p.expression()
	}
	p.consumeSemi()
	if isConst {
		return &ast.ConstDecl{Loc: ast.NewLoc(at), Name: name, Ann: ann, Init: init}
	}
	return &ast.VarDecl{Loc: ast.NewLoc(at), Name: name, Ann: ann, Init: init}
}

func (p *Parser) ifStmt() ast.Stmt {
	at := p.previous().Pos
	p.consume(token.LParen, "expect '(' after 'if'")
	cond := p.expression()
	p.consume(token.RParen, "expect ')' after condition")
	then := p.statement()
	var els ast.Stmt
	if p.match(token.KwElse) {
		els = p.statement()
	}
	return &ast.If{Loc: ast.NewLoc(at), Cond: cond, Then: then, Else: els}
}

func (p *Parser) whileStmt() ast.Stmt {
	at := p.previous().Pos
	p.consume(token.LParen, "expect '(' after 'while'")
	cond := p.expression()
	p.consume(token.RParen, "expect ')' after condition")
	body := p.statement()
	return &ast.While{Loc: ast.NewLoc(at), Cond: cond, Body: body}
}

func (p *Parser) doWhileStmt() ast.Stmt {
	at := p.previous().Pos
	body := p.statement()
	p.consume(token.KwWhile, "expect 'while' after 'do' body")
	p.consume(token.LParen, "expect '(' after 'while'")
	cond := p.expression()
	p.consume(token.RParen, "expect ')' after condition")
	p.consumeSemi()
	return &ast.DoWhile{Loc: ast.NewLoc(at), Body: body, Cond: cond}
}

func (p *Parser) forOrForeachStmt() ast.Stmt {
	at := p.previous().Pos
	if p.check(token.IDENT) && p.checkNext(token.KwIn) {
		name := p.advance().Lexeme
		p.advance() // 'in'
		iter := p.expression()
		body := p.statement()
		return &ast.Foreach{Loc: ast.NewLoc(at), Var: name, Iterable: iter, Body: body}
	}
	p.consume(token.LParen, "expect '(' after 'for'")
	var init ast.Stmt
	if !p.check(token.Semicolon) {
		if p.match(token.KwLet) {
			init = p.varDecl(false)
		} else {
			init = p.exprOrAssignStmtNoSemi()
			p.consumeSemi()
		}
	} else {
		p.advance()
	}
	var cond ast.Expr
	if !p.check(token.Semicolon) {
		cond = p.expression()
	}
	p.consume(token.Semicolon, "expect ';' after for condition")
	var update ast.Stmt
	if !p.check(token.RParen) {
		update = p.exprOrAssignStmtNoSemi()
	}
	p.consume(token.RParen, "expect ')' after for clauses")
	body := p.statement()
	return &ast.For{Loc: ast.NewLoc(at), Init: init, Cond: cond, Update: update, Body: body}
}

func (p *Parser) switchStmt() ast.Stmt {
	at := p.previous().Pos
	p.consume(token.LParen, "expect '(' after 'switch'")
	disc := p.expression()
	p.consume(token.RParen, "expect ')' after switch expression")
	p.consume(token.LBrace, "expect '{' before switch body")
	sw := &ast.Switch{Loc: ast.NewLoc(at), Expr: disc}
	for !p.check(token.RBrace) && !p.atEnd() {
		if p.match(token.KwCase) {
			cat := p.previous().Pos
			ce := p.expression()
			p.consume(token.Colon, "expect ':' after case expression")
			var blk []ast.Stmt
			for !p.check(token.KwCase) && !p.check(token.KwDefault) && !p.check(token.RBrace) && !p.atEnd() {
				blk = append(blk, p.statement())
			}
			sw.Cases = append(sw.Cases, &ast.SwitchCase{Loc: ast.NewLoc(cat), Expr: ce, Block: blk})
		} else if p.match(token.KwDefault) {
			p.consume(token.Colon, "expect ':' after 'default'")
			var blk []ast.Stmt
			for !p.check(token.KwCase) && !p.check(token.KwDefault) && !p.check(token.RBrace) && !p.atEnd() {
				blk = append(blk, p.statement())
			}
			sw.Default = blk
		} else {
			p.errorf("expect 'case' or 'default' in switch body")
			p.advance()
		}
	}
	p.consume(token.RBrace, "expect '}' after switch body")
	return sw
}

func (p *Parser) tryCatchStmt() ast.Stmt {
	at := p.previous().Pos
	p.consume(token.LBrace, "expect '{' after 'try'")
	tryBlk := p.blockStmts()
	p.consume(token.RBrace, "expect '}' after try block")
	p.consume(token.KwCatch, "expect 'catch' after try block")
	p.consume(token.LParen, "expect '(' after 'catch'")
	errName := p.consume(token.IDENT, "expect error variable name").Lexeme
	p.consume(token.RParen, "expect ')' after catch variable")
	p.consume(token.LBrace, "expect '{' after catch(...)")
	catchBlk := p.blockStmts()
	p.consume(token.RBrace, "expect '}' after catch block")
	return &ast.TryCatch{Loc: ast.NewLoc(at), Try: tryBlk, ErrName: errName, Catch: catchBlk}
}

func (p *Parser) blockStmts() []ast.Stmt {
	var stmts []ast.Stmt
	for !p.check(token.RBrace) && !p.atEnd() {
		if p.check(token.KwFunction) {
			stmts = append(stmts, p.functionDecl())
		} else if p.check(token.KwClass) {
			stmts = append(stmts, p.classDecl())
		} else {
			stmts = append(stmts, p.statement())
		}
	}
	return stmts
}

func (p *Parser) returnStmt() ast.Stmt {
	at := p.previous().Pos
	var val ast.Expr
	if !p.check(token.Semicolon) && !p.check(token.RBrace) {
		val = p.expression()
	}
	p.consumeSemi()
	return &ast.Return{Loc: ast.NewLoc(at), Value: val}
}

func (p *Parser) exprOrAssignStmt() ast.Stmt {
	s := p.exprOrAssignStmtNoSemi()
	p.consumeSemi()
	return s
}

func (p *Parser) exprOrAssignStmtNoSemi() ast.Stmt {
	at := p.peek().Pos
	e := p.expression()
	if p.match(token.Assign) {
		val := p.expression()
		return &ast.Assign{Loc: ast.NewLoc(at), Target: e, Value: val}
	}
	return &ast.ExprStmt{Loc: ast.NewLoc(at), Expr: e}
}

func (p *Parser) functionDecl() ast.Stmt {
	at := p.peek().Pos
	p.consume(token.KwFunction, "expect 'function'")
	name := p.consume(token.IDENT, "expect function name").Lexeme
	return p.functionRest(at, name)
}

// functionRest parses the "(params) : ret { body }" tail shared by plain
// function declarations, methods, and constructors.
func (p *Parser) functionRest(at token.Position, name string) *ast.FunctionDecl {
	p.consume(token.LParen, "expect '(' after function name")
	var params []ast.Param
	if !p.check(token.RParen) {
		params = append(params, p.param())
		for p.match(token.Comma) {
			params = append(params, p.param())
		}
	}
	p.consume(token.RParen, "expect ')' after parameters")
	var ret *ast.TypeAnn
	if p.match(token.Colon) {
		ret = p.typeAnn()
	}
	p.consume(token.LBrace, "expect '{' before function body")
	body := p.blockStmts()
	p.consume(token.RBrace, "expect '}' after function body")
	return &ast.FunctionDecl{Loc: ast.NewLoc(at), Name: name, Params: params, RetAnn: ret, Body: body}
}

func (p *Parser) param() ast.Param {
	at := p.peek().Pos
	name := p.consume(token.IDENT, "expect parameter name").Lexeme
	var ann *ast.TypeAnn
	if p.match(token.Colon) {
		ann = p.typeAnn()
	}
	return ast.Param{Name: name, Ann: ann, At: at}
}

func (p *Parser) classDecl() ast.Stmt {
	at := p.peek().Pos
	p.consume(token.KwClass, "expect 'class'")
	name := p.consume(token.IDENT, "expect class name").Lexeme
	base := ""
	if p.match(token.KwExtends) {
		base = p.consume(token.IDENT, "expect base class name").Lexeme
	}
	p.consume(token.LBrace, "expect '{' before class body")
	cd := &ast.ClassDecl{Loc: ast.NewLoc(at), Name: name, Base: base}
	for !p.check(token.RBrace) && !p.atEnd() {
		if p.match(token.KwFunction) {
			mAt := p.previous().Pos
			mName := p.consume(token.IDENT, "expect method/constructor name").Lexeme
			fn := p.functionRest(mAt, mName)
			kind := ast.MemberMethod
			if mName == "constructor" {
				kind = ast.MemberCtor
			}
			cd.Members = append(cd.Members, ast.ClassMember{Kind: kind, Fn: fn})
			continue
		}
		if p.match(token.KwLet) {
			field := p.varDecl(false).(*ast.VarDecl)
			cd.Members = append(cd.Members, ast.ClassMember{Kind: ast.MemberField, Field: field})
			continue
		}
		p.errorf("expect field or method declaration in class body")
		p.advance()
	}
	p.consume(token.RBrace, "expect '}' after class body")
	return cd
}

// ---- expressions (precedence climbing) ----

func (p *Parser) expression() ast.Expr {
	return p.ternary()
}

func (p *Parser) ternary() ast.Expr {
	cond := p.binary(0)
	if p.match(token.Question) {
		at := p.previous().Pos
		then := p.expression()
		p.consume(token.Colon, "expect ':' in ternary expression")
		els := p.expression()
		return &ast.Ternary{Loc: ast.NewLoc(at), Cond: cond, Then: then, Else: els}
	}
	return cond
}

func (p *Parser) binary(minPrec int) ast.Expr {
	left := p.unary()
	for {
		tok := p.peek()
		prec, ok := precedence[tok.Kind]
		if !ok || prec < minPrec {
			break
		}
		p.advance()
		right := p.binary(prec + 1)
		left = &ast.Binary{Loc: ast.NewLoc(tok.Pos), Op: tok.Lexeme, Left: left, Right: right}
	}
	return left
}

func (p *Parser) unary() ast.Expr {
	if p.check(token.Bang) || p.check(token.Minus) {
		tok := p.advance()
		operand := p.unary()
		return &ast.Unary{Loc: ast.NewLoc(tok.Pos), Op: tok.Lexeme, Expr: operand}
	}
	return p.postfix()
}

func (p *Parser) postfix() ast.Expr {
	e := p.primary()
	for {
		switch {
		case p.match(token.Dot):
			at := p.previous().Pos
			name := p.consume(token.IDENT, "expect member name after '.'").Lexeme
			e = &ast.MemberAccess{Loc: ast.NewLoc(at), Obj: e, Name: name}
		case p.match(token.LBracket):
			at := p.previous().Pos
			idx := p.expression()
			p.consume(token.RBracket, "expect ']' after index expression")
			e = &ast.IndexAccess{Loc: ast.NewLoc(at), Obj: e, Index: idx}
		case p.match(token.LParen):
			at := p.previous().Pos
			var args []ast.Expr
			if !p.check(token.RParen) {
				args = append(args, p.expression())
				for p.match(token.Comma) {
					args = append(args, p.expression())
				}
			}
			p.consume(token.RParen, "expect ')' after call arguments")
			e = &ast.Call{Loc: ast.NewLoc(at), Callee: e, Args: args}
		default:
			return e
		}
	}
}

func (p *Parser) primary() ast.Expr {
	tok := p.peek()
	switch {
	case p.match(token.INT):
		var v int64
		fmt.Sscanf(tok.Lexeme, "%d", &v)
		return &ast.Literal{Loc: ast.NewLoc(tok.Pos), Kind: ast.LitInt, Value: v}
	case p.match(token.STRING):
		return &ast.Literal{Loc: ast.NewLoc(tok.Pos), Kind: ast.LitString, Value: tok.Lexeme}
	case p.match(token.KwTrue):
		return &ast.Literal{Loc: ast.NewLoc(tok.Pos), Kind: ast.LitBool, Value: true}
	case p.match(token.KwFalse):
		return &ast.Literal{Loc: ast.NewLoc(tok.Pos), Kind: ast.LitBool, Value: false}
	case p.match(token.KwNull):
		return &ast.Literal{Loc: ast.NewLoc(tok.Pos), Kind: ast.LitNull}
	case p.match(token.KwThis):
		return &ast.This{Loc: ast.NewLoc(tok.Pos)}
	case p.match(token.KwNew):
		name := p.consume(token.IDENT, "expect class name after 'new'").Lexeme
		callee := &ast.Identifier{Loc: ast.NewLoc(tok.Pos), Name: name}
		p.consume(token.LParen, "expect '(' after class name in 'new' expression")
		var args []ast.Expr
		if !p.check(token.RParen) {
			args = append(args, p.expression())
			for p.match(token.Comma) {
				args = append(args, p.expression())
			}
		}
		p.consume(token.RParen, "expect ')' after constructor arguments")
		return &ast.Call{Loc: ast.NewLoc(tok.Pos), Callee: callee, Args: args}
	case p.match(token.IDENT):
		return &ast.Identifier{Loc: ast.NewLoc(tok.Pos), Name: tok.Lexeme}
	case p.match(token.LParen):
		e := p.expression()
		p.consume(token.RParen, "expect ')' after expression")
		return e
	case p.match(token.LBracket):
		at := tok.Pos
		var elems []ast.Expr
		if !p.check(token.RBracket) {
			elems = append(elems, p.expression())
			for p.match(token.Comma) {
				elems = append(elems, p.expression())
			}
		}
		p.consume(token.RBracket, "expect ']' after array literal")
		return &ast.ArrayLiteral{Loc: ast.NewLoc(at), Elems: elems}
	}
	p.errorf("expect expression, found %s", tok.Kind)
	p.advance()
	return &ast.Literal{Loc: ast.NewLoc(tok.Pos), Kind: ast.LitNull}
}

// ---- token stream helpers ----

func (p *Parser) peek() token.Token  { return p.toks[p.current] }
func (p *Parser) previous() token.Token {
	return p.toks[p.current-1]
}
func (p *Parser) atEnd() bool { return p.peek().Kind == token.EOF }

func (p *Parser) check(k token.Kind) bool {
	return !p.atEnd() && p.peek().Kind == k
}

func (p *Parser) checkNext(k token.Kind) bool {
	if p.current+1 >= len(p.toks) {
		return false
	}
	return p.toks[p.current+1].Kind == k
}

func (p *Parser) match(k token.Kind) bool {
	if !p.check(k) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) advance() token.Token {
	if !p.atEnd() {
		p.current++
	}
	return p.previous()
}

func (p *Parser) consume(k token.Kind, msg string) token.Token {
	if p.check(k) {
		return p.advance()
	}
	p.errorf("%s (got %s)", msg, p.peek().Kind)
	return p.peek()
}

func (p *Parser) consumeSemi() {
	p.consume(token.Semicolon, "expect ';'")
}

func (p *Parser) errorf(format string, args ...interface{}) {
	p.Errors = append(p.Errors, &Error{Pos: p.peek().Pos, Msg: fmt.Sprintf(format, args...)})
}
