// Package astprint renders a parsed Compiscript *ast.Program as an
// indented, parenthesized tree for the CLI's "--emit=ast" mode.
//
// Grounded on the teacher's internal/formatter.Formatter: an
// indent-tracking strings.Builder walk (indent/writeIndent, one case per
// node kind), repointed from re-printing source text to dumping tree
// shape, and driven through internal/ast's own double-dispatch
// ExprVisitor/StmtVisitor rather than formatter.go's plain type switch,
// since the AST package already exposes that dispatch mechanism.
package astprint

import (
	"fmt"
	"strings"

	"compiscript/internal/ast"
)

// Print renders prog as an indented S-expression tree.
func Print(prog *ast.Program) string {
	p := &printer{indentStr: "  "}
	p.visitStmt(prog)
	return p.output.String()
}

type printer struct {
	indent    int
	indentStr string
	output    strings.Builder
}

func (p *printer) writeIndent() {
	for i := 0; i < p.indent; i++ {
		p.output.WriteString(p.indentStr)
	}
}

func (p *printer) line(format string, args ...interface{}) {
	p.writeIndent()
	fmt.Fprintf(&p.output, format, args...)
	p.output.WriteString("\n")
}

func (p *printer) block(header string, stmts []ast.Stmt) {
	p.line("(%s", header)
	p.indent++
	for _, s := range stmts {
		p.visitStmt(s)
	}
	p.indent--
	p.line(")")
}

func (p *printer) visitStmt(s ast.Stmt) {
	if s == nil {
		p.line("(nil)")
		return
	}
	s.AcceptStmt(p)
}

func (p *printer) visitExprInline(e ast.Expr) string {
	if e == nil {
		return "nil"
	}
	inner := &printer{indentStr: p.indentStr}
	e.AcceptExpr(inner)
	return strings.TrimRight(inner.output.String(), "\n")
}

// ---- ast.StmtVisitor ----

func (p *printer) VisitProgram(n *ast.Program) interface{} {
	p.block("program", n.Stmts)
	return nil
}

func (p *printer) VisitBlock(n *ast.Block) interface{} {
	p.block("block", n.Stmts)
	return nil
}

func (p *printer) VisitVarDecl(n *ast.VarDecl) interface{} {
	p.line("(let %s %s)", n.Name, p.visitExprInline(n.Init))
	return nil
}

func (p *printer) VisitConstDecl(n *ast.ConstDecl) interface{} {
	p.line("(const %s %s)", n.Name, p.visitExprInline(n.Init))
	return nil
}

func (p *printer) VisitAssign(n *ast.Assign) interface{} {
	p.line("(assign %s %s)", p.visitExprInline(n.Target), p.visitExprInline(n.Value))
	return nil
}

func (p *printer) VisitIf(n *ast.If) interface{} {
	p.line("(if %s", p.visitExprInline(n.Cond))
	p.indent++
	p.visitStmt(n.Then)
	if n.Else != nil {
		p.visitStmt(n.Else)
	}
	p.indent--
	p.line(")")
	return nil
}

func (p *printer) VisitWhile(n *ast.While) interface{} {
	p.line("(while %s", p.visitExprInline(n.Cond))
	p.indent++
	p.visitStmt(n.Body)
	p.indent--
	p.line(")")
	return nil
}

func (p *printer) VisitDoWhile(n *ast.DoWhile) interface{} {
	p.line("(do-while")
	p.indent++
	p.visitStmt(n.Body)
	p.indent--
	p.line("  %s)", p.visitExprInline(n.Cond))
	return nil
}

func (p *printer) VisitFor(n *ast.For) interface{} {
	p.line("(for")
	p.indent++
	p.visitStmt(n.Init)
	p.line("(cond %s)", p.visitExprInline(n.Cond))
	p.visitStmt(n.Update)
	p.visitStmt(n.Body)
	p.indent--
	p.line(")")
	return nil
}

func (p *printer) VisitForeach(n *ast.Foreach) interface{} {
	p.line("(foreach %s %s", n.Var, p.visitExprInline(n.Iterable))
	p.indent++
	p.visitStmt(n.Body)
	p.indent--
	p.line(")")
	return nil
}

func (p *printer) VisitSwitch(n *ast.Switch) interface{} {
	p.line("(switch %s", p.visitExprInline(n.Expr))
	p.indent++
	for _, c := range n.Cases {
		p.line("(case %s", p.visitExprInline(c.Expr))
		p.indent++
		for _, s := range c.Block {
			p.visitStmt(s)
		}
		p.indent--
		p.line(")")
	}
	if n.Default != nil {
		p.block("default", n.Default)
	}
	p.indent--
	p.line(")")
	return nil
}

func (p *printer) VisitTryCatch(n *ast.TryCatch) interface{} {
	p.line("(try-catch %s", n.ErrName)
	p.indent++
	p.block("try", n.Try)
	p.block("catch", n.Catch)
	p.indent--
	p.line(")")
	return nil
}

func (p *printer) VisitReturn(n *ast.Return) interface{} {
	p.line("(return %s)", p.visitExprInline(n.Value))
	return nil
}

func (p *printer) VisitBreak(n *ast.Break) interface{} {
	p.line("(break)")
	return nil
}

func (p *printer) VisitContinue(n *ast.Continue) interface{} {
	p.line("(continue)")
	return nil
}

func (p *printer) VisitExprStmt(n *ast.ExprStmt) interface{} {
	p.line("%s", p.visitExprInline(n.Expr))
	return nil
}

func (p *printer) VisitFunctionDecl(n *ast.FunctionDecl) interface{} {
	names := make([]string, len(n.Params))
	for i, prm := range n.Params {
		names[i] = prm.Name
	}
	p.line("(function %s (%s)", n.Name, strings.Join(names, " "))
	p.indent++
	for _, s := range n.Body {
		p.visitStmt(s)
	}
	p.indent--
	p.line(")")
	return nil
}

func (p *printer) VisitClassDecl(n *ast.ClassDecl) interface{} {
	header := "(class " + n.Name
	if n.Base != "" {
		header += " : " + n.Base
	}
	p.line(header)
	p.indent++
	for _, m := range n.Members {
		switch m.Kind {
		case ast.MemberField:
			p.visitStmt(m.Field)
		default:
			p.VisitFunctionDecl(m.Fn)
		}
	}
	p.indent--
	p.line(")")
	return nil
}

// ---- ast.ExprVisitor ----

func (p *printer) VisitIdentifier(n *ast.Identifier) interface{} {
	p.output.WriteString(n.Name)
	return nil
}

func (p *printer) VisitLiteral(n *ast.Literal) interface{} {
	switch n.Kind {
	case ast.LitNull:
		p.output.WriteString("null")
	default:
		fmt.Fprintf(&p.output, "%v", n.Value)
	}
	return nil
}

func (p *printer) VisitUnary(n *ast.Unary) interface{} {
	fmt.Fprintf(&p.output, "(%s %s)", n.Op, p.visitExprInline(n.Expr))
	return nil
}

func (p *printer) VisitBinary(n *ast.Binary) interface{} {
	fmt.Fprintf(&p.output, "(%s %s %s)", n.Op, p.visitExprInline(n.Left), p.visitExprInline(n.Right))
	return nil
}

func (p *printer) VisitTernary(n *ast.Ternary) interface{} {
	fmt.Fprintf(&p.output, "(?: %s %s %s)", p.visitExprInline(n.Cond), p.visitExprInline(n.Then), p.visitExprInline(n.Else))
	return nil
}

func (p *printer) VisitCall(n *ast.Call) interface{} {
	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		args[i] = p.visitExprInline(a)
	}
	fmt.Fprintf(&p.output, "(call %s %s)", p.visitExprInline(n.Callee), strings.Join(args, " "))
	return nil
}

func (p *printer) VisitMemberAccess(n *ast.MemberAccess) interface{} {
	fmt.Fprintf(&p.output, "(member %s %s)", p.visitExprInline(n.Obj), n.Name)
	return nil
}

func (p *printer) VisitIndexAccess(n *ast.IndexAccess) interface{} {
	fmt.Fprintf(&p.output, "(index %s %s)", p.visitExprInline(n.Obj), p.visitExprInline(n.Index))
	return nil
}

func (p *printer) VisitArrayLiteral(n *ast.ArrayLiteral) interface{} {
	elems := make([]string, len(n.Elems))
	for i, e := range n.Elems {
		elems[i] = p.visitExprInline(e)
	}
	fmt.Fprintf(&p.output, "(array %s)", strings.Join(elems, " "))
	return nil
}

func (p *printer) VisitThis(n *ast.This) interface{} {
	p.output.WriteString("this")
	return nil
}
