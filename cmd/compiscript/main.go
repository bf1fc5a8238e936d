// Command compiscript is the batch compiler driver: it reads one source
// file, runs it through the lexer, parser, semantic analyzer, IR builder,
// optimizer, and a chosen backend, and writes the result to stdout or a
// file.
//
// Grounded on the teacher's cmd/sentra/main.go (a thin command-dispatch
// shell around the real work in internal/*) and, for the flag/subcommand
// tree itself, on the urfave/cli/v3 driver style pulled in from the
// reference corpus's rugo compiler — the teacher's own main.go hand-rolls
// argument parsing, but SPEC_FULL.md's ambient-stack section calls for
// `github.com/urfave/cli/v3` here instead, so the command tree follows
// that library's conventions rather than the teacher's switch-on-os.Args
// shape.
package main

import (
	"context"
	"fmt"
	"os"

	humanize "github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"compiscript/internal/astprint"
	"compiscript/internal/codegen/mips"
	"compiscript/internal/codegen/x86"
	"compiscript/internal/diag"
	"compiscript/internal/ir"
	"compiscript/internal/optimize"
	"compiscript/internal/parser"
	"compiscript/internal/sema"
)

func main() {
	cmd := &cli.Command{
		Name:  "compiscript",
		Usage: "a whole-program compiler for the Compiscript language",
		Commands: []*cli.Command{
			buildCommand(),
		},
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildCommand() *cli.Command {
	return &cli.Command{
		Name:      "build",
		Usage:     "compile a Compiscript source file",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "target", Value: "x86", Usage: "x86 or mips"},
			&cli.StringFlag{Name: "emit", Value: "asm", Usage: "asm, ir, or ast"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output path (default: stdout)"},
			&cli.IntFlag{Name: "O", Value: 1, Usage: "optimization level: 0 disables internal/optimize, 1 runs it"},
		},
		Action: runBuild,
	}
}

func runBuild(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return cli.Exit("build: missing source file argument", 1)
	}
	srcBytes, err := os.ReadFile(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("build: %v", err), 1)
	}
	src := string(srcBytes)

	out, instrCount, err := compile(src, cmd.String("target"), cmd.String("emit"), cmd.Int("O"))
	if err != nil {
		if d, ok := err.(diagnostics); ok {
			for _, e := range d {
				reportDiagnostic(e, src)
			}
			return cli.Exit(fmt.Sprintf("build: %d error(s)", len(d)), 1)
		}
		return cli.Exit(fmt.Sprintf("internal compiler error: %v", err), 2)
	}

	summary := fmt.Sprintf("%s, %s instructions", humanize.Bytes(uint64(len(out))), humanize.Comma(int64(instrCount)))
	if dest := cmd.String("output"); dest != "" {
		if err := os.WriteFile(dest, []byte(out), 0o644); err != nil {
			return cli.Exit(fmt.Sprintf("build: writing %s: %v", dest, err), 1)
		}
		fmt.Fprintf(os.Stderr, "wrote %s (%s)\n", dest, summary)
		return nil
	}
	fmt.Fprintf(os.Stderr, "%s\n", summary)
	fmt.Print(out)
	return nil
}

// diagnostics is a user-facing error batch (lexical, syntactic, or
// semantic) distinguished from an internal compiler error: the caller
// reports each element individually rather than a single top-level
// message.
type diagnostics []error

func (d diagnostics) Error() string {
	return fmt.Sprintf("%d diagnostic(s)", len(d))
}

func reportDiagnostic(err error, src string) {
	if d, ok := err.(*diag.Diagnostic); ok {
		fmt.Fprintln(os.Stderr, diag.Render(d, src))
		return
	}
	fmt.Fprintln(os.Stderr, err.Error())
}

// compile runs the full pipeline and recovers any internal compiler error
// (a panic raised by the IR builder or a backend against input that a
// semantically valid AST should never produce, spec.md §7) into a plain
// error so the CLI never crashes with a raw Go stack trace.
func compile(src, target, emit string, optLevel int64) (out string, instrCount int, err error) {
	defer func() {
		if r := recover(); r != nil {
			if rerr, ok := r.(error); ok {
				err = rerr
			} else {
				err = fmt.Errorf("%v", r)
			}
		}
	}()

	prog, perrs := parser.ParseSource(src)
	if len(perrs) > 0 {
		return "", 0, diagnostics(perrs)
	}

	if emit == "ast" {
		return astprint.Print(prog), 0, nil
	}

	serrs, env, classOf := sema.Analyze(prog)
	if len(serrs) > 0 {
		return "", 0, diagnostics(serrs)
	}

	irProg := ir.Build(prog, env, classOf)
	if optLevel > 0 {
		irProg = optimize.Run(irProg)
	}

	if emit == "ir" {
		return ir.NewPrinter().Print(irProg), countInstrs(irProg), nil
	}

	var asm string
	var cerr error
	switch target {
	case "x86":
		asm, cerr = x86.Generate(irProg)
	case "mips":
		asm, cerr = mips.Generate(irProg)
	default:
		return "", 0, fmt.Errorf("unknown target %q (expected x86 or mips)", target)
	}
	if cerr != nil {
		return "", 0, cerr
	}
	return asm, countInstrs(irProg), nil
}

func countInstrs(prog *ir.IRProgram) int {
	n := 0
	for _, name := range prog.Order {
		n += len(prog.Functions[name].Body)
	}
	return n
}
