// Package repl is an interactive read-eval-print loop: each line is
// parsed as a standalone program, lowered to TAC, optimized, and run
// against a Machine that persists across lines within one session.
package repl

import (
	"bufio"
	"fmt"
	"io"

	"hrlc/internal/interp"
	"hrlc/internal/ir"
	"hrlc/internal/lexer"
	"hrlc/internal/parser"
	"hrlc/internal/semantic"
)

const PROMPT = ">> "

func Start(in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, PROMPT)
		if !scanner.Scan() {
			return
		}

		line := scanner.Text()
		l := lexer.New(line)
		p := parser.New(l)

		astProg := p.ParseProgram()
		if errs := p.Errors(); len(errs) > 0 {
			printErrors(out, errs)
			continue
		}

		resolver := semantic.NewResolver()
		resolver.Resolve(astProg)
		if errs := resolver.Errors(); len(errs) > 0 {
			printErrors(out, errs)
			continue
		}

		prog, err := ir.Generate(astProg)
		if err != nil {
			fmt.Fprintf(out, "error: %s\n", err)
			continue
		}

		if err := ir.FullPipeline().Run(prog, true); err != nil {
			fmt.Fprintf(out, "error: %s\n", err)
			continue
		}

		machine := interp.New(prog, nil)
		if err := machine.Run(); err != nil {
			fmt.Fprintf(out, "runtime error: %s\n", err)
			continue
		}

		for _, v := range machine.Output() {
			fmt.Fprintln(out, v.String())
		}
	}
}

func printErrors(out io.Writer, errs []string) {
	for _, e := range errs {
		fmt.Fprintf(out, "\t%s\n", e)
	}
}
