// Command hrlc compiles and runs an HRL source file: parse, resolve,
// lower to TAC, run the full optimization/SSA pipeline, then interpret.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"

	hrlerrors "hrlc/internal/errors"
	"hrlc/internal/interp"
	"hrlc/internal/ir"
	"hrlc/internal/lexer"
	"hrlc/internal/parser"
	"hrlc/internal/semantic"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: hrlc <file.hrl> [--input=1,2,3] [--dump=DIR] [--ssa-enforce]")
		os.Exit(1)
	}

	path := os.Args[1]
	var input []interp.Box
	var dumpDir string
	ssaEnforce := false

	for _, arg := range os.Args[2:] {
		switch {
		case strings.HasPrefix(arg, "--input="):
			input = parseInput(strings.TrimPrefix(arg, "--input="))
		case strings.HasPrefix(arg, "--dump="):
			dumpDir = strings.TrimPrefix(arg, "--dump=")
		case arg == "--ssa-enforce":
			ssaEnforce = true
		}
	}

	source, err := os.ReadFile(path)
	if err != nil {
		color.Red("failed to read file: %s", err)
		os.Exit(1)
	}

	prog, diags := compile(path, string(source), dumpDir)
	if diags.HasErrors() {
		fmt.Print(diags.FormatAll())
		color.Red("❌ failed to compile %s", path)
		os.Exit(1)
	}

	machine := interp.New(prog, input)
	machine.SSAEnforce = ssaEnforce
	if err := machine.Run(); err != nil {
		color.Red("❌ runtime error: %s", err)
		os.Exit(1)
	}

	for _, v := range machine.Output() {
		fmt.Println(v.String())
	}
	color.Green("✅ Successfully ran %s", path)
}

// compile runs the front end, TAC generation, and the full pipeline,
// returning either a ready-to-run program or the diagnostics explaining
// why it isn't one. dumpDir, when non-empty, receives one .hrasm/.dot
// pair per pipeline stage.
func compile(path, source, dumpDir string) (*ir.Program, *hrlerrors.Reporter) {
	reporter := hrlerrors.NewReporter(path, source)

	l := lexer.New(source)
	p := parser.New(l)
	astProg := p.ParseProgram()
	for _, e := range p.Errors() {
		reporter.Report(hrlerrors.Diagnostic{Level: hrlerrors.Error, Message: e})
	}
	if reporter.HasErrors() {
		return nil, reporter
	}

	resolver := semantic.NewResolver()
	resolver.Resolve(astProg)
	for _, e := range resolver.Errors() {
		reporter.Report(hrlerrors.Diagnostic{Level: hrlerrors.Error, Message: e})
	}
	if reporter.HasErrors() {
		return nil, reporter
	}

	prog, err := ir.Generate(astProg)
	if err != nil {
		reporter.Report(hrlerrors.Diagnostic{Level: hrlerrors.Error, Message: err.Error()})
		return nil, reporter
	}

	pm := ir.FullPipeline()
	if dumpDir != "" {
		pm = pipelineWithArtifacts(dumpDir)
	}
	if err := pm.Run(prog, true); err != nil {
		reporter.Report(hrlerrors.Diagnostic{Level: hrlerrors.Error, Message: err.Error()})
		return nil, reporter
	}

	return prog, reporter
}

// pipelineWithArtifacts rebuilds FullPipeline's stage order, but wires a
// numbered .hrasm/.dot dump into dir after each stage — used only when
// --dump is passed, since writing artifacts for every compile is wasted
// I/O on the common path.
func pipelineWithArtifacts(dir string) *ir.PassManager {
	os.MkdirAll(dir, 0o755)
	stages := []ir.Pass{
		ir.BuildCFGPass{},
		ir.StripNopPass{},
		ir.StripEmptyBasicBlockPass{},
		ir.MergeConditionalBranchPass{},
		ir.BuildCFGPass{},
		ir.EliminateDeadBasicBlockPass{},
		ir.ComputeDominancePass{},
		ir.BuildSSAPass{},
		ir.PropagateCopyPass{},
		ir.RemoveDeadInstructionsPass{},
	}
	pm := ir.NewPassManager()
	for i, stage := range stages {
		base := filepath.Join(dir, fmt.Sprintf("%02d_%s", i, stage.Name()))
		pm.AddPassWithArtifacts(stage, base+".hrasm", base+".dot")
	}
	return pm
}

func parseInput(s string) []interp.Box {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	boxes := make([]interp.Box, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			continue
		}
		boxes = append(boxes, interp.IntBox(n))
	}
	return boxes
}
