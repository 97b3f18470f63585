package ir

import (
	"fmt"
	"os"
)

// PassEntry pairs a Pass with optional artifact-dump paths, mirroring the
// original pass manager's (pass, name, asm_path?, graph_path?) tuple.
type PassEntry struct {
	Pass     Pass
	AsmPath  string
	DotPath  string
}

// PassManager runs an ordered pipeline of passes over a Program.
type PassManager struct {
	entries []PassEntry
}

func NewPassManager() *PassManager { return &PassManager{} }

func (pm *PassManager) AddPass(p Pass) *PassManager {
	pm.entries = append(pm.entries, PassEntry{Pass: p})
	return pm
}

// AddPassWithArtifacts registers a pass along with paths that, when
// non-empty, trigger a textual IR dump and/or a Graphviz CFG dump after the
// pass completes.
func (pm *PassManager) AddPassWithArtifacts(p Pass, asmPath, dotPath string) *PassManager {
	pm.entries = append(pm.entries, PassEntry{Pass: p, AsmPath: asmPath, DotPath: dotPath})
	return pm
}

// Run executes every pass in order. When failFast is true, the first pass
// returning an error aborts the pipeline immediately; otherwise execution
// continues and the worst (first-seen) error is returned at the end.
func (pm *PassManager) Run(prog *Program, failFast bool) error {
	var worst error
	for _, entry := range pm.entries {
		_, err := entry.Pass.Apply(prog)
		if err != nil {
			if worst == nil {
				worst = fmt.Errorf("pass %q failed: %w", entry.Pass.Name(), err)
			}
			if failFast {
				return worst
			}
			continue
		}
		if entry.AsmPath != "" {
			if writeErr := writeFile(entry.AsmPath, PrintProgram(prog, StyleVirtualRegister)); writeErr != nil && worst == nil {
				worst = writeErr
			}
		}
		if entry.DotPath != "" {
			if writeErr := writeFile(entry.DotPath, Graphviz(prog)); writeErr != nil && worst == nil {
				worst = writeErr
			}
		}
	}
	return worst
}

func writeFile(path, content string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(content)
	return err
}

// DefaultPipeline returns the housekeeping pipeline: build the CFG,
// strip NOPs and empty blocks, fuse conditional branches, re-link the CFG,
// and remove unreachable blocks. It computes no dominance and builds no SSA;
// FullPipeline runs these same passes first and then continues into SSA.
func DefaultPipeline() *PassManager {
	pm := NewPassManager()
	pm.AddPass(BuildCFGPass{})
	pm.AddPass(StripNopPass{})
	pm.AddPass(StripEmptyBasicBlockPass{})
	pm.AddPass(MergeConditionalBranchPass{})
	pm.AddPass(BuildCFGPass{}) // re-link after block coalescing retargeted labels
	pm.AddPass(EliminateDeadBasicBlockPass{})
	return pm
}
