package supervisor

import (
	"fmt"

	"github.com/diskd-ai/ccbox/internal/ccerr"
	"github.com/diskd-ai/ccbox/internal/ccmodel"
)

// spawnSpec is the resolved (binary, args, stdin) triple for one child,
// matching spec.md §4.6's abstract (engine, project_path, prompt) →
// ChildHandle contract.
type spawnSpec struct {
	binary string
	args   []string
	stdin  string // written to the child's stdin then the pipe is closed; empty means no stdin write
}

// commandFor builds the exact command line ccbox spawns for engine.
// Codex and Claude are the two wire-compatible contracts named by the
// spec; other engines are rejected until their contract is configured,
// rather than guessed at.
func commandFor(engine ccmodel.Engine, projectPath, prompt, workDir string) (spawnSpec, error) {
	switch engine {
	case ccmodel.EngineCodex:
		return spawnSpec{
			binary: "codex",
			args: []string{
				"exec", "--full-auto", "--json",
				"--output-last-message", workDir + "/last_message.txt",
				"-C", projectPath,
				"-",
			},
			stdin: prompt,
		}, nil

	case ccmodel.EngineClaude:
		return spawnSpec{
			binary: "claude",
			args: []string{
				"--dangerously-skip-permissions",
				"--verbose",
				"--output-format", "stream-json",
				"-p", prompt,
			},
		}, nil

	default:
		return spawnSpec{}, fmt.Errorf("%w: no spawn contract configured for engine %q", ccerr.ErrSpawnFailed, engine)
	}
}
