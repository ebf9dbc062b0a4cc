// Package supervisor implements the Process Supervisor (ccbox core
// component C6): spawning Codex/Claude children in pipe or pty mode,
// capturing their output to per-process log files, and terminating
// them with a grace period before escalating to a hard kill.
package supervisor

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"

	"github.com/diskd-ai/ccbox/internal/ccerr"
	"github.com/diskd-ai/ccbox/internal/ccmodel"
)

// handle bundles a supervised child's live OS state alongside the
// ccmodel.Process snapshot handed to callers.
type handle struct {
	mu   sync.Mutex
	proc ccmodel.Process

	cmd   *exec.Cmd
	ptmx  *os.File      // set when IOMode is Tty
	stdin io.WriteCloser // set when IOMode is Pipes

	processLog *os.File
	stdoutLog  *os.File
	stderrLog  *os.File // nil in Tty mode: stdout and stderr share one pty

	waitDone chan struct{} // closed once cmd.Wait() returns

	attachMu sync.Mutex
	attached bool

	lineListeners map[int]func(string) // side-channel taps on completed stdout lines; see OnLine
	nextListener  int
}

// Supervisor owns the registry of locally spawned agent children. Its
// state is exclusively mutated through its own methods, serializing
// registry changes the way spec.md §5 requires of the process registry.
type Supervisor struct {
	mu           sync.Mutex
	processesDir string
	nextID       int
	handles      map[string]*handle
	gracePeriod  time.Duration
}

// New builds a Supervisor rooted at processesDir (spec.md §6:
// {codex_sessions_root}/.ccbox/processes). gracePeriod is the delay
// between SIGTERM and a hard kill on Stop (default 5s).
func New(processesDir string, gracePeriod time.Duration) *Supervisor {
	if gracePeriod <= 0 {
		gracePeriod = 5 * time.Second
	}
	return &Supervisor{
		processesDir: processesDir,
		handles:      make(map[string]*handle),
		gracePeriod:  gracePeriod,
	}
}

// Spawn starts a child for engine in projectPath with prompt, capturing
// its stdio per ioMode, and returns the initial Process snapshot.
func (s *Supervisor) Spawn(ctx context.Context, engine ccmodel.Engine, projectPath, prompt string, ioMode ccmodel.IOMode) (ccmodel.Process, error) {
	spec, err := commandFor(engine, projectPath, prompt, "")
	if err != nil {
		return ccmodel.Process{}, err
	}

	s.mu.Lock()
	s.nextID++
	id := fmt.Sprintf("p%d", s.nextID)
	s.mu.Unlock()

	workDir := filepath.Join(s.processesDir, id)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return ccmodel.Process{}, fmt.Errorf("%w: work dir: %v", ccerr.ErrSpawnFailed, err)
	}
	// Codex's --output-last-message path is baked into args before workDir
	// is known; rebuild now that it is.
	spec, err = commandFor(engine, projectPath, prompt, workDir)
	if err != nil {
		return ccmodel.Process{}, err
	}

	if err := os.WriteFile(filepath.Join(workDir, "prompt.txt"), []byte(prompt), 0o644); err != nil {
		return ccmodel.Process{}, fmt.Errorf("%w: prompt.txt: %v", ccerr.ErrSpawnFailed, err)
	}

	binary, err := exec.LookPath(spec.binary)
	if err != nil {
		return ccmodel.Process{}, fmt.Errorf("%w: %s: %v", ccerr.ErrSpawnFailed, spec.binary, err)
	}

	processLog, err := os.Create(filepath.Join(workDir, "process.log"))
	if err != nil {
		return ccmodel.Process{}, fmt.Errorf("%w: process.log: %v", ccerr.ErrSpawnFailed, err)
	}

	spawnToken := uuid.NewString()

	h := &handle{
		proc: ccmodel.Process{
			ID:          id,
			SpawnToken:  spawnToken,
			Engine:      engine,
			ProjectPath: projectPath,
			Prompt:      prompt,
			IOMode:      ioMode,
			Status:      ccmodel.ProcessRunning,
			WorkDir:     workDir,
			StartedAt:   time.Now(),
		},
		processLog:    processLog,
		waitDone:      make(chan struct{}),
		lineListeners: make(map[int]func(string)),
	}

	cmd := exec.CommandContext(ctx, binary, spec.args...)
	cmd.Dir = projectPath
	cmd.Env = append(os.Environ(),
		"CODEX_SESSIONS_DIR="+os.Getenv("CODEX_SESSIONS_DIR"),
		"CCBOX_SPAWN_ID="+spawnToken)
	h.cmd = cmd

	switch ioMode {
	case ccmodel.IOModeTty:
		if err := s.startTty(h, spec, workDir); err != nil {
			processLog.Close()
			return ccmodel.Process{}, err
		}
	default:
		if err := s.startPipes(h, spec, workDir); err != nil {
			processLog.Close()
			return ccmodel.Process{}, err
		}
	}

	h.proc.PID = cmd.Process.Pid

	s.mu.Lock()
	s.handles[id] = h
	s.mu.Unlock()

	go s.wait(h)

	return h.snapshot(), nil
}

func (s *Supervisor) startPipes(h *handle, spec spawnSpec, workDir string) error {
	stdoutLog, err := os.Create(filepath.Join(workDir, "stdout.log"))
	if err != nil {
		return fmt.Errorf("%w: stdout.log: %v", ccerr.ErrSpawnFailed, err)
	}
	stderrLog, err := os.Create(filepath.Join(workDir, "stderr.log"))
	if err != nil {
		stdoutLog.Close()
		return fmt.Errorf("%w: stderr.log: %v", ccerr.ErrSpawnFailed, err)
	}
	h.stdoutLog = stdoutLog
	h.stderrLog = stderrLog

	stdoutPipe, err := h.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: stdout pipe: %v", ccerr.ErrSpawnFailed, err)
	}
	stderrPipe, err := h.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("%w: stderr pipe: %v", ccerr.ErrSpawnFailed, err)
	}

	if spec.stdin != "" {
		stdinPipe, err := h.cmd.StdinPipe()
		if err != nil {
			return fmt.Errorf("%w: stdin pipe: %v", ccerr.ErrSpawnFailed, err)
		}
		h.stdin = stdinPipe
	}

	if err := h.cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ccerr.ErrSpawnFailed, err)
	}

	go copyPrefixed(h, stdoutPipe, h.stdoutLog, "OUT")
	go copyPrefixed(h, stderrPipe, h.stderrLog, "ERR")

	if h.stdin != nil {
		go func() {
			_, _ = io.WriteString(h.stdin, spec.stdin)
			_ = h.stdin.Close()
		}()
	}

	return nil
}

func (s *Supervisor) startTty(h *handle, spec spawnSpec, workDir string) error {
	stdoutLog, err := os.Create(filepath.Join(workDir, "stdout.log"))
	if err != nil {
		return fmt.Errorf("%w: stdout.log: %v", ccerr.ErrSpawnFailed, err)
	}
	h.stdoutLog = stdoutLog

	ptmx, err := pty.Start(h.cmd)
	if err != nil {
		return fmt.Errorf("%w: pty: %v", ccerr.ErrSpawnFailed, err)
	}
	h.ptmx = ptmx

	go copyPrefixed(h, ptmx, h.stdoutLog, "TTY")

	if spec.stdin != "" {
		go func() {
			_, _ = io.WriteString(ptmx, spec.stdin)
		}()
	}

	return nil
}

// copyPrefixed tees r into both dst and the process-wide merged log with
// a per-line stream prefix, per spec.md §4.6. Completed stdout (or tty)
// lines are also handed to any listeners registered via OnLine — the side
// channel the Session Association search taps into; stderr lines are not.
func copyPrefixed(h *handle, r io.Reader, dst *os.File, prefix string) {
	buf := make([]byte, 32*1024)
	lineStart := true
	var lineBuf []byte
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			dst.Write(chunk)

			h.mu.Lock()
			for _, b := range chunk {
				if lineStart {
					h.processLog.WriteString("[" + prefix + "] ")
					lineStart = false
				}
				h.processLog.Write([]byte{b})
				if b == '\n' {
					lineStart = true
					if prefix != "ERR" {
						h.notifyLineLocked(string(lineBuf))
					}
					lineBuf = lineBuf[:0]
				} else {
					lineBuf = append(lineBuf, b)
				}
			}
			h.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

// notifyLineLocked invokes every registered line listener with one
// completed stdout line. Must be called with h.mu held.
func (h *handle) notifyLineLocked(line string) {
	for _, fn := range h.lineListeners {
		if fn != nil {
			fn(line)
		}
	}
}

// OnLine registers fn to be called with every completed stdout line for
// process id, and returns a function that unregisters it. Used by the
// Session Association search to tap the side channel without the
// supervisor knowing anything about session_meta parsing.
func (s *Supervisor) OnLine(id string, fn func(string)) func() {
	s.mu.Lock()
	h, ok := s.handles[id]
	s.mu.Unlock()
	if !ok {
		return func() {}
	}

	h.mu.Lock()
	idx := h.nextListener
	h.nextListener++
	h.lineListeners[idx] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.lineListeners, idx)
		h.mu.Unlock()
	}
}

func (s *Supervisor) wait(h *handle) {
	err := h.cmd.Wait()

	h.mu.Lock()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			h.proc.ExitCode = exitErr.ExitCode()
		}
		if h.proc.Status == ccmodel.ProcessRunning {
			h.proc.Status = ccmodel.ProcessExited
		}
		h.proc.FailureReason = err.Error()
	} else {
		h.proc.Status = ccmodel.ProcessExited
	}
	h.mu.Unlock()

	close(h.waitDone)

	h.processLog.Close()
	if h.stdoutLog != nil {
		h.stdoutLog.Close()
	}
	if h.stderrLog != nil {
		h.stderrLog.Close()
	}
	if h.ptmx != nil {
		h.ptmx.Close()
	}
}

// Stop sends a terminate signal and escalates to a hard kill after the
// configured grace period. Safe to call on an already-exited process.
func (s *Supervisor) Stop(id string) error {
	s.mu.Lock()
	h, ok := s.handles[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("supervisor: unknown process %q", id)
	}

	proc := h.cmd.Process
	if proc == nil {
		return nil
	}
	_ = proc.Signal(syscall.SIGTERM)

	select {
	case <-h.waitDone:
	case <-time.After(s.gracePeriod):
		_ = proc.Kill()
		<-h.waitDone
		h.mu.Lock()
		h.proc.Status = ccmodel.ProcessKilled
		h.mu.Unlock()
	}
	return nil
}

// Done returns a channel closed once process id has exited, for callers
// (the Session Association search) that need to know when to start
// counting down their own post-exit grace period.
func (s *Supervisor) Done(id string) <-chan struct{} {
	s.mu.Lock()
	h, ok := s.handles[id]
	s.mu.Unlock()
	if !ok {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return h.waitDone
}

// Get returns the current snapshot of one process.
func (s *Supervisor) Get(id string) (ccmodel.Process, bool) {
	s.mu.Lock()
	h, ok := s.handles[id]
	s.mu.Unlock()
	if !ok {
		return ccmodel.Process{}, false
	}
	return h.snapshot(), true
}

// List returns a snapshot of every tracked process, oldest first.
func (s *Supervisor) List() []ccmodel.Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ccmodel.Process, 0, len(s.handles))
	for _, h := range s.handles {
		out = append(out, h.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// SetAssociatedSession records the session id a background association
// search found for this process (spec.md §4.7).
func (s *Supervisor) SetAssociatedSession(id, sessionID string) {
	s.mu.Lock()
	h, ok := s.handles[id]
	s.mu.Unlock()
	if !ok {
		return
	}
	h.mu.Lock()
	h.proc.AssociatedSessionID = sessionID
	h.mu.Unlock()
}

// Send writes message to a running pipe-mode child's stdin. Tty-mode
// children take input through Attach instead.
func (s *Supervisor) Send(id, message string) error {
	s.mu.Lock()
	h, ok := s.handles[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("supervisor: unknown process %q", id)
	}
	h.mu.Lock()
	stdin := h.stdin
	h.mu.Unlock()
	if stdin == nil {
		return fmt.Errorf("supervisor: process %q has no stdin pipe", id)
	}
	_, err := io.WriteString(stdin, message)
	return err
}

func (h *handle) snapshot() ccmodel.Process {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.proc
}
