package supervisor

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// detachByte is the magic byte (Ctrl-]) that ends an Attach session
// without killing the child; it is matched in the input stream and
// consumed, never forwarded to the pty.
const detachByte = 0x1d

// Attach proxies the real terminal (in) bidirectionally with a tty-mode
// process's pty until the user presses the detach hotkey or the child
// exits. The terminal's raw-mode state is pushed on entry and restored
// on exit; each Attach call owns its own saved state rather than a
// package-level singleton, so nested or sequential attaches never
// clobber one another's restore point.
func (s *Supervisor) Attach(id string, in *os.File, out io.Writer) error {
	s.mu.Lock()
	h, ok := s.handles[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("supervisor: unknown process %q", id)
	}

	h.attachMu.Lock()
	if h.attached {
		h.attachMu.Unlock()
		return fmt.Errorf("supervisor: process %q already has an attached viewer", id)
	}
	h.attached = true
	h.attachMu.Unlock()
	defer func() {
		h.attachMu.Lock()
		h.attached = false
		h.attachMu.Unlock()
	}()

	if h.ptmx == nil {
		return fmt.Errorf("supervisor: process %q is not in tty mode", id)
	}

	fd := int(in.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("supervisor: raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		io.Copy(out, h.ptmx)
	}()

	buf := make([]byte, 1)
	for {
		n, err := in.Read(buf)
		if n > 0 && buf[0] == detachByte {
			return nil
		}
		if n > 0 {
			if _, werr := h.ptmx.Write(buf[:n]); werr != nil {
				return nil
			}
		}
		if err != nil {
			return nil
		}
		select {
		case <-readerDone:
			return nil
		default:
		}
	}
}
