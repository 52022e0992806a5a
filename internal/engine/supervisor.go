package engine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// ErrSpawnFailed marks an engine executable that is missing or not
// executable. Fatal for the run, surfaced on the event stream by the caller.
var ErrSpawnFailed = errors.New("spawn failed")

// Supervisor owns one running engine process: its combined output stream,
// its exit result and its termination.
type Supervisor struct {
	cmd    *exec.Cmd
	stdout *os.File

	done     chan struct{}
	exitCode int
	waitErr  error
}

// Start spawns the engine in dir with stdout and stderr combined into one
// live stream. The caller must drain Stdout (the monitor does) or the child
// may block on a full pipe.
func Start(bin string, args []string, dir string) (*Supervisor, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(bin, args...)
	cmd.Dir = dir
	cmd.Stdout = w
	cmd.Stderr = w
	// Own process group, so Terminate reaches any children the engine forks.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		r.Close()
		w.Close()
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}
	// The child holds its own copy of the write end; closing ours makes the
	// read end reach EOF when the process exits.
	w.Close()

	s := &Supervisor{
		cmd:    cmd,
		stdout: r,
		done:   make(chan struct{}),
	}
	go func() {
		s.waitErr = cmd.Wait()
		s.exitCode = cmd.ProcessState.ExitCode()
		close(s.done)
	}()
	return s, nil
}

// Stdout is the live combined output of the child process.
func (s *Supervisor) Stdout() io.Reader { return s.stdout }

// Done is closed when the process has exited.
func (s *Supervisor) Done() <-chan struct{} { return s.done }

// Result blocks until the process exits and returns its exit code. err is
// non-nil for a non-zero exit or an abnormal termination.
func (s *Supervisor) Result() (int, error) {
	<-s.done
	return s.exitCode, s.waitErr
}

// Exited reports whether the process has already terminated.
func (s *Supervisor) Exited() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Terminate requests a graceful stop and force-kills after the grace period.
// Signals go to the whole process group. Returns once the direct child is
// confirmed dead.
func (s *Supervisor) Terminate(grace time.Duration) {
	if s.Exited() {
		return
	}
	s.signalGroup(syscall.SIGTERM)
	select {
	case <-s.done:
		return
	case <-time.After(grace):
	}
	s.signalGroup(syscall.SIGKILL)
	<-s.done
}

func (s *Supervisor) signalGroup(sig syscall.Signal) {
	if err := syscall.Kill(-s.cmd.Process.Pid, sig); err != nil {
		_ = s.cmd.Process.Signal(sig)
	}
}
