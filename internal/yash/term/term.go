// Package term implements the shell's controlling-terminal handoff and the
// two waitpid-based reconciliation loops: a non-blocking
// drain, called at each prompt and before each built-in, and a blocking
// foreground wait, called after launching or resuming a foreground job.
package term

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/tjper/yash/internal/yash/job"
)

// ErrTerminal wraps every tcsetpgrp/tcgetpgrp failure.
var ErrTerminal = errors.New("terminal control error")

// shellSignals are the signals the shell process itself must never act on:
// SIGINT and SIGTSTP would kill or suspend the shell; SIGTTOU/SIGTTIN would
// block it when it isn't the foreground group.
var shellSignals = []os.Signal{syscall.SIGINT, syscall.SIGTSTP, syscall.SIGTTOU, syscall.SIGTTIN}

// IgnoreShellSignals installs the shell's permanent signal disposition. It
// must be called once, at startup, before any job is launched.
func IgnoreShellSignals() {
	signal.Ignore(shellSignals...)
}

// SetForeground grants the controlling terminal at ttyFD to pgid
// (tcsetpgrp).
func SetForeground(ttyFD, pgid int) error {
	if err := unix.IoctlSetPointerInt(ttyFD, unix.TIOCSPGRP, pgid); err != nil {
		return fmt.Errorf("%w: tcsetpgrp(%d): %s", ErrTerminal, pgid, err)
	}
	return nil
}

// Foreground returns the pgid currently owning the controlling terminal at
// ttyFD (tcgetpgrp).
func Foreground(ttyFD int) (int, error) {
	pgid, err := unix.IoctlGetInt(ttyFD, unix.TIOCGPGRP)
	if err != nil {
		return 0, fmt.Errorf("%w: tcgetpgrp: %s", ErrTerminal, err)
	}
	return pgid, nil
}

// Drain performs the non-blocking reconciliation pass: it
// repeatedly calls waitpid(-1, WNOHANG|WUNTRACED) and feeds each result to
// table.Reconcile until no further progress is reported.
func Drain(table *job.Table) {
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG|unix.WUNTRACED, nil)
		if err != nil || pid <= 0 {
			return
		}
		if !table.Reconcile(pid, ws) {
			return
		}
	}
}

// WaitForeground grants the controlling terminal at ttyFD to j's pgid, then
// blocks in waitpid(-1, WUNTRACED) reconciling every result against table
// until j leaves Running, then reclaims the terminal for shellPGID.
func WaitForeground(ttyFD int, table *job.Table, j *job.Job, shellPGID int) error {
	if err := SetForeground(ttyFD, j.PGID); err != nil {
		return err
	}
	defer func() {
		// Best effort: the shell must regain the terminal regardless of how
		// the job exited.
		_ = SetForeground(ttyFD, shellPGID)
	}()

	for j.Status == job.Running {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WUNTRACED, nil)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("%w: wait4: %s", ErrTerminal, err)
		}
		if !table.Reconcile(pid, ws) {
			break
		}
	}

	return nil
}
