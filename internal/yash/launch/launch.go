// Package launch starts a Job's process(es): a single process via direct
// fork+exec, or a pipeline via a self-re-exec supervisor (see
// supervisor.go) — Go cannot safely fork without exec in a multithreaded
// runtime, so the supervisor re-exec stands in for a second native fork.
package launch

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/tjper/yash/internal/yash/job"
	"github.com/tjper/yash/internal/yash/redirect"
)

var (
	// ErrFork wraps a failure to fork, set pgid, or create a pipe in a
	// child context.
	ErrFork = errors.New("fork error")
	// ErrExec wraps a failure to resolve or exec the target program.
	ErrExec = errors.New("exec error")
)

// childSignals are reset to default disposition for exactly the window
// around fork+exec. The
// shell ignores these permanently (term.IgnoreShellSignals); ignored
// disposition survives exec, so launched children would otherwise start
// with SIGINT/SIGTSTP ignored too. Bracketing the fork+exec call with a
// reset/restore pair achieves the same effect as the literal "child resets
// its own disposition" without requiring arbitrary Go code to run between
// fork and exec, which the runtime cannot do safely.
var childSignals = []os.Signal{syscall.SIGINT, syscall.SIGTSTP}

// Launch starts j's process(es), leaving j.PGID set to the pgid the shell
// should track: for a single-process job, the launched child's pid; for a
// pipeline, the re-exec'd supervisor's pid. selfExe is the shell's own
// executable path (os.Executable), needed only for pipelines.
func Launch(j *job.Job, selfExe string) error {
	if j.IsPipeline() {
		return launchPipeline(j, selfExe)
	}
	return launchSingle(j)
}

func launchSingle(j *job.Job) error {
	argv0, err := exec.LookPath(j.First.Argv[0])
	if err != nil {
		return fmt.Errorf("%w: %s: %s", ErrExec, j.First.Argv[0], err)
	}

	stdin, stdout, stderr, err := redirect.Apply(*j.First, unix.Stderr)
	if err != nil {
		return err
	}
	defer closeOpened(stdin, stdout, stderr)

	signal.Reset(childSignals...)
	defer signal.Ignore(childSignals...)

	pid, err := syscall.ForkExec(argv0, j.First.Argv, &syscall.ProcAttr{
		Env:   os.Environ(),
		Files: stdFiles(stdin, stdout, stderr),
		Sys:   &syscall.SysProcAttr{Setpgid: true, Pgid: 0},
	})
	if err != nil {
		return fmt.Errorf("%w: %s", ErrFork, err)
	}

	j.PGID = pid
	return nil
}

// stdFiles resolves Apply's results (a real fd, or redirect.Inherit) into
// the three-element Files slice syscall.ForkExec dup2s onto the child's
// fd 0, 1, 2.
func stdFiles(stdin, stdout, stderr int) []uintptr {
	return []uintptr{
		resolveFD(stdin, unix.Stdin),
		resolveFD(stdout, unix.Stdout),
		resolveFD(stderr, unix.Stderr),
	}
}

func resolveFD(fd, fallback int) uintptr {
	if fd == redirect.Inherit {
		return uintptr(fallback)
	}
	return uintptr(fd)
}

// closeOpened closes whichever of the three descriptors were actually
// opened by redirect.Apply (not Inherit). Once ForkExec has dup2'd them
// into the child, the parent's copies serve no purpose.
func closeOpened(fds ...int) {
	for _, fd := range fds {
		if fd != redirect.Inherit {
			_ = unix.Close(fd)
		}
	}
}
