package launch

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/tjper/yash/internal/yash/job"
	"github.com/tjper/yash/internal/yash/redirect"
	"github.com/tjper/yash/internal/yash/term"
)

// Exit codes a pipeline supervisor process reports, mirroring the
// teacher's reexec.CommandSuccess/CommandFailure values.
const (
	supervisorSuccess = 0
	supervisorFailure = 100
)

// RunSupervisor is the pipeline-supervisor entrypoint. It is
// invoked by a process that re-exec'd itself with the hidden
// yash.ReexecPipeline marker: fd 3 carries the JSON-encoded pipelineSpec,
// fd 0/1/2 are the original job's stdin/stdout/stderr (passed straight
// through from the shell by launchPipeline). It installs default
// SIGINT/SIGTSTP, makes itself its own process group leader, grants itself
// the controlling terminal if the job is foreground, forks the two
// grandchildren connected by a pipe, and blocks until both have
// terminated. It returns the process exit code the caller (cli.Run)
// should os.Exit with.
func RunSupervisor() int {
	cmdFD := os.NewFile(3, "/proc/self/fd/3")
	if cmdFD == nil {
		return supervisorFailure
	}
	defer cmdFD.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(cmdFD); err != nil {
		return supervisorFailure
	}
	var spec pipelineSpec
	if err := json.Unmarshal(buf.Bytes(), &spec); err != nil {
		return supervisorFailure
	}

	// Install default disposition for propagation to the grandchildren
	//: this process itself is about to become the pipeline's
	// process group leader, not a long-lived shell.
	signal.Reset(childSignals...)

	pgid := os.Getpid()
	if err := unix.Setpgid(0, pgid); err != nil {
		return supervisorFailure
	}
	if !spec.Background {
		// fd 0 is the original controlling terminal, inherited unchanged
		// from the shell by launchPipeline's ProcAttr.Files.
		_ = term.SetForeground(unix.Stdin, pgid)
	}

	r, w, err := os.Pipe()
	if err != nil {
		return supervisorFailure
	}

	producerPID, producerErr := forkGrandchild(&spec.First, pgid, unix.Stdin, int(w.Fd()), unix.Stderr)
	consumerPID, consumerErr := forkGrandchild(&spec.Second, pgid, int(r.Fd()), unix.Stdout, unix.Stderr)
	r.Close()
	w.Close()

	exitCode := supervisorSuccess
	if producerErr != nil {
		exitCode = supervisorFailure
	} else {
		waitPID(producerPID)
	}
	if consumerErr != nil {
		exitCode = supervisorFailure
	} else {
		exitCode = waitPID(consumerPID)
	}

	return exitCode
}

// forkGrandchild launches one side of the pipeline. stdin/stdout/stderr are
// the fallback descriptors to use when p carries no redirect for that
// stream — normally a pipe end for the side facing the other command, and
// the supervisor's own inherited descriptor otherwise. p's own redirects,
// when present, take precedence over the pipe.
func forkGrandchild(p *job.Process, pgid, stdin, stdout, stderr int) (int, error) {
	argv0, err := exec.LookPath(p.Argv[0])
	if err != nil {
		return 0, err
	}

	rIn, rOut, rErr, err := redirect.Apply(*p, stderr)
	if err != nil {
		return 0, err
	}
	defer closeOpened(rIn, rOut, rErr)

	files := []uintptr{
		resolveFD(rIn, stdin),
		resolveFD(rOut, stdout),
		resolveFD(rErr, stderr),
	}

	return syscall.ForkExec(argv0, p.Argv, &syscall.ProcAttr{
		Env:   os.Environ(),
		Files: files,
		Sys:   &syscall.SysProcAttr{Setpgid: true, Pgid: pgid},
	})
}

// waitPID blocks until pid terminates, discarding stop notifications by
// simply never asking for them: a SIGTSTP to the pipeline's group stops all
// members while the supervisor keeps waiting (an accepted limitation),
// which falls out for free by omitting WUNTRACED here.
func waitPID(pid int) int {
	var ws unix.WaitStatus
	for {
		_, err := unix.Wait4(pid, &ws, 0, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return supervisorFailure
		}
		break
	}

	switch {
	case ws.Exited():
		return ws.ExitStatus()
	case ws.Signaled():
		return 128 + int(ws.Signal())
	default:
		return supervisorFailure
	}
}
