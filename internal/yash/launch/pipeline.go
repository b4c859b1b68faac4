package launch

import (
	"encoding/json"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/tjper/yash/internal/yash"
	"github.com/tjper/yash/internal/yash/job"
)

// launchPipeline is the shell-side half of launching a two-process job:
// it re-execs the shell's own binary with the hidden yash.ReexecPipeline
// marker, hands the re-exec'd process the job's own stdin/stdout/stderr
// plus one end of a fresh pipe (fd 3) for the job spec, and writes the
// marshaled pipelineSpec down that pipe. The re-exec'd process becomes the
// pipeline supervisor (RunSupervisor, in supervisor.go); its pid is the
// pgid the shell tracks for the whole pipeline.
//
// This stands in for a second native fork: Go's runtime threads do not
// survive a bare fork(), so the only safe way to create a second
// process-group leader that itself forks further children is to launch a
// fresh process via fork+exec and let it do that forking after its own
// runtime has started cleanly.
func launchPipeline(j *job.Job, selfExe string) error {
	cmdRead, cmdWrite, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("%w: command pipe: %s", ErrFork, err)
	}

	pid, err := syscall.ForkExec(selfExe, []string{selfExe, yash.ReexecPipeline}, &syscall.ProcAttr{
		Env:   os.Environ(),
		Files: []uintptr{unix.Stdin, unix.Stdout, unix.Stderr, cmdRead.Fd()},
		Sys:   &syscall.SysProcAttr{Setpgid: true, Pgid: 0},
	})
	cmdRead.Close()
	if err != nil {
		cmdWrite.Close()
		return fmt.Errorf("%w: start pipeline supervisor: %s", ErrFork, err)
	}

	spec := pipelineSpec{First: *j.First, Second: *j.Second, Background: j.Background}
	b, err := json.Marshal(spec)
	if err != nil {
		cmdWrite.Close()
		return fmt.Errorf("%w: marshal pipeline spec: %s", ErrFork, err)
	}

	// The supervisor only starts reading once its runtime is up, so write
	// in the background rather than risk the shell blocking on a full pipe.
	go func() {
		defer cmdWrite.Close()
		_, _ = cmdWrite.Write(b)
	}()

	j.PGID = pid
	return nil
}
