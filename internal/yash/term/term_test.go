package term

import (
	"os/exec"
	"testing"
	"time"

	"github.com/tjper/yash/internal/yash/job"
)

func TestDrainNoChildrenIsNoOp(t *testing.T) {
	table := job.NewTable()
	Drain(table) // must return promptly; nothing to reap.
}

func TestDrainReconcilesExitedChild(t *testing.T) {
	cmd := exec.Command("true")
	if err := cmd.Start(); err != nil {
		t.Skipf("cannot start test child: %v", err)
	}

	j := job.New("true &", true, &job.Process{Argv: []string{"true"}}, nil)
	j.PGID = cmd.Process.Pid
	table := job.NewTable()
	table.Add(j)

	// Give the child a moment to exit before draining; Drain is
	// non-blocking (WNOHANG) so it may observe "not yet exited" otherwise.
	deadline := time.Now().Add(2 * time.Second)
	for j.Status == job.Running && time.Now().Before(deadline) {
		Drain(table)
		time.Sleep(10 * time.Millisecond)
	}

	if j.Status != job.Done {
		t.Fatalf("expected job reconciled to Done, got %v", j.Status)
	}

	// cmd.Wait would now fail (already reaped by Drain); avoid a zombie by
	// not calling it, since Drain already consumed the child's exit status.
}
