package shell

import (
	"bytes"
	"strings"
	"testing"

	"github.com/tjper/yash/internal/yash/config"
	"github.com/tjper/yash/internal/yash/job"
	"github.com/tjper/yash/internal/yash/lineeditor"
)

// newTestShell builds a Shell without touching the real controlling
// terminal (shell.New does a real setpgid and tries a tcsetpgrp, neither
// of which a test should do to its own process). Foreground jobs are
// intentionally not exercised here, since the foreground wait hands the
// terminal to the job.
func newTestShell(in string, out *bytes.Buffer) *Shell {
	return &Shell{
		cfg:    config.Config{Prompt: "# ", SelfExe: "/proc/self/exe"},
		table:  job.NewTable(),
		ttyFD:  -1,
		pgid:   -1,
		out:    out,
		editor: lineeditor.New(strings.NewReader(in), out, "# "),
		groups: Groups{},
	}
}

func TestRunEmptyLineIsIgnoredThenEOFExitsZero(t *testing.T) {
	var out bytes.Buffer
	s := newTestShell("\n\n", &out)

	if code := s.Run(); code != 0 {
		t.Fatalf("Run() = %d, want 0", code)
	}
}

func TestRunParseErrorPrintsLineAndContinues(t *testing.T) {
	var out bytes.Buffer
	s := newTestShell("| foo\n", &out)

	if code := s.Run(); code != 0 {
		t.Fatalf("Run() = %d, want 0", code)
	}
	if !strings.Contains(out.String(), "syntax error") {
		t.Fatalf("expected a syntax error line, got %q", out.String())
	}
}

func TestRunBackgroundJobListedByJobs(t *testing.T) {
	var out bytes.Buffer
	s := newTestShell("sleep 2 &\njobs\n", &out)

	if code := s.Run(); code != 0 {
		t.Fatalf("Run() = %d, want 0", code)
	}

	if !strings.Contains(out.String(), "Running") || !strings.Contains(out.String(), "sleep 2 &") {
		t.Fatalf("expected jobs to report the running background job, got %q", out.String())
	}
}

func TestRunLaunchFailureReportedAsDoneNotDirectError(t *testing.T) {
	var out bytes.Buffer
	s := newTestShell("no-such-command-xyz &\njobs\n", &out)

	if code := s.Run(); code != 0 {
		t.Fatalf("Run() = %d, want 0", code)
	}

	if strings.Contains(out.String(), "exec error") {
		t.Fatalf("launch failure must not be printed directly to the prompt loop, got %q", out.String())
	}
	if !strings.Contains(out.String(), "Done") {
		t.Fatalf("expected the failed launch to be reported as Done, got %q", out.String())
	}
}

func TestRunBuiltinBgNoStoppedJobIsSilent(t *testing.T) {
	var out bytes.Buffer
	s := newTestShell("bg\n", &out)

	if code := s.Run(); code != 0 {
		t.Fatalf("Run() = %d, want 0", code)
	}
	if strings.TrimSpace(strings.ReplaceAll(out.String(), "# ", "")) != "" {
		t.Fatalf("expected no output beyond prompts, got %q", out.String())
	}
}
