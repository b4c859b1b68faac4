// Package job defines the data yash's job-control engine operates on: a
// Process spec, a Job (one pgid, one or two Processes), and the ordered Job
// Table that owns every live Job. The status model is narrowed to the three
// states a job-control state machine actually needs: Running, Stopped, Done.
package job

import (
	"fmt"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a Job.
type Status int

const (
	// Running indicates the Job's process group is runnable or running.
	Running Status = iota
	// Stopped indicates the Job's process group has been suspended, e.g. by
	// SIGTSTP or SIGSTOP.
	Stopped
	// Done indicates every process in the Job's process group has exited or
	// been killed by an uncaught signal.
	Done
)

// String renders Status using the exact casing the rendered job lines
// require.
func (s Status) String() string {
	switch s {
	case Running:
		return "Running"
	case Stopped:
		return "Stopped"
	case Done:
		return "Done"
	default:
		return "Unknown"
	}
}

// Foreground is the job-number sentinel for the at-most-one foreground Job.
// Background job numbers are always >= 1.
const Foreground = 0

// Process is one invocable program: an argv and its optional per-process
// redirection targets. Created by the parser, owned by its Job.
type Process struct {
	// Argv is the argument vector; Argv[0] is the program name. Never empty
	// after a successful parse.
	Argv []string
	// InFile is the input-redirect filename, or "" if unset.
	InFile string
	// OutFile is the output-redirect filename, or "" if unset.
	OutFile string
	// ErrFile is the error-redirect filename, or "" if unset.
	ErrFile string
}

// HasRedirect reports whether this Process has any redirection at all.
func (p Process) HasRedirect() bool {
	return p.InFile != "" || p.OutFile != "" || p.ErrFile != ""
}

// New constructs a Job for first (and optionally second, for a pipeline),
// launched from the given command text. The Job is not yet inserted into a
// Table and has no pgid until the launcher assigns one.
func New(command string, background bool, first, second *Process) *Job {
	return &Job{
		logID:      uuid.New(),
		Command:    command,
		Background: background,
		Status:     Running,
		First:      first,
		Second:     second,
	}
}

// Job is one unit of user work: one process group, one or two Processes.
type Job struct {
	// logID correlates log lines and, when resource limits are enabled, the
	// cgroup directory for this Job's pgid. Never rendered
	// as part of the user-visible job-control protocol.
	logID uuid.UUID

	// PGID is the process-group id the launcher assigned this Job. Zero
	// until the launcher returns.
	PGID int
	// Command is the original command text as the user typed it, mutated
	// only by fg/bg to add or strip a trailing " &".
	Command string
	// Number is the background job number. A Job launched in the foreground
	// has Foreground until it is stopped and demoted; a Job brought to the
	// foreground by fg keeps the number it already had.
	Number int
	// Background is true for every Job except the at-most-one foreground
	// Job.
	Background bool
	// Status is the Job's current lifecycle state.
	Status Status
	// First is the Job's first (and, for a non-pipeline Job, only) Process.
	First *Process
	// Second is present iff this Job is a two-process pipeline.
	Second *Process
}

// LogID returns the Job's log-correlation identifier.
func (j Job) LogID() uuid.UUID { return j.logID }

// IsPipeline reports whether this Job is a two-process pipeline.
func (j Job) IsPipeline() bool { return j.Second != nil }

// String renders the Job for logging, never for the user-facing protocol.
func (j Job) String() string {
	return fmt.Sprintf("job{id=%s pgid=%d number=%d status=%s cmd=%q}", j.logID, j.PGID, j.Number, j.Status, j.Command)
}
