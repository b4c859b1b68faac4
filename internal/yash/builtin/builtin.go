// Package builtin implements yash's three built-in commands — fg, bg, and
// jobs — and their job-line rendering.
package builtin

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/tjper/yash/internal/yash/job"
	"github.com/tjper/yash/internal/yash/term"
)

// Lookup reports whether line (the raw, untokenized command string) names a
// built-in, matched against the raw command string rather than the token
// vector.
func Lookup(line string) (string, bool) {
	name := strings.TrimSpace(line)
	switch name {
	case "fg", "bg", "jobs":
		return name, true
	default:
		return "", false
	}
}

// marker is "+" for the most recently numbered background job, "-"
// otherwise.
func marker(number, mostRecent int) string {
	if number == mostRecent {
		return "+"
	}
	return "-"
}

// Render formats one job line in the table layout used both by the `jobs`
// listing and by the shell's own automatic Done-job notifications:
// `[<n>]<marker>\t<status>\t\t\t<command>`.
func Render(j *job.Job, mostRecent int) string {
	return fmt.Sprintf("[%d]%s\t%s\t\t\t%s", j.Number, marker(j.Number, mostRecent), j.Status, j.Command)
}

// PrintDoneNotices prunes every Done job from the table, reporting the
// ones that were background jobs. A foreground job's completion is never
// announced this way — it is simply dropped. Called by the jobs built-in;
// the prompt loop does the same pass once per iteration through its own
// Shell.printDoneNotices, which is safe since pruning is idempotent.
func PrintDoneNotices(w io.Writer, table *job.Table) {
	mostRecent := table.MostRecentBackgroundNumber()
	for _, j := range table.PruneDone() {
		if j.Background {
			fmt.Fprintln(w, Render(j, mostRecent))
		}
	}
}

// Jobs implements the `jobs` built-in: drain, report every
// Done background job (pruning it from the table), then report every
// Running or Stopped background job.
func Jobs(w io.Writer, table *job.Table) {
	term.Drain(table)

	PrintDoneNotices(w, table)

	mostRecent := table.MostRecentBackgroundNumber()
	for _, j := range table.Jobs() {
		if j.Background {
			fmt.Fprintln(w, Render(j, mostRecent))
		}
	}
}

// Bg implements the `bg` built-in: resume the most recently
// stopped background job, without granting it the terminal.
func Bg(w io.Writer, table *job.Table) {
	term.Drain(table)

	j := table.NextJobToBG()
	if j == nil {
		return
	}

	if !strings.HasSuffix(j.Command, " &") {
		j.Command += " &"
	}

	mostRecent := table.MostRecentBackgroundNumber()
	fmt.Fprintf(w, "[%d]%s\t%s\n", j.Number, marker(j.Number, mostRecent), j.Command)

	j.Status = job.Running
	_ = unix.Kill(-j.PGID, unix.SIGCONT)
}

// Fg implements the `fg` built-in: foreground the last
// non-Done job and block until it stops or exits.
func Fg(w io.Writer, table *job.Table, ttyFD, shellPGID int) {
	term.Drain(table)

	j := table.NextJobToFG()
	if j == nil {
		return
	}

	command := strings.TrimSuffix(j.Command, " &")
	fmt.Fprintln(w, command)

	j.Background = false
	j.Status = job.Running
	_ = unix.Kill(-j.PGID, unix.SIGCONT)

	_ = term.WaitForeground(ttyFD, table, j, shellPGID)
}
