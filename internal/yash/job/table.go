package job

import "golang.org/x/sys/unix"

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{}
}

// Table is the ordered collection of live Jobs, keyed by pgid. Order is
// insertion order. Table exclusively owns its Jobs; a
// Job's Processes and command string are in turn exclusively owned by the
// Job. No cross-references survive a mutation.
type Table struct {
	jobs []*Job
}

// Add appends job at the tail of the table. If job is a background job with
// no Number yet assigned, a fresh, monotonically increasing number is
// assigned.
func (t *Table) Add(j *Job) {
	if j.Background && j.Number == Foreground {
		j.Number = t.MostRecentBackgroundNumber() + 1
	}
	t.jobs = append(t.jobs, j)
}

// Jobs returns a snapshot of the table in insertion order. The caller must
// not mutate the slice's backing Jobs' table-owned fields (PGID, Number)
// directly.
func (t *Table) Jobs() []*Job {
	out := make([]*Job, len(t.jobs))
	copy(out, t.jobs)
	return out
}

// FindByPGID returns the Job with the given pgid, or nil.
func (t *Table) FindByPGID(pgid int) *Job {
	for _, j := range t.jobs {
		if j.PGID == pgid {
			return j
		}
	}
	return nil
}

// MostRecentBackgroundNumber returns the max job number over background
// jobs, or 0 if there are none.
func (t *Table) MostRecentBackgroundNumber() int {
	var max int
	for _, j := range t.jobs {
		if j.Background && j.Number > max {
			max = j.Number
		}
	}
	return max
}

// NextJobToFG returns the most recently inserted non-Done Job, or nil.
func (t *Table) NextJobToFG() *Job {
	for i := len(t.jobs) - 1; i >= 0; i-- {
		if t.jobs[i].Status != Done {
			return t.jobs[i]
		}
	}
	return nil
}

// NextJobToBG returns the most recently inserted Stopped background Job, or
// nil if there is no stopped job.
func (t *Table) NextJobToBG() *Job {
	for i := len(t.jobs) - 1; i >= 0; i-- {
		if t.jobs[i].Background && t.jobs[i].Status == Stopped {
			return t.jobs[i]
		}
	}
	return nil
}

// RemoveByPGID unlinks the Job with the given pgid and returns it, or nil if
// none was found.
func (t *Table) RemoveByPGID(pgid int) *Job {
	for i, j := range t.jobs {
		if j.PGID == pgid {
			t.jobs = append(t.jobs[:i], t.jobs[i+1:]...)
			return j
		}
	}
	return nil
}

// PruneDone removes every Done Job from the table and returns them, in the
// order they were found, so the caller can report their completion before
// they are discarded.
func (t *Table) PruneDone() []*Job {
	var done []*Job
	var kept []*Job
	for _, j := range t.jobs {
		if j.Status == Done {
			done = append(done, j)
			continue
		}
		kept = append(kept, j)
	}
	t.jobs = kept
	return done
}

// Reconcile maps a (pid, wait status) pair from waitpid onto a Job state
// transition. It reports whether any progress occurred: false
// only when pid <= 0, the signal for "stop draining."
func (t *Table) Reconcile(pid int, ws unix.WaitStatus) bool {
	if pid <= 0 {
		return false
	}

	j := t.FindByPGID(pid)
	if j == nil {
		// A status change for a pid we're not tracking (e.g. a grandchild
		// that escaped its process group). Progress occurred, but there is
		// no table entry to update.
		return true
	}

	switch {
	case ws.Stopped():
		j.Status = Stopped
		sig := ws.StopSignal()
		if (sig == unix.SIGTSTP || sig == unix.SIGSTOP) && !j.Background {
			t.demoteToBackground(j)
		}
	default:
		// Exited or terminated by an uncaught signal: either way, done.
		j.Status = Done
	}

	return true
}

// demoteToBackground marks a stopped foreground Job as background,
// re-inserting it at the tail so it receives a fresh background job number.
func (t *Table) demoteToBackground(j *Job) {
	t.RemoveByPGID(j.PGID)
	j.Background = true
	j.Number = Foreground
	t.Add(j)
}
