// Package shell implements the Prompt Loop: the glue that
// drains, reads a line, dispatches a built-in or parses and launches a new
// job, waits synchronously for a foreground job, prints completion
// notices, and prunes. State is threaded through a single constructed
// value rather than package-level globals.
package shell

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/tjper/yash/internal/log"
	"github.com/tjper/yash/internal/yash/builtin"
	"github.com/tjper/yash/internal/yash/config"
	"github.com/tjper/yash/internal/yash/job"
	"github.com/tjper/yash/internal/yash/launch"
	"github.com/tjper/yash/internal/yash/lineeditor"
	"github.com/tjper/yash/internal/yash/parse"
	"github.com/tjper/yash/internal/yash/resource"
	"github.com/tjper/yash/internal/yash/term"
	"github.com/tjper/yash/internal/yash/token"
)

var logger = log.New(os.Stderr, "shell")

// Groups tracks the optional resource.Group assigned to a Job's pgid, by
// pgid, so it can be released exactly when the Job is pruned. Kept at the
// Shell level rather than on job.Job itself since resource limiting is an
// ambient concern the core job-control model has no field for.
type Groups map[int]*resource.Group

// New constructs a Shell. ttyFD is the controlling terminal descriptor
// (normally os.Stdin's fd); resourceSvc is nil unless a resource-limit
// flag enabled it.
func New(cfg config.Config, ttyFD int, resourceSvc *resource.Service) (*Shell, error) {
	pgid := os.Getpid()
	if err := unix.Setpgid(0, pgid); err != nil {
		return nil, fmt.Errorf("%w: setpgid at startup: %s", term.ErrTerminal, err)
	}
	// Best effort: only the setpgid above is fatal at startup.
	_ = term.SetForeground(ttyFD, pgid)
	term.IgnoreShellSignals()

	return &Shell{
		cfg:         cfg,
		table:       job.NewTable(),
		ttyFD:       ttyFD,
		pgid:        pgid,
		out:         os.Stdout,
		editor:      lineeditor.New(os.Stdin, os.Stdout, cfg.Prompt),
		resourceSvc: resourceSvc,
		groups:      Groups{},
	}, nil
}

// Shell is the prompt loop's owned state: the job table, the shell's own
// pgid, and its collaborators.
type Shell struct {
	cfg         config.Config
	table       *job.Table
	ttyFD       int
	pgid        int
	out         io.Writer
	editor      *lineeditor.Editor
	resourceSvc *resource.Service
	groups      Groups
}

// Run executes the prompt loop until end-of-input. It always returns 0;
// the only non-zero exit path is a startup failure, handled by the caller
// before Run is ever invoked.
func (s *Shell) Run() int {
	for {
		term.Drain(s.table)
		s.printDoneNotices()

		line, ok := s.editor.ReadLine()
		if !ok {
			if s.resourceSvc != nil {
				if err := s.resourceSvc.Cleanup(); err != nil {
					logger.Warnf("resource service cleanup: %s", err)
				}
			}
			return 0
		}

		tokens := token.Tokenize(line)
		if len(tokens) == 0 {
			continue
		}

		if name, ok := builtin.Lookup(line); ok {
			s.dispatchBuiltin(name)
			continue
		}

		j, err := parse.Parse(line, tokens)
		if err != nil {
			fmt.Fprintln(s.out, err)
			continue
		}

		s.launch(j)
	}
}

func (s *Shell) dispatchBuiltin(name string) {
	switch name {
	case "jobs":
		builtin.Jobs(s.out, s.table)
	case "bg":
		builtin.Bg(s.out, s.table)
	case "fg":
		builtin.Fg(s.out, s.table, s.ttyFD, s.pgid)
	}
}

// launch runs the launcher, inserts the Job into the table on success,
// places it under a resource.Group when resource limiting is enabled, and
// blocks in the foreground wait if the job is not backgrounded. A launch
// failure (bad redirect target, unresolvable exec, fork error) never
// propagates to the user directly here: redirect.Apply has already written
// the one-line diagnostic to the child's stderr fd for a redirect error,
// and every launch failure instead enters the table as an already-Done
// job, so it is picked up and reported (if background) or silently pruned
// (if foreground) by the same drain/notify/prune path as a real job.
func (s *Shell) launch(j *job.Job) {
	if err := launch.Launch(j, s.cfg.SelfExe); err != nil {
		logger.Warnf("launch failed; job: %s, error: %s", j, err)
		j.Status = job.Done
		s.table.Add(j)
		return
	}

	s.table.Add(j)
	s.place(j)

	if !j.Background {
		if err := term.WaitForeground(s.ttyFD, s.table, j, s.pgid); err != nil {
			logger.Errorf("foreground wait; job: %s, error: %s", j, err)
		}
	}
}

// place assigns j's pgid to a fresh resource.Group when resource limiting
// is enabled.
func (s *Shell) place(j *job.Job) {
	if s.resourceSvc == nil {
		return
	}

	group, err := s.resourceSvc.CreateGroup(j.LogID(), s.groupOptions()...)
	if err != nil {
		logger.Warnf("create resource group; job: %s, error: %s", j, err)
		return
	}
	if err := group.Place(j.PGID); err != nil {
		logger.Warnf("place job in resource group; job: %s, error: %s", j, err)
		return
	}
	s.groups[j.PGID] = group
}

func (s *Shell) groupOptions() []resource.GroupOption {
	var opts []resource.GroupOption
	r := s.cfg.Resource
	if r.MemoryBytes > 0 {
		opts = append(opts, resource.WithMemory(r.MemoryBytes))
	}
	if r.CPUCores > 0 {
		opts = append(opts, resource.WithCpus(float32(r.CPUCores)))
	}
	if r.DiskReadBps > 0 {
		opts = append(opts, resource.WithDiskReadBps(r.DiskReadBps))
	}
	if r.DiskWriteBps > 0 {
		opts = append(opts, resource.WithDiskWriteBps(r.DiskWriteBps))
	}
	return opts
}

// printDoneNotices reports and prunes every Done background job, then
// releases any resource.Group that was tracking it: Group.Release() is
// called from the same prune pass that removes a Done job.
func (s *Shell) printDoneNotices() {
	mostRecent := s.table.MostRecentBackgroundNumber()
	for _, j := range s.table.PruneDone() {
		if j.Background {
			fmt.Fprintln(s.out, builtin.Render(j, mostRecent))
		}
		s.release(j)
	}
}

func (s *Shell) release(j *job.Job) {
	group, ok := s.groups[j.PGID]
	if !ok {
		return
	}
	delete(s.groups, j.PGID)
	if err := group.Release(); err != nil {
		logger.Warnf("release resource group; job: %s, error: %s", j, err)
	}
}
