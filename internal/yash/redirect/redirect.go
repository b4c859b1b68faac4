// Package redirect resolves a job.Process's input/output/error redirection
// filenames into file descriptors.
//
// A real C shell performs this work inside the child, between fork and
// exec: open each target, dup2 it onto the matching standard descriptor,
// close the original. Go cannot safely run arbitrary code in that window —
// the runtime's other threads do not survive a bare fork — so Apply instead
// runs in the parent, immediately before the fork+exec call, and hands the
// resulting descriptors to the fork/exec machinery's native fd-remap
// support (syscall.ProcAttr.Files), which is safe to run post-fork because
// it's plain kernel dup2 work, not arbitrary Go. The observable behavior —
// exact open flags, exact file mode, "nuke whatever was already opened on
// failure" — is unchanged.
package redirect

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/tjper/yash/internal/yash"
	"github.com/tjper/yash/internal/yash/job"
)

// outputMode is the file permission required for created output/error
// files: rw-rw-r--.
const outputMode = 0664

// Inherit is the sentinel Apply returns for a stream with no redirect: the
// caller should pass its own corresponding standard descriptor through
// unchanged.
const Inherit = -1

// ErrRedirect is the sentinel every redirection failure wraps.
var ErrRedirect = errors.New("redirect error")

// Apply opens p's redirection targets in order — error, then input, then
// output — and returns the descriptors the launcher should use for the new
// process's stdin/stdout/stderr. Any entry without a redirect comes back as
// Inherit. On failure, every descriptor Apply itself opened is closed
// ("nuked") before returning, and ErrRedirect is returned; for a missing
// input file, a diagnostic is also written to stderrFD, which is normally
// the shell's own stderr.
func Apply(p job.Process, stderrFD int) (stdin, stdout, stderr int, err error) {
	stdin, stdout, stderr = Inherit, Inherit, Inherit

	nuke := func() {
		for _, fd := range []int{stdin, stdout, stderr} {
			if fd != Inherit {
				_ = unix.Close(fd)
			}
		}
	}

	if p.ErrFile != "" {
		if stderr, err = open(p.ErrFile, outFlags(), stderrFD); err != nil {
			nuke()
			return Inherit, Inherit, Inherit, err
		}
	}
	if p.InFile != "" {
		if stdin, err = open(p.InFile, unix.O_RDONLY, stderrFD); err != nil {
			nuke()
			return Inherit, Inherit, Inherit, err
		}
	}
	if p.OutFile != "" {
		if stdout, err = open(p.OutFile, outFlags(), stderrFD); err != nil {
			nuke()
			return Inherit, Inherit, Inherit, err
		}
	}
	return stdin, stdout, stderr, nil
}

func outFlags() int {
	return unix.O_CREAT | unix.O_WRONLY | unix.O_TRUNC
}

// open opens path with flags (mode outputMode is only meaningful for
// O_CREAT). On failure for a read-only open, it writes the diagnostic for a
// missing input file to stderrFD.
func open(path string, flags int, stderrFD int) (int, error) {
	fd, err := unix.Open(path, flags, outputMode)
	if err != nil {
		if flags == unix.O_RDONLY {
			msg := fmt.Sprintf(yash.NoSuchFileFmt, path)
			_, _ = unix.Write(stderrFD, []byte(msg))
		}
		return Inherit, fmt.Errorf("%w: open %s: %s", ErrRedirect, path, err)
	}
	return fd, nil
}
