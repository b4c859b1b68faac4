// Package resource implements yash's optional cgroups v2 resource-limited
// launch: one Group per Job, placed around the Job's pgid once the
// launcher assigns one, released when the Job is pruned from the table.
package resource

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/tjper/yash/internal/log"
)

var logger = log.New(os.Stderr, "resource")

const (
	fileMode    = 0644
	dirMode     = 0755
	yashBase    = "yash"
	cgroupProcs = "cgroup.procs"
)

// NewService mounts (or reuses) a cgroup2 hierarchy rooted at mountPath and
// creates a yash base directory beneath it. Only called when at least one
// resource-limit flag is set; a nil *Service skips
// resource-limited launch entirely.
func NewService(mountPath string) (*Service, error) {
	s := &Service{mountPath: mountPath, path: path.Join(mountPath, yashBase)}

	if err := s.mount(); err != nil {
		return nil, err
	}
	if err := s.enableControllers([]string{cpu, memory, io}); err != nil {
		return nil, err
	}

	return s, nil
}

// Service facilitates cgroup2 interactions for resource-limited launch.
type Service struct {
	mountPath string
	path      string
}

// CreateGroup creates a fresh Group for one Job, identified by the Job's
// logID so every cgroup directory traces back to a log line.
func (s *Service) CreateGroup(id uuid.UUID, options ...GroupOption) (*Group, error) {
	g := &Group{
		id:      id,
		service: s,
		path:    path.Join(s.path, id.String()),
	}
	for _, option := range options {
		option(g)
	}

	if err := g.create(); err != nil {
		return nil, err
	}
	return g, nil
}

// Cleanup tears down every Group still present and unmounts the cgroup2
// filesystem. Called once, from Shell.Run when input ends.
func (s *Service) Cleanup() error {
	if err := s.cleanup(); err != nil {
		return err
	}
	return s.unmount()
}

func (s *Service) mount() error {
	if err := os.MkdirAll(s.mountPath, dirMode); err != nil {
		return fmt.Errorf("mount resource service %s: %w", s.mountPath, err)
	}

	entries, err := os.ReadDir(s.mountPath)
	if err != nil || len(entries) == 0 {
		if err := unix.Mount("none", s.mountPath, "cgroup2", 0, ""); err != nil {
			return fmt.Errorf("mount cgroup2 %s: %w", s.mountPath, err)
		}
	}

	if err := os.MkdirAll(s.path, dirMode); err != nil {
		return fmt.Errorf("create yash base cgroup: %w", err)
	}
	return nil
}

func (s *Service) unmount() error {
	if err := unix.Unmount(s.mountPath, 0); err != nil {
		return fmt.Errorf("unmount cgroup2: %w", err)
	}
	return nil
}

func (s *Service) enableControllers(controllers []string) error {
	if err := enableControllers(s.mountPath, controllers); err != nil {
		return err
	}
	return enableControllers(s.path, controllers)
}

func enableControllers(dir string, controllers []string) error {
	fd, err := os.OpenFile(path.Join(dir, cgroupSubtreeControl), os.O_WRONLY, fileMode)
	if err != nil {
		return fmt.Errorf("open %s subtree_control: %w", dir, err)
	}
	defer fd.Close()

	for _, c := range controllers {
		if _, err := fd.WriteString(fmt.Sprintf("+%s", c)); err != nil {
			return fmt.Errorf("enable %s %s controller: %w", dir, c, err)
		}
	}
	return nil
}

func (s *Service) placeInRootCgroup(pids []int) error {
	fd, err := os.OpenFile(path.Join(s.mountPath, cgroupProcs), os.O_WRONLY, fileMode)
	if err != nil {
		return fmt.Errorf("open root cgroup: %w", err)
	}
	defer fd.Close()

	for _, pid := range pids {
		if _, err := fd.WriteString(strconv.Itoa(pid)); err != nil {
			return fmt.Errorf("write to root cgroup: %w", err)
		}
	}
	return nil
}

// cleanup walks every Group directory still on disk, moves their pids back
// to the root cgroup, and removes each Group directory in turn.
func (s *Service) cleanup() error {
	var ids []uuid.UUID

	if err := filepath.WalkDir(s.path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Errorf("cleanup walking dir: %s", err)
			return nil
		}
		if !d.Type().IsRegular() || d.Name() != cgroupProcs {
			return nil
		}

		parts := strings.Split(strings.TrimPrefix(p, s.path), string(filepath.Separator))
		if len(parts) != 3 {
			return nil
		}
		id, err := uuid.Parse(parts[1])
		if err != nil {
			return nil
		}
		ids = append(ids, id)
		return nil
	}); err != nil {
		return fmt.Errorf("cleanup resource groups: %w", err)
	}

	for _, id := range ids {
		g := &Group{id: id, service: s, path: path.Join(s.path, id.String())}
		if err := g.remove(); err != nil {
			return err
		}
	}

	if err := unix.Rmdir(s.path); err != nil {
		return fmt.Errorf("rm yash base cgroup: %w", err)
	}
	return nil
}

const (
	cpu                  = "cpu"
	memory               = "memory"
	io                   = "io"
	memoryHigh           = "memory.high"
	cpuMax               = "cpu.max"
	ioMax                = "io.max"
	cgroupSubtreeControl = "cgroup.subtree_control"
)
