package resource

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/tjper/yash/internal/errors"
)

// Group is the cgroup2 directory one Job's pgid is placed in while resource
// limits are enabled.
type Group struct {
	id      uuid.UUID
	service *Service
	path    string

	Memory       uint64
	Cpus         float32
	DiskWriteBps uint64
	DiskReadBps  uint64

	mu       sync.Mutex
	placed   bool
	released bool
}

// GroupOption mutates a Group at creation time.
type GroupOption func(*Group)

// WithMemory sets the "memory.high" ceiling, in bytes.
func WithMemory(limit uint64) GroupOption { return func(g *Group) { g.Memory = limit } }

// WithCpus sets the "cpu.max" ceiling, in cores.
func WithCpus(limit float32) GroupOption { return func(g *Group) { g.Cpus = limit } }

// WithDiskWriteBps sets the "io.max" wbps ceiling applied to every disk
// block device.
func WithDiskWriteBps(limit uint64) GroupOption {
	return func(g *Group) { g.DiskWriteBps = limit }
}

// WithDiskReadBps sets the "io.max" rbps ceiling applied to every disk
// block device.
func WithDiskReadBps(limit uint64) GroupOption {
	return func(g *Group) { g.DiskReadBps = limit }
}

func (g *Group) create() error {
	if err := os.Mkdir(g.path, dirMode); err != nil {
		return fmt.Errorf("create resource group: %w", err)
	}

	var set []controller
	if g.Memory > 0 {
		set = append(set, newMemoryController(*g, g.Memory))
	}
	if g.Cpus > 0 {
		set = append(set, newCPUController(*g, g.Cpus))
	}
	if g.DiskWriteBps > 0 {
		set = append(set, newDiskWriteBpsController(*g, g.DiskWriteBps))
	}
	if g.DiskReadBps > 0 {
		set = append(set, newDiskReadBpsController(*g, g.DiskReadBps))
	}

	for _, c := range set {
		if err := c.enable(); err != nil {
			return fmt.Errorf("enable controller: %w", err)
		}
		if err := c.apply(); err != nil {
			return fmt.Errorf("apply controller: %w", err)
		}
	}
	return nil
}

// Place adds pgid to the Group, moving it here if it already belongs to
// another cgroup.
func (g *Group) Place(pgid int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	leaf := filepath.Join(g.path, uuid.New().String())
	if err := os.Mkdir(leaf, dirMode); err != nil {
		return fmt.Errorf("create resource group leaf: %w", err)
	}

	file := filepath.Join(leaf, cgroupProcs)
	if err := os.WriteFile(file, []byte(strconv.Itoa(pgid)), fileMode); err != nil {
		return fmt.Errorf("place pgid in resource group: %w", err)
	}

	g.placed = true
	return nil
}

// Release tears down the Group, moving any remaining pids to the root
// cgroup first. Idempotent: safe to call on a Group that was never Placed,
// or more than once, since a Job whose launch failed before a pgid existed
// still reaches the prune_done path.
func (g *Group) Release() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return nil
	}
	g.released = true
	return g.remove()
}

func (g *Group) remove() error {
	pids, err := g.readPids()
	if err != nil {
		return err
	}
	if err := g.service.placeInRootCgroup(pids); err != nil {
		return err
	}
	if err := g.removeLeaves(); err != nil {
		return err
	}
	if err := unix.Rmdir(g.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove resource group: %w", err)
	}
	return nil
}

func (g *Group) readPids() ([]int, error) {
	var pids []int
	if err := filepath.WalkDir(g.path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.Type().IsRegular() || d.Name() != cgroupProcs {
			return nil
		}
		leafPids, err := readLeafPids(p)
		if err != nil {
			logger.Errorf("reading leaf pids; path: %v, error: %v", p, err)
			return nil
		}
		pids = append(pids, leafPids...)
		return nil
	}); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("walk resource group leaves: %w", err)
	}
	return pids, nil
}

func (g *Group) removeLeaves() error {
	var leaves []string
	if err := filepath.WalkDir(g.path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.Type().IsRegular() || d.Name() != cgroupProcs {
			return nil
		}
		leaves = append(leaves, filepath.Dir(p))
		return nil
	}); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("walk resource group leaves: %w", err)
	}

	for _, leaf := range leaves {
		if err := unix.Rmdir(leaf); err != nil {
			return fmt.Errorf("rm resource group leaf %s: %w", leaf, err)
		}
	}
	return nil
}

func readLeafPids(path string) ([]int, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err)
	}
	defer fd.Close()

	var pids []int
	scanner := bufio.NewScanner(fd)
	for scanner.Scan() {
		pid, err := strconv.Atoi(scanner.Text())
		if err != nil {
			return nil, fmt.Errorf("scan leaf cgroup.procs pids: %w", err)
		}
		pids = append(pids, pid)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err)
	}
	return pids, nil
}
