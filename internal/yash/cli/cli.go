// Package cli defines the yash command line: flag parsing and dispatch
// between the interactive shell and the hidden pipeline-supervisor
// re-exec entrypoint (flag package, os.Args[last] subcommand dispatch,
// named exit codes).
package cli

import (
	"flag"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/tjper/yash/internal/log"
	"github.com/tjper/yash/internal/yash"
	"github.com/tjper/yash/internal/yash/config"
	"github.com/tjper/yash/internal/yash/launch"
	"github.com/tjper/yash/internal/yash/resource"
	"github.com/tjper/yash/internal/yash/shell"
)

var logger = log.New(os.Stderr, "cli")

var (
	memLimitFlag    = flag.Uint64("mem-limit", 0, "per-job memory.high limit, in bytes (0 disables)")
	cpuLimitFlag    = flag.Float64("cpu-limit", 0, "per-job cpu.max limit, in cores (0 disables)")
	diskReadFlag    = flag.Uint64("disk-read-bps", 0, "per-job io.max read limit, in bytes/sec (0 disables)")
	diskWriteFlag   = flag.Uint64("disk-write-bps", 0, "per-job io.max write limit, in bytes/sec (0 disables)")
	cgroupMountFlag = flag.String("cgroup-mount", "/sys/fs/cgroup", "cgroup2 mount point used for resource-limited launch")
)

// Exit codes. ecSuccess is the only one reachable from ordinary shell use.
const (
	ecSuccess = iota
	// ecSetpgid indicates the shell could not become its own process group
	// leader at startup.
	ecSetpgid
	// ecResourceService indicates the resource-limit service failed to set
	// up despite a limit flag being passed.
	ecResourceService
)

// Run is the yash CLI entrypoint.
func Run() int {
	flag.Parse()

	last := len(os.Args) - 1
	if last >= 0 && os.Args[last] == yash.ReexecPipeline {
		return launch.RunSupervisor()
	}

	selfExe, err := os.Executable()
	if err != nil {
		logger.Errorf("resolve self executable: %s", err)
		selfExe = os.Args[0]
	}

	cfg := config.Config{
		Prompt:   yash.Prompt,
		SelfExe:  selfExe,
		Resource: resourceLimits(),
	}

	var resourceSvc *resource.Service
	if cfg.Resource.Enabled {
		resourceSvc, err = resource.NewService(cfg.Resource.CgroupMount)
		if err != nil {
			logger.Errorf("resource service setup: %s", err)
			return ecResourceService
		}
	}

	sh, err := shell.New(cfg, unix.Stdin, resourceSvc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "yash: %s\n", err)
		return ecSetpgid
	}

	return sh.Run()
}

func resourceLimits() config.ResourceLimits {
	r := config.ResourceLimits{
		CgroupMount:  *cgroupMountFlag,
		MemoryBytes:  *memLimitFlag,
		CPUCores:     *cpuLimitFlag,
		DiskReadBps:  *diskReadFlag,
		DiskWriteBps: *diskWriteFlag,
	}
	r.Enabled = r.MemoryBytes > 0 || r.CPUCores > 0 || r.DiskReadBps > 0 || r.DiskWriteBps > 0
	return r
}
