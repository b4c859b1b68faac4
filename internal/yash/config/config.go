// Package config holds the small value built once in cli.Run and threaded
// through the Shell constructor, replacing package-level global state.
package config

// Config is yash's process-wide configuration.
type Config struct {
	// Prompt is the literal string printed before each read.
	Prompt string
	// SelfExe is the path the shell re-execs itself as to run the pipeline
	// supervisor.
	SelfExe string

	// Resource holds the optional resource-limited launch settings. Enabled
	// is false unless at least one limit flag was set.
	Resource ResourceLimits
}

// ResourceLimits is the optional per-job cgroup ceiling configuration.
type ResourceLimits struct {
	Enabled      bool
	CgroupMount  string
	MemoryBytes  uint64
	CPUCores     float64
	DiskReadBps  uint64
	DiskWriteBps uint64
}
