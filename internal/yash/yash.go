// Package yash contains constructs shared across the yash packages:
// constants, the hidden re-exec marker, and nothing else. Keeping this at
// the top of the internal/yash tree avoids an import cycle between cli and
// launch, both of which need to recognize the marker.
package yash

const (
	// ReexecPipeline is the hidden final argv token a process re-exec's
	// itself with to run the pipeline supervisor loop instead of the
	// interactive prompt loop. Never typed by a user; only ever passed by
	// the shell to a copy of itself via os.Executable().
	ReexecPipeline = "__yash_pipeline_supervisor__"

	// Prompt is the literal prompt the shell prints before each read.
	Prompt = "# "

	// NoSuchFileFmt is the format of the one-line diagnostic written for a
	// missing input redirection target; %s is the filename.
	NoSuchFileFmt = "-yash: %s: No such file or directory\n"
)
