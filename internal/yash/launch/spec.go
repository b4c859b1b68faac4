package launch

import "github.com/tjper/yash/internal/yash/job"

// pipelineSpec is the JSON payload the shell passes to a re-exec'd pipeline
// supervisor across the command pipe (fd 3): the two processes either side
// of a pipe, plus whether the job runs in the foreground.
type pipelineSpec struct {
	First      job.Process `json:"first"`
	Second     job.Process `json:"second"`
	Background bool        `json:"background"`
}
