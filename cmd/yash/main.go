// Command yash is a minimal POSIX job-control interactive shell.
package main

import (
	"os"

	"github.com/tjper/yash/internal/yash/cli"
)

func main() {
	os.Exit(cli.Run())
}
