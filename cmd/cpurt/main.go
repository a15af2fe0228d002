// Command cpurt lowers XLA CPU modules to calls into the CPU runtime.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/cpurt/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
