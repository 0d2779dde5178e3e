// Command stockpile queries and modifies a local inventory through the
// handle-based result engine.
package main

import (
	"os"

	"github.com/roach88/stockpile/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	cli.ReportError(os.Stderr, err)
	os.Exit(cli.GetExitCode(err))
}
