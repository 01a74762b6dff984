// Command idlink runs the contact identity reconciliation service.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/idlink/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil && !cli.Reported(err) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(cli.GetExitCode(err))
}
