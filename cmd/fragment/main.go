package main

import (
	"errors"
	"fmt"
	"os"

	"fragmentone/internal/cli"
	"fragmentone/pkg/logger"
)

func main() {
	err := cli.NewRootCommand().Execute()
	logger.Log.Sync()

	// Commands report their own failures; cobra's argument errors are not.
	var exitErr *cli.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.ExitCommandError)
	}
	os.Exit(cli.GetExitCode(err))
}
