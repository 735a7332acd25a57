package main

import (
	"errors"
	"fmt"
	"os"

	"sales-import/internal/app"
	"sales-import/internal/logging"
)

// main is the entry point for the sales-import application.
// It initializes and runs the AppRunner.
func main() {
	runner := app.NewAppRunner()

	// os.Args[1:] excludes the program name itself.
	err := runner.Run(os.Args[1:])
	if err != nil {
		// Determine if usage should be printed to stderr before logging.
		printUsage := errors.Is(err, app.ErrUsage) || errors.Is(err, app.ErrConfigNotFound) || errors.Is(err, app.ErrMissingInput)

		if printUsage {
			fmt.Fprintln(os.Stderr, "")
			runner.Usage(os.Stderr)
		}

		// Make sure the failure is visible even if the configured level
		// would normally suppress it.
		if logging.GetLevel() < logging.Error {
			logging.SetLevel(logging.Error)
		}
		logging.Logf(logging.Error, "Import run failed: %v", err)

		os.Exit(1)
	}

	logging.Logf(logging.Info, "Sales import completed successfully.")
}
