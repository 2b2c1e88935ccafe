package main

import (
	"fmt"
	"os"

	"github.com/taxaflow/taxaflow/internal/cmd"
	"github.com/taxaflow/taxaflow/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(errors.ExitCode(err))
	}
}
