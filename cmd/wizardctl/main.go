package main

import (
	"os"

	"github.com/noah-isme/sma-enrollment-wizard/cmd/wizardctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
