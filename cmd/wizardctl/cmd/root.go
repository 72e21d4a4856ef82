package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-enrollment-wizard/internal/models"
)

// NewRootCommand builds the wizardctl command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "wizardctl",
		Short:         "Offline tools for enrollment wizard states",
		Long:          color.CyanString("wizardctl") + " checks and converts saved enrollment wizard states without a running API.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newValidateCommand(), newAssembleCommand())
	return root
}

// Execute runs the root command and prints a failure in red.
func Execute() error {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "error:", err)
		return err
	}
	return nil
}

func loadState(path string) (models.WizardState, error) {
	state := models.NewWizardState()
	raw, err := os.ReadFile(path)
	if err != nil {
		return state, fmt.Errorf("read state: %w", err)
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return state, fmt.Errorf("parse state %s: %w", path, err)
	}
	return state, nil
}
