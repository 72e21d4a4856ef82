package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-enrollment-wizard/internal/service"
)

func newAssembleCommand() *cobra.Command {
	var statePath string
	cmd := &cobra.Command{
		Use:   "assemble",
		Short: "Print the enrollment payload a saved state would submit",
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := loadState(statePath)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(service.AssembleEnrollment(state))
		},
	}
	cmd.Flags().StringVar(&statePath, "state", "", "path to a wizard state JSON file")
	_ = cmd.MarkFlagRequired("state")
	return cmd
}
