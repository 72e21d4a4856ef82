package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-enrollment-wizard/internal/models"
	"github.com/noah-isme/sma-enrollment-wizard/internal/service"
)

// errInvalidState makes the command exit non-zero after printing every step.
var errInvalidState = errors.New("state has invalid steps")

func newValidateCommand() *cobra.Command {
	var (
		statePath string
		today     string
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run every step validator against a saved state",
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := loadState(statePath)
			if err != nil {
				return err
			}
			clock := time.Now
			if today != "" {
				day, err := time.Parse("2006-01-02", today)
				if err != nil {
					return fmt.Errorf("--today must be YYYY-MM-DD: %w", err)
				}
				clock = func() time.Time { return day }
			}
			validate, trans := service.NewWizardValidate()
			return printValidation(cmd, service.NewStepValidator(validate, trans, clock), state)
		},
	}
	cmd.Flags().StringVar(&statePath, "state", "", "path to a wizard state JSON file")
	cmd.Flags().StringVar(&today, "today", "", "reference date for age rules (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("state")
	return cmd
}

func printValidation(cmd *cobra.Command, v *service.StepValidator, state models.WizardState) error {
	out := cmd.OutOrStdout()
	ok := color.New(color.FgGreen, color.Bold)
	bad := color.New(color.FgRed, color.Bold)
	skip := color.New(color.FgYellow)

	failed := 0
	for step := models.StepStudent; step < models.StepReview; step++ {
		if step == models.StepGuardians && state.BasicInfo.IsSelfResponsible {
			skip.Fprintf(out, "%-10s skipped (self responsible)\n", step)
			continue
		}
		result := v.ValidateStep(step, state)
		if result.Valid {
			ok.Fprintf(out, "%-10s ok\n", step)
			continue
		}
		failed++
		bad.Fprintf(out, "%-10s invalid\n", step)
		if result.RootError != "" {
			fmt.Fprintf(out, "  %s\n", result.RootError)
		}
		for _, issue := range result.FieldIssues {
			fmt.Fprintf(out, "  %s: %s\n", issue.Field, issue.Message)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d", errInvalidState, failed)
	}
	return nil
}
