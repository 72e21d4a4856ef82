package dto

import (
	"encoding/json"

	"github.com/noah-isme/sma-enrollment-wizard/internal/models"
)

// StartWizardRequest opens a wizard. EnrollmentID switches to update mode and
// State seeds the form with existing data.
type StartWizardRequest struct {
	EnrollmentID string              `json:"enrollmentId,omitempty"`
	State        *models.WizardState `json:"state,omitempty"`
}

// FieldEdit sets one field to a JSON value.
type FieldEdit struct {
	Path  string          `json:"path" validate:"required"`
	Value json.RawMessage `json:"value"`
}

// ApplyFieldsRequest carries ordered field edits.
type ApplyFieldsRequest struct {
	Changes []FieldEdit `json:"changes" validate:"required,min=1,dive"`
}

// JumpRequest targets a step.
type JumpRequest struct {
	Step *int `json:"step" validate:"required"`
}

// SelectScholarshipRequest picks a scholarship from the catalog.
type SelectScholarshipRequest struct {
	ScholarshipID string `json:"scholarshipId" validate:"required"`
}
