package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-enrollment-wizard/internal/dto"
	"github.com/noah-isme/sma-enrollment-wizard/internal/models"
	"github.com/noah-isme/sma-enrollment-wizard/internal/service"
	appErrors "github.com/noah-isme/sma-enrollment-wizard/pkg/errors"
	"github.com/noah-isme/sma-enrollment-wizard/pkg/response"
)

type wizardService interface {
	Start(ctx context.Context, req dto.StartWizardRequest, actor service.Actor) (*service.WizardView, error)
	Get(ctx context.Context, id string) (*service.WizardView, error)
	ApplyChanges(ctx context.Context, id string, edits []dto.FieldEdit) (*service.WizardView, error)
	AddGuardian(ctx context.Context, id string, g models.Guardian) (*service.WizardView, error)
	UpdateGuardian(ctx context.Context, id string, index int, g models.Guardian) (*service.WizardView, error)
	RemoveGuardian(ctx context.Context, id string, index int) (*service.WizardView, error)
	AddMedication(ctx context.Context, id string, m models.Medication) (*service.WizardView, error)
	RemoveMedication(ctx context.Context, id string, index int) (*service.WizardView, error)
	AddEmergencyContact(ctx context.Context, id string, c models.EmergencyContact) (*service.WizardView, error)
	RemoveEmergencyContact(ctx context.Context, id string, index int) (*service.WizardView, error)
	SelectScholarship(ctx context.Context, id, scholarshipID string) (*service.WizardView, error)
	ClearScholarship(ctx context.Context, id string) (*service.WizardView, error)
	AddDiscount(ctx context.Context, id string, d models.IndividualDiscount) (*service.WizardView, error)
	RemoveDiscount(ctx context.Context, id string, index int) (*service.WizardView, error)
	Next(ctx context.Context, id string) (*service.WizardView, error)
	Previous(ctx context.Context, id string) (*service.WizardView, error)
	Jump(ctx context.Context, id string, step models.WizardStep) (*service.WizardView, error)
	Options(ctx context.Context, id string) (*service.CascadeOptions, error)
	LookupGuardian(ctx context.Context, document string) (*models.Guardian, error)
	Submit(ctx context.Context, id string, actor service.Actor) (*dto.EnrollmentReceipt, error)
	Cancel(ctx context.Context, id string, actor service.Actor) error
}

type reviewExporter interface {
	Review(ctx context.Context, id string, format service.ReviewFormat) (*service.ReviewFile, error)
}

// WizardHandler exposes the enrollment wizard endpoints.
type WizardHandler struct {
	service wizardService
	export  reviewExporter
}

// NewWizardHandler builds a new handler.
func NewWizardHandler(service wizardService, export reviewExporter) *WizardHandler {
	return &WizardHandler{service: service, export: export}
}

// Start godoc
// @Summary Open an enrollment wizard
// @Description Starts an empty wizard, one seeded with data, or an update of an existing enrollment.
// @Tags EnrollmentWizard
// @Accept json
// @Produce json
// @Param payload body dto.StartWizardRequest false "Seed data"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollment-wizards [post]
func (h *WizardHandler) Start(c *gin.Context) {
	var req dto.StartWizardRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid wizard payload"))
			return
		}
	}
	view, err := h.service.Start(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// Get godoc
// @Summary Get a wizard session
// @Tags EnrollmentWizard
// @Produce json
// @Param id path string true "Wizard ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollment-wizards/{id} [get]
func (h *WizardHandler) Get(c *gin.Context) {
	h.respond(c)(h.service.Get(c.Request.Context(), c.Param("id")))
}

// ApplyChanges godoc
// @Summary Apply ordered field edits
// @Description Edits are applied in order; dependent billing fields are cleared. One invalid edit rejects the batch.
// @Tags EnrollmentWizard
// @Accept json
// @Produce json
// @Param id path string true "Wizard ID"
// @Param payload body dto.ApplyFieldsRequest true "Field edits"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /enrollment-wizards/{id}/fields [patch]
func (h *WizardHandler) ApplyChanges(c *gin.Context) {
	var req dto.ApplyFieldsRequest
	if !bindBody(c, &req, "invalid field edits") {
		return
	}
	h.respond(c)(h.service.ApplyChanges(c.Request.Context(), c.Param("id"), req.Changes))
}

// AddGuardian godoc
// @Summary Append a guardian
// @Tags EnrollmentWizard
// @Accept json
// @Produce json
// @Param id path string true "Wizard ID"
// @Param payload body models.Guardian true "Guardian"
// @Success 200 {object} response.Envelope
// @Router /enrollment-wizards/{id}/guardians [post]
func (h *WizardHandler) AddGuardian(c *gin.Context) {
	var guardian models.Guardian
	if !bindBody(c, &guardian, "invalid guardian payload") {
		return
	}
	h.respond(c)(h.service.AddGuardian(c.Request.Context(), c.Param("id"), guardian))
}

// UpdateGuardian godoc
// @Summary Replace a guardian
// @Tags EnrollmentWizard
// @Accept json
// @Produce json
// @Param id path string true "Wizard ID"
// @Param index path int true "Guardian position"
// @Param payload body models.Guardian true "Guardian"
// @Success 200 {object} response.Envelope
// @Router /enrollment-wizards/{id}/guardians/{index} [put]
func (h *WizardHandler) UpdateGuardian(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	var guardian models.Guardian
	if !bindBody(c, &guardian, "invalid guardian payload") {
		return
	}
	h.respond(c)(h.service.UpdateGuardian(c.Request.Context(), c.Param("id"), index, guardian))
}

// RemoveGuardian godoc
// @Summary Remove a guardian
// @Tags EnrollmentWizard
// @Produce json
// @Param id path string true "Wizard ID"
// @Param index path int true "Guardian position"
// @Success 200 {object} response.Envelope
// @Router /enrollment-wizards/{id}/guardians/{index} [delete]
func (h *WizardHandler) RemoveGuardian(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	h.respond(c)(h.service.RemoveGuardian(c.Request.Context(), c.Param("id"), index))
}

// AddMedication godoc
// @Summary Append a medication
// @Tags EnrollmentWizard
// @Accept json
// @Produce json
// @Param id path string true "Wizard ID"
// @Param payload body models.Medication true "Medication"
// @Success 200 {object} response.Envelope
// @Router /enrollment-wizards/{id}/medications [post]
func (h *WizardHandler) AddMedication(c *gin.Context) {
	var medication models.Medication
	if !bindBody(c, &medication, "invalid medication payload") {
		return
	}
	h.respond(c)(h.service.AddMedication(c.Request.Context(), c.Param("id"), medication))
}

// RemoveMedication godoc
// @Summary Remove a medication
// @Tags EnrollmentWizard
// @Produce json
// @Param id path string true "Wizard ID"
// @Param index path int true "Medication position"
// @Success 200 {object} response.Envelope
// @Router /enrollment-wizards/{id}/medications/{index} [delete]
func (h *WizardHandler) RemoveMedication(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	h.respond(c)(h.service.RemoveMedication(c.Request.Context(), c.Param("id"), index))
}

// AddEmergencyContact godoc
// @Summary Append a manual emergency contact
// @Tags EnrollmentWizard
// @Accept json
// @Produce json
// @Param id path string true "Wizard ID"
// @Param payload body models.EmergencyContact true "Emergency contact"
// @Success 200 {object} response.Envelope
// @Router /enrollment-wizards/{id}/emergency-contacts [post]
func (h *WizardHandler) AddEmergencyContact(c *gin.Context) {
	var contact models.EmergencyContact
	if !bindBody(c, &contact, "invalid emergency contact payload") {
		return
	}
	h.respond(c)(h.service.AddEmergencyContact(c.Request.Context(), c.Param("id"), contact))
}

// RemoveEmergencyContact godoc
// @Summary Remove a manual emergency contact
// @Tags EnrollmentWizard
// @Produce json
// @Param id path string true "Wizard ID"
// @Param index path int true "Contact position"
// @Success 200 {object} response.Envelope
// @Router /enrollment-wizards/{id}/emergency-contacts/{index} [delete]
func (h *WizardHandler) RemoveEmergencyContact(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	h.respond(c)(h.service.RemoveEmergencyContact(c.Request.Context(), c.Param("id"), index))
}

// SelectScholarship godoc
// @Summary Select a scholarship
// @Description Clears individual discounts and applies the scholarship percentages.
// @Tags EnrollmentWizard
// @Accept json
// @Produce json
// @Param id path string true "Wizard ID"
// @Param payload body dto.SelectScholarshipRequest true "Scholarship"
// @Success 200 {object} response.Envelope
// @Router /enrollment-wizards/{id}/scholarship [put]
func (h *WizardHandler) SelectScholarship(c *gin.Context) {
	var req dto.SelectScholarshipRequest
	if !bindBody(c, &req, "invalid scholarship payload") {
		return
	}
	h.respond(c)(h.service.SelectScholarship(c.Request.Context(), c.Param("id"), req.ScholarshipID))
}

// ClearScholarship godoc
// @Summary Remove the selected scholarship
// @Tags EnrollmentWizard
// @Produce json
// @Param id path string true "Wizard ID"
// @Success 200 {object} response.Envelope
// @Router /enrollment-wizards/{id}/scholarship [delete]
func (h *WizardHandler) ClearScholarship(c *gin.Context) {
	h.respond(c)(h.service.ClearScholarship(c.Request.Context(), c.Param("id")))
}

// AddDiscount godoc
// @Summary Add an individual discount
// @Tags EnrollmentWizard
// @Accept json
// @Produce json
// @Param id path string true "Wizard ID"
// @Param payload body models.IndividualDiscount true "Discount"
// @Success 200 {object} response.Envelope
// @Router /enrollment-wizards/{id}/discounts [post]
func (h *WizardHandler) AddDiscount(c *gin.Context) {
	var discount models.IndividualDiscount
	if !bindBody(c, &discount, "invalid discount payload") {
		return
	}
	h.respond(c)(h.service.AddDiscount(c.Request.Context(), c.Param("id"), discount))
}

// RemoveDiscount godoc
// @Summary Remove an individual discount
// @Tags EnrollmentWizard
// @Produce json
// @Param id path string true "Wizard ID"
// @Param index path int true "Discount position"
// @Success 200 {object} response.Envelope
// @Router /enrollment-wizards/{id}/discounts/{index} [delete]
func (h *WizardHandler) RemoveDiscount(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	h.respond(c)(h.service.RemoveDiscount(c.Request.Context(), c.Param("id"), index))
}

// Next godoc
// @Summary Validate the current step and advance
// @Tags EnrollmentWizard
// @Produce json
// @Param id path string true "Wizard ID"
// @Success 200 {object} response.Envelope
// @Router /enrollment-wizards/{id}/next [post]
func (h *WizardHandler) Next(c *gin.Context) {
	h.respond(c)(h.service.Next(c.Request.Context(), c.Param("id")))
}

// Previous godoc
// @Summary Go back one step
// @Tags EnrollmentWizard
// @Produce json
// @Param id path string true "Wizard ID"
// @Success 200 {object} response.Envelope
// @Router /enrollment-wizards/{id}/previous [post]
func (h *WizardHandler) Previous(c *gin.Context) {
	h.respond(c)(h.service.Previous(c.Request.Context(), c.Param("id")))
}

// Jump godoc
// @Summary Jump to an unlocked step
// @Tags EnrollmentWizard
// @Accept json
// @Produce json
// @Param id path string true "Wizard ID"
// @Param payload body dto.JumpRequest true "Target step"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollment-wizards/{id}/jump [post]
func (h *WizardHandler) Jump(c *gin.Context) {
	var req dto.JumpRequest
	if !bindBody(c, &req, "invalid jump payload") {
		return
	}
	if req.Step == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "step is required"))
		return
	}
	step, err := service.ParseStep(*req.Step)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c)(h.service.Jump(c.Request.Context(), c.Param("id"), step))
}

// Options godoc
// @Summary Cascading billing options for the current selection
// @Tags EnrollmentWizard
// @Produce json
// @Param id path string true "Wizard ID"
// @Success 200 {object} response.Envelope
// @Router /enrollment-wizards/{id}/options [get]
func (h *WizardHandler) Options(c *gin.Context) {
	opts, err := h.service.Options(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, opts, nil, map[string]interface{}{"degraded": opts.Degraded})
}

// ReviewPDF godoc
// @Summary Download the review summary as PDF
// @Tags EnrollmentWizard
// @Produce application/pdf
// @Param id path string true "Wizard ID"
// @Success 200 {file} file
// @Router /enrollment-wizards/{id}/review.pdf [get]
func (h *WizardHandler) ReviewPDF(c *gin.Context) {
	h.review(c, service.ReviewFormatPDF)
}

// ReviewCSV godoc
// @Summary Download the review summary as CSV
// @Tags EnrollmentWizard
// @Produce text/csv
// @Param id path string true "Wizard ID"
// @Success 200 {file} file
// @Router /enrollment-wizards/{id}/review.csv [get]
func (h *WizardHandler) ReviewCSV(c *gin.Context) {
	h.review(c, service.ReviewFormatCSV)
}

func (h *WizardHandler) review(c *gin.Context, format service.ReviewFormat) {
	file, err := h.export.Review(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.ContentType, file.Filename, file.Data)
}

// Submit godoc
// @Summary Submit the wizard as an enrollment
// @Description On failure the error details carry the outcome and the step the wizard was redirected to.
// @Tags EnrollmentWizard
// @Produce json
// @Param id path string true "Wizard ID"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /enrollment-wizards/{id}/submit [post]
func (h *WizardHandler) Submit(c *gin.Context) {
	receipt, err := h.service.Submit(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, receipt)
}

// Cancel godoc
// @Summary Discard a wizard session
// @Tags EnrollmentWizard
// @Param id path string true "Wizard ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /enrollment-wizards/{id} [delete]
func (h *WizardHandler) Cancel(c *gin.Context) {
	if err := h.service.Cancel(c.Request.Context(), c.Param("id"), actorFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// LookupGuardian godoc
// @Summary Find a stored guardian by document
// @Tags People
// @Produce json
// @Param document query string true "Document number, punctuation allowed"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /people/guardians [get]
func (h *WizardHandler) LookupGuardian(c *gin.Context) {
	guardian, err := h.service.LookupGuardian(c.Request.Context(), c.Query("document"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, guardian, nil)
}

func (h *WizardHandler) respond(c *gin.Context) func(*service.WizardView, error) {
	return func(view *service.WizardView, err error) {
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, view, nil)
	}
}

func bindBody(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

func indexParam(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "index must be a non-negative integer"))
		return 0, false
	}
	return index, true
}
