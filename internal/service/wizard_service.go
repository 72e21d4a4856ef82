package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-enrollment-wizard/internal/dto"
	"github.com/noah-isme/sma-enrollment-wizard/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-wizard/pkg/errors"
)

const maxOptionAttempts = 3

type wizardCatalog interface {
	Snapshot(ctx context.Context, tag SelectionTag) (CatalogSnapshot, bool)
	Courses(ctx context.Context, periodID string) ([]models.Course, error)
	Contract(ctx context.Context, id string) (*models.Contract, error)
	Scholarship(ctx context.Context, id string) (*models.Scholarship, error)
}

type enrollmentSubmitter interface {
	Create(ctx context.Context, payload dto.EnrollmentPayload) (*dto.EnrollmentReceipt, error)
	Update(ctx context.Context, id string, payload dto.EnrollmentPayload) (*dto.EnrollmentReceipt, error)
}

type enrollmentLookup interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

type personLookup interface {
	FindByDocument(ctx context.Context, document string) (*models.Person, error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Actor identifies who drives a wizard, for auditing.
type Actor struct {
	UserID    string
	IP        string
	UserAgent string
}

// WizardView is the client-facing snapshot of a session.
type WizardView struct {
	ID           string             `json:"id"`
	Mode         WizardMode         `json:"mode"`
	EnrollmentID string             `json:"enrollmentId,omitempty"`
	State        models.WizardState `json:"state"`
	Navigation   SequencerView      `json:"navigation"`
	Submission   string             `json:"submission"`
	LastUsed     time.Time          `json:"lastUsed"`
}

// SubmissionFailure is attached to a rejected submission error.
type SubmissionFailure struct {
	Outcome SubmissionOutcome `json:"outcome"`
	Wizard  WizardView        `json:"wizard"`
}

// WizardDeps groups the collaborators of WizardService.
type WizardDeps struct {
	Store       *WizardSessionStore
	Validator   *StepValidator
	Catalog     wizardCatalog
	Enrollments enrollmentSubmitter
	Existing    enrollmentLookup
	People      personLookup
	Audit       auditWriter
	Cache       *CacheService
	Metrics     *MetricsService
	Logger      *zap.Logger
	Now         func() time.Time
}

// WizardService drives enrollment wizard sessions.
type WizardService struct {
	store       *WizardSessionStore
	validator   *StepValidator
	catalog     wizardCatalog
	enrollments enrollmentSubmitter
	existing    enrollmentLookup
	people      personLookup
	audit       auditWriter
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
}

// NewWizardService constructs WizardService.
func NewWizardService(deps WizardDeps) *WizardService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Store == nil {
		deps.Store = NewWizardSessionStore(deps.Now)
	}
	if deps.Validator == nil {
		deps.Validator = NewStepValidator(nil, nil, deps.Now)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &WizardService{
		store:       deps.Store,
		validator:   deps.Validator,
		catalog:     deps.Catalog,
		enrollments: deps.Enrollments,
		existing:    deps.Existing,
		people:      deps.People,
		audit:       deps.Audit,
		cache:       deps.Cache,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		now:         deps.Now,
	}
}

// Store exposes the session store for the sweeper.
func (s *WizardService) Store() *WizardSessionStore {
	return s.store
}

// Start opens a new wizard session.
func (s *WizardService) Start(ctx context.Context, req dto.StartWizardRequest, actor Actor) (*WizardView, error) {
	form := NewWizardForm()
	if req.State != nil {
		form = NewWizardFormFrom(*req.State)
	}
	session := NewWizardSession(form, s.validator, s.now())
	session.OwnerID = actor.UserID

	if req.EnrollmentID != "" {
		if s.existing != nil {
			if _, err := s.existing.FindByID(ctx, req.EnrollmentID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
				}
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
			}
		}
		session.Mode = WizardModeUpdate
		session.EnrollmentID = req.EnrollmentID
		session.Sequencer.UnlockAll()
	}

	s.store.Put(session)
	s.logger.Info("wizard started", zap.String("wizard_id", session.ID), zap.String("mode", string(session.Mode)))
	view := s.viewOf(session)
	return &view, nil
}

// Get returns the current view of a session.
func (s *WizardService) Get(ctx context.Context, id string) (*WizardView, error) {
	return s.mutate(id, func(*WizardSession) error { return nil })
}

// ApplyChanges applies ordered field edits atomically: if one edit is rejected
// none is applied. A level change triggers the contract default lookup.
func (s *WizardService) ApplyChanges(ctx context.Context, id string, edits []dto.FieldEdit) (*WizardView, error) {
	if len(edits) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no changes provided")
	}
	var levelTag *SelectionTag
	view, err := s.mutate(id, func(session *WizardSession) error {
		scratch := NewWizardFormFrom(session.Form.State())
		scratch.Subscribe(CascadeListener())
		for _, edit := range edits {
			if err := scratch.SetField(FieldPath(edit.Path), edit.Value); err != nil {
				return err
			}
		}

		before := session.Form.view().Billing.LevelID
		for _, edit := range edits {
			_ = session.Form.SetField(FieldPath(edit.Path), edit.Value)
		}
		billing := session.Form.view().Billing
		if billing.LevelID != "" && billing.LevelID != before {
			tag := SelectionOf(billing)
			levelTag = &tag
		}
		return nil
	})
	if err != nil || levelTag == nil {
		return view, err
	}
	return s.applyContractDefaults(ctx, id, *levelTag)
}

// applyContractDefaults resolves the contract of the selected level and
// applies it unless the selection moved on meanwhile.
func (s *WizardService) applyContractDefaults(ctx context.Context, id string, tag SelectionTag) (*WizardView, error) {
	contract, err := s.lookupContract(ctx, tag)
	if err != nil {
		s.logger.Warn("contract lookup failed", zap.String("wizard_id", id), zap.String("level_id", tag.LevelID), zap.Error(err))
	}
	return s.mutate(id, func(session *WizardSession) error {
		if contract == nil {
			return nil
		}
		if !tag.Matches(session.Form.view().Billing) {
			s.metrics.ObserveStaleLookup("contract")
			return nil
		}
		session.Form.ApplyContractDefaults(*contract)
		return nil
	})
}

func (s *WizardService) lookupContract(ctx context.Context, tag SelectionTag) (*models.Contract, error) {
	if s.catalog == nil {
		return nil, nil
	}
	courses, err := s.catalog.Courses(ctx, tag.PeriodID)
	if err != nil {
		return nil, err
	}
	level, ok := FindLevel(courses, tag.CourseID, tag.LevelID)
	if !ok || level.ContractID == nil || *level.ContractID == "" {
		return nil, nil
	}
	return s.catalog.Contract(ctx, *level.ContractID)
}

// AddGuardian appends a guardian.
func (s *WizardService) AddGuardian(ctx context.Context, id string, g models.Guardian) (*WizardView, error) {
	return s.mutate(id, func(session *WizardSession) error {
		session.Form.AppendGuardian(g)
		return nil
	})
}

// UpdateGuardian replaces the guardian at index.
func (s *WizardService) UpdateGuardian(ctx context.Context, id string, index int, g models.Guardian) (*WizardView, error) {
	return s.mutate(id, func(session *WizardSession) error {
		return session.Form.UpdateGuardian(index, g)
	})
}

// RemoveGuardian deletes the guardian at index.
func (s *WizardService) RemoveGuardian(ctx context.Context, id string, index int) (*WizardView, error) {
	return s.mutate(id, func(session *WizardSession) error {
		return session.Form.RemoveGuardian(index)
	})
}

// AddMedication appends a medication.
func (s *WizardService) AddMedication(ctx context.Context, id string, m models.Medication) (*WizardView, error) {
	return s.mutate(id, func(session *WizardSession) error {
		session.Form.AppendMedication(m)
		return nil
	})
}

// RemoveMedication deletes the medication at index.
func (s *WizardService) RemoveMedication(ctx context.Context, id string, index int) (*WizardView, error) {
	return s.mutate(id, func(session *WizardSession) error {
		return session.Form.RemoveMedication(index)
	})
}

// AddEmergencyContact appends a manual emergency contact.
func (s *WizardService) AddEmergencyContact(ctx context.Context, id string, c models.EmergencyContact) (*WizardView, error) {
	return s.mutate(id, func(session *WizardSession) error {
		session.Form.AppendEmergencyContact(c)
		return nil
	})
}

// RemoveEmergencyContact deletes the manual emergency contact at index.
func (s *WizardService) RemoveEmergencyContact(ctx context.Context, id string, index int) (*WizardView, error) {
	return s.mutate(id, func(session *WizardSession) error {
		return session.Form.RemoveEmergencyContact(index)
	})
}

// SelectScholarship applies a catalog scholarship, dropping individual discounts.
func (s *WizardService) SelectScholarship(ctx context.Context, id, scholarshipID string) (*WizardView, error) {
	if _, err := s.store.Get(id); err != nil {
		return nil, err
	}
	if s.catalog == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "catalog unavailable")
	}
	scholarship, err := s.catalog.Scholarship(ctx, scholarshipID)
	if err != nil {
		return nil, err
	}
	return s.mutate(id, func(session *WizardSession) error {
		session.Form.SelectScholarship(scholarship.ID, scholarship.MonthlyPercent, scholarship.EnrollmentPercent)
		return nil
	})
}

// ClearScholarship removes the selected scholarship.
func (s *WizardService) ClearScholarship(ctx context.Context, id string) (*WizardView, error) {
	return s.mutate(id, func(session *WizardSession) error {
		session.Form.ClearScholarship()
		return nil
	})
}

// AddDiscount appends an individual discount, dropping any scholarship.
func (s *WizardService) AddDiscount(ctx context.Context, id string, d models.IndividualDiscount) (*WizardView, error) {
	return s.mutate(id, func(session *WizardSession) error {
		session.Form.AddIndividualDiscount(d)
		return nil
	})
}

// RemoveDiscount deletes the individual discount at index.
func (s *WizardService) RemoveDiscount(ctx context.Context, id string, index int) (*WizardView, error) {
	return s.mutate(id, func(session *WizardSession) error {
		return session.Form.RemoveIndividualDiscount(index)
	})
}

// Next validates the current step and advances when it passes. A failed
// validation is reported in the view, not as an error.
func (s *WizardService) Next(ctx context.Context, id string) (*WizardView, error) {
	return s.mutate(id, func(session *WizardSession) error {
		from := session.Sequencer.Current()
		res := session.Sequencer.GoNext()
		outcome := StepOutcomeAdvanced
		if !res.Valid {
			outcome = StepOutcomeRejected
		}
		s.metrics.ObserveStepTransition(from, outcome)
		return nil
	})
}

// Previous steps back.
func (s *WizardService) Previous(ctx context.Context, id string) (*WizardView, error) {
	return s.mutate(id, func(session *WizardSession) error {
		from := session.Sequencer.Current()
		if session.Sequencer.GoPrevious() {
			s.metrics.ObserveStepTransition(from, StepOutcomeBack)
		}
		return nil
	})
}

// Jump moves to a visited or validated step.
func (s *WizardService) Jump(ctx context.Context, id string, step models.WizardStep) (*WizardView, error) {
	return s.mutate(id, func(session *WizardSession) error {
		from := session.Sequencer.Current()
		if err := session.Sequencer.JumpTo(step); err != nil {
			s.metrics.ObserveStepTransition(from, StepOutcomeLocked)
			return err
		}
		s.metrics.ObserveStepTransition(from, StepOutcomeJump)
		return nil
	})
}

// Options returns the cascading option sets for the current selection. The
// catalog is read without holding the session; results computed for a
// selection that changed meanwhile are discarded and fetched again.
func (s *WizardService) Options(ctx context.Context, id string) (*CascadeOptions, error) {
	session, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if s.catalog == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "catalog unavailable")
	}
	for attempt := 0; attempt < maxOptionAttempts; attempt++ {
		var tag SelectionTag
		_ = session.Do(func() error {
			tag = SelectionOf(session.Form.view().Billing)
			return nil
		})

		snapshot, degraded := s.catalog.Snapshot(ctx, tag)
		options := ResolveOptions(snapshot, tag)
		options.Degraded = degraded

		current := true
		_ = session.Do(func() error {
			current = tag.Matches(session.Form.view().Billing)
			return nil
		})
		if current {
			return &options, nil
		}
		s.metrics.ObserveStaleLookup("options")
	}
	return nil, appErrors.Clone(appErrors.ErrConflict, "selection changed while loading options, retry")
}

// LookupGuardian finds a stored person by document to pre-fill a guardian.
func (s *WizardService) LookupGuardian(ctx context.Context, document string) (*models.Guardian, error) {
	doc := CleanDocument(document)
	if doc == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "document is required")
	}
	if s.people == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "person lookup unavailable")
	}
	person, err := remember(ctx, s.cache, "person:"+doc, 5*time.Minute, func(ctx context.Context) (*models.Person, error) {
		return s.people.FindByDocument(ctx, doc)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "guardian not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up guardian")
	}
	return guardianFromPerson(person), nil
}

func guardianFromPerson(p *models.Person) *models.Guardian {
	g := &models.Guardian{
		ID:             p.ID,
		Name:           p.Name,
		DocumentType:   p.DocumentType,
		DocumentNumber: p.DocumentNumber,
		IsExisting:     true,
	}
	if p.Email != nil {
		g.Email = *p.Email
	}
	if p.Phone != nil {
		g.Phone = *p.Phone
	}
	if p.Profession != nil {
		g.Profession = *p.Profession
	}
	if p.BirthDate != nil {
		y, m, d := p.BirthDate.Date()
		g.BirthDate = models.NewDate(y, m, d)
	}
	return g
}

// Submit validates every step, assembles the payload and hands it to the
// enrollment operation. Only one submission per session may be in flight.
// On success the session is discarded; on failure the wizard is redirected
// to the step to fix and the error carries a SubmissionFailure.
func (s *WizardService) Submit(ctx context.Context, id string, actor Actor) (*dto.EnrollmentReceipt, error) {
	session, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if s.enrollments == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "enrollment operation unavailable")
	}

	var payload dto.EnrollmentPayload
	var invalid *models.StepResult
	err = session.Do(func() error {
		if session.Sequencer.Current() != models.StepReview {
			return appErrors.Clone(appErrors.ErrStepLocked, "submission is only available from the review step")
		}
		if err := session.Gate.Begin(ctx); err != nil {
			return err
		}
		res, ok := s.validator.ValidateAll(*session.Form.view())
		if !ok {
			session.Sequencer.Fail(res)
			_ = session.Gate.Fail(ctx)
			invalid = &res
			return nil
		}
		payload = AssembleEnrollment(*session.Form.view())
		return nil
	})
	if err != nil {
		return nil, err
	}
	if invalid != nil {
		s.metrics.ObserveSubmission(string(FailureValidation))
		view := s.viewLocked(session)
		message := invalid.RootError
		if message == "" {
			message = MsgFixFields
		}
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrUnprocessable, message), SubmissionFailure{
			Outcome: SubmissionOutcome{Kind: FailureValidation, Message: message, Redirect: &invalid.Step},
			Wizard:  view,
		})
	}

	var receipt *dto.EnrollmentReceipt
	if session.Mode == WizardModeUpdate {
		receipt, err = s.enrollments.Update(ctx, session.EnrollmentID, payload)
	} else {
		receipt, err = s.enrollments.Create(ctx, payload)
	}

	if err != nil {
		outcome := ClassifySubmissionFailure(err)
		_ = session.Do(func() error {
			_ = session.Gate.Fail(ctx)
			if outcome.Redirect != nil {
				session.Sequencer.Redirect(*outcome.Redirect, outcome.Message)
			} else {
				session.Sequencer.SetRootError(outcome.Message)
			}
			return nil
		})
		s.metrics.ObserveSubmission(string(outcome.Kind))
		s.logger.Warn("enrollment submission rejected", zap.String("wizard_id", id), zap.String("kind", string(outcome.Kind)), zap.Error(err))

		appErr := appErrors.FromError(err)
		return nil, appErrors.WithDetails(&appErrors.Error{Code: appErr.Code, Status: appErr.Status, Message: outcome.Message, Err: err}, SubmissionFailure{
			Outcome: outcome,
			Wizard:  s.viewLocked(session),
		})
	}

	_ = session.Do(func() error {
		_ = session.Gate.Succeed(ctx)
		session.Form.Reset()
		return nil
	})
	s.store.Delete(id)
	s.metrics.ObserveSubmission("success")

	action := models.AuditActionEnrollmentCreate
	if session.Mode == WizardModeUpdate {
		action = models.AuditActionEnrollmentUpdate
	}
	s.recordAudit(ctx, actor, action, receipt.EnrollmentID, map[string]interface{}{
		"wizard_id":          id,
		"student_id":         receipt.StudentID,
		"academic_period_id": payload.Billing.AcademicPeriodID,
		"level_id":           payload.Billing.LevelID,
	})
	s.logger.Info("enrollment submitted", zap.String("wizard_id", id), zap.String("enrollment_id", receipt.EnrollmentID))
	return receipt, nil
}

// Cancel discards a session and its state.
func (s *WizardService) Cancel(ctx context.Context, id string, actor Actor) error {
	session, err := s.store.Get(id)
	if err != nil {
		return err
	}
	err = session.Do(func() error {
		if session.Gate.InFlight() {
			return appErrors.Clone(appErrors.ErrSubmissionInFlight, "")
		}
		session.Form.Reset()
		return nil
	})
	if err != nil {
		return err
	}
	s.store.Delete(id)
	s.recordAudit(ctx, actor, models.AuditActionWizardCancel, session.EnrollmentID, map[string]interface{}{"wizard_id": id})
	return nil
}

// ReviewState returns a copy of the session state for the review page.
func (s *WizardService) ReviewState(ctx context.Context, id string) (models.WizardState, error) {
	session, err := s.store.Get(id)
	if err != nil {
		return models.WizardState{}, err
	}
	var state models.WizardState
	_ = session.Do(func() error {
		state = session.Form.State()
		return nil
	})
	return state, nil
}

func (s *WizardService) recordAudit(ctx context.Context, actor Actor, action, resourceID string, values map[string]interface{}) {
	if s.audit == nil {
		return
	}
	body, _ := json.Marshal(values)
	entry := &models.AuditLog{
		Action:    action,
		Resource:  "enrollment",
		NewValues: body,
		IPAddress: actor.IP,
		UserAgent: actor.UserAgent,
		CreatedAt: s.now().UTC(),
	}
	if actor.UserID != "" {
		userID := actor.UserID
		entry.UserID = &userID
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

// mutate runs fn on the session under its lock and returns the resulting view.
func (s *WizardService) mutate(id string, fn func(session *WizardSession) error) (*WizardView, error) {
	session, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	var view WizardView
	err = session.Do(func() error {
		if err := fn(session); err != nil {
			return err
		}
		view = s.viewOf(session)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *WizardService) viewLocked(session *WizardSession) WizardView {
	var view WizardView
	_ = session.Do(func() error {
		view = s.viewOf(session)
		return nil
	})
	return view
}

// viewOf must be called with the session lock held.
func (s *WizardService) viewOf(session *WizardSession) WizardView {
	return WizardView{
		ID:           session.ID,
		Mode:         session.Mode,
		EnrollmentID: session.EnrollmentID,
		State:        session.Form.State(),
		Navigation:   session.Sequencer.View(),
		Submission:   session.Gate.State(),
		LastUsed:     session.LastUsed(),
	}
}

// ParseStep converts a client step index.
func ParseStep(raw int) (models.WizardStep, error) {
	step := models.WizardStep(raw)
	if !step.Valid() {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("step must be between 0 and %d", models.StepCount-1))
	}
	return step, nil
}
