package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-enrollment-wizard/internal/dto"
	"github.com/noah-isme/sma-enrollment-wizard/internal/middleware"
	"github.com/noah-isme/sma-enrollment-wizard/internal/models"
	"github.com/noah-isme/sma-enrollment-wizard/internal/service"
	appErrors "github.com/noah-isme/sma-enrollment-wizard/pkg/errors"
)

type wizardServiceMock struct {
	view      *service.WizardView
	err       error
	calls     []string
	lastIndex int
	lastStep  models.WizardStep
	lastEdits []dto.FieldEdit
	lastActor service.Actor
	lastDoc   string
	startReq  dto.StartWizardRequest
	receipt   *dto.EnrollmentReceipt
	options   *service.CascadeOptions
	guardian  *models.Guardian
}

func (m *wizardServiceMock) result(call string) (*service.WizardView, error) {
	m.calls = append(m.calls, call)
	return m.view, m.err
}

func (m *wizardServiceMock) Start(ctx context.Context, req dto.StartWizardRequest, actor service.Actor) (*service.WizardView, error) {
	m.startReq = req
	m.lastActor = actor
	return m.result("start")
}

func (m *wizardServiceMock) Get(ctx context.Context, id string) (*service.WizardView, error) {
	return m.result("get")
}

func (m *wizardServiceMock) ApplyChanges(ctx context.Context, id string, edits []dto.FieldEdit) (*service.WizardView, error) {
	m.lastEdits = edits
	return m.result("fields")
}

func (m *wizardServiceMock) AddGuardian(ctx context.Context, id string, g models.Guardian) (*service.WizardView, error) {
	return m.result("addGuardian")
}

func (m *wizardServiceMock) UpdateGuardian(ctx context.Context, id string, index int, g models.Guardian) (*service.WizardView, error) {
	m.lastIndex = index
	return m.result("updateGuardian")
}

func (m *wizardServiceMock) RemoveGuardian(ctx context.Context, id string, index int) (*service.WizardView, error) {
	m.lastIndex = index
	return m.result("removeGuardian")
}

func (m *wizardServiceMock) AddMedication(ctx context.Context, id string, med models.Medication) (*service.WizardView, error) {
	return m.result("addMedication")
}

func (m *wizardServiceMock) RemoveMedication(ctx context.Context, id string, index int) (*service.WizardView, error) {
	m.lastIndex = index
	return m.result("removeMedication")
}

func (m *wizardServiceMock) AddEmergencyContact(ctx context.Context, id string, c models.EmergencyContact) (*service.WizardView, error) {
	return m.result("addContact")
}

func (m *wizardServiceMock) RemoveEmergencyContact(ctx context.Context, id string, index int) (*service.WizardView, error) {
	m.lastIndex = index
	return m.result("removeContact")
}

func (m *wizardServiceMock) SelectScholarship(ctx context.Context, id, scholarshipID string) (*service.WizardView, error) {
	return m.result("selectScholarship:" + scholarshipID)
}

func (m *wizardServiceMock) ClearScholarship(ctx context.Context, id string) (*service.WizardView, error) {
	return m.result("clearScholarship")
}

func (m *wizardServiceMock) AddDiscount(ctx context.Context, id string, d models.IndividualDiscount) (*service.WizardView, error) {
	return m.result("addDiscount")
}

func (m *wizardServiceMock) RemoveDiscount(ctx context.Context, id string, index int) (*service.WizardView, error) {
	m.lastIndex = index
	return m.result("removeDiscount")
}

func (m *wizardServiceMock) Next(ctx context.Context, id string) (*service.WizardView, error) {
	return m.result("next")
}

func (m *wizardServiceMock) Previous(ctx context.Context, id string) (*service.WizardView, error) {
	return m.result("previous")
}

func (m *wizardServiceMock) Jump(ctx context.Context, id string, step models.WizardStep) (*service.WizardView, error) {
	m.lastStep = step
	return m.result("jump")
}

func (m *wizardServiceMock) Options(ctx context.Context, id string) (*service.CascadeOptions, error) {
	m.calls = append(m.calls, "options")
	return m.options, m.err
}

func (m *wizardServiceMock) LookupGuardian(ctx context.Context, document string) (*models.Guardian, error) {
	m.calls = append(m.calls, "lookup")
	m.lastDoc = document
	return m.guardian, m.err
}

func (m *wizardServiceMock) Submit(ctx context.Context, id string, actor service.Actor) (*dto.EnrollmentReceipt, error) {
	m.calls = append(m.calls, "submit")
	m.lastActor = actor
	return m.receipt, m.err
}

func (m *wizardServiceMock) Cancel(ctx context.Context, id string, actor service.Actor) error {
	m.calls = append(m.calls, "cancel")
	return m.err
}

type reviewExporterMock struct {
	format service.ReviewFormat
	file   *service.ReviewFile
	err    error
}

func (m *reviewExporterMock) Review(ctx context.Context, id string, format service.ReviewFormat) (*service.ReviewFile, error) {
	m.format = format
	return m.file, m.err
}

func newWizardRouter(svc *wizardServiceMock, export *reviewExporterMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "staff-1", Role: models.RoleStaff})
		c.Next()
	})
	RegisterWizardRoutes(router.Group(""), NewWizardHandler(svc, export))
	return router
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestWizardHandlerStart(t *testing.T) {
	svc := &wizardServiceMock{view: &service.WizardView{ID: "wiz-1"}}
	router := newWizardRouter(svc, nil)

	rec := doRequest(router, http.MethodPost, "/enrollment-wizards", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "staff-1", svc.lastActor.UserID)

	rec = doRequest(router, http.MethodPost, "/enrollment-wizards", `{"enrollmentId":"enr-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "enr-1", svc.startReq.EnrollmentID)

	var body struct {
		Data service.WizardView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "wiz-1", body.Data.ID)
}

func TestWizardHandlerRoutes(t *testing.T) {
	svc := &wizardServiceMock{view: &service.WizardView{ID: "wiz-1"}}
	router := newWizardRouter(svc, nil)

	cases := []struct {
		method, path, body, call string
	}{
		{http.MethodGet, "/enrollment-wizards/wiz-1", "", "get"},
		{http.MethodPost, "/enrollment-wizards/wiz-1/guardians", `{"name":"Maria"}`, "addGuardian"},
		{http.MethodPut, "/enrollment-wizards/wiz-1/guardians/0", `{"name":"Maria"}`, "updateGuardian"},
		{http.MethodDelete, "/enrollment-wizards/wiz-1/guardians/0", "", "removeGuardian"},
		{http.MethodPost, "/enrollment-wizards/wiz-1/medications", `{"name":"Insulin"}`, "addMedication"},
		{http.MethodDelete, "/enrollment-wizards/wiz-1/medications/1", "", "removeMedication"},
		{http.MethodPost, "/enrollment-wizards/wiz-1/emergency-contacts", `{"name":"Rosa","phone":"11"}`, "addContact"},
		{http.MethodDelete, "/enrollment-wizards/wiz-1/emergency-contacts/0", "", "removeContact"},
		{http.MethodPut, "/enrollment-wizards/wiz-1/scholarship", `{"scholarshipId":"sch-50"}`, "selectScholarship:sch-50"},
		{http.MethodDelete, "/enrollment-wizards/wiz-1/scholarship", "", "clearScholarship"},
		{http.MethodPost, "/enrollment-wizards/wiz-1/discounts", `{"description":"sibling","target":"MONTHLY","percent":10}`, "addDiscount"},
		{http.MethodDelete, "/enrollment-wizards/wiz-1/discounts/2", "", "removeDiscount"},
		{http.MethodPost, "/enrollment-wizards/wiz-1/next", "", "next"},
		{http.MethodPost, "/enrollment-wizards/wiz-1/previous", "", "previous"},
	}
	for _, tc := range cases {
		t.Run(tc.call, func(t *testing.T) {
			rec := doRequest(router, tc.method, tc.path, tc.body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tc.call, svc.calls[len(svc.calls)-1])
		})
	}
	assert.Equal(t, 2, svc.lastIndex)
}

func TestWizardHandlerApplyChanges(t *testing.T) {
	svc := &wizardServiceMock{view: &service.WizardView{ID: "wiz-1"}}
	router := newWizardRouter(svc, nil)

	rec := doRequest(router, http.MethodPatch, "/enrollment-wizards/wiz-1/fields",
		`{"changes":[{"path":"billing.courseId","value":"course-fund"},{"path":"billing.levelId","value":"level-6"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.lastEdits, 2)
	assert.Equal(t, "billing.levelId", svc.lastEdits[1].Path)
	assert.JSONEq(t, `"level-6"`, string(svc.lastEdits[1].Value))

	rec = doRequest(router, http.MethodPatch, "/enrollment-wizards/wiz-1/fields", `{"changes":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWizardHandlerRejectsBadIndex(t *testing.T) {
	svc := &wizardServiceMock{}
	router := newWizardRouter(svc, nil)

	rec := doRequest(router, http.MethodDelete, "/enrollment-wizards/wiz-1/guardians/first", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = doRequest(router, http.MethodDelete, "/enrollment-wizards/wiz-1/medications/-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.calls)
}

func TestWizardHandlerJump(t *testing.T) {
	svc := &wizardServiceMock{view: &service.WizardView{ID: "wiz-1"}}
	router := newWizardRouter(svc, nil)

	rec := doRequest(router, http.MethodPost, "/enrollment-wizards/wiz-1/jump", `{"step":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StepMedical, svc.lastStep)

	rec = doRequest(router, http.MethodPost, "/enrollment-wizards/wiz-1/jump", `{"step":9}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = doRequest(router, http.MethodPost, "/enrollment-wizards/wiz-1/jump", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWizardHandlerLockedJumpIsConflict(t *testing.T) {
	svc := &wizardServiceMock{err: appErrors.ErrStepLocked}
	router := newWizardRouter(svc, nil)

	rec := doRequest(router, http.MethodPost, "/enrollment-wizards/wiz-1/jump", `{"step":5}`)
	assert.Equal(t, appErrors.ErrStepLocked.Status, rec.Code)
}

func TestWizardHandlerOptionsReportsDegraded(t *testing.T) {
	svc := &wizardServiceMock{options: &service.CascadeOptions{Degraded: true}}
	router := newWizardRouter(svc, nil)

	rec := doRequest(router, http.MethodGet, "/enrollment-wizards/wiz-1/options", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body.Meta["degraded"])
}

func TestWizardHandlerSubmit(t *testing.T) {
	svc := &wizardServiceMock{receipt: &dto.EnrollmentReceipt{EnrollmentID: "enr-9", Status: "ACTIVE"}}
	router := newWizardRouter(svc, nil)

	rec := doRequest(router, http.MethodPost, "/enrollment-wizards/wiz-1/submit", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "enr-9")
	assert.Equal(t, "staff-1", svc.lastActor.UserID)
}

func TestWizardHandlerSubmitFailureCarriesRedirect(t *testing.T) {
	step := models.StepStudent
	failure := service.SubmissionFailure{
		Outcome: service.SubmissionOutcome{Kind: service.FailureConflict, Message: "student document already enrolled", Redirect: &step},
	}
	svc := &wizardServiceMock{err: appErrors.WithDetails(appErrors.Clone(appErrors.ErrDuplicateEnrollment, "student document already enrolled"), failure)}
	router := newWizardRouter(svc, nil)

	rec := doRequest(router, http.MethodPost, "/enrollment-wizards/wiz-1/submit", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				Outcome struct {
					Redirect *int `json:"redirectStep"`
				} `json:"outcome"`
			} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, appErrors.ErrDuplicateEnrollment.Code, body.Error.Code)
	require.NotNil(t, body.Error.Details.Outcome.Redirect)
	assert.Equal(t, 0, *body.Error.Details.Outcome.Redirect)
}

func TestWizardHandlerCancel(t *testing.T) {
	svc := &wizardServiceMock{}
	router := newWizardRouter(svc, nil)

	rec := doRequest(router, http.MethodDelete, "/enrollment-wizards/wiz-1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	svc.err = appErrors.ErrSubmissionInFlight
	rec = doRequest(router, http.MethodDelete, "/enrollment-wizards/wiz-1", "")
	assert.Equal(t, appErrors.ErrSubmissionInFlight.Status, rec.Code)
}

func TestWizardHandlerReviewDownloads(t *testing.T) {
	export := &reviewExporterMock{file: &service.ReviewFile{Filename: "enrollment_review_wiz-1.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.3")}}
	router := newWizardRouter(&wizardServiceMock{}, export)

	rec := doRequest(router, http.MethodGet, "/enrollment-wizards/wiz-1/review.pdf", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.ReviewFormatPDF, export.format)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "enrollment_review_wiz-1.pdf")

	export.file = &service.ReviewFile{Filename: "enrollment_review_wiz-1.csv", ContentType: "text/csv", Data: []byte("section,row,column,value\n")}
	rec = doRequest(router, http.MethodGet, "/enrollment-wizards/wiz-1/review.csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.ReviewFormatCSV, export.format)
}

func TestWizardHandlerLookupGuardian(t *testing.T) {
	svc := &wizardServiceMock{guardian: &models.Guardian{Name: "Maria Souza", IsExisting: true}}
	router := newWizardRouter(svc, nil)

	rec := doRequest(router, http.MethodGet, "/people/guardians?document=987.654.321-00", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "987.654.321-00", svc.lastDoc)
	assert.Contains(t, rec.Body.String(), "Maria Souza")

	svc.err = appErrors.Clone(appErrors.ErrNotFound, "guardian not found")
	rec = doRequest(router, http.MethodGet, "/people/guardians?document=1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
