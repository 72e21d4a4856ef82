package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-enrollment-wizard/internal/models"
	"github.com/noah-isme/sma-enrollment-wizard/pkg/jobs"
)

func TestAuditDispatcherWritesInlineWhenStopped(t *testing.T) {
	audit := &fakeAudit{}
	d := NewAuditDispatcher(audit, jobs.QueueConfig{})

	require.NoError(t, d.CreateAuditLog(context.Background(), &models.AuditLog{Action: models.AuditActionWizardCancel}))
	assert.Len(t, audit.logs, 1)
}

func TestAuditDispatcherFlushesOnStop(t *testing.T) {
	audit := &fakeAudit{}
	d := NewAuditDispatcher(audit, jobs.QueueConfig{Workers: 2, RetryDelay: 10 * time.Millisecond})
	d.Start(context.Background())

	for i := 0; i < 5; i++ {
		require.NoError(t, d.CreateAuditLog(context.Background(), &models.AuditLog{Action: models.AuditActionEnrollmentCreate}))
	}
	d.Stop()

	audit.mu.Lock()
	defer audit.mu.Unlock()
	assert.Len(t, audit.logs, 5)
}
