package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-enrollment-wizard/internal/models"
	"github.com/noah-isme/sma-enrollment-wizard/pkg/jobs"
)

// AuditDispatcher writes audit logs off the request path through a job
// queue. When the queue is not running the log is written inline.
type AuditDispatcher struct {
	writer auditWriter
	queue  *jobs.Queue[*models.AuditLog]
	logger *zap.Logger
}

// NewAuditDispatcher constructs the dispatcher; call Start to enable the queue.
func NewAuditDispatcher(writer auditWriter, cfg jobs.QueueConfig) *AuditDispatcher {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	d := &AuditDispatcher{writer: writer, logger: cfg.Logger}
	d.queue = jobs.NewQueue("audit", func(ctx context.Context, job jobs.Job[*models.AuditLog]) error {
		return d.writer.CreateAuditLog(ctx, job.Payload)
	}, cfg)
	return d
}

// Start begins background processing.
func (d *AuditDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop flushes pending logs and stops the workers.
func (d *AuditDispatcher) Stop() {
	d.queue.Stop()
}

// CreateAuditLog enqueues the log.
func (d *AuditDispatcher) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	err := d.queue.Enqueue(jobs.Job[*models.AuditLog]{ID: log.Action, Payload: log})
	if errors.Is(err, jobs.ErrQueueClosed) {
		d.logger.Debug("audit queue not running, writing inline", zap.String("action", log.Action))
		return d.writer.CreateAuditLog(ctx, log)
	}
	return err
}
