package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/leadflow/crm/internal/models"
	"github.com/leadflow/crm/pkg/queue"
)

// JobSource is the queue side the processor consumes. *queue.Queue implements it.
type JobSource interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// LogRecorder stores delivery outcomes. *emaillogs.Repository implements it.
type LogRecorder interface {
	Record(ctx context.Context, log *models.EmailLog) error
}

// EmailProcessor delivers queued email jobs and records one log row per recipient.
type EmailProcessor struct {
	queue   JobSource
	mailer  Mailer
	logs    LogRecorder
	logger  *zap.Logger
	backoff time.Duration
	now     func() time.Time
}

// NewEmailProcessor creates an email job processor. logs may be nil.
func NewEmailProcessor(q JobSource, mailer Mailer, logs LogRecorder, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{queue: q, mailer: mailer, logs: logs, logger: logger, backoff: queue.RetryBackoff, now: time.Now}
}

// Process delivers one job. A delivery failure is returned so the caller can retry;
// failing to write the log rows is only logged.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	payload, err := job.EmailPayload()
	if err != nil {
		return err
	}
	if len(payload.Recipients) == 0 {
		p.logger.Warn("email job without recipients", zap.String("job_id", job.ID))
		return nil
	}

	sendErr := p.mailer.Send(ctx, Message{To: payload.Recipients, Subject: payload.Subject, Body: payload.Body})
	p.record(ctx, payload, sendErr)
	if sendErr != nil {
		return fmt.Errorf("send %s email: %w", payload.EmailType, sendErr)
	}
	p.logger.Info("email sent",
		zap.String("job_id", job.ID),
		zap.String("email_type", payload.EmailType),
		zap.Int("recipients", len(payload.Recipients)),
	)
	return nil
}

func (p *EmailProcessor) record(ctx context.Context, payload queue.EmailPayload, sendErr error) {
	if p.logs == nil {
		return
	}
	for _, to := range payload.Recipients {
		entry := &models.EmailLog{
			OrganizationID: payload.OrganizationID,
			LeadID:         payload.LeadID,
			EmailType:      payload.EmailType,
			RecipientEmail: to,
			Subject:        payload.Subject,
			Status:         models.EmailLogStatusSent,
		}
		if sendErr != nil {
			entry.Status = models.EmailLogStatusFailed
			entry.ErrorMessage = sendErr.Error()
		} else {
			at := p.now().UTC()
			entry.SentAt = &at
		}
		if err := p.logs.Record(ctx, entry); err != nil {
			p.logger.Warn("record email log failed", zap.Error(err), zap.String("recipient", to))
		}
	}
}

// Run starts the worker loop: dequeue, process, retry on error. It returns when ctx is done.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)), zap.Int("attempt", job.Attempt))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *EmailProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
