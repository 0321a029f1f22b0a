package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/linesmerrill/counsel-relay-api/databases"
	"github.com/linesmerrill/counsel-relay-api/models"
	templates "github.com/linesmerrill/counsel-relay-api/templates/html"
)

const (
	exportLockName = "session_export_job"
	exportLockTTL  = 10 * time.Minute
	exportTimeout  = 5 * time.Minute
)

// Exporter builds the finished session export
type Exporter interface {
	Export(ctx context.Context, limit int) (*models.SessionExport, error)
}

// Scheduler runs the periodic export of finished sessions
type Scheduler struct {
	cron     *cron.Cron
	Exporter Exporter
	// LockDB guards the job across instances; nil runs without a lock
	LockDB    databases.SchedulerLockDatabase
	Mailer    Mailer
	Recipient string
	Spec      string
	Limit     int

	instanceID string
}

// NewScheduler creates a new scheduler instance
func NewScheduler(exporter Exporter, lockDB databases.SchedulerLockDatabase, mailer Mailer, recipient, spec string) *Scheduler {
	// Generate a unique instance ID for this pod
	instanceID := os.Getenv("DYNO") // Heroku sets this to "web.1", "web.2", etc.
	if instanceID == "" {
		instanceID = fmt.Sprintf("instance-%d", time.Now().UnixNano())
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		Exporter:   exporter,
		LockDB:     lockDB,
		Mailer:     mailer,
		Recipient:  recipient,
		Spec:       spec,
		instanceID: instanceID,
	}
}

// Start registers the export job and begins the scheduler
func (s *Scheduler) Start() error {
	if s.Recipient == "" {
		zap.S().Info("no export recipient configured, export scheduler disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(s.Spec, s.exportFinishedSessions); err != nil {
		return fmt.Errorf("register export job: %w", err)
	}
	s.cron.Start()
	zap.S().Infow("export scheduler started", "spec", s.Spec)
	return nil
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("export scheduler stopped")
}

func (s *Scheduler) exportFinishedSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
	defer cancel()

	if err := s.RunExport(ctx); err != nil {
		zap.S().Errorw("scheduled export failed", "error", err)
		s.reportFailure(err)
	}
}

// ErrLockHeld is returned by RunExport when another instance runs the job
var ErrLockHeld = errors.New("export job already running on another instance")

// RunExport builds the export and mails it to the recipient
func (s *Scheduler) RunExport(ctx context.Context) error {
	if s.LockDB != nil {
		acquired, err := s.LockDB.TryAcquireLock(ctx, exportLockName, s.instanceID, exportLockTTL)
		if err != nil {
			return fmt.Errorf("acquire export lock: %w", err)
		}
		if !acquired {
			zap.S().Debug("export job already running on another instance, skipping")
			return ErrLockHeld
		}
		defer func() {
			if err := s.LockDB.ReleaseLock(context.Background(), exportLockName, s.instanceID); err != nil {
				zap.S().Warnw("failed to release export lock", "error", err)
			}
		}()
	}

	doc, err := s.Exporter.Export(ctx, s.Limit)
	if err != nil {
		return fmt.Errorf("build export: %w", err)
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode export: %w", err)
	}

	err = s.Mailer.Send(ctx, Email{
		To:      s.Recipient,
		Subject: templates.ExportSubject(doc),
		Text:    templates.RenderExportText(doc),
		HTML:    templates.RenderExportEmail(doc),
		Attachments: []Attachment{{
			Filename:    fmt.Sprintf("sessions_export_%s.json", doc.ExportDate.Format("20060102_150405")),
			ContentType: "application/json",
			Content:     raw,
		}},
	})
	if err != nil {
		return fmt.Errorf("mail export: %w", err)
	}
	zap.S().Infow("session export mailed", "sessions", doc.TotalSessions, "instance", s.instanceID)
	return nil
}

func (s *Scheduler) reportFailure(cause error) {
	if errors.Is(cause, ErrLockHeld) {
		return
	}
	subject := "Session export failed"
	body := fmt.Sprintf("The scheduled session export could not be completed.\n\n%v", cause)
	err := s.Mailer.Send(context.Background(), Email{
		To:      s.Recipient,
		Subject: subject,
		Text:    body,
		HTML:    templates.RenderGenericEmail(subject, body),
	})
	if err != nil {
		zap.S().Errorw("failed to report export failure", "error", err)
	}
}
