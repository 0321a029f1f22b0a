package scheduler_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/counsel-relay-api/api/scheduler"
	"github.com/linesmerrill/counsel-relay-api/databases/mocks"
	"github.com/linesmerrill/counsel-relay-api/models"
)

type fakeExporter struct {
	doc *models.SessionExport
	err error
}

func (f fakeExporter) Export(context.Context, int) (*models.SessionExport, error) {
	return f.doc, f.err
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, email scheduler.Email) error {
	return m.Called(ctx, email).Error(0)
}

func sampleExport() *models.SessionExport {
	return &models.SessionExport{
		ExportDate:    time.Date(2024, 5, 3, 3, 0, 0, 0, time.UTC),
		TotalSessions: 1,
		Sessions:      []models.ExportedSession{{SessionID: 1, UserAnonymousID: "User-4821", CounselorID: "c1", Category: "stress"}},
	}
}

func TestRunExport_MailsAttachment(t *testing.T) {
	lock := &mocks.SchedulerLockDatabase{}
	lock.On("TryAcquireLock", mock.Anything, "session_export_job", mock.Anything, mock.Anything).Return(true, nil)
	lock.On("ReleaseLock", mock.Anything, "session_export_job", mock.Anything).Return(nil)

	var sent scheduler.Email
	mailer := &mockMailer{}
	mailer.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(1).(scheduler.Email)
	}).Return(nil)

	s := scheduler.NewScheduler(fakeExporter{doc: sampleExport()}, lock, mailer, "ops@example.com", "0 3 * * *")
	require.NoError(t, s.RunExport(context.Background()))

	assert.Equal(t, "ops@example.com", sent.To)
	assert.Contains(t, sent.Subject, "1 sessions")
	require.Len(t, sent.Attachments, 1)
	assert.Equal(t, "sessions_export_20240503_030000.json", sent.Attachments[0].Filename)

	var decoded models.SessionExport
	require.NoError(t, json.Unmarshal(sent.Attachments[0].Content, &decoded))
	assert.Equal(t, 1, decoded.TotalSessions)
	assert.Equal(t, "User-4821", decoded.Sessions[0].UserAnonymousID)

	lock.AssertExpectations(t)
	mailer.AssertExpectations(t)
}

func TestRunExport_SkipsWhenLockHeld(t *testing.T) {
	lock := &mocks.SchedulerLockDatabase{}
	lock.On("TryAcquireLock", mock.Anything, "session_export_job", mock.Anything, mock.Anything).Return(false, nil)
	mailer := &mockMailer{}

	s := scheduler.NewScheduler(fakeExporter{doc: sampleExport()}, lock, mailer, "ops@example.com", "0 3 * * *")
	assert.ErrorIs(t, s.RunExport(context.Background()), scheduler.ErrLockHeld)
	mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestRunExport_ExportFailureReleasesLock(t *testing.T) {
	lock := &mocks.SchedulerLockDatabase{}
	lock.On("TryAcquireLock", mock.Anything, "session_export_job", mock.Anything, mock.Anything).Return(true, nil)
	lock.On("ReleaseLock", mock.Anything, "session_export_job", mock.Anything).Return(nil)
	mailer := &mockMailer{}

	boom := errors.New("boom")
	s := scheduler.NewScheduler(fakeExporter{err: boom}, lock, mailer, "ops@example.com", "0 3 * * *")
	assert.ErrorIs(t, s.RunExport(context.Background()), boom)
	lock.AssertCalled(t, "ReleaseLock", mock.Anything, "session_export_job", mock.Anything)
}

func TestRunExport_WithoutLock(t *testing.T) {
	mailer := &mockMailer{}
	mailer.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	s := scheduler.NewScheduler(fakeExporter{doc: sampleExport()}, nil, mailer, "ops@example.com", "0 3 * * *")
	assert.Error(t, s.RunExport(context.Background()))
}

func TestStart(t *testing.T) {
	s := scheduler.NewScheduler(fakeExporter{}, nil, &mockMailer{}, "", "0 3 * * *")
	assert.NoError(t, s.Start())

	s = scheduler.NewScheduler(fakeExporter{}, nil, &mockMailer{}, "ops@example.com", "not a spec")
	assert.Error(t, s.Start())

	s = scheduler.NewScheduler(fakeExporter{}, nil, &mockMailer{}, "ops@example.com", "0 3 * * *")
	require.NoError(t, s.Start())
	s.Stop()
}
