package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/interview-rescheduler/internal/dto"
	"github.com/noah-isme/interview-rescheduler/internal/models"
	"github.com/noah-isme/interview-rescheduler/pkg/middleware/requestid"
)

type rosterStub struct {
	students []models.Student
	err      error
}

func (r rosterStub) ListMailboxes(ctx context.Context) ([]models.Student, error) {
	return r.students, r.err
}

type senderStub struct {
	calls   int
	payload dto.DeliveryPayload
	runID   string
	err     error
}

func (s *senderStub) Send(ctx context.Context, payload dto.DeliveryPayload) error {
	s.calls++
	s.payload = payload
	s.runID = requestid.FromContext(ctx)
	return s.err
}

func TestRunnerDeliversPayload(t *testing.T) {
	ex := &stubExtractor{fn: func(text string) models.ExtractedInterview { return interview("Acme", "2024-01-01T10:00:00") }}
	p := New(&countingMailbox{perInbox: 1}, ex, Config{}, zap.NewNop())
	sender := &senderStub{}

	err := NewRunner(rosterStub{students: students(2)}, p, sender, 0, zap.NewNop()).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sender.calls)
	assert.Len(t, sender.payload, 2)
	assert.NotEmpty(t, sender.runID)
}

func TestRunnerSkipsDeliveryWhenNothingFound(t *testing.T) {
	ex := &stubExtractor{fn: func(text string) models.ExtractedInterview { return models.ExtractedInterview{RawText: text} }}
	p := New(&countingMailbox{perInbox: 1}, ex, Config{}, zap.NewNop())
	sender := &senderStub{}

	err := NewRunner(rosterStub{students: students(3)}, p, sender, 0, zap.NewNop()).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sender.calls)
}

func TestRunnerEmptyRoster(t *testing.T) {
	sender := &senderStub{}
	p := New(&countingMailbox{}, &stubExtractor{}, Config{}, zap.NewNop())

	err := NewRunner(rosterStub{}, p, sender, 0, zap.NewNop()).RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrNoStudents)
	assert.Zero(t, sender.calls)
}

func TestRunnerSurfacesDeliveryFailure(t *testing.T) {
	ex := &stubExtractor{fn: func(text string) models.ExtractedInterview { return interview("Acme", "2024-01-01T10:00:00") }}
	p := New(&countingMailbox{perInbox: 1}, ex, Config{}, zap.NewNop())
	sender := &senderStub{err: errors.New("backend error 500")}

	err := NewRunner(rosterStub{students: students(1)}, p, sender, 0, zap.NewNop()).RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend error 500")
	assert.Equal(t, 1, sender.calls)
}
