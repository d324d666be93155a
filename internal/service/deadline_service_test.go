package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fee-portal-api/internal/models"
	appErrors "github.com/noah-isme/fee-portal-api/pkg/errors"
	"github.com/noah-isme/fee-portal-api/pkg/jobs"
	"github.com/noah-isme/fee-portal-api/pkg/notify"
)

type mockDeadlineRepo struct {
	deadlines map[string]models.FeeDeadline
	nextID    int
}

func (m *mockDeadlineRepo) List(ctx context.Context) ([]models.FeeDeadline, error) {
	out := make([]models.FeeDeadline, 0, len(m.deadlines))
	for _, d := range m.deadlines {
		out = append(out, d)
	}
	return out, nil
}

func (m *mockDeadlineRepo) FindByID(ctx context.Context, id string) (*models.FeeDeadline, error) {
	if d, ok := m.deadlines[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockDeadlineRepo) Create(ctx context.Context, deadline *models.FeeDeadline) error {
	if m.deadlines == nil {
		m.deadlines = make(map[string]models.FeeDeadline)
	}
	m.nextID++
	deadline.ID = fmt.Sprintf("dl-%d", m.nextID)
	m.deadlines[deadline.ID] = *deadline
	return nil
}

func (m *mockDeadlineRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.deadlines[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.deadlines, id)
	return nil
}

func (m *mockDeadlineRepo) DueWithin(ctx context.Context, lookahead time.Duration) ([]models.FeeDeadline, error) {
	cutoff := time.Now().UTC().Add(lookahead)
	var out []models.FeeDeadline
	for _, d := range m.deadlines {
		if d.Deadline.Before(cutoff) {
			out = append(out, d)
		}
	}
	return out, nil
}

type mockDebtorLister struct {
	debtors []models.DebtorEntry
}

func (m *mockDebtorLister) Debtors(ctx context.Context, branch, feeType string) ([]models.DebtorEntry, error) {
	return m.debtors, nil
}

type mockQueue struct {
	jobs []jobs.Job
	err  error
}

func (m *mockQueue) Enqueue(job jobs.Job) error {
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, job)
	return nil
}

type mockNotifier struct {
	sent []notify.Message
	err  error
}

func (m *mockNotifier) Send(ctx context.Context, msg notify.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func newDeadlineService(repo *mockDeadlineRepo, debtors *mockDebtorLister, txns *mockTxnWriter, notifier *mockNotifier, queue *mockQueue) *DeadlineService {
	return NewDeadlineService(repo, debtors, txns, notifier, queue, &mockAuditRecorder{}, nil, nil)
}

func TestDeadlineCreateAndDelete(t *testing.T) {
	repo := &mockDeadlineRepo{}
	svc := newDeadlineService(repo, &mockDebtorLister{}, &mockTxnWriter{}, &mockNotifier{}, &mockQueue{})

	deadline, err := svc.Create(context.Background(), "adm-1", models.CreateDeadlineRequest{
		Branch:   "CSE",
		FeeType:  "Tuition",
		Deadline: time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, deadline.ID)
	require.NotNil(t, deadline.CreatedBy)
	assert.Equal(t, "adm-1", *deadline.CreatedBy)

	require.NoError(t, svc.Delete(context.Background(), "adm-1", deadline.ID))

	err = svc.Delete(context.Background(), "adm-1", deadline.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestNotifyQueuesOneJobPerDebtor(t *testing.T) {
	repo := &mockDeadlineRepo{deadlines: map[string]models.FeeDeadline{
		"dl-1": {ID: "dl-1", Branch: "CSE", FeeType: "Tuition", Deadline: time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)},
	}}
	debtors := &mockDebtorLister{debtors: []models.DebtorEntry{
		{StudentUUID: "stu-1", StudentID: "S1", Name: "Asha", Mobile: "9876543210", FeeName: "Tuition", Year: "2024-25", DueAmount: 7000},
		{StudentUUID: "stu-2", StudentID: "S2", Name: "Ravi", Mobile: "9876543211", FeeName: "Tuition", Year: "2024-25", DueAmount: 10000},
	}}
	queue := &mockQueue{}
	svc := newDeadlineService(repo, debtors, &mockTxnWriter{}, &mockNotifier{}, queue)

	dispatch, err := svc.Notify(context.Background(), "dl-1")
	require.NoError(t, err)

	assert.Equal(t, "dl-1", dispatch.DeadlineID)
	assert.Equal(t, 2, dispatch.Queued)
	require.Len(t, queue.jobs, 2)

	for _, job := range queue.jobs {
		assert.Equal(t, ReminderJobType, job.Type)
		payload, ok := job.Payload.(ReminderPayload)
		require.True(t, ok)
		assert.Equal(t, "15 Sep 2026", payload.Deadline)
	}
}

func TestNotifyUnknownDeadline(t *testing.T) {
	svc := newDeadlineService(&mockDeadlineRepo{}, &mockDebtorLister{}, &mockTxnWriter{}, &mockNotifier{}, &mockQueue{})

	_, err := svc.Notify(context.Background(), "dl-404")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestHandleReminderJobSendsAndLogsTransaction(t *testing.T) {
	txns := &mockTxnWriter{}
	notifier := &mockNotifier{}
	svc := newDeadlineService(&mockDeadlineRepo{}, &mockDebtorLister{}, txns, notifier, &mockQueue{})

	payload := ReminderPayload{
		StudentUUID: "stu-1",
		StudentID:   "S1",
		Name:        "Asha",
		Mobile:      "9876543210",
		FeeType:     "Tuition",
		Year:        "2024-25",
		DueAmount:   7000,
		Deadline:    "15 Sep 2026",
	}
	err := svc.HandleReminderJob(context.Background(), jobs.Job{ID: "job-1", Type: ReminderJobType, Payload: payload})
	require.NoError(t, err)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "9876543210", notifier.sent[0].Mobile)
	assert.Contains(t, notifier.sent[0].Body, "Asha (S1)")

	recorded := txns.ofType(models.TransactionSMSNotification)
	require.Len(t, recorded, 1)
	assert.Equal(t, "stu-1", recorded[0].StudentID)
	assert.Zero(t, recorded[0].Amount)
	assert.Equal(t, "SMS reminder sent for Tuition (2024-25), due ₹7000 by 15 Sep 2026", recorded[0].Description)
}

func TestHandleReminderJobSendFailure(t *testing.T) {
	txns := &mockTxnWriter{}
	notifier := &mockNotifier{err: fmt.Errorf("gateway down")}
	svc := newDeadlineService(&mockDeadlineRepo{}, &mockDebtorLister{}, txns, notifier, &mockQueue{})

	err := svc.HandleReminderJob(context.Background(), jobs.Job{Type: ReminderJobType, Payload: ReminderPayload{StudentID: "S1", Mobile: "9876543210"}})
	require.Error(t, err)
	assert.Empty(t, txns.txns)
}

func TestHandleReminderJobRejectsForeignPayload(t *testing.T) {
	svc := newDeadlineService(&mockDeadlineRepo{}, &mockDebtorLister{}, &mockTxnWriter{}, &mockNotifier{}, &mockQueue{})

	err := svc.HandleReminderJob(context.Background(), jobs.Job{Type: ReminderJobType, Payload: "not-a-reminder"})
	require.Error(t, err)
}

func TestSweepDispatchesEveryDueDeadline(t *testing.T) {
	repo := &mockDeadlineRepo{deadlines: map[string]models.FeeDeadline{
		"dl-1": {ID: "dl-1", Branch: "CSE", FeeType: "Tuition", Deadline: time.Now().UTC().Add(24 * time.Hour)},
		"dl-2": {ID: "dl-2", Branch: "ECE", FeeType: "Bus", Deadline: time.Now().UTC().Add(48 * time.Hour)},
		"dl-3": {ID: "dl-3", Branch: "CSE", FeeType: "Exam", Deadline: time.Now().UTC().Add(30 * 24 * time.Hour)},
	}}
	debtors := &mockDebtorLister{debtors: []models.DebtorEntry{
		{StudentUUID: "stu-1", StudentID: "S1", Mobile: "9876543210", FeeName: "Tuition", Year: "2024-25", DueAmount: 7000},
	}}
	queue := &mockQueue{}
	svc := newDeadlineService(repo, debtors, &mockTxnWriter{}, &mockNotifier{}, queue)

	err := svc.Sweep(context.Background(), 72*time.Hour)
	require.NoError(t, err)
	assert.Len(t, queue.jobs, 2)
}
