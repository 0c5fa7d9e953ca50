package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/okothvientrevor/musawo-health-backend/internal/models"
	"github.com/okothvientrevor/musawo-health-backend/internal/notify"
	"github.com/okothvientrevor/musawo-health-backend/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var slotTime = time.Date(2099, 1, 1, 9, 0, 0, 0, time.UTC)

func bookingInput(patient, provider *models.User, at time.Time) workflow.BookingInput {
	return workflow.BookingInput{
		PatientID:   patient.ID,
		ProviderID:  provider.ID,
		ScheduledAt: at,
		Modality:    models.ModalityVideo,
		Reason:      "persistent cough",
		FeeAmount:   50,
	}
}

func TestBookAppointment(t *testing.T) {
	db := newTestDB(t)
	wf := newAppointmentWorkflow(t, db)
	patient := seedUser(t, db, models.RolePatient)
	provider := seedUser(t, db, models.RoleDoctor)

	appointment, err := wf.Book(context.Background(), bookingInput(patient, provider, slotTime))
	require.NoError(t, err)

	assert.Equal(t, models.AppointmentScheduled, appointment.Status)
	assert.Equal(t, models.PaymentPending, appointment.PaymentStatus)
	assert.Equal(t, slotTime, appointment.ScheduledAt)
	require.NotNil(t, appointment.SlotKey)

	assert.EqualValues(t, 1, countOutbox(t, db, notify.EventAppointmentBooked))
}

func TestBookSameSlotConflicts(t *testing.T) {
	db := newTestDB(t)
	wf := newAppointmentWorkflow(t, db)
	provider := seedUser(t, db, models.RoleDoctor)
	first := seedUser(t, db, models.RolePatient)
	second := seedUser(t, db, models.RolePatient)

	_, err := wf.Book(context.Background(), bookingInput(first, provider, slotTime))
	require.NoError(t, err)

	_, err = wf.Book(context.Background(), bookingInput(second, provider, slotTime))
	requireKind(t, err, workflow.KindSlotConflict)

	// A different provider at the same time is unaffected.
	other := seedUser(t, db, models.RoleDoctor)
	_, err = wf.Book(context.Background(), bookingInput(second, other, slotTime))
	require.NoError(t, err)
}

func TestBookValidation(t *testing.T) {
	db := newTestDB(t)
	wf := newAppointmentWorkflow(t, db)
	patient := seedUser(t, db, models.RolePatient)
	provider := seedUser(t, db, models.RoleDoctor)

	tests := []struct {
		name   string
		mutate func(*workflow.BookingInput)
		kind   workflow.Kind
	}{
		{
			name:   "past timestamp",
			mutate: func(in *workflow.BookingInput) { in.ScheduledAt = testNow.Add(-time.Hour) },
			kind:   workflow.KindValidation,
		},
		{
			name:   "present timestamp",
			mutate: func(in *workflow.BookingInput) { in.ScheduledAt = testNow },
			kind:   workflow.KindValidation,
		},
		{
			name:   "missing reason",
			mutate: func(in *workflow.BookingInput) { in.Reason = "" },
			kind:   workflow.KindValidation,
		},
		{
			name:   "bad modality",
			mutate: func(in *workflow.BookingInput) { in.Modality = "telepathy" },
			kind:   workflow.KindValidation,
		},
		{
			name:   "negative fee",
			mutate: func(in *workflow.BookingInput) { in.FeeAmount = -1 },
			kind:   workflow.KindValidation,
		},
		{
			name:   "provider booked as patient",
			mutate: func(in *workflow.BookingInput) { in.PatientID = provider.ID },
			kind:   workflow.KindValidation,
		},
		{
			name:   "unknown provider",
			mutate: func(in *workflow.BookingInput) { in.ProviderID = "00000000-0000-0000-0000-000000000000" },
			kind:   workflow.KindNotFound,
		},
		{
			name:   "patient as provider",
			mutate: func(in *workflow.BookingInput) { in.ProviderID = patient.ID },
			kind:   workflow.KindNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := bookingInput(patient, provider, slotTime)
			tt.mutate(&in)
			_, err := wf.Book(context.Background(), in)
			requireKind(t, err, tt.kind)
		})
	}
}

func TestConcurrentBookingHasOneWinner(t *testing.T) {
	db := newTestDB(t)
	wf := newAppointmentWorkflow(t, db)
	provider := seedUser(t, db, models.RoleDoctor)

	const attempts = 8
	patients := make([]*models.User, attempts)
	for i := range patients {
		patients[i] = seedUser(t, db, models.RolePatient)
	}

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = wf.Book(context.Background(), bookingInput(patients[i], provider, slotTime))
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		}
	}
	assert.Equal(t, 1, successes, "exactly one booking may win the slot")

	var live int64
	require.NoError(t, db.Model(&models.Appointment{}).
		Where("provider_id = ? AND scheduled_at = ? AND status <> ?",
			provider.ID, slotTime, models.AppointmentCancelled).
		Count(&live).Error)
	assert.EqualValues(t, 1, live)
}

func TestTerminalStatesAreAbsorbing(t *testing.T) {
	db := newTestDB(t)
	wf := newAppointmentWorkflow(t, db)
	patient := seedUser(t, db, models.RolePatient)
	provider := seedUser(t, db, models.RoleDoctor)

	appointment, err := wf.Book(context.Background(), bookingInput(patient, provider, slotTime))
	require.NoError(t, err)

	_, err = wf.Cancel(context.Background(), appointment.ID)
	require.NoError(t, err)

	_, err = wf.Complete(context.Background(), appointment.ID)
	requireKind(t, err, workflow.KindInvalidTransition)

	_, err = wf.Cancel(context.Background(), appointment.ID)
	requireKind(t, err, workflow.KindInvalidTransition)

	_, err = wf.MarkNoShow(context.Background(), appointment.ID)
	requireKind(t, err, workflow.KindInvalidTransition)

	// Exactly one cancellation event despite repeated attempts.
	assert.EqualValues(t, 1, countOutbox(t, db, notify.EventAppointmentCancelled))
}

func TestCancelFreesTheSlot(t *testing.T) {
	db := newTestDB(t)
	wf := newAppointmentWorkflow(t, db)
	patient := seedUser(t, db, models.RolePatient)
	provider := seedUser(t, db, models.RoleDoctor)

	appointment, err := wf.Book(context.Background(), bookingInput(patient, provider, slotTime))
	require.NoError(t, err)

	cancelled, err := wf.Cancel(context.Background(), appointment.ID)
	require.NoError(t, err)
	assert.Nil(t, cancelled.SlotKey)

	// The freed slot is bookable again.
	_, err = wf.Book(context.Background(), bookingInput(patient, provider, slotTime))
	require.NoError(t, err)
}

func TestReschedule(t *testing.T) {
	db := newTestDB(t)
	wf := newAppointmentWorkflow(t, db)
	patient := seedUser(t, db, models.RolePatient)
	provider := seedUser(t, db, models.RoleDoctor)

	appointment, err := wf.Book(context.Background(), bookingInput(patient, provider, slotTime))
	require.NoError(t, err)

	newTime := slotTime.Add(time.Hour)
	moved, err := wf.Reschedule(context.Background(), appointment.ID, newTime)
	require.NoError(t, err)
	assert.Equal(t, newTime, moved.ScheduledAt)
	assert.Equal(t, models.AppointmentScheduled, moved.Status)
	assert.EqualValues(t, 1, countOutbox(t, db, notify.EventAppointmentRescheduled))
}

func TestRescheduleIntoTakenSlotConflicts(t *testing.T) {
	db := newTestDB(t)
	wf := newAppointmentWorkflow(t, db)
	provider := seedUser(t, db, models.RoleDoctor)
	first := seedUser(t, db, models.RolePatient)
	second := seedUser(t, db, models.RolePatient)

	blocker, err := wf.Book(context.Background(), bookingInput(first, provider, slotTime))
	require.NoError(t, err)

	other, err := wf.Book(context.Background(), bookingInput(second, provider, slotTime.Add(time.Hour)))
	require.NoError(t, err)

	_, err = wf.Reschedule(context.Background(), other.ID, slotTime)
	requireKind(t, err, workflow.KindSlotConflict)

	// Rescheduling onto its own slot is not a conflict.
	_, err = wf.Reschedule(context.Background(), blocker.ID, slotTime)
	require.NoError(t, err)
}

func TestRescheduleCancelledAppointment(t *testing.T) {
	db := newTestDB(t)
	wf := newAppointmentWorkflow(t, db)
	patient := seedUser(t, db, models.RolePatient)
	provider := seedUser(t, db, models.RoleDoctor)

	appointment, err := wf.Book(context.Background(), bookingInput(patient, provider, slotTime))
	require.NoError(t, err)
	_, err = wf.Cancel(context.Background(), appointment.ID)
	require.NoError(t, err)

	_, err = wf.Reschedule(context.Background(), appointment.ID, slotTime.Add(time.Hour))
	requireKind(t, err, workflow.KindInvalidTransition)
}

func TestDeleteAppointmentWithConsultation(t *testing.T) {
	db := newTestDB(t)
	wf := newAppointmentWorkflow(t, db)
	patient := seedUser(t, db, models.RolePatient)
	provider := seedUser(t, db, models.RoleDoctor)

	appointment, err := wf.Book(context.Background(), bookingInput(patient, provider, slotTime))
	require.NoError(t, err)

	consultation := models.Consultation{
		AppointmentID: appointment.ID,
		StartTime:     slotTime,
		Symptoms:      "persistent cough",
	}
	require.NoError(t, db.Create(&consultation).Error)

	err = wf.Delete(context.Background(), appointment.ID)
	requireKind(t, err, workflow.KindConflict)

	require.NoError(t, db.Delete(&models.Consultation{}, "id = ?", consultation.ID).Error)
	require.NoError(t, wf.Delete(context.Background(), appointment.ID))
}

func TestTransitionOnMissingAppointment(t *testing.T) {
	db := newTestDB(t)
	wf := newAppointmentWorkflow(t, db)

	_, err := wf.Complete(context.Background(), "missing-id")
	requireKind(t, err, workflow.KindNotFound)
}
