package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/okothvientrevor/musawo-health-backend/internal/models"
	"github.com/okothvientrevor/musawo-health-backend/internal/notify"
	"github.com/okothvientrevor/musawo-health-backend/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newConsultationWorkflow(t *testing.T, db *gorm.DB) (*workflow.ConsultationWorkflow, *workflow.AppointmentWorkflow) {
	t.Helper()
	appointments := newAppointmentWorkflow(t, db)
	return workflow.NewConsultationWorkflow(db, workflow.FixedClock{At: testNow}, appointments, zap.NewNop()), appointments
}

func bookTestAppointment(t *testing.T, db *gorm.DB, wf *workflow.AppointmentWorkflow) *models.Appointment {
	t.Helper()
	patient := seedUser(t, db, models.RolePatient)
	provider := seedUser(t, db, models.RoleDoctor)
	appointment, err := wf.Book(context.Background(), bookingInput(patient, provider, slotTime))
	require.NoError(t, err)
	return appointment
}

func TestOpenConsultationCompletesAppointment(t *testing.T) {
	db := newTestDB(t)
	wf, appointments := newConsultationWorkflow(t, db)
	appointment := bookTestAppointment(t, db, appointments)

	consultation, err := wf.Open(context.Background(), workflow.OpenConsultationInput{
		AppointmentID: appointment.ID,
		Symptoms:      "fever, headache",
	})
	require.NoError(t, err)
	assert.Nil(t, consultation.EndTime)
	assert.Equal(t, testNow, consultation.StartTime)

	var reloaded models.Appointment
	require.NoError(t, db.First(&reloaded, "id = ?", appointment.ID).Error)
	assert.Equal(t, models.AppointmentCompleted, reloaded.Status)

	assert.EqualValues(t, 1, countOutbox(t, db, notify.EventConsultationOpened))
	assert.EqualValues(t, 1, countOutbox(t, db, notify.EventAppointmentCompleted))
}

func TestOpenConsultationOnCompletedAppointment(t *testing.T) {
	db := newTestDB(t)
	wf, appointments := newConsultationWorkflow(t, db)
	appointment := bookTestAppointment(t, db, appointments)

	_, err := appointments.Complete(context.Background(), appointment.ID)
	require.NoError(t, err)

	// A consultation can still be attached afterwards; the appointment
	// is left as-is and no duplicate completion event is written.
	_, err = wf.Open(context.Background(), workflow.OpenConsultationInput{
		AppointmentID: appointment.ID,
		Symptoms:      "fever",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, countOutbox(t, db, notify.EventAppointmentCompleted))
}

func TestOpenConsultationOnCancelledAppointment(t *testing.T) {
	db := newTestDB(t)
	wf, appointments := newConsultationWorkflow(t, db)
	appointment := bookTestAppointment(t, db, appointments)

	_, err := appointments.Cancel(context.Background(), appointment.ID)
	require.NoError(t, err)

	_, err = wf.Open(context.Background(), workflow.OpenConsultationInput{
		AppointmentID: appointment.ID,
		Symptoms:      "fever",
	})
	requireKind(t, err, workflow.KindInvalidTransition)

	// The failed open must not leave a consultation behind.
	var n int64
	require.NoError(t, db.Model(&models.Consultation{}).
		Where("appointment_id = ?", appointment.ID).Count(&n).Error)
	assert.Zero(t, n)
}

func TestOpenSecondConsultation(t *testing.T) {
	db := newTestDB(t)
	wf, appointments := newConsultationWorkflow(t, db)
	appointment := bookTestAppointment(t, db, appointments)

	_, err := wf.Open(context.Background(), workflow.OpenConsultationInput{
		AppointmentID: appointment.ID,
		Symptoms:      "fever",
	})
	require.NoError(t, err)

	_, err = wf.Open(context.Background(), workflow.OpenConsultationInput{
		AppointmentID: appointment.ID,
		Symptoms:      "fever again",
	})
	requireKind(t, err, workflow.KindAlreadyExists)
}

func TestOpenConsultationValidation(t *testing.T) {
	db := newTestDB(t)
	wf, _ := newConsultationWorkflow(t, db)

	_, err := wf.Open(context.Background(), workflow.OpenConsultationInput{Symptoms: "fever"})
	requireKind(t, err, workflow.KindValidation)

	_, err = wf.Open(context.Background(), workflow.OpenConsultationInput{AppointmentID: "some-id"})
	requireKind(t, err, workflow.KindValidation)

	_, err = wf.Open(context.Background(), workflow.OpenConsultationInput{
		AppointmentID: "missing-id",
		Symptoms:      "fever",
	})
	requireKind(t, err, workflow.KindNotFound)
}

func TestEndConsultationOnce(t *testing.T) {
	db := newTestDB(t)
	wf, appointments := newConsultationWorkflow(t, db)
	appointment := bookTestAppointment(t, db, appointments)

	consultation, err := wf.Open(context.Background(), workflow.OpenConsultationInput{
		AppointmentID: appointment.ID,
		Symptoms:      "fever",
	})
	require.NoError(t, err)

	ended, err := wf.End(context.Background(), consultation.ID)
	require.NoError(t, err)
	require.NotNil(t, ended.EndTime)
	assert.Equal(t, testNow, *ended.EndTime)

	_, err = wf.End(context.Background(), consultation.ID)
	requireKind(t, err, workflow.KindInvalidTransition)
}

func TestUpdateConsultation(t *testing.T) {
	db := newTestDB(t)
	wf, appointments := newConsultationWorkflow(t, db)
	appointment := bookTestAppointment(t, db, appointments)

	consultation, err := wf.Open(context.Background(), workflow.OpenConsultationInput{
		AppointmentID: appointment.ID,
		Symptoms:      "fever",
	})
	require.NoError(t, err)

	diagnosis := "malaria"
	followUp := true
	followUpDate := testNow.Add(7 * 24 * time.Hour)
	updated, err := wf.Update(context.Background(), consultation.ID, workflow.UpdateConsultationInput{
		Diagnosis:        &diagnosis,
		FollowUpRequired: &followUp,
		FollowUpDate:     &followUpDate,
	})
	require.NoError(t, err)
	assert.Equal(t, "malaria", updated.Diagnosis)
	assert.True(t, updated.FollowUpRequired)
	assert.Nil(t, updated.EndTime, "updates never close the consultation")

	// Untouched fields survive a partial update.
	plan := "rest and fluids"
	updated, err = wf.Update(context.Background(), consultation.ID, workflow.UpdateConsultationInput{
		TreatmentPlan: &plan,
	})
	require.NoError(t, err)
	assert.Equal(t, "malaria", updated.Diagnosis)
	assert.Equal(t, "rest and fluids", updated.TreatmentPlan)

	bad := testNow.Add(-time.Hour)
	_, err = wf.Update(context.Background(), consultation.ID, workflow.UpdateConsultationInput{
		FollowUpDate: &bad,
	})
	requireKind(t, err, workflow.KindValidation)
}

func TestDeleteConsultationWithTranscript(t *testing.T) {
	db := newTestDB(t)
	wf, appointments := newConsultationWorkflow(t, db)
	appointment := bookTestAppointment(t, db, appointments)

	consultation, err := wf.Open(context.Background(), workflow.OpenConsultationInput{
		AppointmentID: appointment.ID,
		Symptoms:      "fever",
	})
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Consultation{}).
		Where("id = ?", consultation.ID).
		Update("has_transcript", true).Error)

	err = wf.Delete(context.Background(), consultation.ID)
	requireKind(t, err, workflow.KindConflict)

	require.NoError(t, db.Model(&models.Consultation{}).
		Where("id = ?", consultation.ID).
		Update("has_transcript", false).Error)
	require.NoError(t, wf.Delete(context.Background(), consultation.ID))
}
