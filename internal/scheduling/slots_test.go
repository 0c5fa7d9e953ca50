package scheduling_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/okothvientrevor/musawo-health-backend/internal/models"
	"github.com/okothvientrevor/musawo-health-backend/internal/scheduling"
	"github.com/okothvientrevor/musawo-health-backend/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	calendarNow = time.Date(2098, 12, 31, 12, 0, 0, 0, time.UTC)
	calendarDay = time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	return db
}

func newCalendar(t *testing.T, db *gorm.DB, config scheduling.SlotConfig) *scheduling.SlotCalendar {
	t.Helper()
	return scheduling.NewSlotCalendar(db, workflow.FixedClock{At: calendarNow}, config)
}

func seedAppointment(t *testing.T, db *gorm.DB, providerID string, at time.Time, status models.AppointmentStatus) {
	t.Helper()
	appointment := models.Appointment{
		PatientID:   "patient-1",
		ProviderID:  providerID,
		ScheduledAt: at,
		Status:      status,
		Modality:    models.ModalityVideo,
		Reason:      "checkup",
	}
	if status != models.AppointmentCancelled {
		key := models.SlotKeyFor(providerID, at)
		appointment.SlotKey = &key
	}
	require.NoError(t, db.Create(&appointment).Error)
}

func TestAvailableSlotsFullDay(t *testing.T) {
	db := newTestDB(t)
	calendar := newCalendar(t, db, scheduling.DefaultSlotConfig())

	slots, err := calendar.AvailableSlots(context.Background(), "doc-1", calendarDay)
	require.NoError(t, err)

	// 08:00 through 17:00 inclusive at 30-minute width.
	require.Len(t, slots, 19)
	assert.Equal(t, calendarDay.Add(8*time.Hour), slots[0])
	assert.Equal(t, calendarDay.Add(17*time.Hour), slots[len(slots)-1])
	for i := 1; i < len(slots); i++ {
		assert.Equal(t, 30*time.Minute, slots[i].Sub(slots[i-1]))
	}
}

func TestAvailableSlotsExcludeBooked(t *testing.T) {
	db := newTestDB(t)
	calendar := newCalendar(t, db, scheduling.DefaultSlotConfig())

	nineAM := calendarDay.Add(9 * time.Hour)
	seedAppointment(t, db, "doc-1", nineAM, models.AppointmentScheduled)
	seedAppointment(t, db, "doc-1", calendarDay.Add(10*time.Hour), models.AppointmentCompleted)

	slots, err := calendar.AvailableSlots(context.Background(), "doc-1", calendarDay)
	require.NoError(t, err)
	require.Len(t, slots, 17)
	for _, slot := range slots {
		assert.NotEqual(t, nineAM.Unix(), slot.Unix())
		assert.NotEqual(t, calendarDay.Add(10*time.Hour).Unix(), slot.Unix())
	}
}

func TestAvailableSlotsIncludeCancelled(t *testing.T) {
	db := newTestDB(t)
	calendar := newCalendar(t, db, scheduling.DefaultSlotConfig())

	seedAppointment(t, db, "doc-1", calendarDay.Add(9*time.Hour), models.AppointmentCancelled)

	slots, err := calendar.AvailableSlots(context.Background(), "doc-1", calendarDay)
	require.NoError(t, err)
	assert.Len(t, slots, 19, "a cancelled appointment frees its slot")
}

func TestAvailableSlotsPerProvider(t *testing.T) {
	db := newTestDB(t)
	calendar := newCalendar(t, db, scheduling.DefaultSlotConfig())

	seedAppointment(t, db, "doc-1", calendarDay.Add(9*time.Hour), models.AppointmentScheduled)

	slots, err := calendar.AvailableSlots(context.Background(), "doc-2", calendarDay)
	require.NoError(t, err)
	assert.Len(t, slots, 19, "another provider's booking does not block the slot")
}

func TestAvailableSlotsPastDate(t *testing.T) {
	db := newTestDB(t)
	calendar := newCalendar(t, db, scheduling.DefaultSlotConfig())

	_, err := calendar.AvailableSlots(context.Background(), "doc-1", calendarNow.AddDate(0, 0, -1))
	require.Error(t, err)
	kind, ok := workflow.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, workflow.KindValidation, kind)

	// Today itself is still listable.
	_, err = calendar.AvailableSlots(context.Background(), "doc-1", calendarNow)
	require.NoError(t, err)
}

func TestAvailableSlotsMissingProvider(t *testing.T) {
	db := newTestDB(t)
	calendar := newCalendar(t, db, scheduling.DefaultSlotConfig())

	_, err := calendar.AvailableSlots(context.Background(), "", calendarDay)
	require.Error(t, err)
	kind, ok := workflow.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, workflow.KindValidation, kind)
}

func TestAvailableSlotsCustomConfig(t *testing.T) {
	db := newTestDB(t)
	calendar := newCalendar(t, db, scheduling.SlotConfig{
		WindowStart: 9 * time.Hour,
		WindowEnd:   12 * time.Hour,
		SlotWidth:   time.Hour,
	})

	slots, err := calendar.AvailableSlots(context.Background(), "doc-1", calendarDay)
	require.NoError(t, err)
	require.Len(t, slots, 4)
	assert.Equal(t, calendarDay.Add(9*time.Hour), slots[0])
	assert.Equal(t, calendarDay.Add(12*time.Hour), slots[3])
}
