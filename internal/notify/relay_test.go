package notify_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/okothvientrevor/musawo-health-backend/internal/models"
	"github.com/okothvientrevor/musawo-health-backend/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
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

func seedOutbox(t *testing.T, db *gorm.DB, eventType, userID string) *models.OutboxEvent {
	t.Helper()
	row := models.OutboxEvent{
		EventType:   eventType,
		AggregateID: "agg-1",
		UserID:      userID,
		Payload:     datatypes.JSON(`{"appointmentId":"agg-1"}`),
	}
	require.NoError(t, db.Create(&row).Error)
	return &row
}

// recordingDispatcher counts deliveries and fails the first failUntil
// attempts.
type recordingDispatcher struct {
	events    []notify.Event
	failUntil int
	calls     int
}

func (d *recordingDispatcher) Enqueue(_ context.Context, event notify.Event) error {
	d.calls++
	if d.calls <= d.failUntil {
		return errors.New("broker unavailable")
	}
	d.events = append(d.events, event)
	return nil
}

func TestDrainOnceDispatchesPendingRows(t *testing.T) {
	db := newTestDB(t)
	seedOutbox(t, db, notify.EventAppointmentBooked, "user-1")
	seedOutbox(t, db, notify.EventLabResultReady, "user-2")

	dispatcher := &recordingDispatcher{}
	relay := notify.NewOutboxRelay(db, dispatcher, zap.NewNop(), 0)

	delivered, err := relay.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)
	require.Len(t, dispatcher.events, 2)

	var pending int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("dispatched_at IS NULL").Count(&pending).Error)
	assert.Zero(t, pending)

	// A second drain finds nothing; rows are dispatched exactly once.
	delivered, err = relay.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, delivered)
	assert.Len(t, dispatcher.events, 2)
}

func TestDrainOnceRetriesFailures(t *testing.T) {
	db := newTestDB(t)
	row := seedOutbox(t, db, notify.EventAppointmentBooked, "user-1")

	dispatcher := &recordingDispatcher{failUntil: 2}
	relay := notify.NewOutboxRelay(db, dispatcher, zap.NewNop(), 0)

	for i := 1; i <= 2; i++ {
		delivered, err := relay.DrainOnce(context.Background())
		require.NoError(t, err)
		assert.Zero(t, delivered)

		var reloaded models.OutboxEvent
		require.NoError(t, db.First(&reloaded, "id = ?", row.ID).Error)
		assert.Equal(t, i, reloaded.Attempts)
		assert.Nil(t, reloaded.DispatchedAt, "failed rows stay pending")
	}

	delivered, err := relay.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)

	var reloaded models.OutboxEvent
	require.NoError(t, db.First(&reloaded, "id = ?", row.ID).Error)
	assert.Equal(t, 3, reloaded.Attempts)
	assert.NotNil(t, reloaded.DispatchedAt)
}

func TestDBDispatcherWritesNotification(t *testing.T) {
	db := newTestDB(t)
	row := seedOutbox(t, db, notify.EventLabResultReady, "user-1")

	relay := notify.NewOutboxRelay(db, notify.NewDBDispatcher(db), zap.NewNop(), 0)
	delivered, err := relay.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)

	var notification models.Notification
	require.NoError(t, db.First(&notification, "user_id = ?", "user-1").Error)
	assert.Equal(t, models.NotificationLabResult, notification.Type)
	assert.Equal(t, "Lab results available", notification.Title)
	assert.Nil(t, notification.ReadAt)
	assert.JSONEq(t, string(row.Payload), string(notification.Data))
}
