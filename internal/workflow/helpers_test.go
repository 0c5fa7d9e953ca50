package workflow_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/okothvientrevor/musawo-health-backend/internal/directory"
	"github.com/okothvientrevor/musawo-health-backend/internal/models"
	"github.com/okothvientrevor/musawo-health-backend/internal/workflow"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// testNow is what the frozen clock reads in these tests; bookings land
// the following morning.
var testNow = time.Date(2098, 12, 31, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	// sqlite allows a single writer; funnel everything through one
	// connection so concurrent transactions queue instead of failing
	// with a busy error.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.Migrate(db))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, role models.Role) *models.User {
	t.Helper()
	user := models.User{
		Email:     fmt.Sprintf("%s-%d@example.test", role, time.Now().UnixNano()),
		FirstName: "Test",
		LastName:  string(role),
		Role:      role,
	}
	require.NoError(t, user.SetPassword("correct horse battery"))
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func newAppointmentWorkflow(t *testing.T, db *gorm.DB) *workflow.AppointmentWorkflow {
	t.Helper()
	return workflow.NewAppointmentWorkflow(
		db,
		workflow.FixedClock{At: testNow},
		directory.NewUserDirectory(db),
		directory.NewProviderDirectory(db),
		zap.NewNop(),
	)
}

func requireKind(t *testing.T, err error, kind workflow.Kind) {
	t.Helper()
	require.Error(t, err)
	actual, ok := workflow.KindOf(err)
	require.True(t, ok, "expected a workflow error, got %v", err)
	require.Equal(t, kind, actual, "unexpected error kind for %v", err)
}

func countOutbox(t *testing.T, db *gorm.DB, eventType string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", eventType).Count(&n).Error)
	return n
}
