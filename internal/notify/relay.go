package notify

import (
	"context"
	"time"

	"github.com/okothvientrevor/musawo-health-backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OutboxRelay drains pending outbox rows into the dispatcher. Delivery
// is at-least-once: a row is only marked dispatched after Enqueue
// returns nil, and failures leave it pending with an incremented
// attempt count.
type OutboxRelay struct {
	db         *gorm.DB
	dispatcher Dispatcher
	log        *zap.Logger
	interval   time.Duration
	batchSize  int
}

func NewOutboxRelay(db *gorm.DB, dispatcher Dispatcher, log *zap.Logger, interval time.Duration) *OutboxRelay {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &OutboxRelay{
		db:         db,
		dispatcher: dispatcher,
		log:        log,
		interval:   interval,
		batchSize:  100,
	}
}

// Run polls until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.DrainOnce(ctx); err != nil {
				r.log.Warn("outbox drain failed", zap.Error(err))
			}
		}
	}
}

// DrainOnce dispatches one batch of pending events and reports how many
// were delivered.
func (r *OutboxRelay) DrainOnce(ctx context.Context) (int, error) {
	var rows []models.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("dispatched_at IS NULL").
		Order("created_at asc").
		Limit(r.batchSize).
		Find(&rows).Error
	if err != nil {
		return 0, err
	}

	delivered := 0
	for i := range rows {
		row := &rows[i]
		if err := r.dispatcher.Enqueue(ctx, FromOutbox(row)); err != nil {
			r.log.Warn("event dispatch failed",
				zap.String("event_id", row.ID),
				zap.String("event_type", row.EventType),
				zap.Int("attempts", row.Attempts+1),
				zap.Error(err))
			r.db.WithContext(ctx).Model(row).
				UpdateColumn("attempts", gorm.Expr("attempts + 1"))
			continue
		}

		now := time.Now()
		if err := r.db.WithContext(ctx).Model(row).Updates(map[string]interface{}{
			"dispatched_at": &now,
			"attempts":      row.Attempts + 1,
		}).Error; err != nil {
			return delivered, err
		}
		delivered++
	}
	return delivered, nil
}
