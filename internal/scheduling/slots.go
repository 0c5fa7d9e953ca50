package scheduling

import (
	"context"
	"time"

	"github.com/okothvientrevor/musawo-health-backend/internal/models"
	"github.com/okothvientrevor/musawo-health-backend/internal/workflow"
	"gorm.io/gorm"
)

// SlotConfig defines the clinic's daily booking grid. WindowEnd is the
// start of the last bookable slot and is itself included.
type SlotConfig struct {
	WindowStart time.Duration // offset from midnight, e.g. 8h
	WindowEnd   time.Duration // offset from midnight, e.g. 17h
	SlotWidth   time.Duration
}

// DefaultSlotConfig mirrors the clinic calendar: 30-minute slots from
// 08:00 through 17:00 inclusive.
func DefaultSlotConfig() SlotConfig {
	return SlotConfig{
		WindowStart: 8 * time.Hour,
		WindowEnd:   17 * time.Hour,
		SlotWidth:   30 * time.Minute,
	}
}

// SlotCalendar computes bookable slots for a provider on a date. It is
// a pure function of current bookings; nothing is cached between calls.
type SlotCalendar struct {
	db     *gorm.DB
	clock  workflow.Clock
	config SlotConfig
}

func NewSlotCalendar(db *gorm.DB, clock workflow.Clock, config SlotConfig) *SlotCalendar {
	if config.SlotWidth <= 0 {
		config = DefaultSlotConfig()
	}
	return &SlotCalendar{db: db, clock: clock, config: config}
}

// AvailableSlots returns the ascending slot start times still free for
// the provider on the given calendar date. Dates before today fail
// validation; booked means any non-cancelled appointment at that exact
// timestamp.
func (c *SlotCalendar) AvailableSlots(ctx context.Context, providerID string, date time.Time) ([]time.Time, error) {
	if providerID == "" {
		return nil, workflow.ErrValidation("provider is required")
	}

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	now := c.clock.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if day.Before(today) {
		return nil, workflow.ErrValidation("cannot list slots for a past date")
	}

	dayEnd := day.Add(24 * time.Hour)

	var booked []time.Time
	err := c.db.WithContext(ctx).Model(&models.Appointment{}).
		Where("provider_id = ? AND scheduled_at >= ? AND scheduled_at < ? AND status <> ?",
			providerID, day, dayEnd, models.AppointmentCancelled).
		Pluck("scheduled_at", &booked).Error
	if err != nil {
		return nil, err
	}

	taken := make(map[int64]bool, len(booked))
	for _, t := range booked {
		taken[t.Unix()] = true
	}

	var slots []time.Time
	for offset := c.config.WindowStart; offset <= c.config.WindowEnd; offset += c.config.SlotWidth {
		slot := day.Add(offset)
		if !taken[slot.Unix()] {
			slots = append(slots, slot)
		}
	}
	return slots, nil
}
