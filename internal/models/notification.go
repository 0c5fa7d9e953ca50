package models

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationType categorizes a notification
type NotificationType string

const (
	NotificationAppointment NotificationType = "appointment"
	NotificationLabResult   NotificationType = "lab_result"
	NotificationSystem      NotificationType = "system"
	NotificationOutbreak    NotificationType = "outbreak"
)

// Notification represents a message delivered to a user.
type Notification struct {
	BaseModel
	UserID  string           `gorm:"size:36;index" json:"userId"`
	Title   string           `gorm:"size:255" json:"title"`
	Message string           `gorm:"type:text" json:"message"`
	Type    NotificationType `gorm:"size:20" json:"type"`
	Data    datatypes.JSON   `json:"data,omitempty"`
	ReadAt  *time.Time       `json:"readAt,omitempty"`

	// Relations
	User User `gorm:"foreignKey:UserID" json:"-"`
}

// OutboxEvent is a durable record of a workflow side effect, written in
// the same transaction as the state change it reports and consumed
// asynchronously by the relay. DispatchedAt nil means still pending.
type OutboxEvent struct {
	BaseModel
	EventType    string         `gorm:"size:50;index" json:"eventType"`
	AggregateID  string         `gorm:"size:36;index" json:"aggregateId"`
	UserID       string         `gorm:"size:36" json:"userId"`
	Payload      datatypes.JSON `json:"payload"`
	Attempts     int            `gorm:"default:0" json:"attempts"`
	DispatchedAt *time.Time     `gorm:"index" json:"dispatchedAt,omitempty"`
}
