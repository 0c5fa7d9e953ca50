package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/okothvientrevor/musawo-health-backend/internal/models"
	"github.com/okothvientrevor/musawo-health-backend/internal/notify"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LabWorkflow owns the lab request and lab result lifecycles, including
// the result-driven forced transitions of the owning request.
type LabWorkflow struct {
	db    *gorm.DB
	clock Clock
	users UserDirectory
	log   *zap.Logger
}

func NewLabWorkflow(db *gorm.DB, clock Clock, users UserDirectory, log *zap.Logger) *LabWorkflow {
	return &LabWorkflow{db: db, clock: clock, users: users, log: log}
}

// CreateLabRequestInput carries the fields of a new lab order.
type CreateLabRequestInput struct {
	PatientID      string
	ProviderID     string
	LaboratoryID   string
	TestsRequested []string
	UrgencyLevel   models.UrgencyLevel
	Notes          string
}

func validUrgency(u models.UrgencyLevel) bool {
	switch u {
	case models.UrgencyRoutine, models.UrgencyUrgent, models.UrgencyEmergency:
		return true
	}
	return false
}

// CreateRequest opens a lab request in the requested state.
func (w *LabWorkflow) CreateRequest(ctx context.Context, in CreateLabRequestInput) (*models.LabRequest, error) {
	if in.PatientID == "" || in.LaboratoryID == "" {
		return nil, ErrValidation("patient and laboratory are required")
	}
	if len(in.TestsRequested) == 0 {
		return nil, ErrValidation("at least one test must be requested")
	}
	if in.UrgencyLevel == "" {
		in.UrgencyLevel = models.UrgencyRoutine
	}
	if !validUrgency(in.UrgencyLevel) {
		return nil, ErrValidation("invalid urgency level %q", in.UrgencyLevel)
	}

	role, err := w.users.RoleOf(ctx, in.PatientID)
	if err != nil {
		return nil, err
	}
	if role != models.RolePatient {
		return nil, ErrValidation("the selected user is not a patient")
	}

	tests, err := json.Marshal(in.TestsRequested)
	if err != nil {
		return nil, err
	}
	request := models.LabRequest{
		PatientID:      in.PatientID,
		ProviderID:     in.ProviderID,
		LaboratoryID:   in.LaboratoryID,
		TestsRequested: datatypes.JSON(tests),
		UrgencyLevel:   in.UrgencyLevel,
		Notes:          in.Notes,
		Status:         models.LabRequested,
	}
	if err := w.db.WithContext(ctx).Create(&request).Error; err != nil {
		return nil, storageErr("create lab request", err)
	}

	w.log.Info("lab request created",
		zap.String("lab_request_id", request.ID),
		zap.String("urgency", string(request.UrgencyLevel)))
	return &request, nil
}

func validLabStatus(s models.LabRequestStatus) bool {
	switch s {
	case models.LabRequested, models.LabProcessing, models.LabCompleted, models.LabCancelled:
		return true
	}
	return false
}

// UpdateStatus applies a table-validated status change. The
// requested -> completed edge is unreachable here; only result creation
// completes a request from requested.
func (w *LabWorkflow) UpdateStatus(ctx context.Context, requestID string, newStatus models.LabRequestStatus) (*models.LabRequest, error) {
	if !validLabStatus(newStatus) {
		return nil, ErrValidation("invalid lab request status %q", newStatus)
	}

	var request models.LabRequest
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&request, "id = ?", requestID).Error; err != nil {
			return notFoundOr(err, "lab request", requestID)
		}
		if err := labRequestGraph.Step(request.Status, newStatus); err != nil {
			return err
		}

		res := tx.Model(&models.LabRequest{}).
			Where("id = ? AND status = ?", requestID, request.Status).
			Update("status", newStatus)
		if res.Error != nil {
			return storageErr("update lab request status", res.Error)
		}
		if res.RowsAffected == 0 {
			var current models.LabRequest
			if err := tx.First(&current, "id = ?", requestID).Error; err != nil {
				return notFoundOr(err, "lab request", requestID)
			}
			return ErrInvalidTransition(string(current.Status), string(newStatus))
		}
		request.Status = newStatus
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.log.Info("lab request transitioned",
		zap.String("lab_request_id", requestID),
		zap.String("status", string(newStatus)))
	return &request, nil
}

// DeleteRequest removes a lab request unless in-flight work or a result
// exists for it.
func (w *LabWorkflow) DeleteRequest(ctx context.Context, requestID string) error {
	return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var request models.LabRequest
		if err := tx.First(&request, "id = ?", requestID).Error; err != nil {
			return notFoundOr(err, "lab request", requestID)
		}
		if request.Status == models.LabProcessing || request.Status == models.LabCompleted {
			return ErrConflict("cannot delete a lab request that is already %s", request.Status)
		}
		return tx.Delete(&models.LabRequest{}, "id = ?", requestID).Error
	})
}

// CreateLabResultInput carries the fields of a new result.
type CreateLabResultInput struct {
	LabRequestID  string
	TechnicianID  string
	Results       []models.ResultEntry
	ResultDate    time.Time
	AttachmentRef string
	Notes         string
}

// CreateResult records the result for a request and force-completes the
// request, whatever non-terminal state it was in. This is the only path
// from requested straight to completed.
func (w *LabWorkflow) CreateResult(ctx context.Context, in CreateLabResultInput) (*models.LabResult, error) {
	if in.LabRequestID == "" || in.TechnicianID == "" {
		return nil, ErrValidation("lab request and technician are required")
	}
	if len(in.Results) == 0 {
		return nil, ErrValidation("at least one result entry is required")
	}

	role, err := w.users.RoleOf(ctx, in.TechnicianID)
	if err != nil {
		return nil, err
	}
	if role != models.RoleLabTechnician {
		return nil, ErrValidation("the selected user is not a lab technician")
	}

	if in.ResultDate.IsZero() {
		in.ResultDate = w.clock.Now()
	}
	entries, err := json.Marshal(in.Results)
	if err != nil {
		return nil, err
	}
	result := models.LabResult{
		LabRequestID:  in.LabRequestID,
		Results:       datatypes.JSON(entries),
		TechnicianID:  in.TechnicianID,
		ResultDate:    in.ResultDate,
		AttachmentRef: in.AttachmentRef,
		Notes:         in.Notes,
	}

	err = w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var request models.LabRequest
		if err := tx.First(&request, "id = ?", in.LabRequestID).Error; err != nil {
			return notFoundOr(err, "lab request", in.LabRequestID)
		}

		var existing int64
		err := tx.Model(&models.LabResult{}).
			Where("lab_request_id = ?", in.LabRequestID).
			Count(&existing).Error
		if err != nil {
			return storageErr("check existing result", err)
		}
		if existing > 0 {
			return ErrAlreadyExists("a result already exists for this lab request")
		}

		if request.Status == models.LabCancelled {
			return ErrInvalidTransition(string(models.LabCancelled), string(models.LabCompleted))
		}

		if request.Status != models.LabCompleted {
			res := tx.Model(&models.LabRequest{}).
				Where("id = ? AND status = ?", request.ID, request.Status).
				Update("status", models.LabCompleted)
			if res.Error != nil {
				return storageErr("complete lab request", res.Error)
			}
			if res.RowsAffected == 0 {
				var current models.LabRequest
				if err := tx.First(&current, "id = ?", request.ID).Error; err != nil {
					return notFoundOr(err, "lab request", request.ID)
				}
				return ErrInvalidTransition(string(current.Status), string(models.LabCompleted))
			}
		}

		if err := tx.Create(&result).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyExists("a result already exists for this lab request")
			}
			return storageErr("create lab result", err)
		}

		payload, err := json.Marshal(map[string]string{
			"labResultId":  result.ID,
			"labRequestId": request.ID,
		})
		if err != nil {
			return err
		}
		return tx.Create(&models.OutboxEvent{
			EventType:   notify.EventLabResultReady,
			AggregateID: result.ID,
			UserID:      request.PatientID,
			Payload:     datatypes.JSON(payload),
		}).Error
	})
	if err != nil {
		return nil, err
	}

	w.log.Info("lab result recorded",
		zap.String("lab_result_id", result.ID),
		zap.String("lab_request_id", in.LabRequestID))
	return &result, nil
}

// DeleteResult removes a result and reverts the owning request to
// processing in the same transaction.
func (w *LabWorkflow) DeleteResult(ctx context.Context, resultID string) error {
	return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var result models.LabResult
		if err := tx.First(&result, "id = ?", resultID).Error; err != nil {
			return notFoundOr(err, "lab result", resultID)
		}

		err := tx.Model(&models.LabRequest{}).
			Where("id = ?", result.LabRequestID).
			Update("status", models.LabProcessing).Error
		if err != nil {
			return storageErr("revert lab request", err)
		}

		return tx.Delete(&models.LabResult{}, "id = ?", resultID).Error
	})
}
