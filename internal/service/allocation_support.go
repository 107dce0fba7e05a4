package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/hostel-allocation-api/internal/models"
	"github.com/noah-isme/hostel-allocation-api/internal/repository"
	appErrors "github.com/noah-isme/hostel-allocation-api/pkg/errors"
)

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// occupancyNotifier is told after every committed change to allocations or rooms.
type occupancyNotifier interface {
	OccupancyChanged(ctx context.Context)
}

func userIDPtr(actor *models.JWTClaims) *string {
	return actor.ActorID()
}

func recordAudit(ctx context.Context, audit auditWriter, logger *zap.Logger, actor *models.JWTClaims, action, resource, resourceID string, oldValues, newValues interface{}) {
	if audit == nil {
		return
	}
	entry := &models.AuditLog{
		UserID:    userIDPtr(actor),
		Action:    action,
		Resource:  resource,
		IPAddress: "system",
		UserAgent: "allocation-engine",
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if oldValues != nil {
		entry.OldValues, _ = json.Marshal(oldValues)
	}
	if newValues != nil {
		entry.NewValues, _ = json.Marshal(newValues)
	}
	if err := audit.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

// notFound translates sql.ErrNoRows into the given typed error and wraps anything else as internal.
func notFound(err error, typed *appErrors.Error, message string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(typed, message)
	}
	return err
}

// mapStorageError turns the store-level failure of a unit of work into a typed error.
func mapStorageError(err error, action string) error {
	if err == nil {
		return nil
	}
	var typed *appErrors.Error
	if errors.As(err, &typed) {
		return typed
	}
	if name, ok := repository.ConstraintName(err); ok {
		switch name {
		case repository.ConstraintActiveBed:
			return appErrors.Wrap(err, appErrors.ErrBedOccupied.Code, appErrors.ErrBedOccupied.Status, appErrors.ErrBedOccupied.Message)
		case repository.ConstraintActiveStudent:
			return appErrors.Wrap(err, appErrors.ErrStudentAlreadyAllocated.Code, appErrors.ErrStudentAlreadyAllocated.Status, appErrors.ErrStudentAlreadyAllocated.Message)
		case repository.ConstraintOccupancy:
			return appErrors.Wrap(err, appErrors.ErrRoomFull.Code, appErrors.ErrRoomFull.Status, appErrors.ErrRoomFull.Message)
		case repository.ConstraintUserEmail:
			return appErrors.Wrap(err, appErrors.ErrEmailTaken.Code, appErrors.ErrEmailTaken.Status, appErrors.ErrEmailTaken.Message)
		case repository.ConstraintRollNumber:
			return appErrors.Wrap(err, appErrors.ErrRollNumberTaken.Code, appErrors.ErrRollNumberTaken.Status, appErrors.ErrRollNumberTaken.Message)
		default:
			return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "constraint "+name+" violated")
		}
	}
	if errors.Is(err, repository.ErrCapacityExceeded) {
		return appErrors.Wrap(err, appErrors.ErrRoomFull.Code, appErrors.ErrRoomFull.Status, appErrors.ErrRoomFull.Message)
	}
	if errors.Is(err, repository.ErrTransient) {
		return appErrors.Wrap(err, appErrors.ErrStorageConflict.Code, appErrors.ErrStorageConflict.Status, appErrors.ErrStorageConflict.Message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to "+action)
}

// txRetrier re-runs aborted units of work a bounded number of times. Each attempt re-validates
// against fresh state, so a lost race ends in the typed conflict of the winner.
type txRetrier struct {
	store      repository.TxRunner
	maxRetries int
	metrics    *MetricsService
	logger     *zap.Logger
}

func (r txRetrier) run(ctx context.Context, op string, fn func(ctx context.Context, tx repository.AllocationTx) error) error {
	attempts := r.maxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = r.store.WithinTx(ctx, fn)
		if err == nil || !repository.IsRetryable(err) || ctx.Err() != nil {
			break
		}
		if attempt < attempts {
			r.metrics.RecordTxRetry(op)
			r.logger.Debug("retrying aborted transaction", zap.String("operation", op), zap.Int("attempt", attempt), zap.Error(err))
		}
	}
	if err == nil {
		r.metrics.RecordAllocation(op, "success")
		return nil
	}
	mapped := mapStorageError(err, op)
	r.metrics.RecordAllocation(op, appErrors.FromError(mapped).Code)
	return mapped
}
