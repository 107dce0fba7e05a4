package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code, so clones match their sentinel.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	var t *Error
	if !errors.As(target, &t) || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Allocation and room lifecycle errors.
var (
	ErrHostelNotFound          = New("HOSTEL_NOT_FOUND", http.StatusNotFound, "hostel not found")
	ErrUnitNotFound            = New("UNIT_NOT_FOUND", http.StatusNotFound, "unit not found")
	ErrRoomNotFound            = New("ROOM_NOT_FOUND", http.StatusNotFound, "room not found")
	ErrStudentNotFound         = New("STUDENT_NOT_FOUND", http.StatusNotFound, "student profile not found")
	ErrAllocationNotFound      = New("ALLOCATION_NOT_FOUND", http.StatusNotFound, "allocation not found")
	ErrRoomInactive            = New("ROOM_INACTIVE", http.StatusConflict, "room is inactive")
	ErrRoomFull                = New("ROOM_FULL", http.StatusConflict, "room is full")
	ErrBedOccupied             = New("BED_OCCUPIED", http.StatusConflict, "bed is already occupied")
	ErrStudentAlreadyAllocated = New("STUDENT_ALREADY_ALLOCATED", http.StatusConflict, "student already holds an active allocation")
	ErrInvalidBed              = New("INVALID_BED", http.StatusUnprocessableEntity, "bed number outside room capacity")
	ErrUnitRequired            = New("UNIT_REQUIRED", http.StatusUnprocessableEntity, "unit is required for unit-based hostels")
	ErrUnitMismatch            = New("UNIT_MISMATCH", http.StatusUnprocessableEntity, "unit does not match the room")
	ErrEmailTaken              = New("EMAIL_TAKEN", http.StatusConflict, "email already registered")
	ErrRollNumberTaken         = New("ROLL_NUMBER_TAKEN", http.StatusConflict, "roll number already registered")
	ErrDuplicateInBatch        = New("DUPLICATE_IN_BATCH", http.StatusConflict, "duplicate entry within batch")
	ErrCapacityBelowOccupancy  = New("CAPACITY_BELOW_OCCUPANCY", http.StatusConflict, "capacity lower than current occupancy")
	ErrStorageConflict         = New("STORAGE_CONFLICT", http.StatusConflict, "concurrent update conflict, retry later")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// HasCode reports whether err normalises to the given code.
func HasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}
