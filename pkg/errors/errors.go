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

// Is matches errors by code so wrapped/cloned instances compare equal.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e != nil && t != nil && e.Code == t.Code
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
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Recognition and attendance domain errors.
var (
	ErrNoFaceInPhoto          = New("NO_FACE_IN_PHOTO", http.StatusBadRequest, "no face detected in the classroom photo")
	ErrNoFaceDetected         = New("NO_FACE_DETECTED", http.StatusBadRequest, "no face detected in the enrollment photo")
	ErrMultipleFacesDetected  = New("MULTIPLE_FACES_DETECTED", http.StatusBadRequest, "more than one face detected in the enrollment photo")
	ErrRecognitionUnavailable = New("RECOGNITION_UNAVAILABLE", http.StatusBadGateway, "face recognition is unavailable")
	ErrDataCorruption         = New("DATA_CORRUPTION", http.StatusInternalServerError, "stored face reference is corrupt")
	ErrSessionAlreadyExists   = New("SESSION_ALREADY_EXISTS", http.StatusConflict, "attendance already taken for this course, date and lesson")
	ErrEmptyRoster            = New("EMPTY_ROSTER", http.StatusBadRequest, "no students enrolled in this course")
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
