package searchapi

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindInvalidRequest    ErrorKind = "invalid_request"
	KindTransport         ErrorKind = "transport"
	KindHTTPStatus        ErrorKind = "http_status"
	KindMalformedResults  ErrorKind = "malformed_results"
	KindMalformedOverview ErrorKind = "malformed_overview"
	KindUpstream          ErrorKind = "upstream"
)

const (
	ReasonMalformedResults  = "malformed results frame"
	ReasonMalformedOverview = "malformed overview frame"
)

// Error is the failure of one search session, classified for display.
type Error struct {
	Kind   ErrorKind `json:"kind"`
	Reason string    `json:"reason"`
	Status int       `json:"status,omitempty"` // HTTP status, for KindHTTPStatus
	Err    error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether submitting the same query again may succeed.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTransport, KindHTTPStatus, KindUpstream:
		return true
	}
	return false
}

func NewError(kind ErrorKind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// AsError classifies any error; unknown errors are treated as transport failures.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return NewError(KindTransport, "search request failed", err)
}
