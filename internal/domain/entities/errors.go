package entities

import (
	"context"
	"errors"
)

// Pipeline error kinds
var (
	ErrInvalidAddress      = errors.New("invalid address")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrRemoteUnavailable   = errors.New("remote ledger unavailable")
	ErrRemoteRejected      = errors.New("remote ledger rejected request")
	ErrPartialBatchFailure = errors.New("partial batch failure")
	ErrNotFound            = errors.New("not found")
)

// ErrorKind is the stable identifier of an error class
type ErrorKind string

const (
	KindInvalidAddress      ErrorKind = "invalid_address"
	KindInvalidRequest      ErrorKind = "invalid_request"
	KindRemoteUnavailable   ErrorKind = "remote_unavailable"
	KindRemoteRejected      ErrorKind = "remote_rejected"
	KindPartialBatchFailure ErrorKind = "partial_batch_failure"
	KindNotFound            ErrorKind = "not_found"
	KindCanceled            ErrorKind = "canceled"
	KindUnknown             ErrorKind = "unknown"
)

// KindOf maps an error onto its kind
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidAddress):
		return KindInvalidAddress
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	case errors.Is(err, ErrRemoteUnavailable):
		return KindRemoteUnavailable
	case errors.Is(err, ErrRemoteRejected):
		return KindRemoteRejected
	case errors.Is(err, ErrPartialBatchFailure):
		return KindPartialBatchFailure
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindUnknown
	}
}

// ErrorInfo is the serializable descriptor of a per-address failure
type ErrorInfo struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// NewErrorInfo builds a descriptor from an error
func NewErrorInfo(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	return &ErrorInfo{Kind: KindOf(err), Message: err.Error()}
}
