// Package ledger defines the durable record kept for every tool invocation,
// independent of the live stream that relays its progress.
package ledger

import (
	"context"
	"errors"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

var (
	ErrDuplicateRequest = errors.New("request id is already recorded")
	ErrRequestNotFound  = errors.New("request id is not recorded")
	ErrStatusFinal      = errors.New("request status is already final")
	ErrInvalidStatus    = errors.New("status is invalid")
)

// Record is one row of the request ledger: exactly one per call, created
// pending before dispatch and moved to a terminal status exactly once.
type Record struct {
	RequestID string
	KeyID     string
	ToolName  string
	Params    string
	Status    Status
	CreatedAt int64
}

// Ledger persists invocation records. Implementations must reject duplicate
// request ids on Insert and reject any status transition out of a terminal
// state on UpdateStatus.
type Ledger interface {
	Insert(ctx context.Context, record Record) error
	UpdateStatus(ctx context.Context, requestID string, status Status) error
}

// Terminal reports whether status ends a call.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

// Valid reports whether status is one of the known ledger states.
func (s Status) Valid() bool {
	return s == StatusPending || s.Terminal()
}
