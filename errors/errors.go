package errors

import "fmt"

var (
	ErrInvalidTransition = fmt.Errorf("invalid status transition")
	ErrForbidden         = fmt.Errorf("role not allowed to perform this transition")
	ErrOrderNotFound     = fmt.Errorf("order not found")
	ErrEmptyOrder        = fmt.Errorf("order contains no items")
	ErrConnectionLost    = fmt.Errorf("connection lost")
	ErrHandshakeTimeout  = fmt.Errorf("handshake not completed in time")
	ErrNotAnnounced      = fmt.Errorf("connection has not announced a role yet")
	ErrUnknownRole       = fmt.Errorf("unknown role")
	ErrQueueFull         = fmt.Errorf("outbound queue full")
	ErrInvalidCredential = fmt.Errorf("invalid credentials")
	ErrWorkerPanic       = fmt.Errorf("worker panic")
)
