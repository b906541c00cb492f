package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrWorkerPanic          = fmt.Errorf("worker panic")
	ErrEmptyWords           = fmt.Errorf("no words have been found")
	ErrNotFound             = fmt.Errorf("not found")
	ErrStoreUnavailable     = fmt.Errorf("store unavailable")
	ErrWriteFailed          = fmt.Errorf("message could not be written to any candidate path")
	ErrOutboundLimitReached = fmt.Errorf("outbound message limit reached for this conversation")
	ErrInvalidContent       = fmt.Errorf("invalid message content")
	ErrNoOpenConversation   = fmt.Errorf("conversation is not open")
	ErrInvalidCounterparty  = fmt.Errorf("invalid counterparty")
	ErrStaleConversation    = fmt.Errorf("conversation was switched while opening")
	ErrInvalidRecord        = fmt.Errorf("record is not a valid store value")
)

// Is mirrors the standard library so callers only import this package.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}
