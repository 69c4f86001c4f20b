package errors

import (
	"errors"
	"fmt"
)

var (
	ErrQueueFull          = errors.New("queue is full")
	ErrQueueClosed        = errors.New("queue is closed")
	ErrStreamClosed       = errors.New("stream is closed")
	ErrGroupNotFound      = errors.New("consumer group not found")
	ErrEntryNotFound      = errors.New("stream entry not found")
	ErrInvalidRecord      = errors.New("invalid raw record")
	ErrInvalidBatchSize   = errors.New("invalid batch size")
	ErrSinkUnavailable    = errors.New("sink unavailable")
	ErrSinkRejected       = errors.New("sink rejected batch")
	ErrNotifierDisabled   = errors.New("notifier disabled")
	ErrAnnotatorDisabled  = errors.New("annotator disabled")
	ErrAnnotationInvalid  = errors.New("invalid annotation payload")
	ErrRuleInvalid        = errors.New("invalid alert rule")
	ErrConfigNotFound     = errors.New("config not found")
	ErrConfigInvalid      = errors.New("invalid configuration")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrServerNotRunning   = errors.New("server not running")
	ErrWorkerNotRunning   = errors.New("worker not running")
	ErrTimeout            = errors.New("operation timeout")
	ErrCanceled           = errors.New("operation canceled")
	ErrNotImplemented     = errors.New("not implemented")
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain matching target's type.
func As(err error, target any) bool { return errors.As(err, target) }

func NewRecordError(field string, reason string) error {
	return fmt.Errorf("%w: field=%s: %s", ErrInvalidRecord, field, reason)
}

func NewBatchSizeError(size int) error {
	return fmt.Errorf("%w: %d", ErrInvalidBatchSize, size)
}

func NewSinkError(name string, err error) error {
	return fmt.Errorf("%w: sink=%s: %v", ErrSinkRejected, name, err)
}

func NewRuleError(id string, reason error) error {
	return fmt.Errorf("%w: rule=%s: %v", ErrRuleInvalid, id, reason)
}

func NewConfigError(field string, value interface{}) error {
	return fmt.Errorf("%w: field=%s value=%v", ErrConfigInvalid, field, value)
}

func NewGroupError(group string) error {
	return fmt.Errorf("%w: %s", ErrGroupNotFound, group)
}
