package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a record has never been written.
var ErrNotFound = errors.New("record not found")

// CorruptRecordError reports a record that could not be decoded.
// The file has already been moved aside when this is returned.
type CorruptRecordError struct {
	Path string
	Err  error
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("corrupt record %s: %v", e.Path, e.Err)
}

func (e *CorruptRecordError) Unwrap() error { return e.Err }

// WriteError reports a record that could not be persisted after a retry.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
