package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownFamily is returned for a family key that is not registered.
	ErrUnknownFamily = errors.New("unknown family")

	// ErrTrashUnsupported is returned for trash operations on families without a trash variant.
	ErrTrashUnsupported = errors.New("trash variant not supported for this family")

	// ErrForbidden is returned when the authorization gate denies an operation.
	ErrForbidden = errors.New("operation not permitted")

	// ErrMalformedCSV fails a whole batch when the CSV text cannot be parsed.
	ErrMalformedCSV = errors.New("invalid csv")

	// ErrEmptyFile is returned when the payload has no header line.
	ErrEmptyFile = errors.New("empty file")

	// ErrFileTooLarge is returned when the payload exceeds the configured limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrRelatedNotFound marks a must-exist related entity that is absent.
	ErrRelatedNotFound = errors.New("related entity not found")
)

// rowError formats a row-level message with its CSV line number.
func rowError(line int, msg string) string {
	return fmt.Sprintf("row %d: %s", line, msg)
}
