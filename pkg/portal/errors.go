// Package portal holds the patient and doctor workflows built on the record
// repositories, and their HTTP surface.
package portal

import (
	"errors"
	"fmt"
)

var (
	ErrAnalysisInProgress = errors.New("a report is already being processed for this patient")
	ErrAnalysisCancelled  = errors.New("report analysis was cancelled")

	errEmptyReportText = errors.New("report text is empty")
	errMissingDoctor   = errors.New("missing doctor id")
	errMissingPatient  = errors.New("missing patient name")
	errMissingSlot     = errors.New("date and slot are required")
	errMissingNoteText = errors.New("complaint or note text is required")
)

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

func invalid(reason error) error {
	return ValidationError{reason: reason}
}

func invalidf(format string, args ...interface{}) error {
	return ValidationError{reason: fmt.Errorf(format, args...)}
}
