package estimate

// errors.go defines the pipeline's error taxonomy and the mapping from
// technical errors to user-facing messages with support codes.
//
// Validation issues are never Go errors; they are collected into the
// ValidationResult. The errors here cover everything else: job lifecycle,
// commit preconditions, and persistence failures.

import (
	"errors"
	"strings"
)

var (
	// ErrJobNotFound means the import job ID is unknown or has expired.
	ErrJobNotFound = errors.New("import job not found")

	// ErrNotValidated means commit was requested before validation ran.
	ErrNotValidated = errors.New("import has not been validated")

	// ErrBlockingIssues means the last validation produced at least one
	// error-severity issue.
	ErrBlockingIssues = errors.New("import has blocking validation errors")

	// ErrDescriptionUnmapped means no column is mapped to description;
	// commit is disallowed until one is.
	ErrDescriptionUnmapped = errors.New("description column is not mapped")

	// ErrRevisionFrozen means the target revision is immutable.
	ErrRevisionFrozen = errors.New("revision is frozen")

	// ErrRevisionNotFound means the target revision does not exist.
	ErrRevisionNotFound = errors.New("revision not found")
)

// UserMessage is a user-facing rendering of an error, with a stable code the
// operator can quote to support.
type UserMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
}

// MapError translates a technical error into a UserMessage.
//
// Codes: IMP0xx import lifecycle, REV0xx revision preconditions,
// FILE0xx parsing, DB0xx persistence.
func MapError(err error) UserMessage {
	switch {
	case errors.Is(err, ErrJobNotFound):
		return UserMessage{Code: "IMP001", Message: "Import session not found or expired", Action: "Upload the file again to start a new import"}
	case errors.Is(err, ErrNotValidated):
		return UserMessage{Code: "IMP002", Message: "Import has not been validated yet", Action: "Run validation before committing"}
	case errors.Is(err, ErrBlockingIssues):
		return UserMessage{Code: "IMP003", Message: "The file has validation errors that block commit", Action: "Fix the reported rows and validate again"}
	case errors.Is(err, ErrDescriptionUnmapped):
		return UserMessage{Code: "IMP004", Message: "No column is mapped to description", Action: "Map a description column before committing"}
	case errors.Is(err, ErrRevisionNotFound):
		return UserMessage{Code: "REV001", Message: "The target revision does not exist", Action: "Check the revision and try again"}
	case errors.Is(err, ErrRevisionFrozen):
		return UserMessage{Code: "REV002", Message: "The target revision is frozen and cannot be changed", Action: "Create a new revision to import into"}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "parse csv"), strings.Contains(msg, "parse xlsx"):
		return UserMessage{Code: "FILE001", Message: "The file could not be read", Action: "Check that the file is a valid CSV or XLSX export"}
	case strings.Contains(msg, "duplicate key"), strings.Contains(msg, "unique constraint"):
		return UserMessage{Code: "DB001", Message: "A conflicting record already exists", Action: "Review the external keys in your file"}
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "connection reset"):
		return UserMessage{Code: "DB002", Message: "The database is unavailable", Action: "Please try again in a few moments"}
	case strings.Contains(msg, "context deadline exceeded"), strings.Contains(msg, "timeout"):
		return UserMessage{Code: "DB003", Message: "The operation timed out", Action: "Try a smaller file or try again later"}
	case strings.Contains(msg, "context canceled"):
		return UserMessage{Code: "IMP005", Message: "The request was cancelled", Action: "Please try again"}
	}

	return UserMessage{Code: "GEN001", Message: "An unexpected error occurred", Action: "Please try again or contact support with this code"}
}
