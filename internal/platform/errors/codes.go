// Package errors provides structured error handling with i18n support.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Lookup errors
	CodeNotFound Code = "NOT_FOUND"

	// Input errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// Lifecycle errors
	CodeInvalidState         Code = "INVALID_STATE"
	CodeDuplicateMatchNumber Code = "DUPLICATE_MATCH_NUMBER"

	// Draw errors
	CodeInsufficientPlayers Code = "INSUFFICIENT_PLAYERS"

	// Ledger errors
	CodePlayerNotInMatch Code = "PLAYER_NOT_IN_MATCH"
	CodeMissingScorer    Code = "MISSING_SCORER"

	// Storage errors
	CodeConstraintViolation Code = "CONSTRAINT_VIOLATION"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// BadRequest - validation failures, bad input
	case CodeInvalidArgument,
		CodeMissingScorer,
		CodePlayerNotInMatch:
		return http.StatusBadRequest

	// NotFound - resource doesn't exist
	case CodeNotFound:
		return http.StatusNotFound

	// Conflict - state doesn't allow operation or unique constraint
	case CodeInvalidState,
		CodeDuplicateMatchNumber,
		CodeConstraintViolation:
		return http.StatusConflict

	// UnprocessableEntity - valid request the current roster cannot satisfy
	case CodeInsufficientPlayers:
		return http.StatusUnprocessableEntity

	default:
		return http.StatusInternalServerError
	}
}
