package errors

import "errors"

// This package defines a centralized set of sentinel errors for the application.
// Services wrap these with fmt.Errorf("%w: ...") and callers use errors.Is() to
// branch on the failure kind. The API layer maps them to HTTP status codes.

var (
	// ErrNotFound signifies that a requested resource could not be located.
	// This is typically mapped to a 404 Not Found HTTP status.
	ErrNotFound = errors.New("resource not found")

	// ErrValidation signifies that input data provided by a client failed
	// business rule validation.
	// This is typically mapped to a 400 Bad Request HTTP status.
	ErrValidation = errors.New("validation failed")

	// ErrConflict signifies that an operation conflicts with the current state
	// of a resource, e.g. sending a message while a generation is in flight.
	// This is typically mapped to a 409 Conflict HTTP status.
	ErrConflict = errors.New("resource conflict")

	// ErrPermission signifies that the authenticated user is not authorized
	// to perform the requested action.
	// This is typically mapped to a 403 Forbidden HTTP status.
	ErrPermission = errors.New("permission denied")

	// ErrInternal signifies an unexpected error on the server.
	// This is typically mapped to a 500 Internal Server Error HTTP status.
	ErrInternal = errors.New("internal server error")

	// ErrAuthRequired signifies that no authenticated profile exists for the
	// caller. Mapped to 401 Unauthorized.
	ErrAuthRequired = errors.New("authentication required")
)

// Failure kinds of the retrieval pipeline. External-call sites never let these
// escape as control flow; they come back next to a degraded but valid value
// (empty list, empty string) so callers can tell the kinds apart.
var (
	// ErrTransport covers network errors, timeouts and non-2xx responses.
	ErrTransport = errors.New("transport failure")

	// ErrInsufficientContent means the fetched page yielded too little text.
	ErrInsufficientContent = errors.New("insufficient content")

	// ErrMalformedCommand means a chat command is missing its payload.
	ErrMalformedCommand = errors.New("malformed command")

	// ErrEvaluation means a calculator expression could not be evaluated.
	ErrEvaluation = errors.New("evaluation failed")
)
