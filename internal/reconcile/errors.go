package reconcile

import (
	"errors"
	"fmt"
)

// RunError represents a fatal error in one reconciliation run.
//
// Fatal errors end the run: credential acquisition, the remote call,
// response decoding, and anything at transaction level. Row-level upsert
// failures are NOT RunErrors - they are swallowed inside the loop and only
// counted.
type RunError struct {
	// Code identifies the failed state transition.
	Code RunErrorCode

	// Dataset and SystemID identify the affected run.
	Dataset  string
	SystemID string

	// Err is the underlying cause.
	Err error
}

// RunErrorCode categorizes fatal run errors.
type RunErrorCode string

const (
	// ErrCodeToken indicates credential acquisition failed.
	ErrCodeToken RunErrorCode = "TOKEN_FAILED"

	// ErrCodeFetch indicates the remote snapshot call failed.
	ErrCodeFetch RunErrorCode = "FETCH_FAILED"

	// ErrCodeDecode indicates the response could not be decoded.
	ErrCodeDecode RunErrorCode = "DECODE_FAILED"

	// ErrCodeTx indicates the run transaction could not be opened.
	ErrCodeTx RunErrorCode = "TX_FAILED"

	// ErrCodeStale indicates the stale-marking step failed.
	ErrCodeStale RunErrorCode = "STALE_FAILED"

	// ErrCodeCommit indicates the final commit failed.
	ErrCodeCommit RunErrorCode = "COMMIT_FAILED"

	// ErrCodeCancelled indicates the run context was cancelled between
	// per-record upserts.
	ErrCodeCancelled RunErrorCode = "CANCELLED"
)

// Error implements the error interface.
func (e *RunError) Error() string {
	return fmt.Sprintf("%s: %v (dataset=%s, system=%s)", e.Code, e.Err, e.Dataset, e.SystemID)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// ErrorCode extracts the RunErrorCode from an error.
// Returns "" if the error is not a RunError. Uses errors.As to handle
// wrapped errors.
func ErrorCode(err error) RunErrorCode {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

func newRunError(code RunErrorCode, dataset, systemID string, err error) *RunError {
	return &RunError{Code: code, Dataset: dataset, SystemID: systemID, Err: err}
}
