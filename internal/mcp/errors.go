package mcp

import (
	"errors"
	"fmt"

	"github.com/sonetyo/ledger/internal/domain/activity"
	"github.com/sonetyo/ledger/internal/domain/ledger"
)

var (
	// ErrUnknownMethod is returned for methods outside the dispatch table.
	ErrUnknownMethod = errors.New("unknown method")
	// ErrInvalidParams is returned when params cannot be decoded.
	ErrInvalidParams = errors.New("invalid params")
	// ErrUnauthorized is returned when a call carries no usable identity.
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps domain errors to stable wire codes. It returns nil for
// errors that are not part of the ledger contract.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	switch {
	case errors.Is(err, ledger.ErrInvalidFingerprint):
		return &APIError{Code: "INVALID_FINGERPRINT", Message: "fingerprint is zero or malformed", RecoveryHint: "Send 64 hex characters or a CID with a 32-byte digest"}
	case errors.Is(err, ledger.ErrDuplicateFingerprint):
		return &APIError{Code: "DUPLICATE_FINGERPRINT", Message: "fingerprint already registered", RecoveryHint: "Look it up with get_record_by_fingerprint"}
	case errors.Is(err, ledger.ErrRecordNotFound):
		return &APIError{Code: "RECORD_NOT_FOUND", Message: "record not found", RecoveryHint: "Check the id against total_records"}
	case errors.Is(err, ledger.ErrSelfVerification):
		return &APIError{Code: "SELF_VERIFICATION_FORBIDDEN", Message: "creator cannot verify own record", RecoveryHint: "Ask another identity to verify"}
	case errors.Is(err, ledger.ErrDuplicateVerification):
		return &APIError{Code: "DUPLICATE_VERIFICATION", Message: "record already verified by this identity"}
	case errors.Is(err, ledger.ErrInvalidIdentity):
		return &APIError{Code: "INVALID_IDENTITY", Message: "identity is empty", RecoveryHint: "Authenticate or pass a non-empty identity"}
	case errors.Is(err, ledger.ErrNotOwner):
		return &APIError{Code: "NOT_OWNER", Message: "caller does not hold the record", RecoveryHint: "Check owner_of before transferring"}
	case errors.Is(err, ledger.ErrIndexOutOfRange):
		return &APIError{Code: "INDEX_OUT_OF_RANGE", Message: "index out of range", RecoveryHint: "Indexes run from 0 to total_records - 1"}
	case errors.Is(err, activity.ErrInvalidInput):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error()}
	default:
		return nil
	}
}

func mapError(err error) error {
	if apiErr := MapError(err); apiErr != nil {
		return apiErr
	}
	return err
}
