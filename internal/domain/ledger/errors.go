package ledger

import "errors"

var (
	// ErrInvalidFingerprint indicates the reserved all-zero fingerprint or an unparsable one.
	ErrInvalidFingerprint = errors.New("invalid fingerprint")
	// ErrDuplicateFingerprint indicates the fingerprint is already registered.
	ErrDuplicateFingerprint = errors.New("fingerprint already registered")
	// ErrRecordNotFound indicates the record id was never minted.
	ErrRecordNotFound = errors.New("record not found")
	// ErrSelfVerification indicates a creator tried to verify their own record.
	ErrSelfVerification = errors.New("creator cannot verify own record")
	// ErrDuplicateVerification indicates the identity already verified the record.
	ErrDuplicateVerification = errors.New("record already verified by identity")
	// ErrInvalidIdentity indicates an unset caller or receiver identity.
	ErrInvalidIdentity = errors.New("invalid identity")
	// ErrNotOwner indicates the caller does not hold the record.
	ErrNotOwner = errors.New("caller is not the record holder")
	// ErrIndexOutOfRange indicates an enumeration index past the end.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrCorruptState indicates a snapshot violates a ledger invariant.
	ErrCorruptState = errors.New("corrupt ledger state")
)
