package ledger

import "time"

// EventType names a ledger event.
type EventType string

const (
	EventRegistered  EventType = "registered"
	EventVerified    EventType = "verified"
	EventTransferred EventType = "transferred"
)

// Event is emitted after a mutation commits.
//
// Registered carries Actor (creator), Fingerprint and Timestamp.
// Verified carries Actor (verifier) and VerificationCount.
// Transferred carries Actor (previous holder) and Counterparty (new holder).
type Event struct {
	ID                string       `json:"id"`
	Type              EventType    `json:"type"`
	RecordID          uint64       `json:"record_id"`
	Actor             Identity     `json:"actor"`
	Counterparty      Identity     `json:"counterparty,omitempty"`
	Fingerprint       *Fingerprint `json:"fingerprint,omitempty"`
	VerificationCount uint64       `json:"verification_count"`
	Timestamp         time.Time    `json:"timestamp"`
}
