package activity

import (
	"time"

	"github.com/sonetyo/ledger/internal/domain/ledger"
)

// ActivityType represents the type of activity event
type ActivityType string

const (
	TypeRecordMinted      ActivityType = "record_minted"
	TypeRecordVerified    ActivityType = "record_verified"
	TypeRecordTransferred ActivityType = "record_transferred"
)

// ActivityEntry represents an event in the activity log
type ActivityEntry struct {
	ID           int64           `json:"id"`
	EventID      string          `json:"event_id"`
	RecordID     uint64          `json:"record_id"`
	Actor        ledger.Identity `json:"actor"`
	Counterparty ledger.Identity `json:"counterparty,omitempty"`
	ActivityType ActivityType    `json:"type"`
	Summary      string          `json:"summary"`
	Details      string          `json:"details,omitempty"` // JSON string
	CreatedAt    time.Time       `json:"created_at"`
}
