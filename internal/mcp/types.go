package mcp

import (
	"time"

	"github.com/sonetyo/ledger/internal/domain/activity"
	"github.com/sonetyo/ledger/internal/domain/ledger"
)

type MintParams struct {
	Fingerprint string `json:"fingerprint"`
	MetadataRef string `json:"metadata_ref,omitempty"`
}

type RecordIDParams struct {
	ID *uint64 `json:"id"`
}

type TransferParams struct {
	ID *uint64 `json:"id"`
	To string  `json:"to"`
}

type FingerprintParams struct {
	Fingerprint string `json:"fingerprint"`
}

type IdentityParams struct {
	Identity string `json:"identity,omitempty"`
}

type IndexParams struct {
	Index    *uint64 `json:"index"`
	Identity string  `json:"identity,omitempty"`
}

type GetRecentActivityParams struct {
	RecordID *uint64                 `json:"record_id,omitempty"`
	Actor    string                  `json:"actor,omitempty"`
	Types    []activity.ActivityType `json:"types,omitempty"`
	Limit    int                     `json:"limit,omitempty"`
	Offset   int                     `json:"offset,omitempty"`
}

type MintResponse struct {
	ID uint64 `json:"id"`
}

type VerifyResponse struct {
	ID                uint64 `json:"id"`
	VerificationCount uint64 `json:"verification_count"`
}

type OwnerResponse struct {
	ID    uint64          `json:"id"`
	Owner ledger.Identity `json:"owner"`
}

// RecordView is the wire form of a record together with its current holder.
type RecordView struct {
	ID                uint64            `json:"id"`
	Fingerprint       string            `json:"fingerprint"`
	CID               string            `json:"cid,omitempty"`
	Creator           ledger.Identity   `json:"creator"`
	Owner             ledger.Identity   `json:"owner"`
	MetadataRef       string            `json:"metadata_ref"`
	CreatedAt         time.Time         `json:"created_at"`
	Verifiers         []ledger.Identity `json:"verifiers"`
	VerificationCount uint64            `json:"verification_count"`
}

type RegisteredResponse struct {
	Fingerprint string `json:"fingerprint"`
	Registered  bool   `json:"registered"`
}

type CreatorStatsResponse struct {
	Identity           ledger.Identity `json:"identity"`
	TotalMints         uint64          `json:"total_mints"`
	TotalVerifications uint64          `json:"total_verifications"`
}

type TotalResponse struct {
	Total uint64 `json:"total"`
}

type MetadataRefResponse struct {
	ID          uint64 `json:"id"`
	MetadataRef string `json:"metadata_ref"`
}

type BalanceResponse struct {
	Identity ledger.Identity `json:"identity"`
	Balance  uint64          `json:"balance"`
}

type TokensResponse struct {
	Identity ledger.Identity `json:"identity"`
	IDs      []uint64        `json:"ids"`
}

type TokenIndexResponse struct {
	Index uint64 `json:"index"`
	ID    uint64 `json:"id"`
}

type CollectionInfoResponse struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Total  uint64 `json:"total"`
}

type ActivityEntryResponse struct {
	Timestamp    time.Time             `json:"timestamp"`
	Type         activity.ActivityType `json:"type"`
	EventID      string                `json:"event_id"`
	RecordID     uint64                `json:"record_id"`
	Actor        ledger.Identity       `json:"actor"`
	Counterparty ledger.Identity       `json:"counterparty,omitempty"`
	Summary      string                `json:"summary"`
	Details      string                `json:"details,omitempty"`
}

type WhoAmIResponse struct {
	Identity ledger.Identity `json:"identity"`
}
