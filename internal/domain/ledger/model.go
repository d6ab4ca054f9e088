package ledger

import (
	"slices"
	"time"
)

// Default collection metadata.
const (
	DefaultName   = "Sonetyo Proof"
	DefaultSymbol = "SONETYO"
)

// Record is one registered authorship claim.
type Record struct {
	ID                uint64      `json:"id"`
	Fingerprint       Fingerprint `json:"fingerprint"`
	Creator           Identity    `json:"creator"`
	MetadataRef       string      `json:"metadata_ref"`
	CreatedAt         time.Time   `json:"created_at"`
	Verifiers         []Identity  `json:"verifiers"`
	VerificationCount uint64      `json:"verification_count"`
}

// clone returns a copy that shares no slices with r.
func (r Record) clone() Record {
	r.Verifiers = slices.Clone(r.Verifiers)
	if r.Verifiers == nil {
		r.Verifiers = []Identity{}
	}
	return r
}

// CreatorStats aggregates the work attributed to one identity.
type CreatorStats struct {
	TotalMints         uint64 `json:"total_mints"`
	TotalVerifications uint64 `json:"total_verifications"`
}

// entry is the registry's internal view of a record.
type entry struct {
	rec       Record
	verifiers map[Identity]struct{}
}

func newEntry(rec Record) *entry {
	e := &entry{rec: rec, verifiers: make(map[Identity]struct{}, len(rec.Verifiers))}
	for _, v := range rec.Verifiers {
		e.verifiers[v] = struct{}{}
	}
	return e
}
