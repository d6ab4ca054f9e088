package ledger

import (
	"fmt"
	"maps"
)

// Snapshot is the complete registry state, serialized and restored as a unit.
type Snapshot struct {
	NextID  uint64                    `json:"next_id"`
	Records []Record                  `json:"records"`
	Owners  map[uint64]Identity       `json:"owners"`
	Stats   map[Identity]CreatorStats `json:"stats"`
}

// Snapshot returns a deep copy of the current state.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		NextID:  uint64(len(r.records)),
		Records: make([]Record, 0, len(r.records)),
		Owners:  make(map[uint64]Identity, len(r.owners)),
		Stats:   make(map[Identity]CreatorStats, len(r.stats)),
	}
	for _, e := range r.records {
		snap.Records = append(snap.Records, e.rec.clone())
	}
	for id, owner := range r.owners {
		snap.Owners[uint64(id)] = owner
	}
	for identity, s := range r.stats {
		snap.Stats[identity] = *s
	}
	return snap
}

// Validate checks every ledger invariant against the snapshot.
func (s Snapshot) Validate() error {
	if uint64(len(s.Records)) != s.NextID {
		return corrupt("next id %d but %d records", s.NextID, len(s.Records))
	}

	seen := make(map[Fingerprint]uint64, len(s.Records))
	want := make(map[Identity]CreatorStats)
	for i, rec := range s.Records {
		if rec.ID != uint64(i) {
			return corrupt("record at position %d has id %d", i, rec.ID)
		}
		if rec.Fingerprint.IsZero() {
			return corrupt("record %d has zero fingerprint", rec.ID)
		}
		if prev, dup := seen[rec.Fingerprint]; dup {
			return corrupt("records %d and %d share fingerprint %s", prev, rec.ID, rec.Fingerprint)
		}
		seen[rec.Fingerprint] = rec.ID
		if rec.Creator.IsZero() {
			return corrupt("record %d has no creator", rec.ID)
		}
		if uint64(len(rec.Verifiers)) != rec.VerificationCount {
			return corrupt("record %d counts %d verifications for %d verifiers", rec.ID, rec.VerificationCount, len(rec.Verifiers))
		}

		verifiers := make(map[Identity]struct{}, len(rec.Verifiers))
		for _, v := range rec.Verifiers {
			if v == rec.Creator {
				return corrupt("record %d verified by its creator", rec.ID)
			}
			if _, dup := verifiers[v]; dup {
				return corrupt("record %d verified twice by %s", rec.ID, v)
			}
			verifiers[v] = struct{}{}
			vs := want[v]
			vs.TotalVerifications++
			want[v] = vs
		}
		cs := want[rec.Creator]
		cs.TotalMints++
		want[rec.Creator] = cs

		owner, ok := s.Owners[rec.ID]
		if !ok || owner.IsZero() {
			return corrupt("record %d has no holder", rec.ID)
		}
	}
	if len(s.Owners) != len(s.Records) {
		return corrupt("%d holders for %d records", len(s.Owners), len(s.Records))
	}

	got := make(map[Identity]CreatorStats, len(s.Stats))
	for identity, st := range s.Stats {
		if st != (CreatorStats{}) {
			got[identity] = st
		}
	}
	if !maps.Equal(got, want) {
		return corrupt("creator stats do not match records")
	}
	return nil
}

// Restore validates s and replaces the registry state with it. On error the
// registry is left untouched.
func (r *Registry) Restore(s Snapshot) error {
	if err := s.Validate(); err != nil {
		return err
	}

	records := make([]*entry, 0, len(s.Records))
	byFingerprint := make(map[Fingerprint]uint64, len(s.Records))
	owners := make([]Identity, len(s.Records))
	holdings := make(map[Identity]map[uint64]struct{})
	for _, rec := range s.Records {
		records = append(records, newEntry(rec.clone()))
		byFingerprint[rec.Fingerprint] = rec.ID
		owner := s.Owners[rec.ID]
		owners[rec.ID] = owner
		if holdings[owner] == nil {
			holdings[owner] = make(map[uint64]struct{})
		}
		holdings[owner][rec.ID] = struct{}{}
	}
	stats := make(map[Identity]*CreatorStats, len(s.Stats))
	for identity, st := range s.Stats {
		st := st
		stats[identity] = &st
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = records
	r.byFingerprint = byFingerprint
	r.owners = owners
	r.holdings = holdings
	r.stats = stats
	return nil
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptState, fmt.Sprintf(format, args...))
}
