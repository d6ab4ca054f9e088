package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Config wires a Registry to its collaborators. Every field is optional.
type Config struct {
	Store  Store
	Events EventSink
	Clock  Clock
	Logger *slog.Logger
	Name   string
	Symbol string
}

// Registry is the authoritative state machine for records, the fingerprint
// index, creator aggregates and record holders. Mutations are serialized by a
// single lock; queries share it.
type Registry struct {
	mu            sync.RWMutex
	records       []*entry
	byFingerprint map[Fingerprint]uint64
	stats         map[Identity]*CreatorStats
	owners        []Identity
	holdings      map[Identity]map[uint64]struct{}

	store  Store
	events EventSink
	clock  Clock
	logger *slog.Logger
	name   string
	symbol string
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config) *Registry {
	r := &Registry{
		byFingerprint: make(map[Fingerprint]uint64),
		stats:         make(map[Identity]*CreatorStats),
		holdings:      make(map[Identity]map[uint64]struct{}),
		store:         cfg.Store,
		events:        cfg.Events,
		clock:         cfg.Clock,
		logger:        cfg.Logger,
		name:          cfg.Name,
		symbol:        cfg.Symbol,
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	if r.name == "" {
		r.name = DefaultName
	}
	if r.symbol == "" {
		r.symbol = DefaultSymbol
	}
	return r
}

// Load replaces the in-memory state with the store's snapshot.
func (r *Registry) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	snap, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}
	if snap == nil {
		return nil
	}
	if err := r.Restore(*snap); err != nil {
		return err
	}
	r.logger.Info("ledger restored", "records", snap.NextID)
	return nil
}

// Mint registers fingerprint for creator and returns the new record id.
func (r *Registry) Mint(ctx context.Context, creator Identity, fp Fingerprint, metadataRef string) (uint64, error) {
	if creator.IsZero() {
		return 0, ErrInvalidIdentity
	}
	if fp.IsZero() {
		return 0, ErrInvalidFingerprint
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byFingerprint[fp]; exists {
		return 0, ErrDuplicateFingerprint
	}

	id := uint64(len(r.records))
	rec := Record{
		ID:          id,
		Fingerprint: fp,
		Creator:     creator,
		MetadataRef: metadataRef,
		CreatedAt:   r.clock().UTC(),
		Verifiers:   []Identity{},
	}

	if r.store != nil {
		if err := r.store.SaveMint(ctx, rec); err != nil {
			return 0, fmt.Errorf("persisting mint: %w", err)
		}
	}

	r.records = append(r.records, newEntry(rec))
	r.byFingerprint[fp] = id
	r.statsFor(creator).TotalMints++
	r.owners = append(r.owners, creator)
	r.hold(creator, id)

	r.publish(Event{
		Type:        EventRegistered,
		RecordID:    id,
		Actor:       creator,
		Fingerprint: &fp,
		Timestamp:   rec.CreatedAt,
	})
	r.logger.Debug("record minted", "id", id, "creator", creator, "fingerprint", fp)

	return id, nil
}

// Verify records verifier's endorsement of record id and returns the new count.
func (r *Registry) Verify(ctx context.Context, verifier Identity, id uint64) (uint64, error) {
	if verifier.IsZero() {
		return 0, ErrInvalidIdentity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.lookup(id)
	if err != nil {
		return 0, err
	}
	if e.rec.Creator == verifier {
		return 0, ErrSelfVerification
	}
	if _, seen := e.verifiers[verifier]; seen {
		return 0, ErrDuplicateVerification
	}

	count := e.rec.VerificationCount + 1
	at := r.clock().UTC()
	if r.store != nil {
		if err := r.store.SaveVerification(ctx, id, verifier, count, at); err != nil {
			return 0, fmt.Errorf("persisting verification: %w", err)
		}
	}

	e.verifiers[verifier] = struct{}{}
	e.rec.Verifiers = append(e.rec.Verifiers, verifier)
	e.rec.VerificationCount = count
	r.statsFor(verifier).TotalVerifications++

	r.publish(Event{
		Type:              EventVerified,
		RecordID:          id,
		Actor:             verifier,
		VerificationCount: count,
		Timestamp:         at,
	})
	r.logger.Debug("record verified", "id", id, "verifier", verifier, "count", count)

	return count, nil
}

// Transfer moves record id from its current holder caller to to. The creator
// attribution is unaffected.
func (r *Registry) Transfer(ctx context.Context, caller, to Identity, id uint64) error {
	if caller.IsZero() || to.IsZero() {
		return ErrInvalidIdentity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	if r.owners[id] != caller {
		return ErrNotOwner
	}

	if caller != to {
		if r.store != nil {
			if err := r.store.SaveTransfer(ctx, id, caller, to); err != nil {
				return fmt.Errorf("persisting transfer: %w", err)
			}
		}
		r.release(caller, id)
		r.hold(to, id)
		r.owners[id] = to
	}

	r.publish(Event{
		Type:              EventTransferred,
		RecordID:          id,
		Actor:             caller,
		Counterparty:      to,
		VerificationCount: e.rec.VerificationCount,
		Timestamp:         r.clock().UTC(),
	})
	r.logger.Debug("record transferred", "id", id, "from", caller, "to", to)

	return nil
}

// GetRecord returns a copy of record id.
func (r *Registry) GetRecord(id uint64) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, err := r.lookup(id)
	if err != nil {
		return Record{}, err
	}
	return e.rec.clone(), nil
}

// RecordByFingerprint returns the record claiming fp.
func (r *Registry) RecordByFingerprint(fp Fingerprint) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byFingerprint[fp]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return r.records[id].rec.clone(), nil
}

// IsFingerprintRegistered reports whether fp is claimed.
func (r *Registry) IsFingerprintRegistered(fp Fingerprint) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byFingerprint[fp]
	return ok
}

// GetCreatorStats returns the aggregates for identity; unknown identities get zeros.
func (r *Registry) GetCreatorStats(identity Identity) CreatorStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.stats[identity]; ok {
		return *s
	}
	return CreatorStats{}
}

// TotalRecords returns the number of minted records, which is also the next id.
func (r *Registry) TotalRecords() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return uint64(len(r.records))
}

// GetMetadataRef returns the metadata URI stored with record id.
func (r *Registry) GetMetadataRef(id uint64) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, err := r.lookup(id)
	if err != nil {
		return "", err
	}
	return e.rec.MetadataRef, nil
}

// OwnerOf returns the current holder of record id.
func (r *Registry) OwnerOf(id uint64) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, err := r.lookup(id); err != nil {
		return "", err
	}
	return r.owners[id], nil
}

// BalanceOf returns how many records identity holds.
func (r *Registry) BalanceOf(identity Identity) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return uint64(len(r.holdings[identity]))
}

// TokensOf returns the ids held by identity in ascending order.
func (r *Registry) TokensOf(identity Identity) []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.tokensOf(identity)
}

// TokenByIndex returns the id at position index of all records.
func (r *Registry) TokenByIndex(index uint64) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if index >= uint64(len(r.records)) {
		return 0, ErrIndexOutOfRange
	}
	// Records are never burned, so the enumeration order is the id order.
	return r.records[index].rec.ID, nil
}

// TokenOfOwnerByIndex returns the id at position index of owner's holdings.
func (r *Registry) TokenOfOwnerByIndex(owner Identity, index uint64) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.tokensOf(owner)
	if index >= uint64(len(ids)) {
		return 0, ErrIndexOutOfRange
	}
	return ids[index], nil
}

// Name returns the collection name.
func (r *Registry) Name() string {
	return r.name
}

// Symbol returns the collection symbol.
func (r *Registry) Symbol() string {
	return r.symbol
}

func (r *Registry) lookup(id uint64) (*entry, error) {
	if id >= uint64(len(r.records)) {
		return nil, ErrRecordNotFound
	}
	return r.records[id], nil
}

func (r *Registry) tokensOf(identity Identity) []uint64 {
	held := r.holdings[identity]
	ids := make([]uint64, 0, len(held))
	for id := range held {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (r *Registry) statsFor(identity Identity) *CreatorStats {
	s, ok := r.stats[identity]
	if !ok {
		s = &CreatorStats{}
		r.stats[identity] = s
	}
	return s
}

func (r *Registry) hold(identity Identity, id uint64) {
	held, ok := r.holdings[identity]
	if !ok {
		held = make(map[uint64]struct{})
		r.holdings[identity] = held
	}
	held[id] = struct{}{}
}

func (r *Registry) release(identity Identity, id uint64) {
	held := r.holdings[identity]
	delete(held, id)
	if len(held) == 0 {
		delete(r.holdings, identity)
	}
}

func (r *Registry) publish(ev Event) {
	if r.events == nil {
		return
	}
	ev.ID = uuid.NewString()
	r.events.Publish(ev)
}
