package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sonetyo/ledger/internal/domain/ledger"
	"github.com/sonetyo/ledger/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []ledger.Event
}

func (s *recordingSink) Publish(ev ledger.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) all() []ledger.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ledger.Event(nil), s.events...)
}

func fingerprint(n byte) ledger.Fingerprint {
	var fp ledger.Fingerprint
	fp[0] = 0xaa
	fp[31] = n
	return fp
}

func fixedClock() ledger.Clock {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time { return at }
}

func newRegistry(t *testing.T) (*ledger.Registry, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	return ledger.NewRegistry(ledger.Config{Events: sink, Clock: fixedClock()}), sink
}

func TestRegistry_MintDuplicate(t *testing.T) {
	ctx := context.Background()
	reg, sink := newRegistry(t)

	id, err := reg.Mint(ctx, "alice", fingerprint(1), "ipfs://meta")
	require.NoError(t, err)
	require.Equal(t, uint64(0), id)
	require.Equal(t, uint64(1), reg.TotalRecords())

	_, err = reg.Mint(ctx, "bob", fingerprint(1), "")
	require.ErrorIs(t, err, ledger.ErrDuplicateFingerprint)
	require.Equal(t, uint64(1), reg.TotalRecords())

	events := sink.all()
	require.Len(t, events, 1)
	require.Equal(t, ledger.EventRegistered, events[0].Type)
	require.Equal(t, ledger.Identity("alice"), events[0].Actor)
	require.NotNil(t, events[0].Fingerprint)
	require.Equal(t, fingerprint(1), *events[0].Fingerprint)
	require.NotEmpty(t, events[0].ID)
}

func TestRegistry_MintRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	reg, sink := newRegistry(t)

	_, err := reg.Mint(ctx, "alice", ledger.Fingerprint{}, "")
	require.ErrorIs(t, err, ledger.ErrInvalidFingerprint)

	_, err = reg.Mint(ctx, "", fingerprint(1), "")
	require.ErrorIs(t, err, ledger.ErrInvalidIdentity)

	// Identity is checked before the fingerprint.
	_, err = reg.Mint(ctx, "", ledger.Fingerprint{}, "")
	require.ErrorIs(t, err, ledger.ErrInvalidIdentity)

	require.Zero(t, reg.TotalRecords())
	require.Empty(t, sink.all())
}

func TestRegistry_MintRecordFields(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t)

	_, err := reg.Mint(ctx, "alice", fingerprint(7), "ipfs://meta")
	require.NoError(t, err)

	rec, err := reg.GetRecord(0)
	require.NoError(t, err)
	require.Equal(t, uint64(0), rec.ID)
	require.Equal(t, fingerprint(7), rec.Fingerprint)
	require.Equal(t, ledger.Identity("alice"), rec.Creator)
	require.Equal(t, "ipfs://meta", rec.MetadataRef)
	require.Equal(t, fixedClock()(), rec.CreatedAt)
	require.Empty(t, rec.Verifiers)
	require.NotNil(t, rec.Verifiers)
	require.Zero(t, rec.VerificationCount)

	ref, err := reg.GetMetadataRef(0)
	require.NoError(t, err)
	require.Equal(t, "ipfs://meta", ref)

	byFP, err := reg.RecordByFingerprint(fingerprint(7))
	require.NoError(t, err)
	require.Equal(t, rec, byFP)

	require.True(t, reg.IsFingerprintRegistered(fingerprint(7)))
	require.False(t, reg.IsFingerprintRegistered(fingerprint(8)))
}

func TestRegistry_IDsAreDense(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t)

	for i := range 10 {
		id, err := reg.Mint(ctx, ledger.Identity(fmt.Sprintf("creator-%d", i%3)), fingerprint(byte(i+1)), "")
		require.NoError(t, err)
		require.Equal(t, uint64(i), id)
	}
	// A failed mint does not consume an id.
	_, err := reg.Mint(ctx, "alice", fingerprint(1), "")
	require.ErrorIs(t, err, ledger.ErrDuplicateFingerprint)

	id, err := reg.Mint(ctx, "alice", fingerprint(100), "")
	require.NoError(t, err)
	require.Equal(t, uint64(10), id)
}

func TestRegistry_SelfVerificationForbidden(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t)

	_, err := reg.Mint(ctx, "alice", fingerprint(1), "")
	require.NoError(t, err)

	_, err = reg.Verify(ctx, "alice", 0)
	require.ErrorIs(t, err, ledger.ErrSelfVerification)

	rec, err := reg.GetRecord(0)
	require.NoError(t, err)
	require.Zero(t, rec.VerificationCount)
}

func TestRegistry_VerifyOnceAndStats(t *testing.T) {
	ctx := context.Background()
	reg, sink := newRegistry(t)

	_, err := reg.Mint(ctx, "alice", fingerprint(1), "")
	require.NoError(t, err)

	count, err := reg.Verify(ctx, "bob", 0)
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)

	_, err = reg.Verify(ctx, "bob", 0)
	require.ErrorIs(t, err, ledger.ErrDuplicateVerification)

	require.Equal(t, ledger.CreatorStats{TotalMints: 0, TotalVerifications: 1}, reg.GetCreatorStats("bob"))
	require.Equal(t, ledger.CreatorStats{TotalMints: 1, TotalVerifications: 0}, reg.GetCreatorStats("alice"))
	require.Equal(t, ledger.CreatorStats{}, reg.GetCreatorStats("nobody"))

	rec, err := reg.GetRecord(0)
	require.NoError(t, err)
	require.Equal(t, []ledger.Identity{"bob"}, rec.Verifiers)
	require.Equal(t, uint64(1), rec.VerificationCount)

	events := sink.all()
	require.Len(t, events, 2)
	require.Equal(t, ledger.EventVerified, events[1].Type)
	require.Equal(t, ledger.Identity("bob"), events[1].Actor)
	require.Equal(t, uint64(1), events[1].VerificationCount)
}

func TestRegistry_VerifyErrors(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t)

	_, err := reg.Verify(ctx, "bob", 0)
	require.ErrorIs(t, err, ledger.ErrRecordNotFound)

	_, err = reg.Verify(ctx, "", 0)
	require.ErrorIs(t, err, ledger.ErrInvalidIdentity)

	_, err = reg.GetRecord(5)
	require.ErrorIs(t, err, ledger.ErrRecordNotFound)

	_, err = reg.GetMetadataRef(5)
	require.ErrorIs(t, err, ledger.ErrRecordNotFound)

	_, err = reg.RecordByFingerprint(fingerprint(1))
	require.ErrorIs(t, err, ledger.ErrRecordNotFound)
}

func TestRegistry_ReturnedRecordsAreCopies(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t)

	_, err := reg.Mint(ctx, "alice", fingerprint(1), "")
	require.NoError(t, err)
	_, err = reg.Verify(ctx, "bob", 0)
	require.NoError(t, err)

	rec, err := reg.GetRecord(0)
	require.NoError(t, err)
	rec.Verifiers[0] = "mallory"

	again, err := reg.GetRecord(0)
	require.NoError(t, err)
	require.Equal(t, []ledger.Identity{"bob"}, again.Verifiers)
}

func TestRegistry_ConcurrentVerifiers(t *testing.T) {
	ctx := context.Background()
	reg, sink := newRegistry(t)

	_, err := reg.Mint(ctx, "alice", fingerprint(1), "")
	require.NoError(t, err)

	const verifiers = 50
	var wg sync.WaitGroup
	errs := make(chan error, verifiers*2)
	for i := range verifiers {
		v := ledger.Identity(fmt.Sprintf("verifier-%d", i))
		// Each verifier races itself; exactly one attempt must win.
		for range 2 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := reg.Verify(ctx, v, 0); err != nil {
					errs <- err
				}
			}()
		}
	}
	wg.Wait()
	close(errs)

	var dup int
	for err := range errs {
		require.ErrorIs(t, err, ledger.ErrDuplicateVerification)
		dup++
	}
	require.Equal(t, verifiers, dup)

	rec, err := reg.GetRecord(0)
	require.NoError(t, err)
	require.Equal(t, uint64(verifiers), rec.VerificationCount)
	require.Len(t, rec.Verifiers, verifiers)

	// Events are emitted in commit order.
	var last uint64
	for _, ev := range sink.all()[1:] {
		require.Equal(t, last+1, ev.VerificationCount)
		last = ev.VerificationCount
	}
	require.NoError(t, reg.Snapshot().Validate())
}

func TestRegistry_ConcurrentMintsSameFingerprint(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var wins int
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.Mint(ctx, ledger.Identity(fmt.Sprintf("c%d", i)), fingerprint(9), "")
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, wins)
	require.Equal(t, uint64(1), reg.TotalRecords())
}

func TestRegistry_TransferAndEnumeration(t *testing.T) {
	ctx := context.Background()
	reg, sink := newRegistry(t)

	for i := range 3 {
		_, err := reg.Mint(ctx, "alice", fingerprint(byte(i+1)), "")
		require.NoError(t, err)
	}
	require.Equal(t, uint64(3), reg.BalanceOf("alice"))
	require.Equal(t, []uint64{0, 1, 2}, reg.TokensOf("alice"))

	require.NoError(t, reg.Transfer(ctx, "alice", "carol", 1))

	owner, err := reg.OwnerOf(1)
	require.NoError(t, err)
	require.Equal(t, ledger.Identity("carol"), owner)
	require.Equal(t, uint64(2), reg.BalanceOf("alice"))
	require.Equal(t, []uint64{0, 2}, reg.TokensOf("alice"))
	require.Equal(t, []uint64{1}, reg.TokensOf("carol"))

	// Creator attribution survives the transfer.
	rec, err := reg.GetRecord(1)
	require.NoError(t, err)
	require.Equal(t, ledger.Identity("alice"), rec.Creator)
	require.Equal(t, uint64(3), reg.GetCreatorStats("alice").TotalMints)

	// The creator still may not verify, but the new holder may.
	_, err = reg.Verify(ctx, "alice", 1)
	require.ErrorIs(t, err, ledger.ErrSelfVerification)
	_, err = reg.Verify(ctx, "carol", 1)
	require.NoError(t, err)

	id, err := reg.TokenOfOwnerByIndex("alice", 1)
	require.NoError(t, err)
	require.Equal(t, uint64(2), id)
	_, err = reg.TokenOfOwnerByIndex("alice", 2)
	require.ErrorIs(t, err, ledger.ErrIndexOutOfRange)

	id, err = reg.TokenByIndex(2)
	require.NoError(t, err)
	require.Equal(t, uint64(2), id)
	_, err = reg.TokenByIndex(3)
	require.ErrorIs(t, err, ledger.ErrIndexOutOfRange)

	events := sink.all()
	last := events[len(events)-2]
	require.Equal(t, ledger.EventTransferred, last.Type)
	require.Equal(t, ledger.Identity("alice"), last.Actor)
	require.Equal(t, ledger.Identity("carol"), last.Counterparty)
}

func TestRegistry_TransferErrors(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t)

	require.ErrorIs(t, reg.Transfer(ctx, "alice", "bob", 0), ledger.ErrRecordNotFound)

	_, err := reg.Mint(ctx, "alice", fingerprint(1), "")
	require.NoError(t, err)

	require.ErrorIs(t, reg.Transfer(ctx, "bob", "carol", 0), ledger.ErrNotOwner)
	require.ErrorIs(t, reg.Transfer(ctx, "alice", "", 0), ledger.ErrInvalidIdentity)
	require.ErrorIs(t, reg.Transfer(ctx, "", "bob", 0), ledger.ErrInvalidIdentity)

	_, err = reg.OwnerOf(3)
	require.ErrorIs(t, err, ledger.ErrRecordNotFound)
}

func TestRegistry_SelfTransferIsNoop(t *testing.T) {
	ctx := context.Background()
	store := &mocks.LedgerStore{}
	store.On("SaveMint", ctx, mock.Anything).Return(nil)
	sink := &recordingSink{}
	reg := ledger.NewRegistry(ledger.Config{Store: store, Events: sink})

	_, err := reg.Mint(ctx, "alice", fingerprint(1), "")
	require.NoError(t, err)
	require.NoError(t, reg.Transfer(ctx, "alice", "alice", 0))

	require.Equal(t, uint64(1), reg.BalanceOf("alice"))
	require.Len(t, sink.all(), 2)
	store.AssertNotCalled(t, "SaveTransfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRegistry_StoreFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")

	store := &mocks.LedgerStore{}
	store.On("SaveMint", ctx, mock.MatchedBy(func(rec ledger.Record) bool { return rec.Fingerprint == fingerprint(1) })).Return(nil)
	store.On("SaveMint", ctx, mock.MatchedBy(func(rec ledger.Record) bool { return rec.Fingerprint == fingerprint(2) })).Return(boom)
	store.On("SaveVerification", ctx, uint64(0), ledger.Identity("bob"), uint64(1), mock.Anything).Return(boom)
	store.On("SaveTransfer", ctx, uint64(0), ledger.Identity("alice"), ledger.Identity("carol")).Return(boom)

	sink := &recordingSink{}
	reg := ledger.NewRegistry(ledger.Config{Store: store, Events: sink, Clock: fixedClock()})

	_, err := reg.Mint(ctx, "alice", fingerprint(1), "")
	require.NoError(t, err)
	before := reg.Snapshot()

	_, err = reg.Mint(ctx, "alice", fingerprint(2), "")
	require.ErrorIs(t, err, boom)
	_, err = reg.Verify(ctx, "bob", 0)
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, reg.Transfer(ctx, "alice", "carol", 0), boom)

	require.Equal(t, before, reg.Snapshot())
	require.False(t, reg.IsFingerprintRegistered(fingerprint(2)))
	require.Len(t, sink.all(), 1)

	// The failed mint did not consume id 1.
	store.On("SaveMint", ctx, mock.MatchedBy(func(rec ledger.Record) bool { return rec.Fingerprint == fingerprint(3) })).Return(nil)
	id, err := reg.Mint(ctx, "alice", fingerprint(3), "")
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)
}

func TestRegistry_Load(t *testing.T) {
	ctx := context.Background()

	source, _ := newRegistry(t)
	_, err := source.Mint(ctx, "alice", fingerprint(1), "m")
	require.NoError(t, err)
	_, err = source.Verify(ctx, "bob", 0)
	require.NoError(t, err)
	snap := source.Snapshot()

	store := &mocks.LedgerStore{}
	store.On("Load", ctx).Return(&snap, nil)

	reg := ledger.NewRegistry(ledger.Config{Store: store})
	require.NoError(t, reg.Load(ctx))
	require.Equal(t, uint64(1), reg.TotalRecords())
	require.Equal(t, ledger.CreatorStats{TotalVerifications: 1}, reg.GetCreatorStats("bob"))

	_, err = reg.Verify(ctx, "bob", 0)
	require.ErrorIs(t, err, ledger.ErrDuplicateVerification)
}

func TestRegistry_QueriesAreIdempotent(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t)
	_, err := reg.Mint(ctx, "alice", fingerprint(1), "")
	require.NoError(t, err)

	before := reg.Snapshot()
	for range 3 {
		_, _ = reg.GetRecord(0)
		_, _ = reg.GetRecord(99)
		_ = reg.IsFingerprintRegistered(fingerprint(1))
		_ = reg.GetCreatorStats("ghost")
		_ = reg.TotalRecords()
		_ = reg.TokensOf("alice")
	}
	require.Equal(t, before, reg.Snapshot())
}

func TestRegistry_CollectionInfo(t *testing.T) {
	reg := ledger.NewRegistry(ledger.Config{})
	require.Equal(t, ledger.DefaultName, reg.Name())
	require.Equal(t, ledger.DefaultSymbol, reg.Symbol())

	custom := ledger.NewRegistry(ledger.Config{Name: "Proofs", Symbol: "PRF"})
	require.Equal(t, "Proofs", custom.Name())
	require.Equal(t, "PRF", custom.Symbol())
}
