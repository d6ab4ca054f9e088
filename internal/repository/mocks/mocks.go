package mocks

import (
	"context"
	"time"

	"github.com/sonetyo/ledger/internal/domain/activity"
	"github.com/sonetyo/ledger/internal/domain/ledger"
	"github.com/stretchr/testify/mock"
)

// LedgerStore is a mock for ledger.Store.
type LedgerStore struct {
	mock.Mock
}

func (m *LedgerStore) Load(ctx context.Context) (*ledger.Snapshot, error) {
	args := m.Called(ctx)
	if snap, ok := args.Get(0).(*ledger.Snapshot); ok {
		return snap, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *LedgerStore) SaveMint(ctx context.Context, rec ledger.Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *LedgerStore) SaveVerification(ctx context.Context, id uint64, verifier ledger.Identity, count uint64, at time.Time) error {
	args := m.Called(ctx, id, verifier, count, at)
	return args.Error(0)
}

func (m *LedgerStore) SaveTransfer(ctx context.Context, id uint64, from, to ledger.Identity) error {
	args := m.Called(ctx, id, from, to)
	return args.Error(0)
}

// ActivityRepository is a mock for activity.Repository.
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) Log(ctx context.Context, entry *activity.ActivityEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *ActivityRepository) List(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]activity.ActivityEntry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// EventSink is a mock for ledger.EventSink.
type EventSink struct {
	mock.Mock
}

func (m *EventSink) Publish(ev ledger.Event) {
	m.Called(ev)
}
