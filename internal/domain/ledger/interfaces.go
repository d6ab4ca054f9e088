package ledger

import (
	"context"
	"time"
)

// Store persists committed ledger transitions. Each call must be atomic: when
// it returns an error nothing was written and the registry applies nothing.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	SaveMint(ctx context.Context, rec Record) error
	SaveVerification(ctx context.Context, id uint64, verifier Identity, count uint64, at time.Time) error
	SaveTransfer(ctx context.Context, id uint64, from, to Identity) error
}

// EventSink receives events after commit. Publish must not block.
type EventSink interface {
	Publish(ev Event)
}

// Clock supplies creation timestamps.
type Clock func() time.Time
