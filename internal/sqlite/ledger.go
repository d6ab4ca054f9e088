package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sonetyo/ledger/internal/domain/ledger"
	"github.com/sonetyo/ledger/internal/repository"
)

// LedgerRepository implements ledger.Store for SQLite. Every save runs in its
// own transaction.
type LedgerRepository struct {
	db *DB
}

// NewLedgerRepository creates a new LedgerRepository
func NewLedgerRepository(db *DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

var _ ledger.Store = (*LedgerRepository)(nil)

// Load reads the full ledger state.
func (r *LedgerRepository) Load(ctx context.Context) (*ledger.Snapshot, error) {
	snap := &ledger.Snapshot{
		Records: []ledger.Record{},
		Owners:  make(map[uint64]ledger.Identity),
		Stats:   make(map[ledger.Identity]ledger.CreatorStats),
	}

	if err := r.loadRecords(ctx, snap); err != nil {
		return nil, err
	}
	if err := r.loadVerifications(ctx, snap); err != nil {
		return nil, err
	}
	if err := r.loadStats(ctx, snap); err != nil {
		return nil, err
	}
	snap.NextID = uint64(len(snap.Records))

	return snap, nil
}

func (r *LedgerRepository) loadRecords(ctx context.Context, snap *ledger.Snapshot) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, fingerprint, creator, owner, metadata_ref, created_at, verification_count
		FROM ledger_records
		ORDER BY id
	`)
	if err != nil {
		return fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec       ledger.Record
			fp        []byte
			owner     string
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &fp, &rec.Creator, &owner, &rec.MetadataRef, &createdAt, &rec.VerificationCount); err != nil {
			return fmt.Errorf("failed to scan record: %w", err)
		}
		if rec.Fingerprint, err = ledger.FingerprintFromBytes(fp); err != nil {
			return fmt.Errorf("record %d: %w", rec.ID, err)
		}
		rec.CreatedAt = time.Unix(0, createdAt).UTC()
		rec.Verifiers = []ledger.Identity{}
		snap.Records = append(snap.Records, rec)
		snap.Owners[rec.ID] = ledger.Identity(owner)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating record rows: %w", err)
	}
	return nil
}

func (r *LedgerRepository) loadVerifications(ctx context.Context, snap *ledger.Snapshot) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT record_id, verifier
		FROM ledger_verifications
		ORDER BY record_id, seq
	`)
	if err != nil {
		return fmt.Errorf("failed to query verifications: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id       uint64
			verifier ledger.Identity
		)
		if err := rows.Scan(&id, &verifier); err != nil {
			return fmt.Errorf("failed to scan verification: %w", err)
		}
		if id >= uint64(len(snap.Records)) {
			return fmt.Errorf("%w: verification for unknown record %d", ledger.ErrCorruptState, id)
		}
		snap.Records[id].Verifiers = append(snap.Records[id].Verifiers, verifier)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating verification rows: %w", err)
	}
	return nil
}

func (r *LedgerRepository) loadStats(ctx context.Context, snap *ledger.Snapshot) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT identity, total_mints, total_verifications
		FROM creator_stats
	`)
	if err != nil {
		return fmt.Errorf("failed to query creator stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			identity ledger.Identity
			stats    ledger.CreatorStats
		)
		if err := rows.Scan(&identity, &stats.TotalMints, &stats.TotalVerifications); err != nil {
			return fmt.Errorf("failed to scan creator stats: %w", err)
		}
		snap.Stats[identity] = stats
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating creator stats rows: %w", err)
	}
	return nil
}

// SaveMint inserts a new record held by its creator and bumps the creator's mint count.
func (r *LedgerRepository) SaveMint(ctx context.Context, rec ledger.Record) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO ledger_records (id, fingerprint, creator, owner, metadata_ref, created_at, verification_count)
			VALUES (?, ?, ?, ?, ?, ?, 0)
		`, rec.ID, rec.Fingerprint[:], rec.Creator, rec.Creator, rec.MetadataRef, rec.CreatedAt.UnixNano())
		if err != nil {
			return mapConstraintError("insert record", err)
		}
		return bumpStats(ctx, tx, rec.Creator, 1, 0)
	})
}

// SaveVerification appends verifier to record id. count is the record's new
// verification count and must follow the stored one.
func (r *LedgerRepository) SaveVerification(ctx context.Context, id uint64, verifier ledger.Identity, count uint64, at time.Time) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE ledger_records SET verification_count = ?
			WHERE id = ? AND verification_count = ?
		`, count, id, count-1)
		if err != nil {
			return fmt.Errorf("failed to update verification count: %w", err)
		}
		if err := expectOneRow(res, "record %d at count %d", id, count-1); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO ledger_verifications (record_id, verifier, seq, verified_at)
			VALUES (?, ?, ?, ?)
		`, id, verifier, count, at.UnixNano())
		if err != nil {
			return mapConstraintError("insert verification", err)
		}
		return bumpStats(ctx, tx, verifier, 0, 1)
	})
}

// SaveTransfer moves record id from one holder to another.
func (r *LedgerRepository) SaveTransfer(ctx context.Context, id uint64, from, to ledger.Identity) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE ledger_records SET owner = ? WHERE id = ? AND owner = ?
		`, to, id, from)
		if err != nil {
			return fmt.Errorf("failed to update owner: %w", err)
		}
		return expectOneRow(res, "record %d held by %s", id, from)
	})
}

func (r *LedgerRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func bumpStats(ctx context.Context, tx *sql.Tx, identity ledger.Identity, mints, verifications int) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO creator_stats (identity, total_mints, total_verifications)
		VALUES (?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET
			total_mints = total_mints + excluded.total_mints,
			total_verifications = total_verifications + excluded.total_verifications
	`, identity, mints, verifications)
	if err != nil {
		return fmt.Errorf("failed to update creator stats: %w", err)
	}
	return nil
}

func expectOneRow(res sql.Result, format string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("%w: %s", repository.ErrNotFound, fmt.Sprintf(format, args...))
	}
	return nil
}
