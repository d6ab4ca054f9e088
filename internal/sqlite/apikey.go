package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/sonetyo/ledger/internal/domain/ledger"
	"github.com/sonetyo/ledger/internal/repository"
)

// APIKeyRepository stores hashed bearer tokens and the identity each one maps to.
type APIKeyRepository struct {
	db *DB
}

// NewAPIKeyRepository creates a new APIKeyRepository
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// AddAPIKey registers token for identity. Only the token hash is stored.
func (r *APIKeyRepository) AddAPIKey(ctx context.Context, token string, identity ledger.Identity, description string) error {
	if token == "" || identity.IsZero() {
		return repository.ErrInvalidInput
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO api_keys (key_hash, identity, created_at, description) VALUES (?, ?, ?, ?)`,
		HashToken(token), identity, time.Now().UTC().UnixNano(), description,
	)
	if err != nil {
		return mapConstraintError("add api key", err)
	}
	return nil
}

// ResolveIdentity returns the identity bound to token and records its use.
func (r *APIKeyRepository) ResolveIdentity(ctx context.Context, token string) (ledger.Identity, error) {
	hash := HashToken(token)
	var identity string
	err := r.db.QueryRowContext(ctx, `SELECT identity FROM api_keys WHERE key_hash = ?`, hash).Scan(&identity)
	if errors.Is(err, sql.ErrNoRows) {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve api key: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used = ? WHERE key_hash = ?`, time.Now().UTC().UnixNano(), hash); err != nil {
		return "", fmt.Errorf("failed to touch api key: %w", err)
	}
	return ledger.ParseIdentity(identity)
}

// HashToken returns the hex sha256 of a bearer token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
