package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mikeshasaco/pokemonbot/internal/model"
)

// ErrReferenceUsed is returned when a transaction hash has already
// been recorded for any principal. The UNIQUE constraint on tx_hash
// is the enforcement point, so concurrent confirmations of the same
// reference produce exactly one owner.
var ErrReferenceUsed = errors.New("transaction reference already used")

// uniqueViolation is the PostgreSQL error code for a unique
// constraint violation.
const uniqueViolation = "23505"

// OwnershipRepository handles confirmed purchases and purchase intents.
type OwnershipRepository struct {
	pool *pgxpool.Pool
}

// NewOwnershipRepository creates a new OwnershipRepository instance.
func NewOwnershipRepository(pool *pgxpool.Pool) *OwnershipRepository {
	return &OwnershipRepository{pool: pool}
}

// Add appends a confirmed purchase to a principal's collection.
// Returns ErrReferenceUsed if the transaction hash is already recorded
// anywhere, including when a concurrent insert wins the race.
func (r *OwnershipRepository) Add(ctx context.Context, principalID, creatureName, txHash string, amountPaid float64) (*model.Ownership, error) {
	const query = `
		INSERT INTO owned_creatures (principal_id, creature_name, tx_hash, amount_paid, purchased_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, principal_id, creature_name, tx_hash, amount_paid, purchased_at
	`

	var o model.Ownership
	err := r.pool.QueryRow(ctx, query, principalID, creatureName, txHash, amountPaid).Scan(
		&o.ID,
		&o.PrincipalID,
		&o.Creature,
		&o.TxHash,
		&o.AmountPaid,
		&o.PurchasedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrReferenceUsed
		}
		return nil, fmt.Errorf("failed to record purchase: %w", err)
	}

	return &o, nil
}

// ReferenceUsed reports whether a transaction hash is already recorded
// on any principal's collection.
func (r *OwnershipRepository) ReferenceUsed(ctx context.Context, txHash string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM owned_creatures WHERE tx_hash = $1)`

	var used bool
	if err := r.pool.QueryRow(ctx, query, txHash).Scan(&used); err != nil {
		return false, fmt.Errorf("failed to check reference: %w", err)
	}
	return used, nil
}

// ListByPrincipal returns a principal's collection, oldest first.
// The result is empty, not an error, for unknown principals.
func (r *OwnershipRepository) ListByPrincipal(ctx context.Context, principalID string) ([]model.Ownership, error) {
	const query = `
		SELECT id, principal_id, creature_name, tx_hash, amount_paid, purchased_at
		FROM owned_creatures
		WHERE principal_id = $1
		ORDER BY purchased_at
	`

	rows, err := r.pool.Query(ctx, query, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list owned creatures: %w", err)
	}
	defer rows.Close()

	var owned []model.Ownership
	for rows.Next() {
		var o model.Ownership
		if err := rows.Scan(&o.ID, &o.PrincipalID, &o.Creature, &o.TxHash, &o.AmountPaid, &o.PurchasedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ownership: %w", err)
		}
		owned = append(owned, o)
	}
	return owned, rows.Err()
}

// Owns reports whether a principal owns a creature, matching the name
// case-insensitively.
func (r *OwnershipRepository) Owns(ctx context.Context, principalID, creatureName string) (bool, error) {
	const query = `
		SELECT EXISTS(
			SELECT 1 FROM owned_creatures
			WHERE principal_id = $1 AND LOWER(creature_name) = LOWER($2)
		)
	`

	var owns bool
	if err := r.pool.QueryRow(ctx, query, principalID, creatureName).Scan(&owns); err != nil {
		return false, fmt.Errorf("failed to check ownership: %w", err)
	}
	return owns, nil
}

// AddPending records a purchase intent for a principal.
func (r *OwnershipRepository) AddPending(ctx context.Context, principalID, creatureName string) error {
	const query = `
		INSERT INTO pending_purchases (principal_id, creature_name, status, requested_at)
		VALUES ($1, $2, $3, NOW())
	`
	if _, err := r.pool.Exec(ctx, query, principalID, creatureName, model.PurchasePending); err != nil {
		return fmt.Errorf("failed to record purchase intent: %w", err)
	}
	return nil
}

// MarkConfirmed flips a principal's pending intents for a creature to
// confirmed. A confirmation without a prior intent is fine; nothing
// is updated.
func (r *OwnershipRepository) MarkConfirmed(ctx context.Context, principalID, creatureName string) error {
	const query = `
		UPDATE pending_purchases
		SET status = $3
		WHERE principal_id = $1 AND LOWER(creature_name) = LOWER($2) AND status = $4
	`
	if _, err := r.pool.Exec(ctx, query, principalID, creatureName, model.PurchaseConfirmed, model.PurchasePending); err != nil {
		return fmt.Errorf("failed to confirm purchase intent: %w", err)
	}
	return nil
}

// ListPending returns a principal's unconfirmed purchase intents.
func (r *OwnershipRepository) ListPending(ctx context.Context, principalID string) ([]model.PendingPurchase, error) {
	const query = `
		SELECT id, principal_id, creature_name, status, requested_at
		FROM pending_purchases
		WHERE principal_id = $1 AND status = $2
		ORDER BY requested_at
	`

	rows, err := r.pool.Query(ctx, query, principalID, model.PurchasePending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending purchases: %w", err)
	}
	defer rows.Close()

	var pending []model.PendingPurchase
	for rows.Next() {
		var p model.PendingPurchase
		if err := rows.Scan(&p.ID, &p.PrincipalID, &p.Creature, &p.Status, &p.RequestedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pending purchase: %w", err)
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}
