// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mikeshasaco/pokemonbot/internal/model"
)

// Common errors for repository operations.
var (
	ErrPrincipalNotFound = errors.New("principal not found")
)

// OpponentID is the fixed row id of the synthetic opponent. The row
// is distinguished by its kind, not by this id; a partial unique
// index keeps the table at exactly one opponent row.
const OpponentID = "opponent"

const principalColumns = `principal_id, kind, username, assigned_creature, current_health, created_at, updated_at`

// PrincipalRepository handles per-principal battle state persistence.
type PrincipalRepository struct {
	pool *pgxpool.Pool
}

// NewPrincipalRepository creates a new PrincipalRepository instance.
func NewPrincipalRepository(pool *pgxpool.Pool) *PrincipalRepository {
	return &PrincipalRepository{pool: pool}
}

func scanPrincipal(row pgx.Row) (*model.Principal, error) {
	var p model.Principal
	err := row.Scan(
		&p.ID,
		&p.Kind,
		&p.Username,
		&p.AssignedCreature,
		&p.CurrentHealth,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPrincipalNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Upsert creates a user principal on first contact, or refreshes its
// username. Battle state is untouched for existing rows.
func (r *PrincipalRepository) Upsert(ctx context.Context, principalID, username string) (*model.Principal, error) {
	const query = `
		INSERT INTO principals (principal_id, kind, username, current_health, created_at, updated_at)
		VALUES ($1, 'user', $2, $3, NOW(), NOW())
		ON CONFLICT (principal_id)
		DO UPDATE SET username = COALESCE(NULLIF($2, ''), principals.username), updated_at = NOW()
		RETURNING ` + principalColumns

	p, err := scanPrincipal(r.pool.QueryRow(ctx, query, principalID, username, model.NeutralHealth))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert principal: %w", err)
	}
	return p, nil
}

// GetByID retrieves a user principal by its external account id.
func (r *PrincipalRepository) GetByID(ctx context.Context, principalID string) (*model.Principal, error) {
	const query = `SELECT ` + principalColumns + ` FROM principals WHERE principal_id = $1 AND kind = 'user'`

	p, err := scanPrincipal(r.pool.QueryRow(ctx, query, principalID))
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get principal: %w", err)
	}
	return p, nil
}

// GetOpponent retrieves the synthetic opponent's battle state.
func (r *PrincipalRepository) GetOpponent(ctx context.Context) (*model.Principal, error) {
	const query = `SELECT ` + principalColumns + ` FROM principals WHERE kind = 'opponent'`

	p, err := scanPrincipal(r.pool.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get opponent: %w", err)
	}
	return p, nil
}

// AssignCreature sets a user principal's battle assignment and resets
// its health to the creature's base health, creating the row if needed.
func (r *PrincipalRepository) AssignCreature(ctx context.Context, principalID, username, creatureName string, health int) (*model.Principal, error) {
	const query = `
		INSERT INTO principals (principal_id, kind, username, assigned_creature, current_health, created_at, updated_at)
		VALUES ($1, 'user', $2, $3, $4, NOW(), NOW())
		ON CONFLICT (principal_id)
		DO UPDATE SET
			username = COALESCE(NULLIF($2, ''), principals.username),
			assigned_creature = $3,
			current_health = $4,
			updated_at = NOW()
		RETURNING ` + principalColumns

	p, err := scanPrincipal(r.pool.QueryRow(ctx, query, principalID, username, creatureName, health))
	if err != nil {
		return nil, fmt.Errorf("failed to assign creature: %w", err)
	}
	return p, nil
}

// AssignOpponent sets the opponent's battle assignment and health,
// creating its single row if needed.
func (r *PrincipalRepository) AssignOpponent(ctx context.Context, creatureName string, health int) (*model.Principal, error) {
	const query = `
		INSERT INTO principals (principal_id, kind, username, assigned_creature, current_health, created_at, updated_at)
		VALUES ($1, 'opponent', '', $2, $3, NOW(), NOW())
		ON CONFLICT (principal_id)
		DO UPDATE SET assigned_creature = $2, current_health = $3, updated_at = NOW()
		RETURNING ` + principalColumns

	p, err := scanPrincipal(r.pool.QueryRow(ctx, query, OpponentID, creatureName, health))
	if err != nil {
		return nil, fmt.Errorf("failed to assign opponent: %w", err)
	}
	return p, nil
}

// SetHealth sets a principal's current health. Health is floored at
// zero here as well as by the table constraint.
func (r *PrincipalRepository) SetHealth(ctx context.Context, principalID string, health int) error {
	if health < 0 {
		health = 0
	}
	const query = `UPDATE principals SET current_health = $2, updated_at = NOW() WHERE principal_id = $1`

	result, err := r.pool.Exec(ctx, query, principalID, health)
	if err != nil {
		return fmt.Errorf("failed to set health: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrPrincipalNotFound
	}
	return nil
}

// ConcludeBattle returns a principal to the idle state: no assigned
// creature, neutral health.
func (r *PrincipalRepository) ConcludeBattle(ctx context.Context, principalID string) error {
	const query = `
		UPDATE principals
		SET assigned_creature = NULL, current_health = $2, updated_at = NOW()
		WHERE principal_id = $1
	`
	result, err := r.pool.Exec(ctx, query, principalID, model.NeutralHealth)
	if err != nil {
		return fmt.Errorf("failed to conclude battle: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrPrincipalNotFound
	}
	return nil
}
