package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mikeshasaco/pokemonbot/internal/model"
)

// CreatureRepository persists the creature catalog. The table mirrors
// the static catalog so principal assignments have a referential home;
// it is only ever rewritten by a full reset at startup.
type CreatureRepository struct {
	pool *pgxpool.Pool
}

// NewCreatureRepository creates a new CreatureRepository instance.
func NewCreatureRepository(pool *pgxpool.Pool) *CreatureRepository {
	return &CreatureRepository{pool: pool}
}

// Reset replaces the stored catalog with the given creatures in a
// single transaction.
func (r *CreatureRepository) Reset(ctx context.Context, creatures []model.Creature) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin catalog reset: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM creatures`); err != nil {
		return fmt.Errorf("failed to clear catalog: %w", err)
	}

	const insert = `
		INSERT INTO creatures (name, base_health, attack1_name, attack1_damage, attack2_name, attack2_damage)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, c := range creatures {
		_, err := tx.Exec(ctx, insert,
			c.Name, c.BaseHealth,
			c.Attack1.Name, c.Attack1.Damage,
			c.Attack2.Name, c.Attack2.Damage,
		)
		if err != nil {
			return fmt.Errorf("failed to seed creature %s: %w", c.Name, err)
		}
	}

	return tx.Commit(ctx)
}

// List returns the stored catalog sorted by name.
func (r *CreatureRepository) List(ctx context.Context) ([]model.Creature, error) {
	const query = `
		SELECT name, base_health, attack1_name, attack1_damage, attack2_name, attack2_damage
		FROM creatures
		ORDER BY name
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list creatures: %w", err)
	}
	defer rows.Close()

	var creatures []model.Creature
	for rows.Next() {
		var c model.Creature
		err := rows.Scan(
			&c.Name, &c.BaseHealth,
			&c.Attack1.Name, &c.Attack1.Damage,
			&c.Attack2.Name, &c.Attack2.Damage,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan creature: %w", err)
		}
		creatures = append(creatures, c)
	}
	return creatures, rows.Err()
}
