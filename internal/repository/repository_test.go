// Package repository provides data access layer implementations.
// Tests use testcontainers-go to spin up a PostgreSQL container.
package repository

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mikeshasaco/pokemonbot/internal/catalog"
	"github.com/mikeshasaco/pokemonbot/internal/model"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a PostgreSQL container and returns a connection pool
// Skips the test if Docker is not available
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	err = runMigrations(ctx, pool)
	require.NoError(t, err)

	// Assignments reference the creatures table, so seed the catalog.
	err = NewCreatureRepository(pool).Reset(ctx, catalog.All())
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

// runMigrations applies the database schema, mirroring startup.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS creatures (
			name VARCHAR(64) PRIMARY KEY,
			base_health INT NOT NULL,
			attack1_name VARCHAR(64) NOT NULL,
			attack1_damage INT NOT NULL,
			attack2_name VARCHAR(64) NOT NULL,
			attack2_damage INT NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS principals (
			principal_id VARCHAR(64) PRIMARY KEY,
			kind VARCHAR(16) NOT NULL DEFAULT 'user',
			username VARCHAR(255) NOT NULL DEFAULT '',
			assigned_creature VARCHAR(64) REFERENCES creatures(name) ON DELETE SET NULL,
			current_health INT NOT NULL DEFAULT 100 CHECK (current_health >= 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_principals_single_opponent
			ON principals(kind) WHERE kind = 'opponent';
	`)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS owned_creatures (
			id BIGSERIAL PRIMARY KEY,
			principal_id VARCHAR(64) NOT NULL REFERENCES principals(principal_id) ON DELETE CASCADE,
			creature_name VARCHAR(64) NOT NULL,
			tx_hash VARCHAR(128) NOT NULL UNIQUE,
			amount_paid DOUBLE PRECISION NOT NULL,
			purchased_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS pending_purchases (
			id BIGSERIAL PRIMARY KEY,
			principal_id VARCHAR(64) NOT NULL REFERENCES principals(principal_id) ON DELETE CASCADE,
			creature_name VARCHAR(64) NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'pending',
			requested_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS poll_cursor (
			id INT PRIMARY KEY,
			last_mention_id VARCHAR(64) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

// ============================================================================
// PrincipalRepository Tests
// ============================================================================

func TestPrincipalRepository_Upsert(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewPrincipalRepository(pool)
	ctx := context.Background()

	p, err := repo.Upsert(ctx, "user-1", "ash")
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.ID)
	assert.Equal(t, model.KindUser, p.Kind)
	assert.Equal(t, "ash", p.Username)
	assert.Nil(t, p.AssignedCreature)
	assert.Equal(t, model.NeutralHealth, p.CurrentHealth)
	assert.False(t, p.CreatedAt.IsZero())
}

func TestPrincipalRepository_UpsertPreservesBattleState(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewPrincipalRepository(pool)
	ctx := context.Background()

	_, err := repo.AssignCreature(ctx, "user-1", "ash", "Blizzard", 500)
	require.NoError(t, err)

	// A later mention re-upserts the principal; the running battle
	// must survive it.
	p, err := repo.Upsert(ctx, "user-1", "ash_ketchum")
	require.NoError(t, err)
	require.NotNil(t, p.AssignedCreature)
	assert.Equal(t, "Blizzard", *p.AssignedCreature)
	assert.Equal(t, 500, p.CurrentHealth)
	assert.Equal(t, "ash_ketchum", p.Username)

	// An empty username never erases a stored one.
	p, err = repo.Upsert(ctx, "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, "ash_ketchum", p.Username)
}

func TestPrincipalRepository_GetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewPrincipalRepository(pool)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, "nobody")
	assert.ErrorIs(t, err, ErrPrincipalNotFound)

	_, err = repo.Upsert(ctx, "user-1", "ash")
	require.NoError(t, err)

	p, err := repo.GetByID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.ID)

	// The opponent row is never visible through the user lookup.
	_, err = repo.AssignOpponent(ctx, "Gar", 500)
	require.NoError(t, err)
	_, err = repo.GetByID(ctx, OpponentID)
	assert.ErrorIs(t, err, ErrPrincipalNotFound)
}

func TestPrincipalRepository_Opponent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewPrincipalRepository(pool)
	ctx := context.Background()

	_, err := repo.GetOpponent(ctx)
	assert.ErrorIs(t, err, ErrPrincipalNotFound)

	p, err := repo.AssignOpponent(ctx, "Gar", 500)
	require.NoError(t, err)
	assert.Equal(t, model.KindOpponent, p.Kind)
	require.NotNil(t, p.AssignedCreature)
	assert.Equal(t, "Gar", *p.AssignedCreature)

	// Reassignment replaces the single opponent row in place.
	p, err = repo.AssignOpponent(ctx, "Neu", 500)
	require.NoError(t, err)
	assert.Equal(t, "Neu", *p.AssignedCreature)

	var count int
	err = pool.QueryRow(ctx, `SELECT COUNT(*) FROM principals WHERE kind = 'opponent'`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPrincipalRepository_SetHealth(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewPrincipalRepository(pool)
	ctx := context.Background()

	_, err := repo.AssignCreature(ctx, "user-1", "ash", "Blizzard", 500)
	require.NoError(t, err)

	require.NoError(t, repo.SetHealth(ctx, "user-1", 230))
	p, err := repo.GetByID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 230, p.CurrentHealth)

	// Negative values are floored before hitting the check constraint.
	require.NoError(t, repo.SetHealth(ctx, "user-1", -40))
	p, err = repo.GetByID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.CurrentHealth)

	err = repo.SetHealth(ctx, "nobody", 100)
	assert.ErrorIs(t, err, ErrPrincipalNotFound)
}

func TestPrincipalRepository_ConcludeBattle(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewPrincipalRepository(pool)
	ctx := context.Background()

	_, err := repo.AssignCreature(ctx, "user-1", "ash", "Blizzard", 120)
	require.NoError(t, err)

	require.NoError(t, repo.ConcludeBattle(ctx, "user-1"))

	p, err := repo.GetByID(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, p.AssignedCreature)
	assert.Equal(t, model.NeutralHealth, p.CurrentHealth)

	err = repo.ConcludeBattle(ctx, "nobody")
	assert.ErrorIs(t, err, ErrPrincipalNotFound)
}

// ============================================================================
// OwnershipRepository Tests
// ============================================================================

func TestOwnershipRepository_Add(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	principals := NewPrincipalRepository(pool)
	repo := NewOwnershipRepository(pool)
	ctx := context.Background()

	_, err := principals.Upsert(ctx, "user-1", "ash")
	require.NoError(t, err)
	_, err = principals.Upsert(ctx, "user-2", "gary")
	require.NoError(t, err)

	o, err := repo.Add(ctx, "user-1", "Blizzard", "0xaaa", 0.3)
	require.NoError(t, err)
	assert.Equal(t, "Blizzard", o.Creature)
	assert.Equal(t, 0.3, o.AmountPaid)
	assert.False(t, o.PurchasedAt.IsZero())

	// The same reference is refused for any principal.
	_, err = repo.Add(ctx, "user-2", "Gar", "0xaaa", 0.1)
	assert.ErrorIs(t, err, ErrReferenceUsed)

	used, err := repo.ReferenceUsed(ctx, "0xaaa")
	require.NoError(t, err)
	assert.True(t, used)

	used, err = repo.ReferenceUsed(ctx, "0xbbb")
	require.NoError(t, err)
	assert.False(t, used)
}

func TestOwnershipRepository_ListAndOwns(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	principals := NewPrincipalRepository(pool)
	repo := NewOwnershipRepository(pool)
	ctx := context.Background()

	_, err := principals.Upsert(ctx, "user-1", "ash")
	require.NoError(t, err)

	owned, err := repo.ListByPrincipal(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, owned)

	_, err = repo.Add(ctx, "user-1", "Blizzard", "0xaaa", 0.3)
	require.NoError(t, err)
	_, err = repo.Add(ctx, "user-1", "Gar", "0xbbb", 0.1)
	require.NoError(t, err)

	owned, err = repo.ListByPrincipal(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, owned, 2)
	names := []string{owned[0].Creature, owned[1].Creature}
	assert.ElementsMatch(t, []string{"Blizzard", "Gar"}, names)

	owns, err := repo.Owns(ctx, "user-1", "blizzard")
	require.NoError(t, err)
	assert.True(t, owns)

	owns, err = repo.Owns(ctx, "user-1", "Neu")
	require.NoError(t, err)
	assert.False(t, owns)
}

func TestOwnershipRepository_PendingLifecycle(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	principals := NewPrincipalRepository(pool)
	repo := NewOwnershipRepository(pool)
	ctx := context.Background()

	_, err := principals.Upsert(ctx, "user-1", "ash")
	require.NoError(t, err)

	require.NoError(t, repo.AddPending(ctx, "user-1", "Blizzard"))

	pending, err := repo.ListPending(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, model.PurchasePending, pending[0].Status)

	require.NoError(t, repo.MarkConfirmed(ctx, "user-1", "blizzard"))

	pending, err = repo.ListPending(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

// ============================================================================
// CursorRepository Tests
// ============================================================================

func TestCursorRepository(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewCursorRepository(pool)
	ctx := context.Background()

	cursor, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, cursor)

	require.NoError(t, repo.Save(ctx, "1001"))
	require.NoError(t, repo.Save(ctx, "1007"))

	cursor, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1007", cursor)
}

// ============================================================================
// CreatureRepository Tests
// ============================================================================

func TestCreatureRepository_ResetAndList(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewCreatureRepository(pool)
	ctx := context.Background()

	// setupTestDB already seeded the catalog once; reset is idempotent.
	require.NoError(t, repo.Reset(ctx, catalog.All()))

	creatures, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, catalog.All(), creatures)
}
