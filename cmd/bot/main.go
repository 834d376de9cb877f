// Package main is the entry point for the Pokémon battle bot.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mikeshasaco/pokemonbot/internal/battle"
	"github.com/mikeshasaco/pokemonbot/internal/catalog"
	"github.com/mikeshasaco/pokemonbot/internal/config"
	"github.com/mikeshasaco/pokemonbot/internal/handler"
	"github.com/mikeshasaco/pokemonbot/internal/payments"
	"github.com/mikeshasaco/pokemonbot/internal/pkg/db"
	"github.com/mikeshasaco/pokemonbot/internal/poller"
	"github.com/mikeshasaco/pokemonbot/internal/repository"
	"github.com/mikeshasaco/pokemonbot/internal/service"
	"github.com/mikeshasaco/pokemonbot/internal/twitter"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration; missing bot identity aborts startup.
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().
		Str("bot_user_id", cfg.Bot.UserID).
		Str("bot_username", cfg.Bot.Username).
		Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := runMigrations(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	creatureRepo := repository.NewCreatureRepository(dbPool.Pool)
	principalRepo := repository.NewPrincipalRepository(dbPool.Pool)
	ownershipRepo := repository.NewOwnershipRepository(dbPool.Pool)
	cursorRepo := repository.NewCursorRepository(dbPool.Pool)

	// Seed the creature catalog (full reset) and verify it.
	if err := seedCatalog(ctx, creatureRepo); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed creature catalog")
	}

	// Payment verification oracle
	verifier, err := payments.Dial(cfg.Payment.RPCURL, cfg.Payment.WalletAddress)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to payment network")
	}
	defer verifier.Close()

	// Initialize services
	commerceService := service.NewCommerceService(principalRepo, ownershipRepo, verifier)
	battleService := service.NewBattleService(principalRepo, ownershipRepo, battle.NewEngine(nil))

	// Social feed client and identity self-check
	feed := twitter.NewClient(cfg.Bot.UserID, cfg.Bot.BearerToken)
	if me, err := feed.Me(ctx); err != nil {
		log.Warn().Err(err).Msg("Could not verify bot identity against the API")
	} else {
		log.Info().Str("id", me.ID).Str("username", me.Username).Msg("Bot account verified")
		if me.ID != cfg.Bot.UserID {
			log.Warn().
				Str("configured", cfg.Bot.UserID).
				Str("actual", me.ID).
				Msg("Configured bot.user_id does not match the authenticated account")
		}
	}

	mentionHandler := handler.NewMentionHandler(
		commerceService,
		battleService,
		catalog.NewAssets(cfg.Assets.Dir),
		cfg.Bot.Username,
		cfg.Payment.WalletAddress,
		nil,
	)

	mentionPoller := poller.New(feed, mentionHandler, cursorRepo, poller.Config{
		Handle:       cfg.Bot.Username,
		Interval:     cfg.Poller.Interval,
		Lookback:     cfg.Poller.Lookback,
		MessageDelay: cfg.Poller.MessageDelay,
		MaxResults:   cfg.Poller.MaxResults,
	})

	// Health-check endpoint
	healthServer := newHealthServer(cfg.Server.Port, dbPool)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Health server failed")
		}
	}()

	// Start polling in a goroutine
	go func() {
		log.Info().Msg("Bot is running and polling for mentions...")
		if err := mentionPoller.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("Poller exited")
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Graceful shutdown
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Health server shutdown failed")
	}
	log.Info().Msg("Bot stopped gracefully")
}

// newHealthServer builds the process-alive endpoint.
func newHealthServer(port int, pool *db.Pool) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		if err := pool.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}
}

// seedCatalog resets the stored catalog to the static list and
// verifies every creature landed.
func seedCatalog(ctx context.Context, repo *repository.CreatureRepository) error {
	creatures := catalog.All()
	log.Info().Int("count", len(creatures)).Msg("Seeding creature catalog")

	if err := repo.Reset(ctx, creatures); err != nil {
		return err
	}

	stored, err := repo.List(ctx)
	if err != nil {
		return err
	}
	if len(stored) != len(creatures) {
		return fmt.Errorf("expected %d creatures after seeding, found %d", len(creatures), len(stored))
	}

	for _, c := range stored {
		log.Info().Str("name", c.Name).Int("base_health", c.BaseHealth).Msg("Creature ready")
	}
	return nil
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: creature catalog
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS creatures (
			name VARCHAR(64) PRIMARY KEY,
			base_health INT NOT NULL,
			attack1_name VARCHAR(64) NOT NULL,
			attack1_damage INT NOT NULL,
			attack2_name VARCHAR(64) NOT NULL,
			attack2_damage INT NOT NULL
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: creatures table created")

	// Migration 2: principals. current_health can never go negative;
	// at most one opponent row can exist.
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
	log.Info().Msg("Migration 2: principals table created")

	// Migration 3: confirmed purchases. tx_hash uniqueness is the
	// enforcement point for one-confirmation-per-reference.
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS owned_creatures (
			id BIGSERIAL PRIMARY KEY,
			principal_id VARCHAR(64) NOT NULL REFERENCES principals(principal_id) ON DELETE CASCADE,
			creature_name VARCHAR(64) NOT NULL,
			tx_hash VARCHAR(128) NOT NULL UNIQUE,
			amount_paid DOUBLE PRECISION NOT NULL,
			purchased_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_owned_creatures_principal ON owned_creatures(principal_id);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 3: owned_creatures table created")

	// Migration 4: purchase intents
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS pending_purchases (
			id BIGSERIAL PRIMARY KEY,
			principal_id VARCHAR(64) NOT NULL REFERENCES principals(principal_id) ON DELETE CASCADE,
			creature_name VARCHAR(64) NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'pending',
			requested_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_pending_purchases_principal ON pending_purchases(principal_id, status);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 4: pending_purchases table created")

	// Migration 5: durable poll cursor
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS poll_cursor (
			id INT PRIMARY KEY,
			last_mention_id VARCHAR(64) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 5: poll_cursor table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}
