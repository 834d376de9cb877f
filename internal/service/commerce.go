// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mikeshasaco/pokemonbot/internal/catalog"
	"github.com/mikeshasaco/pokemonbot/internal/model"
	"github.com/mikeshasaco/pokemonbot/internal/repository"
)

// Common errors for commerce operations.
var (
	// ErrUnknownCreature means the requested name matches nothing in
	// the catalog, case-insensitively.
	ErrUnknownCreature = errors.New("unknown creature")
	// ErrReferenceUsed mirrors the repository conflict so callers only
	// depend on the service package.
	ErrReferenceUsed = repository.ErrReferenceUsed
)

// PaymentVerifier is the on-chain payment oracle consumed by the ledger.
type PaymentVerifier interface {
	Verify(ctx context.Context, txHash string, expectedAmount float64) error
}

// OwnershipStore is the persistence surface the ledger needs.
type OwnershipStore interface {
	Add(ctx context.Context, principalID, creatureName, txHash string, amountPaid float64) (*model.Ownership, error)
	ReferenceUsed(ctx context.Context, txHash string) (bool, error)
	ListByPrincipal(ctx context.Context, principalID string) ([]model.Ownership, error)
	Owns(ctx context.Context, principalID, creatureName string) (bool, error)
	AddPending(ctx context.Context, principalID, creatureName string) error
	MarkConfirmed(ctx context.Context, principalID, creatureName string) error
}

// PrincipalUpserter creates or refreshes a principal record.
type PrincipalUpserter interface {
	Upsert(ctx context.Context, principalID, username string) (*model.Principal, error)
}

// CommerceService records purchase intents and confirmed ownership,
// verifying payment references through the payment oracle.
type CommerceService struct {
	principals PrincipalUpserter
	ownership  OwnershipStore
	verifier   PaymentVerifier
}

// NewCommerceService creates a new CommerceService instance.
func NewCommerceService(principals PrincipalUpserter, ownership OwnershipStore, verifier PaymentVerifier) *CommerceService {
	return &CommerceService{
		principals: principals,
		ownership:  ownership,
		verifier:   verifier,
	}
}

// ListPrices returns the price table, keyed by proper-cased name.
func (s *CommerceService) ListPrices() map[string]float64 {
	return catalog.Prices()
}

// ConfirmPurchase verifies a payment reference and, on success,
// appends the creature to the principal's collection. A reference can
// succeed at most once system-wide: the second confirmation of the
// same hash gets ErrReferenceUsed even when two arrive concurrently,
// because the insert itself is the enforcement point.
func (s *CommerceService) ConfirmPurchase(ctx context.Context, principalID, username, creatureName, txHash string) (*model.Ownership, error) {
	if _, err := s.principals.Upsert(ctx, principalID, username); err != nil {
		return nil, err
	}

	// Early check for a friendlier fast path; the constraint still
	// decides the race.
	used, err := s.ownership.ReferenceUsed(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, ErrReferenceUsed
	}

	properName, price, ok := catalog.Price(creatureName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCreature, creatureName)
	}

	if err := s.verifier.Verify(ctx, txHash, price); err != nil {
		return nil, err
	}

	owned, err := s.ownership.Add(ctx, principalID, properName, txHash, price)
	if err != nil {
		return nil, err
	}

	if err := s.ownership.MarkConfirmed(ctx, principalID, properName); err != nil {
		// Intent bookkeeping only; ownership is already recorded.
		log.Warn().Err(err).Str("principal_id", principalID).Msg("Failed to confirm purchase intent")
	}

	log.Info().
		Str("principal_id", principalID).
		Str("creature", properName).
		Str("tx_hash", txHash).
		Msg("Purchase confirmed")

	return owned, nil
}

// RecordIntent stores a pending purchase request for a principal.
func (s *CommerceService) RecordIntent(ctx context.Context, principalID, username, creatureName string) error {
	properName, _, ok := catalog.Price(creatureName)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCreature, creatureName)
	}
	if _, err := s.principals.Upsert(ctx, principalID, username); err != nil {
		return err
	}
	return s.ownership.AddPending(ctx, principalID, properName)
}

// ListOwned returns a principal's collection, possibly empty.
func (s *CommerceService) ListOwned(ctx context.Context, principalID string) ([]model.Ownership, error) {
	return s.ownership.ListByPrincipal(ctx, principalID)
}

// Owns reports case-insensitive ownership of a creature.
func (s *CommerceService) Owns(ctx context.Context, principalID, creatureName string) (bool, error) {
	return s.ownership.Owns(ctx, principalID, creatureName)
}
