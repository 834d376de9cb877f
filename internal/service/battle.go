package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mikeshasaco/pokemonbot/internal/battle"
	"github.com/mikeshasaco/pokemonbot/internal/catalog"
	"github.com/mikeshasaco/pokemonbot/internal/model"
	"github.com/mikeshasaco/pokemonbot/internal/repository"
)

// Common errors for battle operations.
var (
	// ErrNoActiveBattle means the caller has no creature assigned.
	ErrNoActiveBattle = errors.New("no active battle")
	// ErrOpponentStateLost means the opponent record is missing or
	// corrupted; the caller should start a new battle, not retry.
	ErrOpponentStateLost = errors.New("opponent state lost")
	// ErrCreatureNotFound means the requested creature is not in the
	// catalog.
	ErrCreatureNotFound = errors.New("creature not found")
	// ErrCreatureNotOwned means the caller asked to battle with a
	// creature they have not purchased.
	ErrCreatureNotOwned = errors.New("creature not owned")
	// ErrNoCreatureAvailable means no creature was left for the
	// opponent to pick.
	ErrNoCreatureAvailable = errors.New("no creature available")
)

// SessionStore is the per-principal battle state surface.
type SessionStore interface {
	GetByID(ctx context.Context, principalID string) (*model.Principal, error)
	GetOpponent(ctx context.Context) (*model.Principal, error)
	AssignCreature(ctx context.Context, principalID, username, creatureName string, health int) (*model.Principal, error)
	AssignOpponent(ctx context.Context, creatureName string, health int) (*model.Principal, error)
	SetHealth(ctx context.Context, principalID string, health int) error
	ConcludeBattle(ctx context.Context, principalID string) error
}

// OwnershipChecker answers the battle-start ownership question.
type OwnershipChecker interface {
	Owns(ctx context.Context, principalID, creatureName string) (bool, error)
}

// StartResult describes a freshly started battle.
type StartResult struct {
	UserCreature     model.Creature
	OpponentCreature model.Creature
}

// TurnResult describes one resolved attack round.
type TurnResult struct {
	UserCreature     model.Creature
	OpponentCreature model.Creature
	UserAttack       battle.AttackResult // user's move vs the opponent
	OpponentAttack   battle.AttackResult // opponent's move vs the user
	UserHealth       int                 // user health after the round
	OpponentHealth   int                 // opponent health after the round
	Over             bool
	UserWon          bool
}

// BattleService orchestrates the battle state machine across the
// session store and the pure battle engine.
type BattleService struct {
	sessions  SessionStore
	ownership OwnershipChecker
	engine    *battle.Engine
}

// NewBattleService creates a new BattleService instance.
func NewBattleService(sessions SessionStore, ownership OwnershipChecker, engine *battle.Engine) *BattleService {
	return &BattleService{
		sessions:  sessions,
		ownership: ownership,
		engine:    engine,
	}
}

// StartBattle assigns the user a creature (their requested one, which
// must be owned, or a uniform-random pick) and the opponent a
// different random creature, both at base health.
func (s *BattleService) StartBattle(ctx context.Context, principalID, username, requestedName string) (*StartResult, error) {
	var userCreature model.Creature

	if requestedName != "" {
		owns, err := s.ownership.Owns(ctx, principalID, requestedName)
		if err != nil {
			return nil, err
		}
		if !owns {
			return nil, fmt.Errorf("%w: %s", ErrCreatureNotOwned, requestedName)
		}

		c, ok := catalog.Lookup(requestedName)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrCreatureNotFound, requestedName)
		}
		userCreature = c
	} else {
		c, ok := s.engine.PickCreature(catalog.All(), "")
		if !ok {
			return nil, ErrNoCreatureAvailable
		}
		userCreature = c
	}

	if _, err := s.sessions.AssignCreature(ctx, principalID, username, userCreature.Name, userCreature.BaseHealth); err != nil {
		return nil, err
	}

	opponentCreature, ok := s.engine.PickCreature(catalog.All(), userCreature.Name)
	if !ok {
		return nil, ErrNoCreatureAvailable
	}
	if _, err := s.sessions.AssignOpponent(ctx, opponentCreature.Name, opponentCreature.BaseHealth); err != nil {
		return nil, err
	}

	log.Info().
		Str("principal_id", principalID).
		Str("user_creature", userCreature.Name).
		Str("opponent_creature", opponentCreature.Name).
		Msg("Battle started")

	return &StartResult{
		UserCreature:     userCreature,
		OpponentCreature: opponentCreature,
	}, nil
}

// Attack resolves one round: the user's chosen move against the
// opponent, then the opponent's random countermove against the user.
// Both health values are persisted before the termination check. When
// either side reaches zero the battle concludes and both principals
// return to neutral health; if both drop in the same round the
// opponent is declared the winner.
func (s *BattleService) Attack(ctx context.Context, principalID string, slot model.Slot) (*TurnResult, error) {
	user, err := s.sessions.GetByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, repository.ErrPrincipalNotFound) {
			return nil, ErrNoActiveBattle
		}
		return nil, err
	}
	if !user.InBattle() {
		return nil, ErrNoActiveBattle
	}

	opponent, err := s.sessions.GetOpponent(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrPrincipalNotFound) {
			return nil, ErrOpponentStateLost
		}
		return nil, err
	}
	if !opponent.InBattle() {
		return nil, ErrOpponentStateLost
	}

	userCreature, ok := catalog.Lookup(*user.AssignedCreature)
	if !ok {
		return nil, ErrNoActiveBattle
	}
	opponentCreature, ok := catalog.Lookup(*opponent.AssignedCreature)
	if !ok {
		return nil, ErrOpponentStateLost
	}

	userAttack := s.engine.ResolveAttack(opponent.CurrentHealth, userCreature.Move(slot))
	opponentAttack := s.engine.ResolveAttack(user.CurrentHealth, opponentCreature.Move(s.engine.OpponentMove()))

	if err := s.sessions.SetHealth(ctx, user.ID, opponentAttack.NewHealth); err != nil {
		return nil, err
	}
	if err := s.sessions.SetHealth(ctx, opponent.ID, userAttack.NewHealth); err != nil {
		return nil, err
	}

	result := &TurnResult{
		UserCreature:     userCreature,
		OpponentCreature: opponentCreature,
		UserAttack:       userAttack,
		OpponentAttack:   opponentAttack,
		UserHealth:       opponentAttack.NewHealth,
		OpponentHealth:   userAttack.NewHealth,
	}

	if result.UserHealth <= 0 || result.OpponentHealth <= 0 {
		result.Over = true
		// User dropping to zero loses even when both sides drop in
		// the same round.
		result.UserWon = result.UserHealth > 0

		if err := s.sessions.ConcludeBattle(ctx, user.ID); err != nil {
			return nil, err
		}
		if err := s.sessions.ConcludeBattle(ctx, opponent.ID); err != nil {
			return nil, err
		}

		log.Info().
			Str("principal_id", principalID).
			Bool("user_won", result.UserWon).
			Msg("Battle concluded")
	}

	return result, nil
}
