// Package battle implements pure combat resolution: move selection,
// hit/miss rolls, damage bookkeeping, and win detection. It holds no
// state; persistence belongs to the caller.
package battle

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/mikeshasaco/pokemonbot/internal/model"
)

// AttackResult is the outcome of one move resolution.
type AttackResult struct {
	Damage    int
	NewHealth int
	Hit       bool
	Message   string
}

// Engine rolls the random parts of a battle. Rolls for the two
// combatants in a turn are independent of each other.
type Engine struct {
	rng *rand.Rand
}

// NewEngine creates an engine. A nil source gets a time-seeded one.
func NewEngine(rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{rng: rng}
}

// OpponentMove picks the opponent's move slot, uniformly random each
// turn with no memory of previous turns.
func (e *Engine) OpponentMove() model.Slot {
	if e.rng.Float64() < 0.5 {
		return model.Slot1
	}
	return model.Slot2
}

// ResolveAttack resolves a move against a defender: 50% independent
// chance to miss, otherwise full damage floored at zero health.
func (e *Engine) ResolveAttack(defenderHealth int, mv model.Move) AttackResult {
	return ApplyMove(e.rng.Float64() >= 0.5, defenderHealth, mv)
}

// ApplyMove applies a move with the hit/miss outcome already decided.
// Split out so the deterministic part is testable without an RNG.
func ApplyMove(hit bool, defenderHealth int, mv model.Move) AttackResult {
	if !hit {
		return AttackResult{
			NewHealth: defenderHealth,
			Message:   fmt.Sprintf("tried to use %s but missed!", mv.Name),
		}
	}

	newHealth := defenderHealth - mv.Damage
	if newHealth < 0 {
		newHealth = 0
	}
	return AttackResult{
		Damage:    mv.Damage,
		NewHealth: newHealth,
		Hit:       true,
		Message:   fmt.Sprintf("used %s dealing %d damage!", mv.Name, mv.Damage),
	}
}

// PickCreature selects a uniform-random creature from the pool,
// excluding the named one. Used to give the opponent a creature
// different from the user's pick.
func (e *Engine) PickCreature(pool []model.Creature, exclude string) (model.Creature, bool) {
	candidates := make([]model.Creature, 0, len(pool))
	for _, c := range pool {
		if c.Name != exclude {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return model.Creature{}, false
	}
	return candidates[e.rng.Intn(len(candidates))], true
}
