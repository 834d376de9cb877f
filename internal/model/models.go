// Package model defines the data models for the Pokémon battle bot.
package model

import "time"

// Move is a named attack with a fixed damage value.
type Move struct {
	Name   string `db:"name"`
	Damage int    `db:"damage"`
}

// Creature is an immutable catalog entry usable in battle.
// Seeded once at startup; never mutated afterwards.
type Creature struct {
	Name       string `db:"name"`
	BaseHealth int    `db:"base_health"`
	Attack1    Move
	Attack2    Move
}

// Move returns the move in the given slot.
func (c *Creature) Move(slot Slot) Move {
	if slot == Slot2 {
		return c.Attack2
	}
	return c.Attack1
}

// Slot identifies one of a creature's two move slots.
type Slot int

const (
	Slot1 Slot = 1
	Slot2 Slot = 2
)

// Principal kinds. The synthetic battle opponent is a tagged variant
// rather than a magic identifier, so a real user whose account id
// happens to be "BOT" cannot collide with it.
const (
	KindUser     = "user"
	KindOpponent = "opponent"
)

// NeutralHealth is the health value a principal holds outside a battle.
const NeutralHealth = 100

// Principal is a user (or the synthetic opponent) tracked by the
// session store. AssignedCreature is nil until a battle starts.
type Principal struct {
	ID               string    `db:"principal_id"`
	Kind             string    `db:"kind"`
	Username         string    `db:"username"`
	AssignedCreature *string   `db:"assigned_creature"`
	CurrentHealth    int       `db:"current_health"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// InBattle reports whether the principal has a creature assigned.
func (p *Principal) InBattle() bool {
	return p != nil && p.AssignedCreature != nil
}

// Ownership records a confirmed creature purchase. The transaction
// hash is unique across all principals.
type Ownership struct {
	ID          int64     `db:"id"`
	PrincipalID string    `db:"principal_id"`
	Creature    string    `db:"creature_name"`
	TxHash      string    `db:"tx_hash"`
	AmountPaid  float64   `db:"amount_paid"`
	PurchasedAt time.Time `db:"purchased_at"`
}

// Purchase statuses for pending purchase records.
const (
	PurchasePending   = "pending"
	PurchaseConfirmed = "confirmed"
)

// PendingPurchase is a not-yet-confirmed purchase intent.
type PendingPurchase struct {
	ID          int64     `db:"id"`
	PrincipalID string    `db:"principal_id"`
	Creature    string    `db:"creature_name"`
	Status      string    `db:"status"`
	RequestedAt time.Time `db:"requested_at"`
}

// Mention is an inbound message from the social feed.
type Mention struct {
	ID        string
	AuthorID  string
	Text      string
	CreatedAt time.Time
}
