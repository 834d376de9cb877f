// Package command classifies raw mention text into a fixed set of
// game intents. Parsing is pure: all stateful work happens downstream.
package command

import (
	"strings"

	"github.com/mikeshasaco/pokemonbot/internal/model"
)

// Intent is the classified meaning of a mention.
type Intent int

const (
	// IntentUnknown is anything the grammar does not recognize.
	IntentUnknown Intent = iota
	// IntentListPrices is a bare "buy": reply with the price list.
	IntentListPrices
	// IntentBuyHelp is "buy" with trailing tokens: reply with usage.
	IntentBuyHelp
	// IntentConfirmPurchase is "confirm <name> <hash>".
	IntentConfirmPurchase
	// IntentConfirmHelp is "confirm" with missing arguments.
	IntentConfirmHelp
	// IntentListOwned is "list": reply with the caller's collection.
	IntentListOwned
	// IntentStartBattle is "battle [name]".
	IntentStartBattle
	// IntentAttack is "attack1" or "attack2".
	IntentAttack
)

// Command is a parsed mention: an intent plus its typed arguments.
type Command struct {
	Intent   Intent
	Creature string     // IntentConfirmPurchase, IntentStartBattle (may be empty)
	TxHash   string     // IntentConfirmPurchase
	Slot     model.Slot // IntentAttack
}

// keywords that open a command family. The first keyword token in the
// message decides the family, so a message containing both "battle"
// and "attack1" is never misread by substring order.
var keywords = map[string]bool{
	"buy":     true,
	"confirm": true,
	"list":    true,
	"battle":  true,
	"attack1": true,
	"attack2": true,
}

// Parse classifies lower-cased mention text. The leading @handle
// counts as a token, matching how commands are tweeted.
func Parse(text string) Command {
	tokens := strings.Fields(strings.ToLower(text))

	idx := -1
	for i, tok := range tokens {
		if keywords[tok] {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Command{Intent: IntentUnknown}
	}

	switch tokens[idx] {
	case "buy":
		// A price-list request is exactly "@handle buy"; anything
		// longer gets the generic purchase help instead. The token
		// after "buy" is kept so a named ask can be recorded as a
		// purchase intent.
		if len(tokens) == 2 {
			return Command{Intent: IntentListPrices}
		}
		cmd := Command{Intent: IntentBuyHelp}
		if idx+1 < len(tokens) {
			cmd.Creature = tokens[idx+1]
		}
		return cmd

	case "confirm":
		if idx+2 >= len(tokens) {
			return Command{Intent: IntentConfirmHelp}
		}
		return Command{
			Intent:   IntentConfirmPurchase,
			Creature: tokens[idx+1],
			TxHash:   tokens[idx+2],
		}

	case "list":
		return Command{Intent: IntentListOwned}

	case "battle":
		cmd := Command{Intent: IntentStartBattle}
		if idx+1 < len(tokens) {
			cmd.Creature = tokens[idx+1]
		}
		return cmd

	default: // attack1 or attack2
		// attack1 wins when both appear anywhere in the message.
		slot := model.Slot2
		for _, tok := range tokens {
			if tok == "attack1" {
				slot = model.Slot1
				break
			}
		}
		return Command{Intent: IntentAttack, Slot: slot}
	}
}
