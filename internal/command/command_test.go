package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/mikeshasaco/pokemonbot/internal/model"
)

// TestParse tests the mention grammar: the first keyword token decides
// the command family, remaining tokens are its arguments.
func TestParse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Command
	}{
		// buy family: a price-list request is exactly two tokens.
		{"bare buy", "@pokebot buy", Command{Intent: IntentListPrices}},
		{"buy uppercase", "@PokeBot BUY", Command{Intent: IntentListPrices}},
		{"buy with creature", "@pokebot buy blizzard", Command{Intent: IntentBuyHelp, Creature: "blizzard"}},
		{"buy without handle", "buy", Command{Intent: IntentBuyHelp}},

		// confirm family
		{
			"full confirm",
			"@pokebot confirm Blizzard 0xabc123",
			Command{Intent: IntentConfirmPurchase, Creature: "blizzard", TxHash: "0xabc123"},
		},
		{"confirm missing hash", "@pokebot confirm blizzard", Command{Intent: IntentConfirmHelp}},
		{"bare confirm", "@pokebot confirm", Command{Intent: IntentConfirmHelp}},
		{
			"confirm ignores extra trailing tokens",
			"@pokebot confirm gar 0xdef456 please",
			Command{Intent: IntentConfirmPurchase, Creature: "gar", TxHash: "0xdef456"},
		},

		// list
		{"list", "@pokebot list", Command{Intent: IntentListOwned}},
		{"list with noise after", "@pokebot list my pokemon", Command{Intent: IntentListOwned}},

		// battle family: the creature argument is optional.
		{"bare battle", "@pokebot battle", Command{Intent: IntentStartBattle}},
		{"battle with creature", "@pokebot battle Turquoise", Command{Intent: IntentStartBattle, Creature: "turquoise"}},
		{"battle at start", "battle", Command{Intent: IntentStartBattle}},

		// attack family
		{"attack1", "@pokebot attack1", Command{Intent: IntentAttack, Slot: model.Slot1}},
		{"attack2", "@pokebot attack2", Command{Intent: IntentAttack, Slot: model.Slot2}},
		{"attack1 wins over attack2", "@pokebot attack2 attack1", Command{Intent: IntentAttack, Slot: model.Slot1}},
		{"attack uppercase", "@pokebot ATTACK2", Command{Intent: IntentAttack, Slot: model.Slot2}},

		// first keyword token decides the family
		{"battle before attack1", "@pokebot battle attack1", Command{Intent: IntentStartBattle, Creature: "attack1"}},
		{"attack1 before battle", "@pokebot attack1 battle", Command{Intent: IntentAttack, Slot: model.Slot1}},
		{"confirm before buy", "@pokebot confirm buy 0x1", Command{Intent: IntentConfirmPurchase, Creature: "buy", TxHash: "0x1"}},

		// unknown
		{"empty text", "", Command{Intent: IntentUnknown}},
		{"no keyword", "@pokebot hello there", Command{Intent: IntentUnknown}},
		{"keyword embedded in word", "@pokebot buyer", Command{Intent: IntentUnknown}},
		{"attack without slot", "@pokebot attack", Command{Intent: IntentUnknown}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.text))
		})
	}
}

// TestParseProperty verifies that parsing never panics and always
// returns a known intent, whatever the text looks like.
func TestParseProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.String().Draw(t, "text")
		cmd := Parse(text)

		assert.GreaterOrEqual(t, int(cmd.Intent), int(IntentUnknown))
		assert.LessOrEqual(t, int(cmd.Intent), int(IntentAttack))

		if cmd.Intent == IntentAttack {
			assert.Contains(t, []model.Slot{model.Slot1, model.Slot2}, cmd.Slot)
		}
	})
}
