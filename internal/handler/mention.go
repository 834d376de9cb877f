// Package handler maps parsed mention commands onto the commerce and
// battle services and builds the reply text and media.
package handler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mikeshasaco/pokemonbot/internal/catalog"
	"github.com/mikeshasaco/pokemonbot/internal/command"
	"github.com/mikeshasaco/pokemonbot/internal/model"
	"github.com/mikeshasaco/pokemonbot/internal/payments"
	"github.com/mikeshasaco/pokemonbot/internal/poller"
	"github.com/mikeshasaco/pokemonbot/internal/service"
)

// MentionHandler dispatches one mention to the right service and
// renders the reply. It never returns an error: anything unexpected
// collapses to a generic apology so one bad message cannot abort a
// polling cycle.
type MentionHandler struct {
	commerce *service.CommerceService
	battles  *service.BattleService
	assets   *catalog.Assets
	handle   string // bot @handle, without the @
	wallet   string // payment wallet address shown in the price list
	rng      *rand.Rand
}

// NewMentionHandler creates a new MentionHandler instance. A nil rng
// gets a time-seeded one.
func NewMentionHandler(commerce *service.CommerceService, battles *service.BattleService, assets *catalog.Assets, handle, wallet string, rng *rand.Rand) *MentionHandler {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &MentionHandler{
		commerce: commerce,
		battles:  battles,
		assets:   assets,
		handle:   handle,
		wallet:   wallet,
		rng:      rng,
	}
}

// Handle classifies the mention and produces a reply.
func (h *MentionHandler) Handle(ctx context.Context, m model.Mention) poller.Reply {
	cmd := command.Parse(m.Text)

	switch cmd.Intent {
	case command.IntentListPrices:
		return poller.Reply{Text: h.priceList()}

	case command.IntentBuyHelp:
		if cmd.Creature != "" {
			// A named ask is worth remembering even though the user
			// still has to pay and confirm.
			if err := h.commerce.RecordIntent(ctx, m.AuthorID, "", cmd.Creature); err != nil && !errors.Is(err, service.ErrUnknownCreature) {
				log.Warn().Err(err).Str("author_id", m.AuthorID).Msg("Failed to record purchase intent")
			}
		}
		return poller.Reply{Text: fmt.Sprintf("To see available Pokemon and prices, just tweet: @%s buy", h.handle)}

	case command.IntentConfirmHelp:
		return poller.Reply{Text: "Please provide both Pokemon name and transaction hash.\n" +
			fmt.Sprintf("Format: @%s confirm <pokemon_name> <transaction_hash>", h.handle)}

	case command.IntentConfirmPurchase:
		return h.confirm(ctx, m, cmd)

	case command.IntentListOwned:
		return h.listOwned(ctx, m)

	case command.IntentStartBattle:
		return h.startBattle(ctx, m, cmd)

	case command.IntentAttack:
		return h.attack(ctx, m, cmd)

	default:
		return poller.Reply{Text: "Invalid command! Tweet 'battle' to start a new game or use 'attack1' or 'attack2' during battle!"}
	}
}

// priceList renders the catalog with prices, the payment wallet, and
// an illustrative confirmation template. The example hash is random
// so it can never be mistaken for a real reference.
func (h *MentionHandler) priceList() string {
	prices := h.commerce.ListPrices()

	names := make([]string, 0, len(prices))
	for name := range prices {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Available Pokemon for purchase:\n\n")
	for _, name := range names {
		fmt.Fprintf(&b, "%s: %g ETH\n", name, prices[name])
	}
	b.WriteString("\nTo purchase, send ETH to our wallet and confirm:\n")
	fmt.Fprintf(&b, "Wallet: %s\n\n", h.wallet)
	b.WriteString("Example confirmation:\n")
	fmt.Fprintf(&b, "@%s confirm %s %s", h.handle, names[h.rng.Intn(len(names))], h.exampleHash())

	return b.String()
}

// exampleHash generates a synthetic 64-hex-digit transaction hash.
func (h *MentionHandler) exampleHash() string {
	const digits = "0123456789abcdef"
	buf := make([]byte, 64)
	for i := range buf {
		buf[i] = digits[h.rng.Intn(len(digits))]
	}
	return "0x" + string(buf)
}

func (h *MentionHandler) confirm(ctx context.Context, m model.Mention, cmd command.Command) poller.Reply {
	owned, err := h.commerce.ConfirmPurchase(ctx, m.AuthorID, "", cmd.Creature, cmd.TxHash)
	if err != nil {
		return poller.Reply{Text: confirmFailureText(err)}
	}

	return poller.Reply{Text: fmt.Sprintf("Payment confirmed! %s has been added to your collection!\n", owned.Creature) +
		fmt.Sprintf("Tweet '@%s battle %s' to start battling with your new Pokemon!", h.handle, owned.Creature)}
}

// confirmFailureText maps a confirmation failure to user-facing text.
func confirmFailureText(err error) string {
	switch {
	case errors.Is(err, service.ErrReferenceUsed):
		return "This transaction has already been used for a purchase!"
	case errors.Is(err, service.ErrUnknownCreature):
		return fmt.Sprintf("Invalid Pokemon! Available Pokemon: %s", strings.Join(catalog.Names(), ", "))
	case errors.Is(err, payments.ErrTxNotFound):
		return "Transaction not found on Base network. Please check the hash and try again."
	case errors.Is(err, payments.ErrTxNotConfirmed):
		return "Please wait for at least 1 confirmation on Base network and try again."
	case errors.Is(err, payments.ErrWrongDestination):
		return "That transaction was not sent to our wallet address."
	case errors.Is(err, payments.ErrInsufficientPayment):
		return "Insufficient payment. Please send the full listed price and try again."
	case errors.Is(err, payments.ErrTxFailed):
		return "That transaction failed on Base network."
	default:
		log.Error().Err(err).Msg("Purchase confirmation failed")
		return "Error confirming payment. Please make sure you've sent the correct amount of ETH and provided the correct transaction hash."
	}
}

func (h *MentionHandler) listOwned(ctx context.Context, m model.Mention) poller.Reply {
	owned, err := h.commerce.ListOwned(ctx, m.AuthorID)
	if err != nil {
		log.Error().Err(err).Str("author_id", m.AuthorID).Msg("Failed to list owned creatures")
		return apology()
	}
	if len(owned) == 0 {
		return poller.Reply{Text: "You don't own any Pokemon yet! Use 'buy' to purchase one."}
	}

	names := make([]string, len(owned))
	for i, o := range owned {
		names[i] = o.Creature
	}

	return poller.Reply{Text: "Your Pokemon collection:\n\n" + strings.Join(names, "\n") +
		fmt.Sprintf("\n\nTo use a specific Pokemon, tweet: @%s battle <pokemon_name>", h.handle)}
}

func (h *MentionHandler) startBattle(ctx context.Context, m model.Mention, cmd command.Command) poller.Reply {
	result, err := h.battles.StartBattle(ctx, m.AuthorID, "", cmd.Creature)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCreatureNotOwned):
			return poller.Reply{Text: fmt.Sprintf("You don't own %s! Use '@%s list' to see your Pokemon or just 'battle' for a random one.", cmd.Creature, h.handle)}
		case errors.Is(err, service.ErrCreatureNotFound):
			return poller.Reply{Text: fmt.Sprintf("Pokemon %s not found! Available Pokemon: %s", cmd.Creature, strings.Join(catalog.Names(), ", "))}
		default:
			log.Error().Err(err).Str("author_id", m.AuthorID).Msg("Failed to start battle")
			return apology()
		}
	}

	u := result.UserCreature
	text := fmt.Sprintf("Welcome to the battle! You've been assigned %s! I choose %s!\n\n", u.Name, result.OpponentCreature.Name) +
		"Your moves:\n" +
		fmt.Sprintf("attack1: %s (%d damage)\n", u.Attack1.Name, u.Attack1.Damage) +
		fmt.Sprintf("attack2: %s (%d damage)", u.Attack2.Name, u.Attack2.Damage)

	return poller.Reply{Text: text, MediaPaths: h.battleMedia(u.Name, result.OpponentCreature.Name)}
}

func (h *MentionHandler) attack(ctx context.Context, m model.Mention, cmd command.Command) poller.Reply {
	result, err := h.battles.Attack(ctx, m.AuthorID, cmd.Slot)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoActiveBattle):
			return poller.Reply{Text: "You haven't started a battle yet! Tweet 'battle' to begin!"}
		case errors.Is(err, service.ErrOpponentStateLost):
			return poller.Reply{Text: "Sorry, I lost track of our battle. Let's start a new one! Tweet 'battle' to begin!"}
		default:
			log.Error().Err(err).Str("author_id", m.AuthorID).Msg("Failed to resolve attack")
			return apology()
		}
	}

	text := fmt.Sprintf("Your %s %s\n", result.UserCreature.Name, result.UserAttack.Message) +
		fmt.Sprintf("My %s %s\n\n", result.OpponentCreature.Name, result.OpponentAttack.Message) +
		fmt.Sprintf("Your health: %d\n", result.UserHealth) +
		fmt.Sprintf("My health: %d", result.OpponentHealth)

	if result.Over {
		winner := "I"
		if result.UserWon {
			winner = "You"
		}
		text += fmt.Sprintf("\n\n%s won the battle! Tweet 'battle' to play again!", winner)
	}

	return poller.Reply{Text: text, MediaPaths: h.battleMedia(result.UserCreature.Name, result.OpponentCreature.Name)}
}

// battleMedia resolves both combatants' images; the reply carries
// media only when both are present.
func (h *MentionHandler) battleMedia(userCreature, opponentCreature string) []string {
	userImage, err := h.assets.ImagePath(userCreature)
	if err != nil {
		log.Warn().Err(err).Msg("User creature image missing")
		return nil
	}
	opponentImage, err := h.assets.ImagePath(opponentCreature)
	if err != nil {
		log.Warn().Err(err).Msg("Opponent creature image missing")
		return nil
	}
	return []string{userImage, opponentImage}
}

func apology() poller.Reply {
	return poller.Reply{Text: "Sorry, something went wrong. Please try again!"}
}
