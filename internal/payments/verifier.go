// Package payments verifies on-chain payment references against the
// Base network. It is a verifier only: it never moves funds, it checks
// that an externally-submitted transaction paid the right wallet the
// right amount.
package payments

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"
)

// Verification failure modes, in check order.
var (
	ErrTxNotFound          = errors.New("transaction not found on Base network")
	ErrTxFailed            = errors.New("transaction failed on Base network")
	ErrWrongDestination    = errors.New("transaction was not sent to the correct wallet address")
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrTxNotConfirmed      = errors.New("transaction has no confirmations yet")
)

// priceTolerance allows slight underpayment for gas price fluctuation.
const priceTolerance = 0.99

// weiPerEth converts transaction values to ETH.
var weiPerEth = big.NewFloat(1e18)

// Verifier checks payment references over a Base JSON-RPC endpoint.
type Verifier struct {
	client *ethclient.Client
	wallet common.Address
}

// Dial connects to the RPC endpoint and binds the destination wallet.
func Dial(rpcURL, walletAddress string) (*Verifier, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Base RPC: %w", err)
	}

	log.Info().Str("rpc_url", rpcURL).Str("wallet", walletAddress).Msg("Connected to Base network")

	return &Verifier{
		client: client,
		wallet: common.HexToAddress(walletAddress),
	}, nil
}

// Close releases the underlying RPC connection.
func (v *Verifier) Close() {
	v.client.Close()
}

// Verify checks that the referenced transaction succeeded, paid the
// bound wallet at least 99% of the expected amount, and has at least
// one confirmation.
func (v *Verifier) Verify(ctx context.Context, txHash string, expectedAmount float64) error {
	hash := common.HexToHash(strings.TrimSpace(txHash))

	tx, pending, err := v.client.TransactionByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return ErrTxNotFound
		}
		return fmt.Errorf("failed to fetch transaction: %w", err)
	}
	if pending {
		return ErrTxNotConfirmed
	}

	receipt, err := v.client.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return ErrTxNotConfirmed
		}
		return fmt.Errorf("failed to fetch receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return ErrTxFailed
	}

	if tx.To() == nil || *tx.To() != v.wallet {
		return ErrWrongDestination
	}

	paid, _ := new(big.Float).Quo(new(big.Float).SetInt(tx.Value()), weiPerEth).Float64()
	if paid < expectedAmount*priceTolerance {
		return fmt.Errorf("%w: expected %g ETH but received %g ETH", ErrInsufficientPayment, expectedAmount, paid)
	}

	head, err := v.client.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch block number: %w", err)
	}
	if head < receipt.BlockNumber.Uint64()+1 {
		return ErrTxNotConfirmed
	}

	log.Info().
		Str("tx_hash", txHash).
		Float64("paid_eth", paid).
		Uint64("confirmations", head-receipt.BlockNumber.Uint64()).
		Msg("Payment verified")

	return nil
}
