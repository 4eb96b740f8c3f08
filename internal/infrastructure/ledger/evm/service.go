// Package evmledger adapts the escrow contract deployed on an EVM chain to
// the uniform LedgerService capability set. It owns the translation between
// the chain's smallest unit and its display unit and the 0x-prefixed hex
// encoding of hashlocks; it never interprets hashlock or timelock semantics.
package evmledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/ratelimit"

	"github.com/hashlock-labs/swapd/internal/core/ports"
	"github.com/hashlock-labs/swapd/pkg/circuitbreaker"
	"github.com/hashlock-labs/swapd/pkg/commitment"
)

const requestsPerSecond = 10

// EscrowSwap is the wire-level view of a swap held by the escrow contract.
// Amounts travel as decimal strings in display units.
type EscrowSwap struct {
	SwapId    string `json:"swap_id"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Hashlock  string `json:"hashlock"`
	Timelock  uint64 `json:"timelock"`
	Amount    string `json:"amount"`
}

// EscrowClient is the RPC binding to the escrow contract. Its on-chain
// execution semantics are assumed correct.
type EscrowClient interface {
	CreateSwap(ctx context.Context, swap EscrowSwap) (string, error)
	Withdraw(ctx context.Context, swapId, preimage string) (string, error)
	Refund(ctx context.Context, swapId string) (string, error)
	GetActiveSwaps(ctx context.Context) ([]EscrowSwap, error)
	BalanceOf(ctx context.Context, account string) (string, error)
	Transfer(ctx context.Context, from, to, amount string) (string, error)
}

type service struct {
	client  EscrowClient
	signer  string
	breaker *gobreaker.CircuitBreaker
	limiter ratelimit.Limiter
}

// NewService returns the LedgerService talking to the escrow contract on an
// EVM chain on behalf of the given signer account.
func NewService(client EscrowClient, signer string) ports.LedgerService {
	return &service{
		client:  client,
		signer:  signer,
		breaker: circuitbreaker.NewCircuitBreaker("evm-ledger"),
		limiter: ratelimit.New(requestsPerSecond),
	}
}

func (s *service) Kind() commitment.LedgerKind {
	return commitment.LedgerEvm
}

func (s *service) Lock(ctx context.Context, req ports.LockRequest) (string, error) {
	res, err := s.call(func() (interface{}, error) {
		return s.client.CreateSwap(ctx, EscrowSwap{
			Sender:    s.signer,
			Recipient: req.Recipient,
			Hashlock:  req.Hashlock,
			Timelock:  req.Timelock,
			Amount:    toDisplayAmount(req.Amount),
		})
	})
	if err != nil {
		return "", fmt.Errorf("evm: creating escrow: %w", err)
	}
	return res.(string), nil
}

func (s *service) Claim(ctx context.Context, lockId, preimage string) (string, error) {
	res, err := s.call(func() (interface{}, error) {
		return s.client.Withdraw(ctx, lockId, preimage)
	})
	if err != nil {
		return "", fmt.Errorf("evm: withdrawing escrow %s: %w", lockId, err)
	}
	return res.(string), nil
}

func (s *service) Refund(ctx context.Context, lockId string) (string, error) {
	res, err := s.call(func() (interface{}, error) {
		return s.client.Refund(ctx, lockId)
	})
	if err != nil {
		return "", fmt.Errorf("evm: refunding escrow %s: %w", lockId, err)
	}
	return res.(string), nil
}

func (s *service) BalanceOf(ctx context.Context, account string) (uint64, error) {
	res, err := s.call(func() (interface{}, error) {
		return s.client.BalanceOf(ctx, account)
	})
	if err != nil {
		return 0, fmt.Errorf("evm: fetching balance of %s: %w", account, err)
	}
	return fromDisplayAmount(res.(string))
}

func (s *service) Transfer(
	ctx context.Context, from, to string, amount uint64,
) (string, error) {
	if from == "" {
		from = s.signer
	}
	res, err := s.call(func() (interface{}, error) {
		return s.client.Transfer(ctx, from, to, toDisplayAmount(amount))
	})
	if err != nil {
		return "", fmt.Errorf("evm: transferring to %s: %w", to, err)
	}
	return res.(string), nil
}

func (s *service) ActiveLocks(ctx context.Context) ([]ports.ActiveLock, error) {
	res, err := s.call(func() (interface{}, error) {
		return s.client.GetActiveSwaps(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("evm: listing active escrows: %w", err)
	}

	swaps := res.([]EscrowSwap)
	locks := make([]ports.ActiveLock, 0, len(swaps))
	for _, swap := range swaps {
		digest, err := commitment.DecodeFrom(commitment.LedgerEvm, swap.Hashlock)
		if err != nil {
			// Values the contract accepted are expected well-formed; a
			// malformed one is dropped rather than poisoning the listing.
			continue
		}
		amount, err := fromDisplayAmount(swap.Amount)
		if err != nil {
			continue
		}
		locks = append(locks, ports.ActiveLock{
			LockId:    swap.SwapId,
			Sender:    swap.Sender,
			Recipient: swap.Recipient,
			Hashlock:  commitment.EncodeCanonical(digest),
			Timelock:  swap.Timelock,
			Amount:    amount,
		})
	}
	return locks, nil
}

func (s *service) call(fn func() (interface{}, error)) (interface{}, error) {
	s.limiter.Take()
	return s.breaker.Execute(fn)
}

func toDisplayAmount(amount uint64) string {
	return decimal.NewFromBigInt(
		new(big.Int).SetUint64(amount), -commitment.LedgerEvm.Decimals(),
	).String()
}

func fromDisplayAmount(amount string) (uint64, error) {
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, fmt.Errorf("malformed amount %q: %s", amount, err)
	}
	return parsed.Shift(commitment.LedgerEvm.Decimals()).Floor().BigInt().Uint64(), nil
}
