// Package icpledger adapts the hashed time-lock canister on the Internet
// Computer to the uniform LedgerService capability set. Amounts stay in e8s
// (the ledger's smallest unit) across the whole path, hashlocks travel as
// unprefixed hex, deadlines in unix nanoseconds.
package icpledger

import (
	"context"
	"fmt"

	"github.com/sony/gobreaker"
	"go.uber.org/ratelimit"

	"github.com/hashlock-labs/swapd/internal/core/ports"
	"github.com/hashlock-labs/swapd/pkg/circuitbreaker"
	"github.com/hashlock-labs/swapd/pkg/commitment"
)

const requestsPerSecond = 10

// CanisterSwap is the wire-level view of a swap record held by the canister.
type CanisterSwap struct {
	SwapId    string `json:"swap_id"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	LedgerId  string `json:"ledger_id"`
	Hashlock  string `json:"hashlock"`
	Timelock  uint64 `json:"timelock"`
	Amount    uint64 `json:"amount"`
}

// CanisterClient is the binding to the escrow canister's update and query
// methods. Its on-chain execution semantics are assumed correct.
type CanisterClient interface {
	CreateSwap(ctx context.Context, swap CanisterSwap) (string, error)
	Withdraw(ctx context.Context, swapId, preimage string) (string, error)
	Refund(ctx context.Context, swapId string) (string, error)
	GetActiveSwaps(ctx context.Context) ([]CanisterSwap, error)
	BalanceOf(ctx context.Context, account string) (uint64, error)
	Transfer(ctx context.Context, from, to string, amount uint64) (string, error)
}

type service struct {
	client   CanisterClient
	signer   string
	ledgerId string
	breaker  *gobreaker.CircuitBreaker
	limiter  ratelimit.Limiter
}

// NewService returns the LedgerService talking to the escrow canister on
// behalf of the given signer principal. ledgerId selects the ICRC-1 asset
// ledger swaps are denominated in.
func NewService(client CanisterClient, signer, ledgerId string) ports.LedgerService {
	return &service{
		client:   client,
		signer:   signer,
		ledgerId: ledgerId,
		breaker:  circuitbreaker.NewCircuitBreaker("icp-ledger"),
		limiter:  ratelimit.New(requestsPerSecond),
	}
}

func (s *service) Kind() commitment.LedgerKind {
	return commitment.LedgerIcp
}

func (s *service) Lock(ctx context.Context, req ports.LockRequest) (string, error) {
	res, err := s.call(func() (interface{}, error) {
		return s.client.CreateSwap(ctx, CanisterSwap{
			Sender:    s.signer,
			Recipient: req.Recipient,
			LedgerId:  s.ledgerId,
			Hashlock:  req.Hashlock,
			Timelock:  req.Timelock,
			Amount:    req.Amount,
		})
	})
	if err != nil {
		return "", fmt.Errorf("icp: creating escrow: %w", err)
	}
	return res.(string), nil
}

func (s *service) Claim(ctx context.Context, lockId, preimage string) (string, error) {
	res, err := s.call(func() (interface{}, error) {
		return s.client.Withdraw(ctx, lockId, preimage)
	})
	if err != nil {
		return "", fmt.Errorf("icp: withdrawing escrow %s: %w", lockId, err)
	}
	return res.(string), nil
}

func (s *service) Refund(ctx context.Context, lockId string) (string, error) {
	res, err := s.call(func() (interface{}, error) {
		return s.client.Refund(ctx, lockId)
	})
	if err != nil {
		return "", fmt.Errorf("icp: refunding escrow %s: %w", lockId, err)
	}
	return res.(string), nil
}

func (s *service) BalanceOf(ctx context.Context, account string) (uint64, error) {
	res, err := s.call(func() (interface{}, error) {
		return s.client.BalanceOf(ctx, account)
	})
	if err != nil {
		return 0, fmt.Errorf("icp: fetching balance of %s: %w", account, err)
	}
	return res.(uint64), nil
}

func (s *service) Transfer(
	ctx context.Context, from, to string, amount uint64,
) (string, error) {
	if from == "" {
		from = s.signer
	}
	res, err := s.call(func() (interface{}, error) {
		return s.client.Transfer(ctx, from, to, amount)
	})
	if err != nil {
		return "", fmt.Errorf("icp: transferring to %s: %w", to, err)
	}
	return res.(string), nil
}

func (s *service) ActiveLocks(ctx context.Context) ([]ports.ActiveLock, error) {
	res, err := s.call(func() (interface{}, error) {
		return s.client.GetActiveSwaps(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("icp: listing active escrows: %w", err)
	}

	swaps := res.([]CanisterSwap)
	locks := make([]ports.ActiveLock, 0, len(swaps))
	for _, swap := range swaps {
		// Canister hashlocks are unprefixed hex already, ie. canonical.
		if _, err := commitment.DecodeCanonical(swap.Hashlock); err != nil {
			continue
		}
		locks = append(locks, ports.ActiveLock{
			LockId:    swap.SwapId,
			Sender:    swap.Sender,
			Recipient: swap.Recipient,
			Hashlock:  swap.Hashlock,
			Timelock:  swap.Timelock,
			Amount:    swap.Amount,
		})
	}
	return locks, nil
}

func (s *service) call(fn func() (interface{}, error)) (interface{}, error) {
	s.limiter.Take()
	return s.breaker.Execute(fn)
}
