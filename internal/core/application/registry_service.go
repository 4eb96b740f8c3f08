package application

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/hashlock-labs/swapd/internal/core/domain"
	"github.com/hashlock-labs/swapd/internal/core/ports"
	"github.com/hashlock-labs/swapd/pkg/commitment"
)

// CreateSwapRequest gathers the parameters for opening a new escrow leg.
// Hashlock is expressed in the registry ledger's native representation,
// Timelock in its native time unit, Amount in the asset ledger's smallest
// unit.
type CreateSwapRequest struct {
	Sender    string
	Recipient string
	LedgerId  string
	Amount    uint64
	Hashlock  string
	Timelock  uint64
}

// SwapResult is returned by every state-changing registry operation.
type SwapResult struct {
	Swap        *domain.Swap
	TransferRef string
}

// RegistryService exposes the escrow surface of the ledger this daemon owns:
// the create/withdraw/refund state machine plus the side-effect-free query
// operations.
type RegistryService interface {
	CreateSwap(ctx context.Context, req CreateSwapRequest) (*SwapResult, error)
	Withdraw(ctx context.Context, swapId, preimage string) (*SwapResult, error)
	Refund(ctx context.Context, swapId string) (*SwapResult, error)

	GetSwap(ctx context.Context, swapId string) (*domain.Swap, error)
	GetAllSwaps(ctx context.Context) ([]*domain.Swap, error)
	GetActiveSwaps(ctx context.Context) ([]*domain.Swap, error)
	GetExpiredSwaps(ctx context.Context) ([]*domain.Swap, error)
	GetSwapsBySender(ctx context.Context, sender string) ([]*domain.Swap, error)
	GetSwapsByRecipient(ctx context.Context, recipient string) ([]*domain.Swap, error)
	GetSwapCount(ctx context.Context) (uint64, error)

	HashPreimage(preimage string) string
	VerifyPreimageHash(preimage, hashlock string) bool

	Kind() commitment.LedgerKind
}

type registryService struct {
	kind          commitment.LedgerKind
	escrowAccount string
	repoManager   ports.RepoManager
	ledgers       map[string]ports.LedgerService
}

// NewRegistryService returns a RegistryService for the given ledger kind.
// ledgers maps the asset ledger ids the escrow services onto their adapters;
// escrowAccount is the account holding the escrowed funds.
func NewRegistryService(
	kind commitment.LedgerKind,
	escrowAccount string,
	repoManager ports.RepoManager,
	ledgers map[string]ports.LedgerService,
) RegistryService {
	return &registryService{
		kind:          kind,
		escrowAccount: escrowAccount,
		repoManager:   repoManager,
		ledgers:       ledgers,
	}
}

func (s *registryService) Kind() commitment.LedgerKind {
	return s.kind
}

func (s *registryService) CreateSwap(
	ctx context.Context, req CreateSwapRequest,
) (*SwapResult, error) {
	ledgerSvc, ok := s.ledgers[req.LedgerId]
	if !ok {
		return nil, domain.ErrUnknownLedger
	}

	hashlock, err := commitment.DecodeFrom(s.kind, req.Hashlock)
	if err != nil {
		return nil, domain.ErrInvalidHashlock
	}

	now := commitment.NativeTime(s.kind, time.Now())
	minDuration := commitment.NativeDuration(s.kind, commitment.MinTimelockDuration)

	swap, err := domain.NewSwap(
		req.Sender, req.Recipient, req.LedgerId, req.Amount,
		commitment.EncodeCanonical(hashlock), req.Timelock, now, minDuration,
	)
	if err != nil {
		return nil, err
	}

	// The upfront transfer from the sender to the escrow must succeed before
	// any record is stored, so a failed deposit leaves no trace.
	transferRef, err := ledgerSvc.Transfer(
		ctx, req.Sender, s.escrowAccount, req.Amount,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrTransferFailed, err)
	}
	swap.TransferRef = transferRef

	if err := s.repoManager.SwapRepository().AddSwap(ctx, swap); err != nil {
		return nil, err
	}

	log.Debugf(
		"swap %s created on ledger %s, expires at %d",
		swap.Id, swap.LedgerId, swap.Timelock,
	)
	return &SwapResult{Swap: swap, TransferRef: transferRef}, nil
}

func (s *registryService) Withdraw(
	ctx context.Context, swapId, preimage string,
) (*SwapResult, error) {
	var settled *domain.Swap
	if err := s.repoManager.SwapRepository().UpdateSwap(
		ctx, swapId, func(swap *domain.Swap) (*domain.Swap, error) {
			if err := swap.Withdraw(preimage); err != nil {
				return nil, err
			}

			ledgerSvc, ok := s.ledgers[swap.LedgerId]
			if !ok {
				return nil, domain.ErrUnknownLedger
			}
			transferRef, err := ledgerSvc.Transfer(
				ctx, s.escrowAccount, swap.Recipient, swap.Amount,
			)
			if err != nil {
				return nil, fmt.Errorf("%w: %s", domain.ErrTransferFailed, err)
			}
			swap.TransferRef = transferRef

			settled = swap
			return swap, nil
		},
	); err != nil {
		return nil, err
	}

	log.Debugf("swap %s withdrawn, preimage revealed", swapId)
	return &SwapResult{Swap: settled, TransferRef: settled.TransferRef}, nil
}

func (s *registryService) Refund(
	ctx context.Context, swapId string,
) (*SwapResult, error) {
	now := commitment.NativeTime(s.kind, time.Now())

	var settled *domain.Swap
	if err := s.repoManager.SwapRepository().UpdateSwap(
		ctx, swapId, func(swap *domain.Swap) (*domain.Swap, error) {
			if err := swap.Refund(now); err != nil {
				return nil, err
			}

			ledgerSvc, ok := s.ledgers[swap.LedgerId]
			if !ok {
				return nil, domain.ErrUnknownLedger
			}
			transferRef, err := ledgerSvc.Transfer(
				ctx, s.escrowAccount, swap.Sender, swap.Amount,
			)
			if err != nil {
				return nil, fmt.Errorf("%w: %s", domain.ErrTransferFailed, err)
			}
			swap.TransferRef = transferRef

			settled = swap
			return swap, nil
		},
	); err != nil {
		return nil, err
	}

	log.Debugf("swap %s refunded to sender", swapId)
	return &SwapResult{Swap: settled, TransferRef: settled.TransferRef}, nil
}

func (s *registryService) GetSwap(
	ctx context.Context, swapId string,
) (*domain.Swap, error) {
	return s.repoManager.SwapRepository().GetSwap(ctx, swapId)
}

func (s *registryService) GetAllSwaps(ctx context.Context) ([]*domain.Swap, error) {
	return s.repoManager.SwapRepository().GetAllSwaps(ctx)
}

func (s *registryService) GetActiveSwaps(ctx context.Context) ([]*domain.Swap, error) {
	return s.repoManager.SwapRepository().GetActiveSwaps(ctx)
}

func (s *registryService) GetExpiredSwaps(ctx context.Context) ([]*domain.Swap, error) {
	now := commitment.NativeTime(s.kind, time.Now())
	return s.repoManager.SwapRepository().GetExpiredSwaps(ctx, now)
}

func (s *registryService) GetSwapsBySender(
	ctx context.Context, sender string,
) ([]*domain.Swap, error) {
	return s.repoManager.SwapRepository().GetSwapsBySender(ctx, sender)
}

func (s *registryService) GetSwapsByRecipient(
	ctx context.Context, recipient string,
) ([]*domain.Swap, error) {
	return s.repoManager.SwapRepository().GetSwapsByRecipient(ctx, recipient)
}

func (s *registryService) GetSwapCount(ctx context.Context) (uint64, error) {
	return s.repoManager.SwapRepository().GetSwapCount(ctx)
}

func (s *registryService) HashPreimage(preimage string) string {
	return commitment.EncodeFor(s.kind, commitment.HashPreimageText(preimage))
}

func (s *registryService) VerifyPreimageHash(preimage, hashlock string) bool {
	return commitment.VerifyPreimageText(preimage, hashlock)
}
