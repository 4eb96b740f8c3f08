package domain

import "context"

// SwapRepository is the abstraction for any kind of database intended to
// persist Swaps. Settled swaps are retained, never deleted.
type SwapRepository interface {
	// AddSwap persists a newly created swap. Swap ids never repeat.
	AddSwap(ctx context.Context, swap *Swap) error
	// GetSwap returns the swap with the given id, or ErrSwapNotFound.
	GetSwap(ctx context.Context, swapId string) (*Swap, error)
	// GetAllSwaps returns all the swaps stored in the repository.
	GetAllSwaps(ctx context.Context) ([]*Swap, error)
	// GetActiveSwaps returns all the swaps that are neither withdrawn nor
	// refunded.
	GetActiveSwaps(ctx context.Context) ([]*Swap, error)
	// GetExpiredSwaps returns all the active swaps whose timelock has passed
	// at the given instant, expressed in the ledger's native time unit.
	GetExpiredSwaps(ctx context.Context, now uint64) ([]*Swap, error)
	// GetSwapsBySender returns all the swaps deposited by the given account.
	GetSwapsBySender(ctx context.Context, sender string) ([]*Swap, error)
	// GetSwapsByRecipient returns all the swaps claimable by the given account.
	GetSwapsByRecipient(ctx context.Context, recipient string) ([]*Swap, error)
	// GetSwapCount returns the number of swaps ever stored.
	GetSwapCount(ctx context.Context) (uint64, error)
	// UpdateSwap commits changes to the swap with the given id in a
	// transactional way: the updateFn runs atomically with respect to any
	// concurrent update of the same swap.
	UpdateSwap(
		ctx context.Context,
		swapId string,
		updateFn func(s *Swap) (*Swap, error),
	) error
}
