package dbbadger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"

	"github.com/hashlock-labs/swapd/internal/core/domain"
)

type swapRepositoryImpl struct {
	store *badgerhold.Store
}

// NewSwapRepositoryImpl returns a SwapRepository backed by a badgerhold
// store. Per-swap updates run inside a badger transaction, so concurrent
// withdraw and refund calls against the same swap are serialized.
func NewSwapRepositoryImpl(store *badgerhold.Store) domain.SwapRepository {
	return swapRepositoryImpl{store}
}

func (r swapRepositoryImpl) AddSwap(_ context.Context, swap *domain.Swap) error {
	if err := r.store.Insert(swap.Id, *swap); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return domain.ErrSwapAlreadyExists
		}
		return err
	}
	return nil
}

func (r swapRepositoryImpl) GetSwap(
	_ context.Context, swapId string,
) (*domain.Swap, error) {
	var swap domain.Swap
	if err := r.store.Get(swapId, &swap); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrSwapNotFound
		}
		return nil, err
	}
	return &swap, nil
}

func (r swapRepositoryImpl) GetAllSwaps(_ context.Context) ([]*domain.Swap, error) {
	return r.findSwaps(nil)
}

func (r swapRepositoryImpl) GetActiveSwaps(_ context.Context) ([]*domain.Swap, error) {
	query := badgerhold.Where("Withdrawn").Eq(false).And("Refunded").Eq(false)
	return r.findSwaps(query)
}

func (r swapRepositoryImpl) GetExpiredSwaps(
	_ context.Context, now uint64,
) ([]*domain.Swap, error) {
	query := badgerhold.Where("Timelock").Le(now).
		And("Withdrawn").Eq(false).And("Refunded").Eq(false)
	return r.findSwaps(query)
}

func (r swapRepositoryImpl) GetSwapsBySender(
	_ context.Context, sender string,
) ([]*domain.Swap, error) {
	return r.findSwaps(badgerhold.Where("Sender").Eq(sender))
}

func (r swapRepositoryImpl) GetSwapsByRecipient(
	_ context.Context, recipient string,
) ([]*domain.Swap, error) {
	return r.findSwaps(badgerhold.Where("Recipient").Eq(recipient))
}

func (r swapRepositoryImpl) GetSwapCount(_ context.Context) (uint64, error) {
	swaps, err := r.findSwaps(nil)
	if err != nil {
		return 0, err
	}
	return uint64(len(swaps)), nil
}

func (r swapRepositoryImpl) UpdateSwap(
	_ context.Context,
	swapId string,
	updateFn func(s *domain.Swap) (*domain.Swap, error),
) error {
	return r.store.Badger().Update(func(tx *badger.Txn) error {
		var swap domain.Swap
		if err := r.store.TxGet(tx, swapId, &swap); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return domain.ErrSwapNotFound
			}
			return err
		}

		updatedSwap, err := updateFn(&swap)
		if err != nil {
			return err
		}

		return r.store.TxUpdate(tx, swapId, *updatedSwap)
	})
}

func (r swapRepositoryImpl) findSwaps(query *badgerhold.Query) ([]*domain.Swap, error) {
	var swaps []domain.Swap
	if err := r.store.Find(&swaps, query); err != nil {
		return nil, err
	}

	result := make([]*domain.Swap, 0, len(swaps))
	for i := range swaps {
		result = append(result, &swaps[i])
	}
	return result, nil
}
