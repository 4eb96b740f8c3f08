package inmemory

import (
	"context"
	"sync"

	"github.com/hashlock-labs/swapd/internal/core/domain"
)

type swapInmemoryStore struct {
	swaps       map[string]*domain.Swap
	updateLocks map[string]*sync.Mutex
	locker      *sync.Mutex
}

// swapLock returns the per-swap update mutex, creating it on first use.
func (s *swapInmemoryStore) swapLock(swapId string) *sync.Mutex {
	s.locker.Lock()
	defer s.locker.Unlock()

	lock, ok := s.updateLocks[swapId]
	if !ok {
		lock = &sync.Mutex{}
		s.updateLocks[swapId] = lock
	}
	return lock
}

type swapRepositoryImpl struct {
	store *swapInmemoryStore
}

// NewSwapRepositoryImpl returns a new inmemory SwapRepository implementation.
func NewSwapRepositoryImpl() domain.SwapRepository {
	return &swapRepositoryImpl{
		store: &swapInmemoryStore{
			swaps:       map[string]*domain.Swap{},
			updateLocks: map[string]*sync.Mutex{},
			locker:      &sync.Mutex{},
		},
	}
}

func (r swapRepositoryImpl) AddSwap(_ context.Context, swap *domain.Swap) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	if _, ok := r.store.swaps[swap.Id]; ok {
		return domain.ErrSwapAlreadyExists
	}

	s := *swap
	r.store.swaps[swap.Id] = &s
	return nil
}

func (r swapRepositoryImpl) GetSwap(
	_ context.Context, swapId string,
) (*domain.Swap, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	return r.getSwap(swapId)
}

func (r swapRepositoryImpl) GetAllSwaps(_ context.Context) ([]*domain.Swap, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	return r.findSwaps(func(*domain.Swap) bool { return true }), nil
}

func (r swapRepositoryImpl) GetActiveSwaps(_ context.Context) ([]*domain.Swap, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	return r.findSwaps(func(s *domain.Swap) bool {
		return !s.Withdrawn && !s.Refunded
	}), nil
}

func (r swapRepositoryImpl) GetExpiredSwaps(
	_ context.Context, now uint64,
) ([]*domain.Swap, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	return r.findSwaps(func(s *domain.Swap) bool {
		return s.IsExpired(now)
	}), nil
}

func (r swapRepositoryImpl) GetSwapsBySender(
	_ context.Context, sender string,
) ([]*domain.Swap, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	return r.findSwaps(func(s *domain.Swap) bool {
		return s.Sender == sender
	}), nil
}

func (r swapRepositoryImpl) GetSwapsByRecipient(
	_ context.Context, recipient string,
) ([]*domain.Swap, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	return r.findSwaps(func(s *domain.Swap) bool {
		return s.Recipient == recipient
	}), nil
}

func (r swapRepositoryImpl) GetSwapCount(_ context.Context) (uint64, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	return uint64(len(r.store.swaps)), nil
}

// UpdateSwap serializes updates per swap. The store-wide lock is only held
// while reading and committing, so updateFn side effects like ledger
// transfers never block operations on other swaps.
func (r swapRepositoryImpl) UpdateSwap(
	_ context.Context,
	swapId string,
	updateFn func(s *domain.Swap) (*domain.Swap, error),
) error {
	lock := r.store.swapLock(swapId)
	lock.Lock()
	defer lock.Unlock()

	r.store.locker.Lock()
	currentSwap, err := r.getSwap(swapId)
	r.store.locker.Unlock()
	if err != nil {
		return err
	}

	updatedSwap, err := updateFn(currentSwap)
	if err != nil {
		return err
	}

	r.store.locker.Lock()
	r.store.swaps[swapId] = updatedSwap
	r.store.locker.Unlock()
	return nil
}

func (r swapRepositoryImpl) getSwap(swapId string) (*domain.Swap, error) {
	swap, ok := r.store.swaps[swapId]
	if !ok {
		return nil, domain.ErrSwapNotFound
	}

	s := *swap
	return &s, nil
}

func (r swapRepositoryImpl) findSwaps(match func(*domain.Swap) bool) []*domain.Swap {
	swaps := make([]*domain.Swap, 0)
	for _, swap := range r.store.swaps {
		if match(swap) {
			s := *swap
			swaps = append(swaps, &s)
		}
	}
	return swaps
}
