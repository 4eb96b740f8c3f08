package inmemory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hashlock-labs/swapd/internal/core/domain"
	"github.com/hashlock-labs/swapd/internal/infrastructure/storage/db/inmemory"
	"github.com/hashlock-labs/swapd/pkg/commitment"
)

func newSwapFixture(sender, recipient string, timelock uint64) *domain.Swap {
	hashlock := commitment.EncodeCanonical(commitment.HashPreimageText("12345678901"))
	return &domain.Swap{
		Id:        uuid.New().String(),
		Sender:    sender,
		Recipient: recipient,
		LedgerId:  "ledger-1",
		Amount:    1000,
		Hashlock:  hashlock,
		Timelock:  timelock,
		Status:    domain.SwapStatus{Code: domain.SwapStatusCodeOpen},
		CreatedAt: time.Now().Unix(),
	}
}

func TestAddAndGetSwap(t *testing.T) {
	t.Parallel()

	repo := inmemory.NewSwapRepositoryImpl()
	ctx := context.Background()

	swap := newSwapFixture("alice", "bob", 100)
	require.NoError(t, repo.AddSwap(ctx, swap))

	stored, err := repo.GetSwap(ctx, swap.Id)
	require.NoError(t, err)
	require.Equal(t, swap.Id, stored.Id)

	err = repo.AddSwap(ctx, swap)
	require.ErrorIs(t, err, domain.ErrSwapAlreadyExists)

	_, err = repo.GetSwap(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrSwapNotFound)
}

func TestGetSwapReturnsCopy(t *testing.T) {
	t.Parallel()

	repo := inmemory.NewSwapRepositoryImpl()
	ctx := context.Background()

	swap := newSwapFixture("alice", "bob", 100)
	require.NoError(t, repo.AddSwap(ctx, swap))

	stored, err := repo.GetSwap(ctx, swap.Id)
	require.NoError(t, err)
	stored.Withdrawn = true

	reread, err := repo.GetSwap(ctx, swap.Id)
	require.NoError(t, err)
	require.False(t, reread.Withdrawn)
}

func TestSwapFilters(t *testing.T) {
	t.Parallel()

	repo := inmemory.NewSwapRepositoryImpl()
	ctx := context.Background()

	expired := newSwapFixture("alice", "bob", 100)
	active := newSwapFixture("alice", "carol", 10_000)
	settled := newSwapFixture("dave", "bob", 10_000)
	settled.Withdrawn = true
	settled.Status.Code = domain.SwapStatusCodeWithdrawn

	for _, swap := range []*domain.Swap{expired, active, settled} {
		require.NoError(t, repo.AddSwap(ctx, swap))
	}

	all, err := repo.GetAllSwaps(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)

	activeSwaps, err := repo.GetActiveSwaps(ctx)
	require.NoError(t, err)
	require.Len(t, activeSwaps, 2)

	expiredSwaps, err := repo.GetExpiredSwaps(ctx, 5_000)
	require.NoError(t, err)
	require.Len(t, expiredSwaps, 1)
	require.Equal(t, expired.Id, expiredSwaps[0].Id)

	bySender, err := repo.GetSwapsBySender(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, bySender, 2)

	byRecipient, err := repo.GetSwapsByRecipient(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, byRecipient, 2)

	count, err := repo.GetSwapCount(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(3), count)
}

func TestUpdateSwap(t *testing.T) {
	t.Parallel()

	repo := inmemory.NewSwapRepositoryImpl()
	ctx := context.Background()

	swap := newSwapFixture("alice", "bob", 100)
	require.NoError(t, repo.AddSwap(ctx, swap))

	err := repo.UpdateSwap(ctx, swap.Id, func(s *domain.Swap) (*domain.Swap, error) {
		require.NoError(t, s.Refund(200))
		return s, nil
	})
	require.NoError(t, err)

	stored, err := repo.GetSwap(ctx, swap.Id)
	require.NoError(t, err)
	require.True(t, stored.IsRefunded())

	// A failing update must leave the stored swap untouched.
	err = repo.UpdateSwap(ctx, swap.Id, func(s *domain.Swap) (*domain.Swap, error) {
		return nil, domain.ErrSwapAlreadySettled
	})
	require.ErrorIs(t, err, domain.ErrSwapAlreadySettled)

	err = repo.UpdateSwap(ctx, "missing", func(s *domain.Swap) (*domain.Swap, error) {
		return s, nil
	})
	require.ErrorIs(t, err, domain.ErrSwapNotFound)
}

func TestUpdateSwapDoesNotBlockOtherSwaps(t *testing.T) {
	t.Parallel()

	repo := inmemory.NewSwapRepositoryImpl()
	ctx := context.Background()

	swapA := newSwapFixture("alice", "bob", 100)
	swapB := newSwapFixture("carol", "dave", 100)
	require.NoError(t, repo.AddSwap(ctx, swapA))
	require.NoError(t, repo.AddSwap(ctx, swapB))

	// Park an update of swapA inside its closure, as a slow ledger transfer
	// would, and make sure swapB stays updatable in the meantime.
	entered := make(chan struct{})
	release := make(chan struct{})
	blocked := make(chan error, 1)
	go func() {
		blocked <- repo.UpdateSwap(ctx, swapA.Id, func(s *domain.Swap) (*domain.Swap, error) {
			close(entered)
			<-release
			return s, nil
		})
	}()
	<-entered

	done := make(chan error, 1)
	go func() {
		done <- repo.UpdateSwap(ctx, swapB.Id, func(s *domain.Swap) (*domain.Swap, error) {
			return s, nil
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("update of an unrelated swap blocked")
	}

	close(release)
	require.NoError(t, <-blocked)
}

func TestConcurrentUpdates(t *testing.T) {
	t.Parallel()

	repo := inmemory.NewSwapRepositoryImpl()
	ctx := context.Background()

	swap := newSwapFixture("alice", "bob", 100)
	require.NoError(t, repo.AddSwap(ctx, swap))

	// Many concurrent refund attempts: exactly one may succeed.
	var wg sync.WaitGroup
	succeeded := make(chan struct{}, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.UpdateSwap(ctx, swap.Id, func(s *domain.Swap) (*domain.Swap, error) {
				if err := s.Refund(200); err != nil {
					return nil, err
				}
				return s, nil
			})
			if err == nil {
				succeeded <- struct{}{}
			}
		}()
	}
	wg.Wait()

	require.Len(t, succeeded, 1)
}
