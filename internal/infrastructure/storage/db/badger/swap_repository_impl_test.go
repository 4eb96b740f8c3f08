package dbbadger_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hashlock-labs/swapd/internal/core/domain"
	"github.com/hashlock-labs/swapd/internal/core/ports"
	dbbadger "github.com/hashlock-labs/swapd/internal/infrastructure/storage/db/badger"
	"github.com/hashlock-labs/swapd/pkg/commitment"
)

func newTestRepoManager(t *testing.T) ports.RepoManager {
	t.Helper()

	repoManager, err := dbbadger.NewRepoManager(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(repoManager.Close)
	return repoManager
}

func newSwapFixture(sender string, timelock uint64) *domain.Swap {
	hashlock := commitment.EncodeCanonical(commitment.HashPreimageText("12345678901"))
	return &domain.Swap{
		Id:        uuid.New().String(),
		Sender:    sender,
		Recipient: "bob",
		LedgerId:  "ledger-1",
		Amount:    1000,
		Hashlock:  hashlock,
		Timelock:  timelock,
		Status:    domain.SwapStatus{Code: domain.SwapStatusCodeOpen},
		CreatedAt: time.Now().Unix(),
	}
}

func TestAddAndGetSwap(t *testing.T) {
	repo := newTestRepoManager(t).SwapRepository()
	ctx := context.Background()

	swap := newSwapFixture("alice", 100)
	require.NoError(t, repo.AddSwap(ctx, swap))

	stored, err := repo.GetSwap(ctx, swap.Id)
	require.NoError(t, err)
	require.Equal(t, swap.Id, stored.Id)
	require.Equal(t, swap.Hashlock, stored.Hashlock)

	err = repo.AddSwap(ctx, swap)
	require.ErrorIs(t, err, domain.ErrSwapAlreadyExists)

	_, err = repo.GetSwap(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrSwapNotFound)
}

func TestSwapQueries(t *testing.T) {
	repo := newTestRepoManager(t).SwapRepository()
	ctx := context.Background()

	expired := newSwapFixture("alice", 100)
	active := newSwapFixture("alice", 10_000)
	settled := newSwapFixture("dave", 10_000)
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

	byRecipient, err := repo.GetSwapsByRecipient(ctx, "nobody")
	require.NoError(t, err)
	require.Empty(t, byRecipient)

	count, err := repo.GetSwapCount(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(3), count)
}

func TestUpdateSwap(t *testing.T) {
	repo := newTestRepoManager(t).SwapRepository()
	ctx := context.Background()

	swap := newSwapFixture("alice", 100)
	require.NoError(t, repo.AddSwap(ctx, swap))

	err := repo.UpdateSwap(ctx, swap.Id, func(s *domain.Swap) (*domain.Swap, error) {
		if err := s.Refund(200); err != nil {
			return nil, err
		}
		return s, nil
	})
	require.NoError(t, err)

	stored, err := repo.GetSwap(ctx, swap.Id)
	require.NoError(t, err)
	require.True(t, stored.IsRefunded())

	// A failing update must roll the transaction back.
	err = repo.UpdateSwap(ctx, swap.Id, func(s *domain.Swap) (*domain.Swap, error) {
		s.Withdrawn = true
		return nil, domain.ErrSwapAlreadySettled
	})
	require.ErrorIs(t, err, domain.ErrSwapAlreadySettled)

	stored, err = repo.GetSwap(ctx, swap.Id)
	require.NoError(t, err)
	require.False(t, stored.Withdrawn)

	err = repo.UpdateSwap(ctx, "missing", func(s *domain.Swap) (*domain.Swap, error) {
		return s, nil
	})
	require.ErrorIs(t, err, domain.ErrSwapNotFound)
}
