package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hashlock-labs/swapd/internal/core/application"
	"github.com/hashlock-labs/swapd/internal/core/domain"
	"github.com/hashlock-labs/swapd/internal/core/ports"
	mockledger "github.com/hashlock-labs/swapd/internal/infrastructure/ledger/mock"
	"github.com/hashlock-labs/swapd/internal/infrastructure/storage/db/inmemory"
	"github.com/hashlock-labs/swapd/pkg/commitment"
)

const (
	testLedgerId      = "ryjl3-tyaaa-aaaaa-aaaba-cai"
	testEscrowAccount = "escrow"
	testSender        = "alice"
	testRecipient     = "bob"
	testAmount        = uint64(1_000_000)
	testPreimage      = "12345678901"
)

type testRegistry struct {
	application.RegistryService
	ledger      *mockledger.Ledger
	repoManager ports.RepoManager
}

func newTestRegistry(t *testing.T) *testRegistry {
	t.Helper()

	ledger := mockledger.NewLedger(
		commitment.LedgerIcp, testEscrowAccount, map[string]uint64{
			testSender: 5 * testAmount,
		},
	)
	repoManager := inmemory.NewRepoManager()
	svc := application.NewRegistryService(
		commitment.LedgerIcp, testEscrowAccount, repoManager,
		map[string]ports.LedgerService{testLedgerId: ledger},
	)
	return &testRegistry{svc, ledger, repoManager}
}

func (r *testRegistry) balanceOf(t *testing.T, account string) uint64 {
	t.Helper()
	balance, err := r.ledger.BalanceOf(context.Background(), account)
	require.NoError(t, err)
	return balance
}

// addExpiredSwap funds the escrow and records an already expired open swap,
// as if it had been created long ago.
func (r *testRegistry) addExpiredSwap(t *testing.T, ctx context.Context) *domain.Swap {
	t.Helper()

	_, err := r.ledger.Transfer(ctx, testSender, testEscrowAccount, testAmount)
	require.NoError(t, err)

	hashlock, err := commitment.DecodeFrom(
		commitment.LedgerIcp, r.HashPreimage(testPreimage),
	)
	require.NoError(t, err)

	swap := &domain.Swap{
		Id:        uuid.New().String(),
		Sender:    testSender,
		Recipient: testRecipient,
		LedgerId:  testLedgerId,
		Amount:    testAmount,
		Hashlock:  commitment.EncodeCanonical(hashlock),
		Timelock:  commitment.NativeTime(commitment.LedgerIcp, time.Now().Add(-time.Hour)),
		Status:    domain.SwapStatus{Code: domain.SwapStatusCodeOpen},
		CreatedAt: time.Now().Add(-2 * time.Hour).Unix(),
	}
	require.NoError(t, r.repoManager.SwapRepository().AddSwap(ctx, swap))
	return swap
}

func validCreateRequest(reg *testRegistry) application.CreateSwapRequest {
	return application.CreateSwapRequest{
		Sender:    testSender,
		Recipient: testRecipient,
		LedgerId:  testLedgerId,
		Amount:    testAmount,
		Hashlock:  reg.HashPreimage(testPreimage),
		Timelock:  commitment.NativeTime(commitment.LedgerIcp, time.Now().Add(2*time.Hour)),
	}
}

func TestCreateAndWithdrawSwap(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	ctx := context.Background()

	result, err := reg.CreateSwap(ctx, validCreateRequest(reg))
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotEmpty(t, result.Swap.Id)
	require.NotEmpty(t, result.TransferRef)
	require.True(t, result.Swap.IsOpen())

	require.Equal(t, 4*testAmount, reg.balanceOf(t, testSender))
	require.Equal(t, testAmount, reg.balanceOf(t, testEscrowAccount))

	settled, err := reg.Withdraw(ctx, result.Swap.Id, testPreimage)
	require.NoError(t, err)
	require.True(t, settled.Swap.IsWithdrawn())
	require.Equal(t, testPreimage, settled.Swap.Preimage)

	require.Equal(t, testAmount, reg.balanceOf(t, testRecipient))
	require.Equal(t, uint64(0), reg.balanceOf(t, testEscrowAccount))

	stored, err := reg.GetSwap(ctx, result.Swap.Id)
	require.NoError(t, err)
	require.True(t, stored.Withdrawn)

	_, err = reg.Withdraw(ctx, result.Swap.Id, testPreimage)
	require.ErrorIs(t, err, domain.ErrSwapAlreadySettled)
}

func TestWithdrawWithWrongPreimage(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	ctx := context.Background()

	result, err := reg.CreateSwap(ctx, validCreateRequest(reg))
	require.NoError(t, err)

	_, err = reg.Withdraw(ctx, result.Swap.Id, "not-the-preimage")
	require.ErrorIs(t, err, domain.ErrHashMismatch)

	// The swap must stay open and the funds escrowed.
	stored, err := reg.GetSwap(ctx, result.Swap.Id)
	require.NoError(t, err)
	require.True(t, stored.IsOpen())
	require.Equal(t, testAmount, reg.balanceOf(t, testEscrowAccount))

	_, err = reg.Withdraw(ctx, result.Swap.Id, testPreimage)
	require.NoError(t, err)
}

func TestRefundBeforeTimelock(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	ctx := context.Background()

	result, err := reg.CreateSwap(ctx, validCreateRequest(reg))
	require.NoError(t, err)

	_, err = reg.Refund(ctx, result.Swap.Id)
	require.ErrorIs(t, err, domain.ErrSwapTooEarly)

	stored, err := reg.GetSwap(ctx, result.Swap.Id)
	require.NoError(t, err)
	require.True(t, stored.IsOpen())
}

func TestRefundAfterTimelock(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	ctx := context.Background()

	swap := reg.addExpiredSwap(t, ctx)

	result, err := reg.Refund(ctx, swap.Id)
	require.NoError(t, err)
	require.True(t, result.Swap.IsRefunded())
	require.Equal(t, 5*testAmount, reg.balanceOf(t, testSender))

	_, err = reg.Refund(ctx, swap.Id)
	require.ErrorIs(t, err, domain.ErrSwapAlreadySettled)

	_, err = reg.Withdraw(ctx, swap.Id, testPreimage)
	require.ErrorIs(t, err, domain.ErrSwapAlreadySettled)
}

func TestCreateSwapValidation(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name        string
		setup       func(req *application.CreateSwapRequest)
		expectedErr error
	}{
		{
			name: "unknown ledger",
			setup: func(req *application.CreateSwapRequest) {
				req.LedgerId = "no-such-ledger"
			},
			expectedErr: domain.ErrUnknownLedger,
		},
		{
			name: "malformed hashlock",
			setup: func(req *application.CreateSwapRequest) {
				req.Hashlock = "0xcoffee"
			},
			expectedErr: domain.ErrInvalidHashlock,
		},
		{
			name: "zero amount",
			setup: func(req *application.CreateSwapRequest) {
				req.Amount = 0
			},
			expectedErr: domain.ErrInvalidAmount,
		},
		{
			name: "timelock below minimum duration",
			setup: func(req *application.CreateSwapRequest) {
				req.Timelock = commitment.NativeTime(
					commitment.LedgerIcp, time.Now().Add(30*time.Minute),
				)
			},
			expectedErr: domain.ErrInvalidTimelock,
		},
		{
			name: "missing sender",
			setup: func(req *application.CreateSwapRequest) {
				req.Sender = ""
			},
			expectedErr: domain.ErrInvalidParty,
		},
	}

	for i := range tests {
		tt := tests[i]
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest(reg)
			tt.setup(&req)

			_, err := reg.CreateSwap(ctx, req)
			require.ErrorIs(t, err, tt.expectedErr)
		})
	}

	count, err := reg.GetSwapCount(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestCreateSwapDepositFailure(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	ctx := context.Background()

	reg.ledger.FailNext("transfer", 1, domain.ErrTransferFailed)

	_, err := reg.CreateSwap(ctx, validCreateRequest(reg))
	require.ErrorIs(t, err, domain.ErrTransferFailed)

	// A failed deposit must leave no record behind.
	count, err := reg.GetSwapCount(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestSwapQueries(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	ctx := context.Background()

	open, err := reg.CreateSwap(ctx, validCreateRequest(reg))
	require.NoError(t, err)

	expired := reg.addExpiredSwap(t, ctx)

	active, err := reg.GetActiveSwaps(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)

	expiredSwaps, err := reg.GetExpiredSwaps(ctx)
	require.NoError(t, err)
	require.Len(t, expiredSwaps, 1)
	require.Equal(t, expired.Id, expiredSwaps[0].Id)

	bySender, err := reg.GetSwapsBySender(ctx, testSender)
	require.NoError(t, err)
	require.Len(t, bySender, 2)

	byRecipient, err := reg.GetSwapsByRecipient(ctx, "nobody")
	require.NoError(t, err)
	require.Empty(t, byRecipient)

	count, err := reg.GetSwapCount(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)

	_, err = reg.Withdraw(ctx, open.Swap.Id, testPreimage)
	require.NoError(t, err)

	active, err = reg.GetActiveSwaps(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
}

func TestHashAndVerifyPreimage(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)

	hashlock := reg.HashPreimage(testPreimage)
	require.Len(t, hashlock, 64)

	require.True(t, reg.VerifyPreimageHash(testPreimage, hashlock))
	require.False(t, reg.VerifyPreimageHash("not-the-preimage", hashlock))
}
