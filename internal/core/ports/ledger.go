package ports

import (
	"context"

	"github.com/hashlock-labs/swapd/pkg/commitment"
)

// LockRequest gathers the parameters for creating an escrow on a ledger.
// Hashlock and Timelock are expected pre-encoded in the ledger's native
// representation, the adapter never interprets their semantics.
type LockRequest struct {
	Recipient string
	Hashlock  string
	Timelock  uint64
	Amount    uint64
}

// ActiveLock is the adapter-level view of an open escrow on a ledger, as
// reported by the ledger's registry query surface. Hashlock is normalized to
// the canonical unprefixed hex form by the adapter.
type ActiveLock struct {
	LockId    string
	Sender    string
	Recipient string
	Hashlock  string
	Timelock  uint64
	Amount    uint64
}

// LedgerService is the uniform capability set exposed by every ledger
// adapter. Each implementation owns unit conversion between the ledger's
// smallest unit and its display unit, along with hash and address encoding.
// Amounts cross this boundary as integers in the ledger's smallest unit.
type LedgerService interface {
	// Kind returns the ledger family this adapter talks to.
	Kind() commitment.LedgerKind
	// Lock escrows funds of the adapter's signer and returns the escrow
	// reference assigned by the ledger's registry.
	Lock(ctx context.Context, req LockRequest) (string, error)
	// Claim withdraws a locked escrow by revealing the preimage and returns
	// the underlying transfer reference.
	Claim(ctx context.Context, lockId, preimage string) (string, error)
	// Refund reclaims an expired escrow deposited by the adapter's signer.
	Refund(ctx context.Context, lockId string) (string, error)
	// BalanceOf returns the account balance in the ledger's smallest unit.
	BalanceOf(ctx context.Context, account string) (uint64, error)
	// Transfer moves funds between accounts. An empty from means the
	// adapter's signer.
	Transfer(ctx context.Context, from, to string, amount uint64) (string, error)
	// ActiveLocks lists the open escrows on the ledger. Used to rebuild
	// coordination state after a restart.
	ActiveLocks(ctx context.Context) ([]ActiveLock, error)
}
