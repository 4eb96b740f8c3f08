// Package mockledger provides an in-process LedgerService with real escrow
// semantics over in-memory balances. It backs the daemon's simulated mode
// and the test suites of the registry and the resolver.
package mockledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashlock-labs/swapd/internal/core/domain"
	"github.com/hashlock-labs/swapd/internal/core/ports"
	"github.com/hashlock-labs/swapd/pkg/commitment"
)

type lockRecord struct {
	ports.ActiveLock
	withdrawn bool
	refunded  bool
	preimage  string
}

// Ledger is an in-memory ports.LedgerService implementation.
type Ledger struct {
	kind   commitment.LedgerKind
	signer string

	mtx      sync.Mutex
	balances map[string]uint64
	locks    map[string]*lockRecord
	seq      int
	now      func() time.Time
	failures map[string]*failure
}

type failure struct {
	err   error
	times int
}

// NewLedger returns a mock ledger of the given kind, signing calls as the
// given account, with the provided opening balances.
func NewLedger(
	kind commitment.LedgerKind, signer string, balances map[string]uint64,
) *Ledger {
	funds := make(map[string]uint64, len(balances))
	for account, amount := range balances {
		funds[account] = amount
	}
	return &Ledger{
		kind:     kind,
		signer:   signer,
		balances: funds,
		locks:    map[string]*lockRecord{},
		now:      time.Now,
		failures: map[string]*failure{},
	}
}

// SetNow overrides the ledger clock, for driving timelocks in tests.
func (l *Ledger) SetNow(now func() time.Time) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.now = now
}

// FailNext makes the next n calls of the given operation (lock, claim,
// refund, transfer) fail with err, simulating transport faults.
func (l *Ledger) FailNext(op string, n int, err error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.failures[op] = &failure{err: err, times: n}
}

// Signer returns the account the ledger signs its calls with, for assertions.
func (l *Ledger) Signer() string {
	return l.signer
}

// LockRecord returns the current state of an escrow, for assertions.
func (l *Ledger) LockRecord(lockId string) (ports.ActiveLock, bool, bool) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	record, ok := l.locks[lockId]
	if !ok {
		return ports.ActiveLock{}, false, false
	}
	return record.ActiveLock, record.withdrawn, record.refunded
}

func (l *Ledger) Kind() commitment.LedgerKind {
	return l.kind
}

func (l *Ledger) Lock(_ context.Context, req ports.LockRequest) (string, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	if err := l.failNow("lock"); err != nil {
		return "", err
	}

	digest, err := commitment.DecodeFrom(l.kind, req.Hashlock)
	if err != nil {
		return "", domain.ErrInvalidHashlock
	}
	if req.Amount == 0 {
		return "", domain.ErrInvalidAmount
	}
	if l.balances[l.signer] < req.Amount {
		return "", domain.ErrTransferFailed
	}

	l.balances[l.signer] -= req.Amount
	l.seq++
	lockId := fmt.Sprintf("%s-lock-%d", l.kind, l.seq)
	l.locks[lockId] = &lockRecord{
		ActiveLock: ports.ActiveLock{
			LockId:    lockId,
			Sender:    l.signer,
			Recipient: req.Recipient,
			Hashlock:  commitment.EncodeCanonical(digest),
			Timelock:  req.Timelock,
			Amount:    req.Amount,
		},
	}
	return lockId, nil
}

func (l *Ledger) Claim(_ context.Context, lockId, preimage string) (string, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	if err := l.failNow("claim"); err != nil {
		return "", err
	}

	record, ok := l.locks[lockId]
	if !ok {
		return "", domain.ErrSwapNotFound
	}
	if record.withdrawn || record.refunded {
		return "", domain.ErrSwapAlreadySettled
	}

	hashed := commitment.EncodeCanonical(commitment.HashPreimageText(preimage))
	if hashed != record.Hashlock {
		return "", domain.ErrHashMismatch
	}

	record.withdrawn = true
	record.preimage = preimage
	l.balances[record.Recipient] += record.Amount
	return fmt.Sprintf("%s-tx-%s", l.kind, lockId), nil
}

func (l *Ledger) Refund(_ context.Context, lockId string) (string, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	if err := l.failNow("refund"); err != nil {
		return "", err
	}

	record, ok := l.locks[lockId]
	if !ok {
		return "", domain.ErrSwapNotFound
	}
	if record.withdrawn || record.refunded {
		return "", domain.ErrSwapAlreadySettled
	}
	if commitment.NativeTime(l.kind, l.now()) < record.Timelock {
		return "", domain.ErrSwapTooEarly
	}

	record.refunded = true
	l.balances[record.Sender] += record.Amount
	return fmt.Sprintf("%s-tx-%s", l.kind, lockId), nil
}

func (l *Ledger) BalanceOf(_ context.Context, account string) (uint64, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	return l.balances[account], nil
}

func (l *Ledger) Transfer(
	_ context.Context, from, to string, amount uint64,
) (string, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	if err := l.failNow("transfer"); err != nil {
		return "", err
	}

	if from == "" {
		from = l.signer
	}
	if l.balances[from] < amount {
		return "", domain.ErrTransferFailed
	}

	l.balances[from] -= amount
	l.balances[to] += amount
	l.seq++
	return fmt.Sprintf("%s-tx-%d", l.kind, l.seq), nil
}

func (l *Ledger) ActiveLocks(_ context.Context) ([]ports.ActiveLock, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	locks := make([]ports.ActiveLock, 0)
	for _, record := range l.locks {
		if !record.withdrawn && !record.refunded {
			locks = append(locks, record.ActiveLock)
		}
	}
	return locks, nil
}

func (l *Ledger) failNow(op string) error {
	f, ok := l.failures[op]
	if !ok || f.times <= 0 {
		return nil
	}
	f.times--
	return f.err
}
