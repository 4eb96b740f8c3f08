package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/hashlock-labs/swapd/pkg/commitment"
)

const (
	SwapStatusCodeOpen = iota + 1
	SwapStatusCodeWithdrawn
	SwapStatusCodeRefunded
)

// SwapStatus represents the different statuses that a swap can assume.
type SwapStatus struct {
	Code int
}

// Swap is the data structure representing one hashed time-lock escrow leg.
// Hashlock is stored as the canonical unprefixed hex digest, Timelock as an
// absolute deadline in the owning ledger's native time unit.
type Swap struct {
	Id          string
	Sender      string
	Recipient   string
	LedgerId    string
	Amount      uint64
	Hashlock    string
	Timelock    uint64
	Preimage    string
	Withdrawn   bool
	Refunded    bool
	Status      SwapStatus
	CreatedAt   int64
	SettledAt   int64
	TransferRef string
}

// NewSwap validates the creation parameters and returns an Open swap with a
// new id. Hashlock, timelock, amount, sender and recipient are immutable
// from here on. now and minDuration are expressed in the owning ledger's
// native time unit.
func NewSwap(
	sender, recipient, ledgerId string,
	amount uint64, hashlock string, timelock, now, minDuration uint64,
) (*Swap, error) {
	if sender == "" || recipient == "" {
		return nil, ErrInvalidParty
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	if !isCanonicalHashlock(hashlock) {
		return nil, ErrInvalidHashlock
	}
	if timelock < now+minDuration {
		return nil, ErrInvalidTimelock
	}

	return &Swap{
		Id:        uuid.New().String(),
		Sender:    sender,
		Recipient: recipient,
		LedgerId:  ledgerId,
		Amount:    amount,
		Hashlock:  hashlock,
		Timelock:  timelock,
		Status:    SwapStatus{Code: SwapStatusCodeOpen},
		CreatedAt: time.Now().Unix(),
	}, nil
}

// Withdraw brings an Open swap to the Withdrawn status by verifying that the
// presented preimage hashes to the swap's hashlock. The preimage is recorded
// exactly once, here. A swap may be withdrawn any time before it is
// refunded, the timelock only gates refund eligibility.
func (s *Swap) Withdraw(preimage string) error {
	if s.IsSettled() {
		return ErrSwapAlreadySettled
	}

	hashed := commitment.EncodeCanonical(commitment.HashPreimageText(preimage))
	if hashed != s.Hashlock {
		return ErrHashMismatch
	}

	s.Preimage = preimage
	s.Withdrawn = true
	s.Status.Code = SwapStatusCodeWithdrawn
	s.SettledAt = time.Now().Unix()
	return nil
}

// Refund brings an Open swap to the Refunded status. It fails with
// ErrSwapTooEarly until the timelock has elapsed. now is expressed in the
// owning ledger's native time unit.
func (s *Swap) Refund(now uint64) error {
	if s.IsSettled() {
		return ErrSwapAlreadySettled
	}
	if now < s.Timelock {
		return ErrSwapTooEarly
	}

	s.Refunded = true
	s.Status.Code = SwapStatusCodeRefunded
	s.SettledAt = time.Now().Unix()
	return nil
}

// IsOpen returns whether the swap is still in the Open status.
func (s *Swap) IsOpen() bool {
	return s.Status.Code == SwapStatusCodeOpen
}

// IsWithdrawn returns whether the swap has been withdrawn.
func (s *Swap) IsWithdrawn() bool {
	return s.Status.Code == SwapStatusCodeWithdrawn
}

// IsRefunded returns whether the swap has been refunded.
func (s *Swap) IsRefunded() bool {
	return s.Status.Code == SwapStatusCodeRefunded
}

// IsSettled returns whether the swap reached a terminal status.
func (s *Swap) IsSettled() bool {
	return s.Withdrawn || s.Refunded
}

// IsExpired returns whether the swap is still Open past its timelock, ie. a
// candidate for a permissionless refund. now is expressed in the owning
// ledger's native time unit.
func (s *Swap) IsExpired(now uint64) bool {
	return s.IsOpen() && now >= s.Timelock
}

func isCanonicalHashlock(hashlock string) bool {
	_, err := commitment.DecodeCanonical(hashlock)
	return err == nil
}
