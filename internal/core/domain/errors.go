package domain

import "errors"

var (
	// ErrInvalidAmount is thrown when trying to create a swap with a zero amount
	ErrInvalidAmount = errors.New("amount must be greater than 0")
	// ErrInvalidTimelock is thrown when a swap's timelock is not far enough in the future
	ErrInvalidTimelock = errors.New("timelock must be in the future by at least the minimum duration")
	// ErrInvalidHashlock is thrown when a hashlock is not a canonical 32-byte hex digest
	ErrInvalidHashlock = errors.New("hashlock must be a valid 32-byte hex digest")
	// ErrInvalidParty is thrown when a swap's sender or recipient is empty
	ErrInvalidParty = errors.New("sender and recipient must not be empty")
	// ErrSwapNotFound ...
	ErrSwapNotFound = errors.New("swap not found")
	// ErrSwapAlreadyExists is thrown when storing a swap with an id already taken
	ErrSwapAlreadyExists = errors.New("swap with the same id already exists")
	// ErrSwapAlreadySettled is thrown when withdrawing or refunding a swap that reached a terminal state
	ErrSwapAlreadySettled = errors.New("swap is already withdrawn or refunded")
	// ErrSwapTooEarly is thrown when refunding a swap whose timelock has not elapsed yet
	ErrSwapTooEarly = errors.New("timelock has not expired yet")
	// ErrHashMismatch is thrown when the presented preimage does not hash to the swap's hashlock
	ErrHashMismatch = errors.New("preimage does not match hashlock")
	// ErrTransferFailed is thrown when the underlying asset transfer does not succeed
	ErrTransferFailed = errors.New("asset transfer failed")
	// ErrUnknownLedger is thrown when a swap references an asset ledger the escrow does not service
	ErrUnknownLedger = errors.New("unknown asset ledger")
)
