package ports

import (
	"github.com/hashlock-labs/swapd/pkg/commitment"
)

// LockObserved notifies that a counterparty escrowed funds on a ledger.
// Hashlock is re-encoded to the canonical form at ingestion, Timelock stays
// in the originating ledger's native time unit.
type LockObserved struct {
	LockId    string
	Ledger    commitment.LedgerKind
	Hashlock  string
	Timelock  uint64
	Amount    uint64
	Sender    string
	Recipient string
	// CounterAccount is the depositor's account on the counter ledger, where
	// the matching escrow pays out.
	CounterAccount string
}

// RevealObserved notifies that an escrow was withdrawn on a ledger, making
// its preimage public.
type RevealObserved struct {
	LockId   string
	Ledger   commitment.LedgerKind
	Hashlock string
	Preimage string
}

// OrderFeed is the inbound stream of escrow notifications consumed by the
// resolver. The channels deliver events in per-connection order; the feed
// reconnects on its own and in-flight coordination state must never depend
// on delivery memory.
type OrderFeed interface {
	// Start connects the feed and blocks until Stop is called or the
	// connection cannot be re-established.
	Start() error
	// Stop disconnects the feed and closes the event channels.
	Stop()

	LockChan() <-chan LockObserved
	RevealChan() <-chan RevealObserved
}
