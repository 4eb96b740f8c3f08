// Package commitment provides the secret/hashlock/timelock triple used to
// coordinate hashed time-lock escrows across heterogeneous ledgers, along
// with the per-ledger encodings of hashes and deadlines.
package commitment

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"
)

const (
	// SecretSize is the size in bytes of a swap secret and of its digest.
	SecretSize = 32

	// MinTimelockDuration is the shortest duration a leg is allowed to stay
	// locked before the sender may reclaim it.
	MinTimelockDuration = 3600 * time.Second
	// TimelockSafetyBuffer is added on top of MinTimelockDuration when
	// computing a deadline, so that a counter leg derived from it always has
	// headroom to expire strictly earlier.
	TimelockSafetyBuffer = 600 * time.Second
)

var (
	// ErrInvalidEncoding is returned when a hashlock or secret string does
	// not match the expected representation for the target ledger.
	ErrInvalidEncoding = errors.New("invalid encoding for ledger kind")
	// ErrTimelockTooClose is returned when the originating leg's deadline
	// leaves no room for a strictly earlier counter-leg deadline.
	ErrTimelockTooClose = errors.New(
		"originating timelock leaves no room for counter-leg margin",
	)
)

// Secret is the random preimage committed to by a hashlock.
type Secret [SecretSize]byte

// Hashlock is the one-way digest of a Secret.
type Hashlock [SecretSize]byte

// GenerateSecret returns a uniformly random 256-bit secret.
func GenerateSecret() (Secret, error) {
	var s Secret
	if _, err := rand.Read(s[:]); err != nil {
		return Secret{}, fmt.Errorf("generating secret: %w", err)
	}
	return s, nil
}

// Hash returns the hashlock committing to the given secret. It is
// deterministic, two calls on the same secret yield identical digests.
func Hash(secret Secret) Hashlock {
	return Hashlock(sha256.Sum256(secret[:]))
}

// HashPreimageText returns the hashlock committing to a preimage supplied as
// plain text. Escrows created through the query surface use this form.
func HashPreimageText(preimage string) Hashlock {
	return Hashlock(sha256.Sum256([]byte(preimage)))
}

// VerifyPreimageText reports whether the given plain text preimage hashes to
// the hashlock encoded in hex form (with or without prefix, any ledger kind).
func VerifyPreimageText(preimage, hashlock string) bool {
	for _, kind := range AllLedgerKinds() {
		h, err := DecodeFrom(kind, hashlock)
		if err != nil {
			continue
		}
		return Hashlock(h) == HashPreimageText(preimage)
	}
	return false
}

// Commitment holds a secret together with its hashlock until the secret is
// revealed on chain or the swap attempt is abandoned.
type Commitment struct {
	secret   Secret
	hashlock Hashlock
}

// New generates a fresh secret and derives its hashlock.
func New() (*Commitment, error) {
	secret, err := GenerateSecret()
	if err != nil {
		return nil, err
	}
	return &Commitment{secret: secret, hashlock: Hash(secret)}, nil
}

// Hashlock returns the canonical 32-byte digest of the commitment's secret.
func (c *Commitment) Hashlock() Hashlock {
	return c.hashlock
}

// SecretFor returns the secret in the representation expected by the given
// ledger kind.
func (c *Commitment) SecretFor(kind LedgerKind) string {
	return EncodeFor(kind, c.secret)
}

// HashlockFor returns the hashlock in the representation expected by the
// given ledger kind.
func (c *Commitment) HashlockFor(kind LedgerKind) string {
	return EncodeFor(kind, c.hashlock)
}

// Discard zeroes the secret. Must be called once the secret has become
// public on chain or both legs have been refunded.
func (c *Commitment) Discard() {
	for i := range c.secret {
		c.secret[i] = 0
	}
}
