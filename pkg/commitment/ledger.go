package commitment

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// LedgerKind identifies one of the supported ledger families. Each kind has
// its own textual encoding for 32-byte values and its own native time unit.
type LedgerKind int

const (
	// LedgerEvm is an account/contract chain: 0x-prefixed hex values,
	// deadlines expressed in unix seconds.
	LedgerEvm LedgerKind = iota
	// LedgerIcp is a canister-based asset ledger: unprefixed hex values,
	// deadlines expressed in unix nanoseconds.
	LedgerIcp
)

const evmHexPrefix = "0x"

// AllLedgerKinds returns the supported ledger kinds.
func AllLedgerKinds() []LedgerKind {
	return []LedgerKind{LedgerEvm, LedgerIcp}
}

// ParseLedgerKind maps a textual ledger name to its kind.
func ParseLedgerKind(s string) (LedgerKind, error) {
	switch strings.ToLower(s) {
	case "evm":
		return LedgerEvm, nil
	case "icp":
		return LedgerIcp, nil
	default:
		return 0, fmt.Errorf("unknown ledger kind %q", s)
	}
}

func (k LedgerKind) String() string {
	switch k {
	case LedgerEvm:
		return "evm"
	case LedgerIcp:
		return "icp"
	default:
		return "unknown"
	}
}

// TimeUnitMultiplier returns the number of native time units per second for
// the ledger kind.
func (k LedgerKind) TimeUnitMultiplier() uint64 {
	if k == LedgerIcp {
		return uint64(time.Second / time.Nanosecond)
	}
	return 1
}

// Decimals returns the number of decimal places between the ledger kind's
// smallest unit and its display unit. The conversion factor is a fixed
// constant per ledger.
func (k LedgerKind) Decimals() int32 {
	if k == LedgerIcp {
		return 8
	}
	return 18
}

// EncodeFor maps a canonical 32-byte digest or secret to the textual
// representation the given ledger kind expects.
func EncodeFor(kind LedgerKind, value [SecretSize]byte) string {
	encoded := hex.EncodeToString(value[:])
	if kind == LedgerEvm {
		return evmHexPrefix + encoded
	}
	return encoded
}

// DecodeFrom is the exact inverse of EncodeFor. It rejects values whose
// prefix, length or alphabet does not match the kind's representation.
func DecodeFrom(kind LedgerKind, value string) ([SecretSize]byte, error) {
	var decoded [SecretSize]byte

	raw := value
	if kind == LedgerEvm {
		if !strings.HasPrefix(raw, evmHexPrefix) {
			return decoded, fmt.Errorf("%w: missing %s prefix", ErrInvalidEncoding, evmHexPrefix)
		}
		raw = strings.TrimPrefix(raw, evmHexPrefix)
	} else if strings.HasPrefix(raw, evmHexPrefix) {
		return decoded, fmt.Errorf("%w: unexpected %s prefix", ErrInvalidEncoding, evmHexPrefix)
	}

	buf, err := hex.DecodeString(raw)
	if err != nil {
		return decoded, fmt.Errorf("%w: %s", ErrInvalidEncoding, err)
	}
	if len(buf) != SecretSize {
		return decoded, fmt.Errorf(
			"%w: expected %d bytes, got %d", ErrInvalidEncoding, SecretSize, len(buf),
		)
	}
	copy(decoded[:], buf)
	return decoded, nil
}

// EncodeCanonical returns the canonical textual form of a digest or secret:
// lowercase unprefixed hex. Registries store hashlocks in this form.
func EncodeCanonical(value [SecretSize]byte) string {
	return hex.EncodeToString(value[:])
}

// DecodeCanonical is the exact inverse of EncodeCanonical.
func DecodeCanonical(value string) ([SecretSize]byte, error) {
	var decoded [SecretSize]byte
	buf, err := hex.DecodeString(value)
	if err != nil {
		return decoded, fmt.Errorf("%w: %s", ErrInvalidEncoding, err)
	}
	if len(buf) != SecretSize {
		return decoded, fmt.Errorf(
			"%w: expected %d bytes, got %d", ErrInvalidEncoding, SecretSize, len(buf),
		)
	}
	copy(decoded[:], buf)
	return decoded, nil
}

// Translate re-encodes a value from one ledger kind's representation into
// another's. The underlying digest is unchanged.
func Translate(from, to LedgerKind, value string) (string, error) {
	decoded, err := DecodeFrom(from, value)
	if err != nil {
		return "", err
	}
	return EncodeFor(to, decoded), nil
}

// NativeTime converts a wall clock instant into the ledger kind's native
// time unit.
func NativeTime(kind LedgerKind, t time.Time) uint64 {
	return uint64(t.Unix()) * kind.TimeUnitMultiplier()
}

// NativeDuration converts a duration into the ledger kind's native time
// unit.
func NativeDuration(kind LedgerKind, d time.Duration) uint64 {
	return uint64(d/time.Second) * kind.TimeUnitMultiplier()
}

// TimeFromNative converts a native deadline back into a wall clock instant.
func TimeFromNative(kind LedgerKind, native uint64) time.Time {
	return time.Unix(int64(native/kind.TimeUnitMultiplier()), 0)
}

// ComputeTimelock returns the absolute deadline, in the ledger kind's native
// unit, for a leg locked at now for the requested duration. The duration is
// floored at MinTimelockDuration plus TimelockSafetyBuffer so that a counter
// leg can always be scheduled strictly earlier.
func ComputeTimelock(now time.Time, requested time.Duration, kind LedgerKind) uint64 {
	floor := MinTimelockDuration + TimelockSafetyBuffer
	if requested < floor {
		requested = floor
	}
	return NativeTime(kind, now.Add(requested))
}

// CounterTimelock derives the deadline for the counter leg of a swap from
// the originating leg's deadline. The result always elapses strictly before
// the originating leg's deadline: the counter duration is the originating
// leg's remaining duration minus the margin, with no minimum floor applied.
// The margin must exceed the maximum expected reveal-and-relay latency.
func CounterTimelock(
	now time.Time, legDeadline uint64, legKind LedgerKind,
	counterKind LedgerKind, margin time.Duration,
) (uint64, error) {
	legInstant := TimeFromNative(legKind, legDeadline)
	remaining := legInstant.Sub(now)
	if remaining <= margin {
		return 0, ErrTimelockTooClose
	}

	// Native deadlines have second granularity, so the strict ordering must
	// hold on truncated instants, not on the wall clock ones.
	counterInstant := now.Add(remaining - margin)
	if counterInstant.Unix() >= legInstant.Unix() {
		return 0, ErrTimelockTooClose
	}
	return NativeTime(counterKind, counterInstant), nil
}
