package application

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/thanhpk/randstr"
	"golang.org/x/sync/errgroup"

	"github.com/hashlock-labs/swapd/internal/core/domain"
	"github.com/hashlock-labs/swapd/internal/core/ports"
	"github.com/hashlock-labs/swapd/pkg/commitment"
)

// ErrAttemptAborted is returned by a coordination flow that hit a
// non-retryable fault. The originating leg stays independently refundable by
// its owner, which is the safety property the timelock asymmetry guarantees.
var ErrAttemptAborted = errors.New("swap attempt aborted")

// ResolverConfig tweaks the coordination policy of the resolver.
type ResolverConfig struct {
	// Accounts holds the resolver's own account per ledger kind. Locks whose
	// recipient is not one of these accounts are ignored.
	Accounts map[commitment.LedgerKind]string
	// Margin is subtracted from the originating leg's remaining duration
	// when deriving the counter-leg timelock. It must exceed the maximum
	// expected reveal-and-relay latency.
	Margin time.Duration
	// Rates maps "<from>/<to>" ledger pairs to the price of one display unit
	// of from expressed in display units of to.
	Rates map[string]decimal.Decimal
	// MaxAttempts bounds the retries of a failing ledger call.
	MaxAttempts int
	// RetryInterval is the initial backoff interval, doubled at every failed
	// attempt.
	RetryInterval time.Duration
}

// ResolverService is the cross-chain coordinator: it observes locks created
// on one ledger, produces the matching counter-lock on the other one, and
// relays revealed secrets to settle both legs.
type ResolverService interface {
	// Start consumes the order feed and runs one coordination flow per
	// observed lock. It blocks until the context is canceled or the feed
	// terminates.
	Start(ctx context.Context) error
}

type resolverService struct {
	feed    ports.OrderFeed
	ledgers map[commitment.LedgerKind]ports.LedgerService
	config  ResolverConfig

	revealsMtx sync.Mutex
	reveals    map[string][]chan ports.RevealObserved
}

// NewResolverService returns a ResolverService coordinating swaps between
// the given ledger adapters.
func NewResolverService(
	feed ports.OrderFeed,
	ledgers map[commitment.LedgerKind]ports.LedgerService,
	config ResolverConfig,
) (ResolverService, error) {
	if len(ledgers) < 2 {
		return nil, errors.New("resolver requires an adapter for both ledgers")
	}
	if config.Margin <= 0 {
		return nil, errors.New("resolver margin must be positive")
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = time.Second
	}

	return &resolverService{
		feed:    feed,
		ledgers: ledgers,
		config:  config,
		reveals: make(map[string][]chan ports.RevealObserved),
	}, nil
}

func (r *resolverService) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(r.feed.Start)
	g.Go(func() error {
		<-ctx.Done()
		r.feed.Stop()
		return nil
	})

	if err := r.reconcile(ctx, g); err != nil {
		log.WithError(err).Warn("could not reconcile in-flight swap attempts")
	}

	g.Go(func() error {
		return r.consumeFeed(ctx, g)
	})

	return g.Wait()
}

func (r *resolverService) consumeFeed(ctx context.Context, g *errgroup.Group) error {
	locks, reveals := r.feed.LockChan(), r.feed.RevealChan()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case lock, ok := <-locks:
			if !ok {
				return nil
			}
			g.Go(func() error {
				if err := r.coordinate(ctx, lock); err != nil && !errors.Is(err, context.Canceled) {
					log.WithError(err).Errorf(
						"swap attempt for hashlock %s failed", lock.Hashlock,
					)
				}
				// A failed attempt never takes the whole resolver down: the
				// counterparty's leg stays refundable on its own.
				return nil
			})
		case reveal, ok := <-reveals:
			if !ok {
				return nil
			}
			r.routeReveal(reveal)
		}
	}
}

// coordinate runs the full protocol for one observed lock: counter-lock the
// other ledger, then wait for a reveal on either leg or for the counter-leg
// deadline.
func (r *resolverService) coordinate(ctx context.Context, lock ports.LockObserved) error {
	account, ok := r.config.Accounts[lock.Ledger]
	if !ok || lock.Recipient != account {
		log.Debugf("ignoring lock %s: recipient is not the resolver", lock.LockId)
		return nil
	}

	attemptId := randstr.Hex(8)
	counterKind, err := r.counterKindOf(lock.Ledger)
	if err != nil {
		return err
	}
	counterLedger := r.ledgers[counterKind]

	digest, err := commitment.DecodeCanonical(lock.Hashlock)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrAttemptAborted, err)
	}
	counterHashlock := commitment.EncodeFor(counterKind, digest)

	now := time.Now()
	counterTimelock, err := commitment.CounterTimelock(
		now, lock.Timelock, lock.Ledger, counterKind, r.config.Margin,
	)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrAttemptAborted, err)
	}

	counterAmount, err := r.convertAmount(lock.Amount, lock.Ledger, counterKind)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrAttemptAborted, err)
	}

	revealCh := r.subscribeReveal(lock.Hashlock)
	defer r.unsubscribeReveal(lock.Hashlock, revealCh)

	var counterLockId string
	if err := r.withRetry(ctx, attemptId, "lock counter leg", func() error {
		id, err := counterLedger.Lock(ctx, ports.LockRequest{
			Recipient: lock.CounterAccount,
			Hashlock:  counterHashlock,
			Timelock:  counterTimelock,
			Amount:    counterAmount,
		})
		if err != nil {
			return err
		}
		counterLockId = id
		return nil
	}); err != nil {
		return fmt.Errorf("%w: locking counter leg: %s", ErrAttemptAborted, err)
	}

	log.Infof(
		"attempt %s: counter leg %s locked on %s, %d units for %s",
		attemptId, counterLockId, counterKind, counterAmount, lock.CounterAccount,
	)

	return r.waitForReveal(
		ctx, attemptId, lock, counterKind, counterLockId, counterTimelock, revealCh,
	)
}

// waitForReveal blocks until a preimage for the attempt's hashlock shows up
// on either leg, or until the counter-leg timelock elapses.
func (r *resolverService) waitForReveal(
	ctx context.Context, attemptId string,
	lock ports.LockObserved, counterKind commitment.LedgerKind,
	counterLockId string, counterTimelock uint64,
	revealCh <-chan ports.RevealObserved,
) error {
	deadline := commitment.TimeFromNative(counterKind, counterTimelock)
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()

	case reveal := <-revealCh:
		// The preimage is public now: settle whichever leg is still locked
		// with it.
		if reveal.Ledger == counterKind {
			return r.claimLeg(ctx, attemptId, lock.Ledger, lock.LockId, reveal.Preimage)
		}
		return r.claimLeg(ctx, attemptId, counterKind, counterLockId, reveal.Preimage)

	case <-timer.C:
		log.Infof(
			"attempt %s: no reveal before counter-leg deadline, refunding", attemptId,
		)
		return r.refundCounterLeg(ctx, attemptId, counterKind, counterLockId)
	}
}

func findLockByHashlock(locks []ports.ActiveLock, hashlock string) (ports.ActiveLock, bool) {
	for _, lock := range locks {
		if lock.Hashlock == hashlock {
			return lock, true
		}
	}
	return ports.ActiveLock{}, false
}

func (r *resolverService) claimLeg(
	ctx context.Context, attemptId string,
	kind commitment.LedgerKind, lockId, preimage string,
) error {
	if err := r.withRetry(ctx, attemptId, "claim leg", func() error {
		_, err := r.ledgers[kind].Claim(ctx, lockId, preimage)
		return err
	}); err != nil {
		if errors.Is(err, domain.ErrSwapAlreadySettled) {
			// Someone beat us to it with the same preimage, nothing left to do.
			return nil
		}
		return fmt.Errorf("%w: claiming leg on %s: %s", ErrAttemptAborted, kind, err)
	}

	log.Infof("attempt %s: leg %s claimed on %s", attemptId, lockId, kind)
	return nil
}

func (r *resolverService) refundCounterLeg(
	ctx context.Context, attemptId string,
	kind commitment.LedgerKind, lockId string,
) error {
	if err := r.withRetry(ctx, attemptId, "refund counter leg", func() error {
		_, err := r.ledgers[kind].Refund(ctx, lockId)
		return err
	}); err != nil {
		// Refund is idempotent at the registry level: a concurrent refund or
		// a late withdraw already settled the leg.
		if errors.Is(err, domain.ErrSwapAlreadySettled) {
			return nil
		}
		return fmt.Errorf("%w: refunding counter leg: %s", ErrAttemptAborted, err)
	}

	log.Infof("attempt %s: counter leg %s refunded on %s", attemptId, lockId, kind)
	return nil
}

// reconcile rebuilds coordination state from the on-chain registries after a
// restart: every still-active counter-lock deposited by the resolver is
// re-armed in its wait-for-reveal phase, matched to its originating leg by
// hashlock.
func (r *resolverService) reconcile(ctx context.Context, g *errgroup.Group) error {
	for kind, ledgerSvc := range r.ledgers {
		counterKind, err := r.counterKindOf(kind)
		if err != nil {
			return err
		}

		activeLocks, err := ledgerSvc.ActiveLocks(ctx)
		if err != nil {
			return fmt.Errorf("listing active locks on %s: %w", kind, err)
		}
		originLocks, err := r.ledgers[counterKind].ActiveLocks(ctx)
		if err != nil {
			return fmt.Errorf("listing active locks on %s: %w", counterKind, err)
		}

		for _, counterLock := range activeLocks {
			if counterLock.Sender != r.config.Accounts[kind] {
				continue
			}

			origin, ok := findLockByHashlock(originLocks, counterLock.Hashlock)
			if !ok {
				log.Warnf(
					"counter lock %s on %s has no matching origin leg, leaving it to expire",
					counterLock.LockId, kind,
				)
				continue
			}

			attemptId := randstr.Hex(8)
			counterLock, origin, kind, counterKind := counterLock, origin, kind, counterKind
			log.Infof(
				"attempt %s: re-armed from registry state, counter lock %s on %s",
				attemptId, counterLock.LockId, kind,
			)

			revealCh := r.subscribeReveal(counterLock.Hashlock)
			g.Go(func() error {
				defer r.unsubscribeReveal(counterLock.Hashlock, revealCh)
				observed := ports.LockObserved{
					LockId:    origin.LockId,
					Ledger:    counterKind,
					Hashlock:  origin.Hashlock,
					Timelock:  origin.Timelock,
					Amount:    origin.Amount,
					Sender:    origin.Sender,
					Recipient: origin.Recipient,
				}
				if err := r.waitForReveal(
					ctx, attemptId, observed, kind,
					counterLock.LockId, counterLock.Timelock, revealCh,
				); err != nil && !errors.Is(err, context.Canceled) {
					log.WithError(err).Errorf("attempt %s failed", attemptId)
				}
				return nil
			})
		}
	}
	return nil
}

// subscribeReveal registers one more subscriber for the hashlock. Disjoint
// attempts may share a digest, so every one of them gets its own channel.
func (r *resolverService) subscribeReveal(hashlock string) chan ports.RevealObserved {
	r.revealsMtx.Lock()
	defer r.revealsMtx.Unlock()

	ch := make(chan ports.RevealObserved, 1)
	r.reveals[hashlock] = append(r.reveals[hashlock], ch)
	return ch
}

func (r *resolverService) unsubscribeReveal(hashlock string, ch chan ports.RevealObserved) {
	r.revealsMtx.Lock()
	defer r.revealsMtx.Unlock()

	subscribers := r.reveals[hashlock]
	for i, subscriber := range subscribers {
		if subscriber == ch {
			r.reveals[hashlock] = append(subscribers[:i], subscribers[i+1:]...)
			break
		}
	}
	if len(r.reveals[hashlock]) == 0 {
		delete(r.reveals, hashlock)
	}
}

func (r *resolverService) routeReveal(reveal ports.RevealObserved) {
	r.revealsMtx.Lock()
	subscribers := append(
		[]chan ports.RevealObserved(nil), r.reveals[reveal.Hashlock]...,
	)
	r.revealsMtx.Unlock()

	if len(subscribers) == 0 {
		log.Debugf("no pending attempt for revealed hashlock %s", reveal.Hashlock)
		return
	}

	for _, ch := range subscribers {
		select {
		case ch <- reveal:
		default:
		}
	}
}

// withRetry retries transport faults with bounded exponential backoff.
// Logical conflicts and commitment faults are surfaced immediately.
func (r *resolverService) withRetry(
	ctx context.Context, attemptId, op string, fn func() error,
) error {
	backoff := r.config.RetryInterval
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, domain.ErrHashMismatch) {
			// Either corruption or attempted fraud, never retried.
			log.Errorf(
				"attempt %s: commitment fault while trying to %s: %s", attemptId, op, err,
			)
			return err
		}
		if !isRetryable(err) || attempt >= r.config.MaxAttempts {
			return err
		}

		log.WithError(err).Warnf(
			"attempt %s: %s failed (%d/%d), retrying in %s",
			attemptId, op, attempt, r.config.MaxAttempts, backoff,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (r *resolverService) counterKindOf(
	kind commitment.LedgerKind,
) (commitment.LedgerKind, error) {
	for k := range r.ledgers {
		if k != kind {
			return k, nil
		}
	}
	return 0, fmt.Errorf("no counter ledger configured for %s", kind)
}

// convertAmount translates an amount between the smallest units of two
// ledgers by applying the configured exchange rate on display units.
func (r *resolverService) convertAmount(
	amount uint64, from, to commitment.LedgerKind,
) (uint64, error) {
	rate, ok := r.config.Rates[fmt.Sprintf("%s/%s", from, to)]
	if !ok {
		return 0, fmt.Errorf("no exchange rate configured for %s/%s", from, to)
	}

	converted := decimal.NewFromBigInt(
		new(big.Int).SetUint64(amount), -from.Decimals(),
	).Mul(rate).Shift(to.Decimals()).Floor()

	if !converted.IsPositive() {
		return 0, fmt.Errorf("converted amount %s is not positive", converted)
	}
	return converted.BigInt().Uint64(), nil
}

// isRetryable tells transport faults apart from logical state conflicts and
// validation errors, which no amount of retrying can fix.
func isRetryable(err error) bool {
	for _, sentinel := range []error{
		domain.ErrSwapNotFound,
		domain.ErrSwapAlreadySettled,
		domain.ErrSwapTooEarly,
		domain.ErrHashMismatch,
		domain.ErrInvalidAmount,
		domain.ErrInvalidTimelock,
		domain.ErrInvalidHashlock,
		domain.ErrInvalidParty,
		domain.ErrUnknownLedger,
	} {
		if errors.Is(err, sentinel) {
			return false
		}
	}
	return true
}
