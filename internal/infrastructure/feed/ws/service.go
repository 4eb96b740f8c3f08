// Package wsfeed consumes the inbound stream of escrow notifications over a
// websocket connection. Payloads are validated into strict typed events at
// ingestion; malformed ones are rejected instead of propagating inward.
package wsfeed

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/hashlock-labs/swapd/internal/core/ports"
	"github.com/hashlock-labs/swapd/pkg/commitment"
)

const (
	lockCreatedEvent   = "lock_created"
	lockWithdrawnEvent = "lock_withdrawn"

	eventQueueMaxSize = 100
)

// message is the wire shape of every feed notification.
type message struct {
	Event          string `json:"event"`
	LockId         string `json:"lock_id"`
	Ledger         string `json:"ledger"`
	Hashlock       string `json:"hashlock"`
	Timelock       uint64 `json:"timelock"`
	Amount         uint64 `json:"amount"`
	Sender         string `json:"sender"`
	Recipient      string `json:"recipient"`
	CounterAccount string `json:"counter_account"`
	Preimage       string `json:"preimage"`
}

type service struct {
	url  string
	conn *websocket.Conn

	lockChan   chan ports.LockObserved
	revealChan chan ports.RevealObserved

	chLock   *sync.Mutex
	quitChan chan struct{}
}

// NewService returns an OrderFeed connected to the given websocket url.
func NewService(url string) (ports.OrderFeed, error) {
	conn, err := connect(url)
	if err != nil {
		return nil, err
	}

	return &service{
		url:        url,
		conn:       conn,
		lockChan:   make(chan ports.LockObserved, eventQueueMaxSize),
		revealChan: make(chan ports.RevealObserved, eventQueueMaxSize),
		chLock:     &sync.Mutex{},
		quitChan:   make(chan struct{}, 1),
	}, nil
}

func (s *service) LockChan() <-chan ports.LockObserved {
	return s.lockChan
}

func (s *service) RevealChan() <-chan ports.RevealObserved {
	return s.revealChan
}

// Start reads the feed until Stop is called. A dropped connection is
// re-established transparently: coordination state never depends on feed
// delivery memory, so no replay is attempted.
func (s *service) Start() error {
	mustReconnect, err := s.start()
	for mustReconnect {
		log.WithError(err).Warn("feed connection dropped unexpectedly, reconnecting...")

		conn, connErr := connect(s.url)
		if connErr != nil {
			return connErr
		}
		s.conn = conn

		log.Debug("feed connection re-established, restarting...")
		mustReconnect, err = s.start()
	}

	return err
}

func (s *service) Stop() {
	s.quitChan <- struct{}{}
	s.conn.Close()
}

func (s *service) start() (mustReconnect bool, err error) {
	for {
		_, payload, readErr := s.conn.ReadMessage()
		if readErr != nil {
			// A read error after Stop is the connection being torn down on
			// purpose, not a reason to reconnect.
			select {
			case <-s.quitChan:
				s.closeChannels()
				return false, nil
			default:
			}
			return true, readErr
		}

		s.dispatch(payload)
	}
}

func (s *service) dispatch(payload []byte) {
	var msg message
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.WithError(err).Warn("dropping malformed feed payload")
		return
	}

	switch msg.Event {
	case lockCreatedEvent:
		lock, err := parseLock(msg)
		if err != nil {
			log.WithError(err).Warn("dropping invalid lock notification")
			return
		}
		s.lockChan <- *lock
	case lockWithdrawnEvent:
		reveal, err := parseReveal(msg)
		if err != nil {
			log.WithError(err).Warn("dropping invalid reveal notification")
			return
		}
		s.revealChan <- *reveal
	default:
		log.Debugf("ignoring feed event %q", msg.Event)
	}
}

func (s *service) closeChannels() {
	s.chLock.Lock()
	defer s.chLock.Unlock()

	close(s.lockChan)
	close(s.revealChan)
	close(s.quitChan)
}

func parseLock(msg message) (*ports.LockObserved, error) {
	kind, hashlock, err := parseCommon(msg)
	if err != nil {
		return nil, err
	}
	if msg.Amount == 0 {
		return nil, fmt.Errorf("lock %s: amount must be positive", msg.LockId)
	}
	if msg.Timelock == 0 {
		return nil, fmt.Errorf("lock %s: missing timelock", msg.LockId)
	}
	if msg.Sender == "" || msg.Recipient == "" || msg.CounterAccount == "" {
		return nil, fmt.Errorf("lock %s: missing party identity", msg.LockId)
	}

	return &ports.LockObserved{
		LockId:         msg.LockId,
		Ledger:         kind,
		Hashlock:       hashlock,
		Timelock:       msg.Timelock,
		Amount:         msg.Amount,
		Sender:         msg.Sender,
		Recipient:      msg.Recipient,
		CounterAccount: msg.CounterAccount,
	}, nil
}

func parseReveal(msg message) (*ports.RevealObserved, error) {
	kind, hashlock, err := parseCommon(msg)
	if err != nil {
		return nil, err
	}
	if msg.Preimage == "" {
		return nil, fmt.Errorf("reveal %s: missing preimage", msg.LockId)
	}

	return &ports.RevealObserved{
		LockId:   msg.LockId,
		Ledger:   kind,
		Hashlock: hashlock,
		Preimage: msg.Preimage,
	}, nil
}

func parseCommon(msg message) (commitment.LedgerKind, string, error) {
	if msg.LockId == "" {
		return 0, "", fmt.Errorf("missing lock id")
	}
	kind, err := commitment.ParseLedgerKind(msg.Ledger)
	if err != nil {
		return 0, "", err
	}
	digest, err := commitment.DecodeFrom(kind, msg.Hashlock)
	if err != nil {
		return 0, "", fmt.Errorf("lock %s: %s", msg.LockId, err)
	}
	return kind, commitment.EncodeCanonical(digest), nil
}

func connect(url string) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to feed at %s: %w", url, err)
	}
	return conn, nil
}
