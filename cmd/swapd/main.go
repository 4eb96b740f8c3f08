package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/hashlock-labs/swapd/internal/config"
	"github.com/hashlock-labs/swapd/internal/core/application"
	"github.com/hashlock-labs/swapd/internal/core/ports"
	wsfeed "github.com/hashlock-labs/swapd/internal/infrastructure/feed/ws"
	evmledger "github.com/hashlock-labs/swapd/internal/infrastructure/ledger/evm"
	icpledger "github.com/hashlock-labs/swapd/internal/infrastructure/ledger/icp"
	mockledger "github.com/hashlock-labs/swapd/internal/infrastructure/ledger/mock"
	dbbadger "github.com/hashlock-labs/swapd/internal/infrastructure/storage/db/badger"
	"github.com/hashlock-labs/swapd/internal/infrastructure/storage/db/inmemory"
	httpinterface "github.com/hashlock-labs/swapd/internal/interfaces/http"
	"github.com/hashlock-labs/swapd/pkg/commitment"
)

// evmNativeLedgerId is the asset ledger id swaps on the EVM escrow use.
const evmNativeLedgerId = "native"

func main() {
	if err := config.InitConfig(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	repoManager, err := newRepoManager()
	if err != nil {
		log.WithError(err).Fatal("error while opening db")
	}
	defer repoManager.Close()

	escrowKind, _ := config.GetEscrowLedger()
	escrowAccount := config.GetString(config.EscrowAccountKey)

	if config.GetString(config.LedgerModeKey) == config.LedgerModeSimulated {
		log.Warn("running against simulated ledgers, funds are not real")
	}

	ledgers, err := newLedgerServices(map[commitment.LedgerKind]string{
		commitment.LedgerEvm: escrowAccount,
		commitment.LedgerIcp: escrowAccount,
	})
	if err != nil {
		log.WithError(err).Fatal("error while setting up ledger adapters")
	}

	registrySvc := application.NewRegistryService(
		escrowKind, escrowAccount, repoManager,
		registryLedgers(escrowKind, ledgers),
	)

	registryAddress := fmt.Sprintf(":%+v", config.GetInt(config.ListeningPortKey))
	server := &http.Server{
		Addr:    registryAddress,
		Handler: httpinterface.NewRegistryHandler(registrySvc).Router(),
	}

	go func() {
		log.Infof("registry interface is listening on %s", registryAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("error listening on registry interface")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resolverDone := make(chan struct{})
	if config.GetBool(config.NoResolverKey) {
		close(resolverDone)
	} else {
		go func() {
			defer close(resolverDone)
			if err := runResolver(ctx); err != nil && ctx.Err() == nil {
				log.WithError(err).Error("resolver terminated")
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(), 10*time.Second,
	)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("error while stopping registry interface")
	}

	select {
	case <-resolverDone:
	case <-shutdownCtx.Done():
		log.Warn("resolver did not stop in time")
	}

	log.Info("exiting")
}

func newRepoManager() (ports.RepoManager, error) {
	if config.GetString(config.DBTypeKey) == config.DBInMemory {
		return inmemory.NewRepoManager(), nil
	}

	dbDir := filepath.Join(config.GetDatadir(), config.DbLocation)
	return dbbadger.NewRepoManager(dbDir, nil)
}

// newLedgerServices builds one adapter per ledger, each signing its calls as
// the given per-kind account. The registry signs as the escrow account while
// the resolver signs as its own payout accounts, so the two surfaces never
// share adapter instances.
func newLedgerServices(
	signers map[commitment.LedgerKind]string,
) (map[commitment.LedgerKind]ports.LedgerService, error) {
	if config.GetString(config.LedgerModeKey) == config.LedgerModeSimulated {
		return map[commitment.LedgerKind]ports.LedgerService{
			commitment.LedgerEvm: mockledger.NewLedger(
				commitment.LedgerEvm, signers[commitment.LedgerEvm], nil,
			),
			commitment.LedgerIcp: mockledger.NewLedger(
				commitment.LedgerIcp, signers[commitment.LedgerIcp], nil,
			),
		}, nil
	}

	evmSvc := evmledger.NewService(
		evmledger.NewEscrowClient(config.GetString(config.EvmRPCAddrKey)),
		signers[commitment.LedgerEvm],
	)
	icpSvc := icpledger.NewService(
		icpledger.NewCanisterClient(config.GetString(config.IcpRPCAddrKey)),
		signers[commitment.LedgerIcp],
		config.GetString(config.IcpLedgerIdKey),
	)

	return map[commitment.LedgerKind]ports.LedgerService{
		commitment.LedgerEvm: evmSvc,
		commitment.LedgerIcp: icpSvc,
	}, nil
}

// registryLedgers maps the asset ledger ids accepted by the registry onto
// the adapter of the ledger the escrow runs on.
func registryLedgers(
	escrowKind commitment.LedgerKind,
	ledgers map[commitment.LedgerKind]ports.LedgerService,
) map[string]ports.LedgerService {
	ledgerId := evmNativeLedgerId
	if escrowKind == commitment.LedgerIcp {
		if configured := config.GetString(config.IcpLedgerIdKey); configured != "" {
			ledgerId = configured
		}
	}
	return map[string]ports.LedgerService{
		ledgerId: ledgers[escrowKind],
	}
}

func runResolver(ctx context.Context) error {
	accounts := config.GetResolverAccounts()
	if len(accounts) < 2 {
		log.Info("resolver accounts not configured, running registry only")
		return nil
	}

	// The resolver gets its own adapters, signing as its payout accounts.
	// Claims and refunds of its counter legs must carry these accounts as
	// caller, and restart recovery recognizes its in-flight locks by them.
	ledgers, err := newLedgerServices(accounts)
	if err != nil {
		return err
	}

	rates, err := config.GetExchangeRates()
	if err != nil {
		return err
	}

	feedSvc, err := wsfeed.NewService(config.GetString(config.FeedURLKey))
	if err != nil {
		return fmt.Errorf("error while connecting to order feed: %s", err)
	}

	resolverSvc, err := application.NewResolverService(
		feedSvc, ledgers, application.ResolverConfig{
			Accounts:      accounts,
			Margin:        config.GetResolverMargin(),
			Rates:         rates,
			MaxAttempts:   config.GetInt(config.MaxAttemptsKey),
			RetryInterval: config.GetRetryInterval(),
		},
	)
	if err != nil {
		return err
	}

	log.Info("resolver started")
	return resolverSvc.Start(ctx)
}
