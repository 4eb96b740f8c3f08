package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/hashlock-labs/swapd/pkg/commitment"
)

const (
	// ListeningPortKey is the port where the JSON registry interface will listen on
	ListeningPortKey = "LISTENING_PORT"
	// DatadirKey is the local data directory to store the internal state of the daemon
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// DBTypeKey is used to switch database type between those supported
	DBTypeKey = "DB_TYPE"
	// EscrowLedgerKey is the ledger the registry escrow lives on (evm or icp)
	EscrowLedgerKey = "ESCROW_LEDGER"
	// EscrowAccountKey is the account funds are parked on between create and settle
	EscrowAccountKey = "ESCROW_ACCOUNT"
	// FeedURLKey is the websocket endpoint streaming lock and reveal events
	FeedURLKey = "FEED_URL"
	// EvmRPCAddrKey is the address of the EVM escrow gateway
	EvmRPCAddrKey = "EVM_RPC_ADDR"
	// IcpRPCAddrKey is the address of the ICP canister gateway
	IcpRPCAddrKey = "ICP_RPC_ADDR"
	// IcpLedgerIdKey is the token ledger the ICP escrow canister settles against
	IcpLedgerIdKey = "ICP_LEDGER_ID"
	// EvmAccountKey is the account the resolver signs with and receives payouts
	// on the EVM ledger. Its counter-leg locks, claims and refunds all carry it
	// as caller
	EvmAccountKey = "EVM_ACCOUNT"
	// IcpAccountKey is the account the resolver signs with and receives payouts
	// on the ICP ledger
	IcpAccountKey = "ICP_ACCOUNT"
	// ResolverMarginKey is the duration in seconds subtracted when deriving counter-leg timelocks
	ResolverMarginKey = "RESOLVER_MARGIN"
	// ExchangeRatesKey is the list of from/to=rate entries used to size counter-leg amounts
	ExchangeRatesKey = "EXCHANGE_RATES"
	// MaxAttemptsKey is the number of tries for retryable ledger operations
	MaxAttemptsKey = "MAX_ATTEMPTS"
	// RetryIntervalKey is the base delay in seconds between retries
	RetryIntervalKey = "RETRY_INTERVAL"
	// LedgerModeKey switches the ledger adapters between simulated and rpc
	LedgerModeKey = "LEDGER_MODE"
	// NoResolverKey is used to start the daemon with the registry surface only
	NoResolverKey = "NO_RESOLVER"

	DBBadger   = "badger"
	DBInMemory = "inmemory"

	LedgerModeSimulated = "simulated"
	LedgerModeRPC       = "rpc"

	DbLocation = "db"
)

var vip *viper.Viper

func defaultDatadir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".swapd"
	}
	return filepath.Join(home, ".swapd")
}

func InitConfig() error {
	vip = viper.New()
	vip.SetEnvPrefix("SWAPD")
	vip.AutomaticEnv()

	vip.SetDefault(ListeningPortKey, 9961)
	vip.SetDefault(DatadirKey, defaultDatadir())
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(DBTypeKey, DBBadger)
	vip.SetDefault(EscrowLedgerKey, commitment.LedgerIcp.String())
	vip.SetDefault(FeedURLKey, "ws://localhost:9962/ws")
	vip.SetDefault(EvmRPCAddrKey, "http://localhost:8545")
	vip.SetDefault(IcpRPCAddrKey, "http://localhost:4943")
	vip.SetDefault(ResolverMarginKey, 900)
	vip.SetDefault(MaxAttemptsKey, 3)
	vip.SetDefault(RetryIntervalKey, 2)
	vip.SetDefault(LedgerModeKey, LedgerModeRPC)
	vip.SetDefault(NoResolverKey, false)

	if err := validate(); err != nil {
		return fmt.Errorf("error while validating config: %s", err)
	}

	if err := initDatadir(); err != nil {
		return fmt.Errorf("error while creating datadir: %s", err)
	}

	return nil
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetStringSlice(key string) []string {
	return vip.GetStringSlice(key)
}

func GetDuration(key string) time.Duration {
	return vip.GetDuration(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

// GetEscrowLedger returns the ledger kind the registry runs on.
func GetEscrowLedger() (commitment.LedgerKind, error) {
	return commitment.ParseLedgerKind(GetString(EscrowLedgerKey))
}

// GetResolverMargin returns the reveal-and-relay latency allowance in seconds.
func GetResolverMargin() time.Duration {
	return time.Duration(GetInt(ResolverMarginKey)) * time.Second
}

// GetRetryInterval returns the base delay between retries of ledger calls.
func GetRetryInterval() time.Duration {
	return time.Duration(GetInt(RetryIntervalKey)) * time.Second
}

// GetExchangeRates parses the EXCHANGE_RATES entries, each in the form
// from/to=rate, eg. evm/icp=0.05.
func GetExchangeRates() (map[string]decimal.Decimal, error) {
	rates := map[string]decimal.Decimal{}
	for _, entry := range GetStringSlice(ExchangeRatesKey) {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid exchange rate entry: %s", entry)
		}
		rate, err := decimal.NewFromString(parts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid exchange rate %s: %s", entry, err)
		}
		if !rate.IsPositive() {
			return nil, fmt.Errorf("exchange rate must be positive: %s", entry)
		}
		rates[strings.ToLower(parts[0])] = rate
	}
	return rates, nil
}

// GetResolverAccounts returns the resolver payout account per ledger kind.
func GetResolverAccounts() map[commitment.LedgerKind]string {
	accounts := map[commitment.LedgerKind]string{}
	if addr := GetString(EvmAccountKey); addr != "" {
		accounts[commitment.LedgerEvm] = addr
	}
	if addr := GetString(IcpAccountKey); addr != "" {
		accounts[commitment.LedgerIcp] = addr
	}
	return accounts
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("missing datadir")
	}

	dbType := GetString(DBTypeKey)
	if dbType != DBBadger && dbType != DBInMemory {
		return fmt.Errorf(
			"%s must be either %s or %s", DBTypeKey, DBBadger, DBInMemory,
		)
	}

	if _, err := GetEscrowLedger(); err != nil {
		return fmt.Errorf("%s: %s", EscrowLedgerKey, err)
	}

	if !vip.IsSet(EscrowAccountKey) {
		return fmt.Errorf("missing escrow account")
	}

	mode := GetString(LedgerModeKey)
	if mode != LedgerModeSimulated && mode != LedgerModeRPC {
		return fmt.Errorf(
			"%s must be either %s or %s",
			LedgerModeKey, LedgerModeSimulated, LedgerModeRPC,
		)
	}

	if GetInt(MaxAttemptsKey) < 1 {
		return fmt.Errorf("%s must be at least 1", MaxAttemptsKey)
	}

	if _, err := GetExchangeRates(); err != nil {
		return err
	}

	return nil
}

func initDatadir() error {
	datadir := GetDatadir()
	if GetString(DBTypeKey) == DBBadger {
		return makeDirectoryIfNotExists(filepath.Join(datadir, DbLocation))
	}
	return makeDirectoryIfNotExists(datadir)
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
