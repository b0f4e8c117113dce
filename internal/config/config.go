package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/spf13/viper"
)

const (
	// ListeningPortKey is the port where the HTTP interface will listen on
	ListeningPortKey = "LISTENING_PORT"
	// DatadirKey is the local data directory to store the internal state of daemon
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// DBTypeKey is used to switch database type between those supported
	DBTypeKey = "DB_TYPE"
	// LedgerAPIURLKey is the base URL of the registration and ledger service
	LedgerAPIURLKey = "LEDGER_API_URL"
	// LedgerRequestTimeoutKey is the timeout of every request to the ledger
	// service
	LedgerRequestTimeoutKey = "LEDGER_REQUEST_TIMEOUT"
	// LedgerRateLimitKey is the max number of requests per second sent to the
	// ledger service
	LedgerRateLimitKey = "LEDGER_RATE_LIMIT"
	// PushFeedURLKey is the websocket endpoint of the push notifications of
	// confirmed payments
	PushFeedURLKey = "PUSH_FEED_URL"
	// PushFeedSecretKey is the optional secret used to authenticate to the
	// push feed
	PushFeedSecretKey = "PUSH_FEED_SECRET"
	// PushFeedReconnectIntervalKey is the initial delay between reconnection
	// attempts to the push feed
	PushFeedReconnectIntervalKey = "PUSH_FEED_RECONNECT_INTERVAL"
	// RefreshIntervalKey is the interval between two pull queries for the same
	// watched address
	RefreshIntervalKey = "REFRESH_INTERVAL"
	// RefreshLimitKey is the max number of pull queries per second shared by
	// all watched addresses
	RefreshLimitKey = "REFRESH_LIMIT"
	// RefreshBurstKey is the max burst of pull queries
	RefreshBurstKey = "REFRESH_BURST"
	// EnableProfilerKey enables profiler that can be used to investigate performance issues
	EnableProfilerKey = "ENABLE_PROFILER"
	// StatsIntervalKey defines interval in seconds for printing basic statistics
	StatsIntervalKey = "STATS_INTERVAL"
	// CORSAllowedOriginsKey is the list of origins allowed to call the HTTP
	// interface
	CORSAllowedOriginsKey = "CORS_ALLOWED_ORIGINS"

	DbLocation       = "db"
	ProfilerLocation = "stats"

	DBBadger   = "badger"
	DBInMemory = "inmemory"
)

var vip *viper.Viper
var defaultDatadir = btcutil.AppDataDir("tdex-notary", false)

func InitConfig() error {
	vip = viper.New()
	vip.SetEnvPrefix("NOTARY")
	vip.AutomaticEnv()

	vip.SetDefault(ListeningPortKey, 9090)
	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(DBTypeKey, DBBadger)
	vip.SetDefault(LedgerAPIURLKey, "http://localhost:5000/api")
	vip.SetDefault(LedgerRequestTimeoutKey, "15s")
	vip.SetDefault(LedgerRateLimitKey, 10)
	vip.SetDefault(PushFeedURLKey, "ws://localhost:5000/ws")
	vip.SetDefault(PushFeedReconnectIntervalKey, "2s")
	vip.SetDefault(RefreshIntervalKey, "30s")
	vip.SetDefault(RefreshLimitKey, 5)
	vip.SetDefault(RefreshBurstKey, 1)
	vip.SetDefault(EnableProfilerKey, false)
	vip.SetDefault(StatsIntervalKey, 600)
	vip.SetDefault(CORSAllowedOriginsKey, []string{"*"})

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

// Set overrides the value of the given key, mostly useful for testing.
func Set(key string, value interface{}) {
	vip.Set(key, value)
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

	if err := validateURL(
		LedgerAPIURLKey, GetString(LedgerAPIURLKey), "http", "https",
	); err != nil {
		return err
	}
	if err := validateURL(
		PushFeedURLKey, GetString(PushFeedURLKey), "ws", "wss",
	); err != nil {
		return err
	}

	for _, key := range []string{
		LedgerRequestTimeoutKey, PushFeedReconnectIntervalKey, RefreshIntervalKey,
	} {
		if GetDuration(key) <= 0 {
			return fmt.Errorf("%s must be a positive duration", key)
		}
	}
	for _, key := range []string{
		LedgerRateLimitKey, RefreshLimitKey, RefreshBurstKey, StatsIntervalKey,
	} {
		if GetInt(key) <= 0 {
			return fmt.Errorf("%s must be a positive number", key)
		}
	}

	return nil
}

func validateURL(key, value string, schemes ...string) error {
	u, err := url.Parse(value)
	if err != nil || len(u.Host) <= 0 {
		return fmt.Errorf("%s must be a valid URL", key)
	}
	for _, scheme := range schemes {
		if u.Scheme == scheme {
			return nil
		}
	}
	return fmt.Errorf("%s must have scheme %v", key, schemes)
}

func initDatadir() error {
	datadir := GetDatadir()
	if GetString(DBTypeKey) == DBBadger {
		if err := makeDirectoryIfNotExists(filepath.Join(datadir, DbLocation)); err != nil {
			return err
		}
	}

	profilerEnabled := GetBool(EnableProfilerKey)
	if profilerEnabled {
		if err := makeDirectoryIfNotExists(filepath.Join(datadir, ProfilerLocation)); err != nil {
			return err
		}
	}
	return nil
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
