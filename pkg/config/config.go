package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	PostgresDSN   string
	RedisAddr     string
	RedisPassword string

	Timezone   string
	Subsystems []string

	HTTPListenAddr string

	AlertEndpoint    string
	NotifierEndpoint string
	ExplorerAPI      string
	ProviderAPI      string
	ProviderToken    string

	SignerCommand   string
	SignerAsset     string
	SignerSerialize bool

	WithdrawMinAmount decimal.Decimal
	WithdrawMaxAmount decimal.Decimal
	FeePercent        decimal.Decimal
	NetworkFeeMin     decimal.Decimal
	NetworkFeeMax     decimal.Decimal
	TolerancePercent  decimal.Decimal
	WithdrawExpiry    time.Duration
	Currency          string

	BaselineDailyLimit decimal.Decimal

	RetryCycles          int
	RetryAttempts        int
	RetryAttemptInterval time.Duration
	RetryCycleInterval   time.Duration

	VerificationGrace          time.Duration
	VerificationMaxAge         time.Duration
	VerificationNotFoundExpiry time.Duration
}

var (
	cfg   *Config
	mutex sync.Mutex
)

func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	c := &Config{
		PostgresDSN:    getString("ENV_PG_DSN", "postgres://localhost:5432/bridge?sslmode=disable"),
		RedisAddr:      getString("ENV_REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getString("ENV_REDIS_PASSWORD", ""),
		Timezone:       getString("ENV_TIMEZONE", "America/Sao_Paulo"),
		Subsystems:     strings.Split(getString("ENV_SUBSYSTEMS", "withdraw,verification"), ","),
		HTTPListenAddr: getString("ENV_HTTP_LISTEN", ":8080"),

		AlertEndpoint:    getString("ENV_ALERT_ENDPOINT", ""),
		NotifierEndpoint: getString("ENV_NOTIFIER_ENDPOINT", ""),
		ExplorerAPI:      getString("ENV_EXPLORER_API", "https://blockstream.info/liquid/api"),
		ProviderAPI:      getString("ENV_PROVIDER_API", ""),
		ProviderToken:    getString("ENV_PROVIDER_TOKEN", ""),

		SignerCommand:   getString("ENV_SIGNER_COMMAND", "bridge-signer"),
		SignerAsset:     getString("ENV_SIGNER_ASSET", "DEPIX"),
		SignerSerialize: getBool("ENV_SIGNER_SERIALIZE", false),

		Currency:       getString("ENV_CURRENCY", "BRL"),
		WithdrawExpiry: getDuration("ENV_WITHDRAW_EXPIRY", 30*time.Minute),

		RetryCycles:          getInt("ENV_RETRY_CYCLES", 5),
		RetryAttempts:        getInt("ENV_RETRY_ATTEMPTS", 3),
		RetryAttemptInterval: getDuration("ENV_RETRY_ATTEMPT_INTERVAL", 30*time.Second),
		RetryCycleInterval:   getDuration("ENV_RETRY_CYCLE_INTERVAL", 5*time.Minute),

		VerificationGrace:          getDuration("ENV_VERIFICATION_GRACE", 90*time.Second),
		VerificationMaxAge:         getDuration("ENV_VERIFICATION_MAX_AGE", 48*time.Hour),
		VerificationNotFoundExpiry: getDuration("ENV_VERIFICATION_NOT_FOUND_EXPIRY", 30*time.Minute),
	}

	var err error
	if c.WithdrawMinAmount, err = getDecimal("ENV_WITHDRAW_MIN_AMOUNT", "20"); err != nil {
		return nil, err
	}
	if c.WithdrawMaxAmount, err = getDecimal("ENV_WITHDRAW_MAX_AMOUNT", "5000"); err != nil {
		return nil, err
	}
	if c.FeePercent, err = getDecimal("ENV_FEE_PERCENT", "2.5"); err != nil {
		return nil, err
	}
	if c.NetworkFeeMin, err = getDecimal("ENV_NETWORK_FEE_MIN", "0.30"); err != nil {
		return nil, err
	}
	if c.NetworkFeeMax, err = getDecimal("ENV_NETWORK_FEE_MAX", "0.90"); err != nil {
		return nil, err
	}
	if c.TolerancePercent, err = getDecimal("ENV_TOLERANCE_PERCENT", "0.1"); err != nil {
		return nil, err
	}
	if c.BaselineDailyLimit, err = getDecimal("ENV_BASELINE_DAILY_LIMIT", "5000"); err != nil {
		return nil, err
	}

	if c.NetworkFeeMax.Cmp(c.NetworkFeeMin) < 0 {
		return nil, fmt.Errorf("invalid network fee bounds")
	}

	for i, subsystem := range c.Subsystems {
		c.Subsystems[i] = strings.TrimSpace(subsystem)
	}

	mutex.Lock()
	cfg = c
	mutex.Unlock()

	return c, nil
}

func GetConfig() *Config {
	mutex.Lock()
	defer mutex.Unlock()
	return cfg
}

func getString(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return i
}

func getBool(key string, def bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}
	return b
}

func getDuration(key string, def time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return def
	}
	return d
}

func getDecimal(key, def string) (decimal.Decimal, error) {
	val := os.Getenv(key)
	if val == "" {
		val = def
	}
	d, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %v: %w", key, err)
	}
	return d, nil
}
