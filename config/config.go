package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/aiandyou50/CandleSpinner-sub000/logging"
	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Environment string         `mapstructure:"environment"`
	Server      ServerConfig   `mapstructure:"server"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Kafka       KafkaConfig    `mapstructure:"kafka"`
	JWT         JWTConfig      `mapstructure:"jwt"`
	Logging     logging.Config `mapstructure:"logging"`
	Ton         TonConfig      `mapstructure:"ton"`
	Game        GameConfig     `mapstructure:"game"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	EnableCORS     bool          `mapstructure:"enable_cors"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr         string `mapstructure:"addr"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Brokers []string          `mapstructure:"brokers"`
	Topics  map[string]string `mapstructure:"topics"`
}

// JWTConfig holds JWT configuration for operator endpoints
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// TonConfig holds ledger network access configuration
type TonConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	APIKey          string        `mapstructure:"api_key"`
	CustodyAddress  string        `mapstructure:"custody_address"`
	CustodyKeyHex   string        `mapstructure:"custody_key_hex"`
	ContractAddress string        `mapstructure:"contract_address"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	RetryBaseDelay  time.Duration `mapstructure:"retry_base_delay"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	PollDeadline    time.Duration `mapstructure:"poll_deadline"`
}

// GameConfig holds wager and settlement bounds
type GameConfig struct {
	MinWager          decimal.Decimal `mapstructure:"min_wager"`
	MaxWager          decimal.Decimal `mapstructure:"max_wager"`
	MinDeposit        decimal.Decimal `mapstructure:"min_deposit"`
	MaxDeposit        decimal.Decimal `mapstructure:"max_deposit"`
	MinWithdrawal     decimal.Decimal `mapstructure:"min_withdrawal"`
	MaxWithdrawal     decimal.Decimal `mapstructure:"max_withdrawal"`
	OutcomeRetention  time.Duration   `mapstructure:"outcome_retention"`
	JackpotMultiplier int64           `mapstructure:"jackpot_multiplier"`
}

// Load loads configuration from YAML file using Viper
func Load(filename string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(filename)
	v.SetConfigType("yaml")

	// Enable environment variable substitution
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	var config Config
	if err := v.Unmarshal(&config, viper.DecodeHook(decimalDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.setDefaults()

	return &config, nil
}

// LoadByEnv loads configuration based on environment using Viper
func LoadByEnv(configDir string) (*Config, error) {
	v := viper.New()

	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	env := viper.GetString("ENV")
	if env == "" {
		env = viper.GetString("APP_ENV")
	}
	if env == "" {
		env = "development"
	}

	v.SetConfigName(fmt.Sprintf("config-%s", env))
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config, viper.DecodeHook(decimalDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.setDefaults()

	return &config, nil
}

// setDefaults sets default values for missing configuration
func (c *Config) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 15 * time.Second
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 10
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 5
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Ton.RequestTimeout == 0 {
		c.Ton.RequestTimeout = 10 * time.Second
	}
	if c.Ton.MaxAttempts == 0 {
		c.Ton.MaxAttempts = 3
	}
	if c.Ton.RetryBaseDelay == 0 {
		c.Ton.RetryBaseDelay = 200 * time.Millisecond
	}
	if c.Ton.PollInterval == 0 {
		c.Ton.PollInterval = 2 * time.Second
	}
	if c.Ton.PollDeadline == 0 {
		c.Ton.PollDeadline = 30 * time.Second
	}
	if c.Game.MinWager.IsZero() {
		c.Game.MinWager = decimal.NewFromInt(1)
	}
	if c.Game.MaxWager.IsZero() {
		c.Game.MaxWager = decimal.NewFromInt(1000)
	}
	if c.Game.MinDeposit.IsZero() {
		c.Game.MinDeposit = decimal.NewFromInt(1)
	}
	if c.Game.MaxDeposit.IsZero() {
		c.Game.MaxDeposit = decimal.NewFromInt(100000)
	}
	if c.Game.MinWithdrawal.IsZero() {
		c.Game.MinWithdrawal = decimal.NewFromInt(1)
	}
	if c.Game.MaxWithdrawal.IsZero() {
		c.Game.MaxWithdrawal = decimal.NewFromInt(100000)
	}
	if c.Game.OutcomeRetention == 0 {
		c.Game.OutcomeRetention = 72 * time.Hour
	}
	if c.Game.JackpotMultiplier == 0 {
		c.Game.JackpotMultiplier = 100
	}
}

// decimalDecodeHook decodes YAML numbers and strings into decimal.Decimal
func decimalDecodeHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(decimal.Decimal{}) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return decimal.NewFromString(v)
		case int:
			return decimal.NewFromInt(int64(v)), nil
		case int64:
			return decimal.NewFromInt(v), nil
		case float64:
			return decimal.NewFromFloat(v), nil
		default:
			return data, nil
		}
	}
}

// GetAddr returns Redis address
func (c *RedisConfig) GetAddr() string {
	return c.Addr
}

// IsDevelopment returns true if environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// IsProduction returns true if environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}
