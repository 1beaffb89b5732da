package wire

import (
	"github.com/aiandyou50/CandleSpinner-sub000/config"
	"github.com/aiandyou50/CandleSpinner-sub000/db/redis"
	"github.com/aiandyou50/CandleSpinner-sub000/events/kafka"
	"github.com/aiandyou50/CandleSpinner-sub000/game"
	"github.com/aiandyou50/CandleSpinner-sub000/logging"
	"github.com/aiandyou50/CandleSpinner-sub000/pkg/winfeed"
	"github.com/aiandyou50/CandleSpinner-sub000/server"
	"github.com/aiandyou50/CandleSpinner-sub000/ton"
	"github.com/google/wire"
	"github.com/rs/zerolog"
)

// ProvideLogger provides a zerolog.Logger
func ProvideLogger(cfg *config.Config) zerolog.Logger {
	return logging.New(cfg.Logging)
}

// ProvideRedisClient provides a Redis client
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	return redis.New(cfg.Redis)
}

// ProvideKafkaProducer provides the event producer. Returns nil when no
// brokers are configured, which disables eventing.
func ProvideKafkaProducer(cfg *config.Config, logger zerolog.Logger) (*kafka.Producer, error) {
	return kafka.NewProducer(cfg.Kafka.Brokers, logger)
}

// ProvideWinFeed provides the live win broadcaster
func ProvideWinFeed() *winfeed.Broadcaster {
	return winfeed.NewBroadcaster(256)
}

// ProvidePaytable provides the reel symbol table
func ProvidePaytable() []game.SymbolConfig {
	return game.DefaultPaytable()
}

// ProvideFairnessEngine provides the outcome derivation engine
func ProvideFairnessEngine(paytable []game.SymbolConfig) *game.FairnessEngine {
	return game.NewFairnessEngine(paytable)
}

// ProvidePayoutEngine provides the payout engine
func ProvidePayoutEngine(cfg *config.Config, paytable []game.SymbolConfig) *game.PayoutEngine {
	return game.NewPayoutEngine(paytable, cfg.Game.JackpotMultiplier)
}

// ProvideCreditLedger provides the player credit ledger
func ProvideCreditLedger(store *redis.Client, logger zerolog.Logger) *game.CreditLedger {
	return game.NewCreditLedger(store, logger)
}

// ProvideSeedStore provides per-player seed state
func ProvideSeedStore(store *redis.Client, logger zerolog.Logger) *game.SeedStore {
	return game.NewSeedStore(store, logger)
}

// ProvideRecordStore provides outcome record storage
func ProvideRecordStore(cfg *config.Config, store *redis.Client, logger zerolog.Logger) *game.RecordStore {
	return game.NewRecordStore(store, cfg.Game.OutcomeRetention, logger)
}

// ProvideStatsRecorder provides the daily RTP aggregator
func ProvideStatsRecorder(store *redis.Client, logger zerolog.Logger) *game.StatsRecorder {
	return game.NewStatsRecorder(store, logger)
}

// ProvideTonClient provides the ledger RPC client
func ProvideTonClient(cfg *config.Config, logger zerolog.Logger) *ton.Client {
	return ton.NewClient(ton.ClientConfig{
		Endpoint:       cfg.Ton.Endpoint,
		APIKey:         cfg.Ton.APIKey,
		RequestTimeout: cfg.Ton.RequestTimeout,
		MaxAttempts:    cfg.Ton.MaxAttempts,
		RetryBaseDelay: cfg.Ton.RetryBaseDelay,
		Logger:         logger,
	})
}

// ProvideWallet provides the custody wallet
func ProvideWallet(cfg *config.Config, logger zerolog.Logger) *ton.Wallet {
	return ton.NewWallet(ton.WalletConfig{
		Address: cfg.Ton.CustodyAddress,
		KeyHex:  cfg.Ton.CustodyKeyHex,
		Logger:  logger,
	})
}

// ProvideSequenceReconciler provides the durable sequence ratchet
func ProvideSequenceReconciler(cfg *config.Config, store *redis.Client, client *ton.Client, logger zerolog.Logger) *ton.SequenceReconciler {
	return ton.NewSequenceReconciler(store, client, cfg.Ton.MaxAttempts, cfg.Ton.RetryBaseDelay, logger)
}

// ProvideOrchestrator provides the settlement orchestrator
func ProvideOrchestrator(
	cfg *config.Config,
	store *redis.Client,
	ledger *game.CreditLedger,
	sequences *ton.SequenceReconciler,
	client *ton.Client,
	wallet *ton.Wallet,
	producer *kafka.Producer,
	logger zerolog.Logger,
) *ton.Orchestrator {
	return ton.NewOrchestrator(ton.OrchestratorConfig{
		Ledger:    ledger,
		Sequences: sequences,
		RPC:       client,
		Wallet:    wallet,
		Store:     store,
		Limits: ton.Limits{
			MinDeposit:    cfg.Game.MinDeposit,
			MaxDeposit:    cfg.Game.MaxDeposit,
			MinWithdrawal: cfg.Game.MinWithdrawal,
			MaxWithdrawal: cfg.Game.MaxWithdrawal,
		},
		ContractAddress: cfg.Ton.ContractAddress,
		PollInterval:    cfg.Ton.PollInterval,
		PollDeadline:    cfg.Ton.PollDeadline,
		Producer:        producer,
		Logger:          logger,
	})
}

// ProvideSpinService provides the spin flow service
func ProvideSpinService(
	cfg *config.Config,
	fairness *game.FairnessEngine,
	payout *game.PayoutEngine,
	ledger *game.CreditLedger,
	seeds *game.SeedStore,
	records *game.RecordStore,
	stats *game.StatsRecorder,
	producer *kafka.Producer,
	feed *winfeed.Broadcaster,
	logger zerolog.Logger,
) *server.SpinService {
	return server.NewSpinService(server.SpinServiceConfig{
		Fairness: fairness,
		Payout:   payout,
		Ledger:   ledger,
		Seeds:    seeds,
		Records:  records,
		Stats:    stats,
		MinWager: cfg.Game.MinWager,
		MaxWager: cfg.Game.MaxWager,
		Producer: producer,
		Feed:     feed,
		Logger:   logger,
	})
}

// ProvideServerOptions provides server options
func ProvideServerOptions(
	cfg *config.Config,
	logger zerolog.Logger,
	spins *server.SpinService,
	settlements *ton.Orchestrator,
	sequences *ton.SequenceReconciler,
	stats *game.StatsRecorder,
	payout *game.PayoutEngine,
	feed *winfeed.Broadcaster,
) server.Options {
	return server.Options{
		Config:      cfg,
		Logger:      logger,
		Spins:       spins,
		Settlements: settlements,
		Sequences:   sequences,
		Stats:       stats,
		Payout:      payout,
		Feed:        feed,
	}
}

// ProvideApp provides the main application
func ProvideApp(opts server.Options) *server.App {
	return server.New(opts)
}

// ConfigSet is the wire provider set for configuration
var ConfigSet = wire.NewSet(
	config.Load,
)

// LoggingSet is the wire provider set for logging
var LoggingSet = wire.NewSet(
	ProvideLogger,
)

// RedisSet is the wire provider set for Redis
var RedisSet = wire.NewSet(
	ProvideRedisClient,
)

// GameSet is the wire provider set for the game engine
var GameSet = wire.NewSet(
	ProvidePaytable,
	ProvideFairnessEngine,
	ProvidePayoutEngine,
	ProvideCreditLedger,
	ProvideSeedStore,
	ProvideRecordStore,
	ProvideStatsRecorder,
)

// TonSet is the wire provider set for the ledger pipeline
var TonSet = wire.NewSet(
	ProvideTonClient,
	ProvideWallet,
	ProvideSequenceReconciler,
	ProvideOrchestrator,
)

// EventsSet is the wire provider set for eventing
var EventsSet = wire.NewSet(
	ProvideKafkaProducer,
	ProvideWinFeed,
)

// ServerSet is the wire provider set for the HTTP server
var ServerSet = wire.NewSet(
	ProvideSpinService,
	ProvideServerOptions,
	ProvideApp,
)

// DefaultSet is the default wire provider set including all common providers
var DefaultSet = wire.NewSet(
	LoggingSet,
	EventsSet,
	GameSet,
	TonSet,
	ServerSet,
)

// FullSet includes all providers including Redis
var FullSet = wire.NewSet(
	DefaultSet,
	RedisSet,
)
