package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aiandyou50/CandleSpinner-sub000/config"
	"github.com/aiandyou50/CandleSpinner-sub000/server"
	"github.com/aiandyou50/CandleSpinner-sub000/wire"
	"github.com/spf13/cobra"
)

var configFile = "config/config.yaml"

// @title           CandleSpinner Game API
// @version         1.0
// @description     Provably-fair slot game backend with on-chain settlement

// @BasePath  /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	rootCmd := &cobra.Command{
		Use:   "candlespinner",
		Short: "CandleSpinner slot game backend",
		Long: `CandleSpinner backend service.

Runs the HTTP API for spins, collects, fairness audits and on-chain
deposits/withdrawals, plus operator maintenance commands.`,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", configFile, "Path to config file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(seqnoCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger := wire.ProvideLogger(cfg)

			redisClient, err := wire.ProvideRedisClient(cfg)
			if err != nil {
				logger.Fatal().Err(err).Msg("Failed to connect to Redis")
			}
			producer, err := wire.ProvideKafkaProducer(cfg, logger)
			if err != nil {
				logger.Fatal().Err(err).Msg("Failed to create Kafka producer")
			}
			feed := wire.ProvideWinFeed()

			paytable := wire.ProvidePaytable()
			fairness := wire.ProvideFairnessEngine(paytable)
			payout := wire.ProvidePayoutEngine(cfg, paytable)
			ledger := wire.ProvideCreditLedger(redisClient, logger)
			seeds := wire.ProvideSeedStore(redisClient, logger)
			records := wire.ProvideRecordStore(cfg, redisClient, logger)
			stats := wire.ProvideStatsRecorder(redisClient, logger)

			tonClient := wire.ProvideTonClient(cfg, logger)
			wallet := wire.ProvideWallet(cfg, logger)
			sequences := wire.ProvideSequenceReconciler(cfg, redisClient, tonClient, logger)
			settlements := wire.ProvideOrchestrator(cfg, redisClient, ledger, sequences, tonClient, wallet, producer, logger)

			spins := wire.ProvideSpinService(cfg, fairness, payout, ledger, seeds, records, stats, producer, feed, logger)

			app := wire.ProvideApp(wire.ProvideServerOptions(cfg, logger, spins, settlements, sequences, stats, payout, feed))
			app.UseCommonMiddlewares()
			app.RegisterHealthCheck()
			app.RegisterAPIRoutes()
			app.RegisterSwagger(server.SwaggerInfo{Title: "CandleSpinner API", Version: "1.0"}, nil)

			app.OnShutdown(func() {
				if producer != nil {
					producer.Close() //nolint:errcheck
				}
				redisClient.Close() //nolint:errcheck
			})

			logger.Info().Int("port", cfg.Server.Port).Msg("Starting CandleSpinner service")
			return app.Run()
		},
	}
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Resolve settlements that timed out unconfirmed",
		Long: `Re-polls the ledger for every settlement recorded with an unconfirmed
transaction and upgrades or reverses it based on the final status. Intended
to run periodically from an external scheduler.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger := wire.ProvideLogger(cfg)

			redisClient, err := wire.ProvideRedisClient(cfg)
			if err != nil {
				logger.Fatal().Err(err).Msg("Failed to connect to Redis")
			}
			defer redisClient.Close() //nolint:errcheck

			producer, err := wire.ProvideKafkaProducer(cfg, logger)
			if err != nil {
				logger.Fatal().Err(err).Msg("Failed to create Kafka producer")
			}
			if producer != nil {
				defer producer.Close()
			}

			ledger := wire.ProvideCreditLedger(redisClient, logger)
			tonClient := wire.ProvideTonClient(cfg, logger)
			wallet := wire.ProvideWallet(cfg, logger)
			sequences := wire.ProvideSequenceReconciler(cfg, redisClient, tonClient, logger)
			settlements := wire.ProvideOrchestrator(cfg, redisClient, ledger, sequences, tonClient, wallet, producer, logger)

			resolved, err := settlements.Reconcile(context.Background())
			if err != nil {
				return err
			}
			logger.Info().Int("resolved", resolved).Msg("Reconcile pass complete")
			return nil
		},
	}
}

func seqnoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seqno",
		Short: "Inspect and repair the custody sequence counter",
	}

	showCmd := &cobra.Command{
		Use:   "show [account]",
		Short: "Show the network sequence for an account",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger := wire.ProvideLogger(cfg)

			account := cfg.Ton.CustodyAddress
			if len(args) > 0 {
				account = args[0]
			}

			tonClient := wire.ProvideTonClient(cfg, logger)
			seqno, err := tonClient.GetSequence(context.Background(), account)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d\n", account, seqno)
			return nil
		},
	}

	resetCmd := &cobra.Command{
		Use:   "reset [account]",
		Short: "Resynchronize the durable sequence with the network",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger := wire.ProvideLogger(cfg)

			redisClient, err := wire.ProvideRedisClient(cfg)
			if err != nil {
				logger.Fatal().Err(err).Msg("Failed to connect to Redis")
			}
			defer redisClient.Close() //nolint:errcheck

			account := cfg.Ton.CustodyAddress
			if len(args) > 0 {
				account = args[0]
			}

			tonClient := wire.ProvideTonClient(cfg, logger)
			sequences := wire.ProvideSequenceReconciler(cfg, redisClient, tonClient, logger)
			seqno, err := sequences.Reset(context.Background(), account)
			if err != nil {
				return err
			}
			fmt.Printf("%s: sequence reset to %d\n", account, seqno)
			return nil
		},
	}

	cmd.AddCommand(showCmd)
	cmd.AddCommand(resetCmd)
	return cmd
}
