package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aiandyou50/CandleSpinner-sub000/auth"
	"github.com/aiandyou50/CandleSpinner-sub000/config"
	"github.com/aiandyou50/CandleSpinner-sub000/game"
	"github.com/aiandyou50/CandleSpinner-sub000/middleware"
	"github.com/aiandyou50/CandleSpinner-sub000/pkg/winfeed"
	"github.com/aiandyou50/CandleSpinner-sub000/ton"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// App represents the game backend application
type App struct {
	engine     *gin.Engine
	config     *config.Config
	logger     zerolog.Logger
	httpServer *http.Server
	onShutdown []func()

	spinHandler       *SpinHandler
	settlementHandler *SettlementHandler
	adminHandler      *AdminHandler
	feedHandler       *FeedHandler
}

// Options holds server construction options
type Options struct {
	Config      *config.Config
	Logger      zerolog.Logger
	Spins       *SpinService
	Settlements *ton.Orchestrator
	Sequences   *ton.SequenceReconciler
	Stats       *game.StatsRecorder
	Payout      *game.PayoutEngine
	Feed        *winfeed.Broadcaster
}

// New creates the application and its handlers
func New(opts Options) *App {
	// Configure decimal.Decimal to marshal as JSON number instead of string
	// WARNING: This may cause precision loss for decimals with many digits when
	// unmarshaled by clients using IEEE 754 double-precision (e.g., JavaScript)
	decimal.MarshalJSONWithoutQuotes = true

	if opts.Config.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	app := &App{
		engine: gin.New(),
		config: opts.Config,
		logger: opts.Logger,
	}

	app.spinHandler = NewSpinHandler(opts.Spins, opts.Logger)
	app.settlementHandler = NewSettlementHandler(opts.Settlements, opts.Logger)
	app.adminHandler = NewAdminHandler(opts.Sequences, opts.Stats, opts.Payout, opts.Config.Ton.CustodyAddress, opts.Logger)
	app.feedHandler = NewFeedHandler(opts.Feed, opts.Logger)

	return app
}

// UseCommonMiddlewares adds common middlewares to the application
func (a *App) UseCommonMiddlewares() {
	// Recovery middleware (must be first)
	a.engine.Use(middleware.Recovery(a.logger))
	a.engine.Use(middleware.TraceID())
	a.engine.Use(middleware.Logging(a.logger))

	if a.config.Server.EnableCORS {
		a.engine.Use(middleware.CORS())
	}
}

// UseMiddleware adds a custom middleware
func (a *App) UseMiddleware(m gin.HandlerFunc) {
	a.engine.Use(m)
}

// RegisterHealthCheck adds health check endpoints
func (a *App) RegisterHealthCheck() {
	a.engine.GET("/health", a.healthCheck)
	a.engine.GET("/api/health", a.healthCheck)
}

func (a *App) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
		"service":   a.config.Environment,
	})
}

// RegisterAPIRoutes registers the public game API and the operator-only
// admin surface.
//
// Routes registered:
//   - POST /api/spin                  -> SpinHandler.Spin
//   - POST /api/collect               -> SpinHandler.Collect
//   - GET  /api/balance/:player       -> SpinHandler.Balance
//   - GET  /api/outcome/:gameId       -> SpinHandler.Outcome
//   - POST /api/fairness/reveal       -> SpinHandler.Reveal
//   - POST /api/fairness/verify       -> SpinHandler.Verify
//   - POST /api/deposit               -> SettlementHandler.Deposit
//   - POST /api/withdraw              -> SettlementHandler.Withdraw
//   - GET  /api/feed/ws               -> FeedHandler.Stream (WebSocket)
//   - POST /api/admin/sequence/reset  -> AdminHandler.ResetSequence (JWT)
//   - GET  /api/admin/rtp             -> AdminHandler.DailyRTP (JWT)
func (a *App) RegisterAPIRoutes() {
	api := a.engine.Group("/api")
	if a.config.Server.RequestTimeout > 0 {
		api.Use(middleware.Timeout(a.config.Server.RequestTimeout))
	}
	{
		api.POST("/spin", a.spinHandler.Spin)
		api.POST("/collect", a.spinHandler.Collect)
		api.GET("/balance/:player", a.spinHandler.Balance)
		api.GET("/outcome/:gameId", a.spinHandler.Outcome)
		api.POST("/fairness/reveal", a.spinHandler.Reveal)
		api.POST("/fairness/verify", a.spinHandler.Verify)

		api.POST("/deposit", a.settlementHandler.Deposit)
		api.POST("/withdraw", a.settlementHandler.Withdraw)
	}

	// The win feed is a long-lived stream; it must outlive the per-request
	// deadline, so it stays outside the timeout group.
	a.engine.GET("/api/feed/ws", a.feedHandler.Stream)

	admin := a.engine.Group("/api/admin", auth.JWTMiddleware(a.config.JWT.Secret, a.logger))
	if a.config.Server.RequestTimeout > 0 {
		admin.Use(middleware.Timeout(a.config.Server.RequestTimeout))
	}
	{
		admin.POST("/sequence/reset", a.adminHandler.ResetSequence)
		admin.GET("/rtp", a.adminHandler.DailyRTP)
	}

	a.logger.Info().Msg("API routes registered")
}

// Router returns the Gin engine for custom route registration
func (a *App) Router() *gin.Engine {
	return a.engine
}

// Group creates a route group
func (a *App) Group(path string, handlers ...gin.HandlerFunc) *gin.RouterGroup {
	return a.engine.Group(path, handlers...)
}

// AuthGroup creates a route group with JWT authentication
func (a *App) AuthGroup(path string) *gin.RouterGroup {
	return a.engine.Group(path, auth.JWTMiddleware(a.config.JWT.Secret, a.logger))
}

// OnShutdown registers a function to be called on shutdown
func (a *App) OnShutdown(fn func()) {
	a.onShutdown = append(a.onShutdown, fn)
}

// Run starts the HTTP server and blocks until an interrupt signal
func (a *App) Run() error {
	addr := fmt.Sprintf(":%d", a.config.Server.Port)

	a.httpServer = &http.Server{
		Addr:         addr,
		Handler:      a.engine,
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
		IdleTimeout:  a.config.Server.IdleTimeout,
	}

	go func() {
		a.logger.Info().
			Int("port", a.config.Server.Port).
			Str("environment", a.config.Environment).
			Msg("Starting HTTP server")

		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	return a.waitForShutdown()
}

// RunWithContext starts the HTTP server and shuts down when ctx is done
func (a *App) RunWithContext(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", a.config.Server.Port)

	a.httpServer = &http.Server{
		Addr:         addr,
		Handler:      a.engine,
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
		IdleTimeout:  a.config.Server.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		a.logger.Info().
			Int("port", a.config.Server.Port).
			Str("environment", a.config.Environment).
			Msg("Starting HTTP server")

		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		return a.shutdown()
	case err := <-errChan:
		return err
	}
}

func (a *App) waitForShutdown() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	return a.shutdown()
}

func (a *App) shutdown() error {
	a.logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, fn := range a.onShutdown {
		fn()
	}

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error().Err(err).Msg("Error during server shutdown")
		return err
	}

	a.logger.Info().Msg("Server shutdown complete")
	return nil
}

// Config returns the application configuration
func (a *App) Config() *config.Config {
	return a.config
}

// Logger returns the application logger
func (a *App) Logger() zerolog.Logger {
	return a.logger
}
