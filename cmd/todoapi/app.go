package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nkiryanov/todoapi/internal/cache"
	"github.com/nkiryanov/todoapi/internal/db"
	"github.com/nkiryanov/todoapi/internal/handlers"
	"github.com/nkiryanov/todoapi/internal/logger"
	"github.com/nkiryanov/todoapi/internal/repository/postgres"
	"github.com/nkiryanov/todoapi/internal/service/auth"
	"github.com/nkiryanov/todoapi/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/todoapi/internal/service/task"
	"github.com/nkiryanov/todoapi/internal/service/tokensweeper"
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	sweeper *tokensweeper.Sweeper
	logger  logger.Logger
	pool    *pgxpool.Pool
	redis   *redis.Client
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	var logOpts []logger.Option
	if c.LogFile != "" {
		logOpts = append(logOpts, logger.WithFile(c.LogFile))
	}
	l, err := logger.New(c.Environment, c.LogLevel, logOpts...)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	redisClient, err := cache.Connect(ctx, c.RedisURL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("error while connecting to redis. Err: %w", err)
	}
	redisCache := cache.NewRedis(redisClient)

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		SecretKey:  c.SecretKey,
		AccessTTL:  c.AccessTTL,
		RefreshTTL: c.RefreshTTL,
	})
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}
	authService, err := auth.NewService(auth.Config{SecureCookies: c.Environment == logger.EnvProd}, tokenManager, storage)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}
	taskService := task.NewService(storage, redisCache, c.CacheTTL, l)

	sweeper := tokensweeper.New(tokensweeper.Config{
		Interval:  c.SweepInterval,
		Retention: c.TokenRetention,
	}, storage.Refresh(), l)

	mux := handlers.NewRouter(handlers.RouterDeps{
		Auth:   authService,
		Tasks:  taskService,
		DB:     pool,
		Cache:  redisCache,
		Logger: l,
	})

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		sweeper:    sweeper,
		logger:     l,
		pool:       pool,
		redis:      redisClient,
	}, nil
}

// Run starts http server and token sweeper, closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.close()

	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	sweeperStopped := s.sweeper.Run(srvCtx)

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-sweeperStopped

	return err
}

func (s *ServerApp) close() {
	if err := s.redis.Close(); err != nil {
		s.logger.Warn("Error while closing redis client", "error", err)
	}
	s.pool.Close()
}
