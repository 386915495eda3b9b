package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/suraksha-labs/suraksha/backend/internal/auth"
	"github.com/suraksha-labs/suraksha/backend/internal/config"
	"github.com/suraksha-labs/suraksha/backend/internal/database"
	"github.com/suraksha-labs/suraksha/backend/internal/logging"
	"github.com/suraksha-labs/suraksha/backend/internal/ratelimit"
	"github.com/suraksha-labs/suraksha/backend/internal/server"
	"github.com/suraksha-labs/suraksha/backend/internal/stories"
	"github.com/suraksha-labs/suraksha/backend/internal/users"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "suraksha-api",
		Short: "Suraksha community stories backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("auth.token_ttl_minutes"), "Access token TTL in minutes")
	cmd.PersistentFlags().String("client-url", defaults.GetString("cors.client_url"), "Allowed frontend origin in production")
	cmd.PersistentFlags().String("environment", defaults.GetString("environment"), "Deployment environment (development, production)")
	cmd.PersistentFlags().String("redis-addr", defaults.GetString("ratelimit.redis_addr"), "Redis address for a shared rate-limit store")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Token signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "auth.token_ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "cors.client_url", "client-url")
	bindFlag(cmd, "environment", "environment")
	bindFlag(cmd, "ratelimit.redis_addr", "redis-addr")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	limiterStore, err := newLimiterStore(ctx, appConfig, logger)
	if err != nil {
		return err
	}
	limiter, err := ratelimit.NewLimiter(ratelimit.Config{Store: limiterStore})
	if err != nil {
		return err
	}

	tokenIssuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        "suraksha-auth",
		Audience:      "suraksha-api",
		TokenTTL:      appConfig.TokenTTL,
	})

	usersService, err := users.NewService(users.ServiceConfig{
		Database:   db,
		Hasher:     auth.NewPasswordHasher(),
		IDProvider: users.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	storyService, err := stories.NewService(stories.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: users.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Tokens:       tokenIssuer,
		UsersService: usersService,
		StoryService: storyService,
		Limiter:      limiter,
		ClientURL:    appConfig.ClientURL,
		Production:   appConfig.IsProduction(),
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// newLimiterStore selects the rate-limit backing store. Without a Redis
// address the window lives in process memory and is enforced per instance.
func newLimiterStore(ctx context.Context, appConfig config.AppConfig, logger *zap.Logger) (ratelimit.Store, error) {
	if appConfig.RedisAddr == "" {
		logger.Info("rate limiter using in-process store")
		return ratelimit.NewMemoryStore(), nil
	}

	client := redis.NewClient(&redis.Options{Addr: appConfig.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, err
	}
	logger.Info("rate limiter using redis store", zap.String("addr", appConfig.RedisAddr))
	return ratelimit.NewRedisStore(client), nil
}
