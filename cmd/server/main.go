package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dagocoffee/counter/internal/app"
	"dagocoffee/counter/internal/backend"
	"dagocoffee/counter/internal/cache"
	"dagocoffee/counter/internal/checkout"
	"dagocoffee/counter/internal/config"
	"dagocoffee/counter/internal/finance"
	"dagocoffee/counter/internal/gate"
	"dagocoffee/counter/internal/httpapi"
	"dagocoffee/counter/internal/report"
	"dagocoffee/counter/internal/store"
	"dagocoffee/counter/internal/store/memory"
	pgstore "dagocoffee/counter/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var audit store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatalf("postgres schema: %v", err)
		}
		audit = pg
		closers = append(closers, pg.Close)
		logger.Info("audit journal: postgres")
	} else {
		audit = memory.New(0)
		logger.Info("audit journal: in-memory")
	}

	cacheStore := cache.Cache(cache.NoopCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warnf("redis unavailable (%v), using noop cache", err)
		} else {
			cacheStore = redisCache
			closers = append(closers, redisCache.Close)
			logger.Info("cache: redis")
		}
	} else {
		logger.Info("cache: noop")
	}

	verifier, err := gate.NewBcryptVerifier(cfg.GatePassword)
	if err != nil {
		logger.Fatalf("gate password: %v", err)
	}

	client := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout, logger)
	svc := app.Services{
		Processor:          checkout.NewProcessor(client, nil, logger),
		Reports:            report.NewRenderer(client, nil, logger),
		Finance:            finance.NewDashboard(client, cacheStore, cfg.FinanceCacheTTL(), audit, nil, logger),
		Audit:              audit,
		Verifier:           verifier,
		Limiter:            gate.NewAttemptLimiter(cfg.GateMaxAttempts, time.Minute, nil),
		QrisConfirmEnabled: cfg.QrisConfirmEnabled,
		CheckoutTimeout:    3 * cfg.BackendTimeout,
		Logger:             logger,
	}
	sessions := httpapi.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL(), cfg.MaxTerminals, func(id string) *app.Terminal {
		return app.NewTerminal(id, svc)
	})
	api := httpapi.New(sessions, cfg.AssetsDir, logger)

	// A checkout makes up to three sequential backend calls.
	writeTimeout := 3*cfg.BackendTimeout + 10*time.Second

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.WithField("backend", cfg.BackendURL).Infof("counter terminal listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Warnf("close error: %v", err)
		}
	}

	logger.Info("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.SessionSecret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be set and at least 32 characters")
	}
	if cfg.GatePassword == "" {
		return fmt.Errorf("GATE_PASSWORD must be set")
	}
	if gate.IsBcryptHash(cfg.GatePassword) {
		return nil
	}
	if len(cfg.GatePassword) < 6 {
		return fmt.Errorf("GATE_PASSWORD must be at least 6 characters or a bcrypt hash")
	}
	if err := validatePasswordStrength(cfg.GatePassword); err != nil {
		return fmt.Errorf("GATE_PASSWORD is too weak: %w", err)
	}
	return nil
}

// validatePasswordStrength rejects secrets that are one repeated character,
// a run of consecutive characters, or from a known-weak list.
func validatePasswordStrength(secret string) error {
	known := map[string]bool{
		"123456": true, "654321": true, "000000": true, "111111": true,
		"121212": true, "112233": true, "123123": true, "password": true,
		"qwerty": true, "abc123": true, "dagocoffee": true,
	}
	if known[secret] {
		return fmt.Errorf("common password not allowed")
	}

	allSame := true
	for i := 1; i < len(secret); i++ {
		if secret[i] != secret[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("repeated-character password not allowed")
	}

	ascending, descending := true, true
	for i := 1; i < len(secret); i++ {
		diff := int(secret[i]) - int(secret[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential password not allowed")
	}

	return nil
}
