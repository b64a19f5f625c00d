package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"mintgate/config"
	"mintgate/core/events"
	"mintgate/gateway"
	"mintgate/native/bank"
	"mintgate/native/factory"
	"mintgate/native/sale"
	"mintgate/native/token"
	"mintgate/observability/logging"
	"mintgate/storage"
	"mintgate/storage/salestate"
)

const factoryOwnerEnv = "MINTGATE_FACTORY_OWNER"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup("mintgated", cfg.Environment, cfg.LogFile)

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "mintgate"))
	if err != nil {
		logger.Error("failed to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	owner, err := parseOwner(os.Getenv(factoryOwnerEnv))
	if err != nil {
		logger.Error("invalid factory owner", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ledger := bank.NewLedger()
	emitter := &logEmitter{logger: logger}
	factoryAddr := factory.DeriveAddress(owner, 0)
	registry := salestate.NewRegistry(db, "collection")
	saleFactory := factory.NewSingleCollection(factoryAddr, owner, registry, func(addr sale.Address, variant sale.Variant) (*sale.Engine[sale.SingleToken], error) {
		state := salestate.New[sale.SingleToken](db, addr)
		engine := sale.NewEngine[sale.SingleToken](addr, variant, state, token.NewCollection(), ledger)
		engine.SetEmitter(emitter)
		return engine, nil
	})
	saleFactory.SetEmitter(emitter)
	if err := saleFactory.Restore(); err != nil {
		logger.Error("failed to restore registry", slog.String("error", err.Error()))
		os.Exit(1)
	}

	authenticator := gateway.NewAuthenticator(gateway.AuthConfig{
		HMACSecret: cfg.AdminJWTSecret,
		Issuer:     "mintgate",
	})
	server := gateway.NewServer(gateway.Config{
		Factory:       saleFactory,
		Logger:        logger,
		Authenticator: authenticator,
		RateLimitRPS:  cfg.RateLimitRPS,
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("gateway listening", slog.String("address", cfg.ListenAddress))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("gateway stopped", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", slog.String("error", err.Error()))
	}
}

// logEmitter flattens engine events into the structured log stream.
type logEmitter struct {
	logger *slog.Logger
}

func (l *logEmitter) Emit(evt events.Event) {
	flat := events.Flatten(evt)
	attrs := make([]any, 0, len(flat.Attributes)*2)
	for key, value := range flat.Attributes {
		attrs = append(attrs, slog.String(key, value))
	}
	l.logger.With(attrs...).Info(flat.Type)
}

func parseOwner(raw string) (sale.Address, error) {
	var addr sale.Address
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if raw == "" {
		return addr, fmt.Errorf("%s must be set to the factory owner address", factoryOwnerEnv)
	}
	b, err := hex.DecodeString(raw)
	if err != nil || len(b) != len(addr) {
		return addr, fmt.Errorf("malformed owner address %q", raw)
	}
	copy(addr[:], b)
	return addr, nil
}
