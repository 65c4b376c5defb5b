package infrastructure

import (
	"context"
	"log/slog"

	"github.com/EricGoldwein/run320-sub001/internal/config"
	"github.com/EricGoldwein/run320-sub001/internal/repository"
	"github.com/EricGoldwein/run320-sub001/internal/service"
	transportHTTP "github.com/EricGoldwein/run320-sub001/internal/transport/http"
	transportNATS "github.com/EricGoldwein/run320-sub001/internal/transport/nats"
)

// Bootstrap initialises all dependencies from config and wires up the ledger.
// Returns the App, a cleanup function, or an error. Cleanup runs connectors
// down in reverse acquisition order, the database pool last.
func Bootstrap(ctx context.Context) (*App, func(), error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, err
	}

	db, err := connectPostgres(ctx, cfg.DSN())
	if err != nil {
		return nil, nil, err
	}

	var cleanupFns []func()
	cleanupFns = append(cleanupFns, db.Close)

	// Self-bootstrapping schema: re-running migrations is a no-op.
	if err := repository.RunMigrations(ctx, cfg.DSN(), "up"); err != nil {
		return nil, runCleanup(cleanupFns), err
	}

	rdb, err := connectRedis(ctx, cfg.RedisAddr())
	if err != nil {
		return nil, runCleanup(cleanupFns), err
	}
	cleanupFns = append(cleanupFns, func() { _ = rdb.Close() })

	repo := repository.NewLedgerRepo(db)
	idem := repository.NewIdempotencyGuard(rdb)

	var bus repository.MessageBus
	var handlers []Server

	if cfg.NatsEnabled() {
		nc, err := connectNats(cfg.NatsAddr())
		if err != nil {
			return nil, runCleanup(cleanupFns), err
		}
		cleanupFns = append(cleanupFns, nc.Close)
		bus = transportNATS.NewBus(nc)

		svc := service.NewLedgerService(repo, idem, bus)
		handlers = append(handlers, transportNATS.NewHandler(svc, nc))
		handlers = append(handlers, transportHTTP.NewServer(cfg.ApiAddr(), svc, slog.Default()))
	} else {
		svc := service.NewLedgerService(repo, idem, nil)
		handlers = append(handlers, transportHTTP.NewServer(cfg.ApiAddr(), svc, slog.Default()))
	}

	return NewApp(handlers), runCleanup(cleanupFns), nil
}

// runCleanup returns a single function that calls all cleanup functions in
// reverse order.
func runCleanup(fns []func()) func() {
	return func() {
		for i := len(fns) - 1; i >= 0; i-- {
			fns[i]()
		}
	}
}
