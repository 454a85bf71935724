package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/pcfhub/internal/config"
	"github.com/wolfeidau/pcfhub/internal/store"
	"github.com/wolfeidau/pcfhub/internal/store/memory"
	"github.com/wolfeidau/pcfhub/internal/store/postgres"
)

type Globals struct {
	Debug   bool
	Version string
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    16 * 1024, // 16KiB, signature headers included
	}
}

// openPostgres connects the shared pool and optionally migrates it.
func openPostgres(ctx context.Context, flags *config.PostgresFlags) (*postgres.Store, error) {
	if err := flags.Validate(); err != nil {
		return nil, err
	}

	pool, err := postgres.NewPool(ctx, flags.PoolConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if flags.AutoMigrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Ctx(ctx).Info().Msg("Database migrations completed")
	}

	return postgres.NewStore(pool), nil
}

// openStore returns the configured store and a function releasing it.
func openStore(ctx context.Context, node *config.Node) (store.Store, func(), error) {
	switch node.StoreType {
	case config.StorePostgres:
		pg, err := openPostgres(ctx, &node.Postgres)
		if err != nil {
			return nil, nil, err
		}
		log.Ctx(ctx).Info().Msg("Using PostgreSQL store")
		return pg, pg.Close, nil
	default:
		log.Ctx(ctx).Warn().Msg("Using in-memory store, state is lost on restart")
		return memory.NewStore(), func() {}, nil
	}
}
