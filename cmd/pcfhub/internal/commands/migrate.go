package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/pcfhub/internal/config"
	"github.com/wolfeidau/pcfhub/internal/logger"
	"github.com/wolfeidau/pcfhub/internal/store/postgres"
)

type MigrateCmd struct {
	Postgres config.PostgresFlags `embed:"" prefix:"postgres-"`
}

func (c *MigrateCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx = log.WithContext(ctx)

	if err := c.Postgres.Validate(); err != nil {
		return err
	}

	pool, err := postgres.NewPool(ctx, c.Postgres.PoolConfig())
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	return postgres.Migrate(ctx, pool)
}
