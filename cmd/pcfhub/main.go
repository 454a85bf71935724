package main

import (
	"context"

	"github.com/alecthomas/kong"

	"github.com/wolfeidau/pcfhub/cmd/pcfhub/internal/commands"
	"github.com/wolfeidau/pcfhub/internal/config"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool             `help:"Enable debug mode."`
		Config  kong.ConfigFlag  `help:"Load flag values from a YAML file." type:"existingfile"`
		Version kong.VersionFlag `help:"Print the version and exit."`

		Server  commands.ServerCmd  `cmd:"" help:"Start a federation node"`
		Migrate commands.MigrateCmd `cmd:"" help:"Apply database migrations"`
		Org     commands.OrgCmd     `cmd:"" help:"Register an organization"`
		Keygen  commands.KeygenCmd  `cmd:"" help:"Generate an ECDSA P-256 node key"`
		Token   commands.TokenCmd   `cmd:"" help:"Mint an operator access token"`
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("pcfhub"),
		kong.Description("Product carbon footprint federation node."),
		kong.Configuration(config.YAML),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
