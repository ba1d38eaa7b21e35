package cmd

import (
	"context"

	"github.com/urfave/cli/v3"
	"github.com/zhulik/pal"

	"skyreach/internal/cmd/flags"
	"skyreach/internal/core"
	"skyreach/internal/persistence"
)

var migrateCmd = &cli.Command{
	Name:  "migrate",
	Usage: "Manage the database schema",
	Flags: []cli.Flag{
		flags.DatabaseURL,
	},
	Commands: []*cli.Command{
		{
			Name:  "up",
			Usage: "Apply pending migrations",
			Action: func(ctx context.Context, c *cli.Command) error {
				return run(ctx, c,
					pal.Provide[core.DB](&persistence.DB{}),
					pal.Provide(&persistence.Migrator{}),
					pal.Provide(&persistence.MigrationUpRunner{}),
				)
			},
		},
		{
			Name:  "down",
			Usage: "Roll back the last migration",
			Action: func(ctx context.Context, c *cli.Command) error {
				return run(ctx, c,
					pal.Provide[core.DB](&persistence.DB{}),
					pal.Provide(&persistence.Migrator{}),
					pal.Provide(&persistence.MigrationDownRunner{}),
				)
			},
		},
	},
}
