package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/database"
)

// MigrateCmd inspects or changes the database schema without starting the
// gateway.
type MigrateCmd struct {
	Config string `help:"Configuration file." default:"${default_config}" env:"RADIOGW_CONFIG" type:"path"`
	Action string `arg:"" optional:"" default:"status" enum:"status,up,down" help:"status, up (apply pending) or down (roll back the latest)."`
}

// Run implements the migrate command.
func (c *MigrateCmd) Run(ctx context.Context, g *Globals) error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := database.Open(ctx, database.FromConfig(cfg.Database))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // CLI exit

	switch c.Action {
	case "up":
		_, pending, err := db.GetMigrationStatus(ctx)
		if err != nil {
			return err
		}
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		fmt.Fprintf(g.Out, "applied %d migration(s)\n", len(pending))
		return nil

	case "down":
		version, err := db.MigrateDown(ctx)
		if err != nil {
			return err
		}
		if version == "" {
			fmt.Fprintln(g.Out, "nothing to roll back")
			return nil
		}
		fmt.Fprintln(g.Out, "rolled back", version)
		return nil

	default:
		return printMigrationStatus(ctx, db, g)
	}
}

func printMigrationStatus(ctx context.Context, db *database.DB, g *Globals) error {
	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(g.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATE\tVERSION\tDETAIL")
	for _, r := range applied {
		fmt.Fprintf(tw, "applied\t%s\t%s\n", r.Version, r.AppliedAt.Format(time.RFC3339))
	}
	for _, m := range pending {
		fmt.Fprintf(tw, "pending\t%s\t%s\n", m.Version, m.Name)
	}
	return tw.Flush()
}
