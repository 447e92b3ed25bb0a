package main

import (
	"context"
	"fmt"

	"civicwatch/internal/db"
	"civicwatch/internal/seed"
	"civicwatch/internal/store"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var seedCommand = &cli.Command{
	Name:  "seed",
	Usage: "Sync the camera fleet into the database",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c.String("env-prefix"))
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		ctx := context.Background()

		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		logrus.Info("Connected to database")

		deviceRepo := store.NewDeviceRepository(pool)

		if err := seed.SeedDevices(ctx, logrus.StandardLogger(), deviceRepo); err != nil {
			return fmt.Errorf("failed to seed devices: %w", err)
		}

		return nil
	},
}
