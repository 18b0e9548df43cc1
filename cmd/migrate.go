package cmd

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-amazon-payments/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg := mustLoadConfig()
		db := mustOpenDB(cfg)
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		return runTimed("migrate", func() error {
			applied, err := migrations.Apply(ctx, db, migrations.FS())
			if err != nil {
				return err
			}
			logrus.WithField("applied", applied).WithField("count", len(applied)).Info("Migrations applied")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
