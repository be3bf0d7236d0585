package cmd

import (
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/timada-org/todos/internal/auth"
	"github.com/timada-org/todos/internal/core"
	"github.com/timada-org/todos/internal/store"
	"github.com/timada-org/todos/internal/todo"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",

	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := core.NewConfig(cfgFile)
		if err != nil {
			return err
		}

		logger := core.NewLogger(config.Log)

		db, err := openDatabase(config)
		if err != nil {
			return err
		}
		defer store.Close(db)

		logger.Info("database migrated", "dsn", config.Database.DSN)

		return nil
	},
}

func openDatabase(config *core.Config) (*gorm.DB, error) {
	db, err := store.Open(config.Database.DSN)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(db, append(auth.Models(), &todo.Todo{})...); err != nil {
		_ = store.Close(db)
		return nil, err
	}

	return db, nil
}
