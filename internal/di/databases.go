// Package di provides dependency injection for database connections.
package di

import (
	"fmt"

	"github.com/aristath/tradejournal/internal/config"
	"github.com/aristath/tradejournal/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens journal.db and applies its schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	journalDB, err := database.New(database.Config{
		Path:       cfg.JournalDBPath(),
		Profile:    database.ProfileLedger, // Balances live here
		Name:       "journal",
		MaxRetries: cfg.TxMaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize journal database: %w", err)
	}
	container.JournalDB = journalDB

	if err := journalDB.Migrate(); err != nil {
		journalDB.Close()
		return nil, fmt.Errorf("failed to apply schema to %s: %w", journalDB.Name(), err)
	}

	log.Info().Str("path", journalDB.Path()).Msg("Journal database initialized and schema applied")

	return container, nil
}
