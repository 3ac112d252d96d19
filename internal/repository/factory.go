package repository

import (
	"fmt"

	"github.com/ivanoskov/fincontrol/internal/config"
	"github.com/rs/zerolog"
)

// Open builds the storage backend selected by cfg.DataBackend.
func Open(cfg *config.Config, log zerolog.Logger) (Repository, error) {
	switch cfg.DataBackend {
	case config.BackendSupabase:
		repo, err := NewSupabaseRepository(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseUserID, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize supabase repository: %w", err)
		}
		log.Info().Str("backend", cfg.DataBackend).Msg("storage initialized")
		return repo, nil
	case config.BackendSQLite:
		repo, err := NewSQLiteRepository(cfg.SQLiteDBPath, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		log.Info().Str("backend", cfg.DataBackend).Str("db_path", cfg.SQLiteDBPath).Msg("storage initialized")
		return repo, nil
	case config.BackendPostgres:
		repo, err := NewPostgresRepository(cfg.DatabaseURL, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres repository: %w", err)
		}
		log.Info().Str("backend", cfg.DataBackend).Msg("storage initialized")
		return repo, nil
	case config.BackendMemory:
		log.Warn().Msg("using in-memory storage, data is lost on restart")
		return NewMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported data backend: %s", cfg.DataBackend)
	}
}
