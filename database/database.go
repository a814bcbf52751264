package database

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/lshigami/Margays/config"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewDatabase opens the Postgres connection used by every repository.
// The attempt timer survives process restarts, so the process keeps retrying
// instead of giving up while the database is still coming up.
func NewDatabase(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Name,
	)

	var db *gorm.DB

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 2 * time.Minute

	err := backoff.RetryNotify(func() error {
		var openErr error
		db, openErr = gorm.Open(postgres.Open(dsn), &gorm.Config{
			TranslateError: true,
		})
		return openErr
	}, bo, func(err error, next time.Duration) {
		log.Warn().Err(err).Dur("retry_in", next).Msg("Database connection failed, retrying")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	log.Info().Str("host", cfg.Database.Host).Str("database", cfg.Database.Name).Msg("Database connected")
	return db, nil
}
