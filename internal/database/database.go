// Package database opens the Postgres connection used by the session
// and activity stores.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// ErrNoDatabaseURL means no connection string was configured.
var ErrNoDatabaseURL = errors.New("no database URL configured, set database.url or DATABASE_URL")

// NewDB opens and pings a Postgres connection. The URL comes from the
// config value, or the DATABASE_URL environment variable when the
// config is silent.
func NewDB(configuredURL string) (*sql.DB, error) {
	dbURL, err := resolveURL(configuredURL)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	log.Debug().Msg("database connection established")
	return db, nil
}

func resolveURL(configuredURL string) (string, error) {
	if url := strings.TrimSpace(configuredURL); url != "" {
		return url, nil
	}
	if url := strings.TrimSpace(os.Getenv("DATABASE_URL")); url != "" {
		return url, nil
	}
	return "", ErrNoDatabaseURL
}
