// Package db provides the database driver factory.
package db

import (
	"github.com/pkg/errors"

	"github.com/lumenchat/lumen/internal/profile"
	"github.com/lumenchat/lumen/store"
	"github.com/lumenchat/lumen/store/db/postgres"
	"github.com/lumenchat/lumen/store/db/sqlite"
)

// NewDBDriver creates the database driver named by the profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	switch profile.Driver {
	case "sqlite":
		return sqlite.NewDB(profile)
	case "postgres":
		return postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unsupported database driver: %s", profile.Driver)
	}
}
