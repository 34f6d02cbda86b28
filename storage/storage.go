// Package storage opens the repositories of the configured storage driver.
package storage

import (
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/profile"
	"github.com/trezcool/mahudhurio/core/user"
	"github.com/trezcool/mahudhurio/storage/database"
	boltdb "github.com/trezcool/mahudhurio/storage/database/bolt"
	inmemdb "github.com/trezcool/mahudhurio/storage/database/inmem"
	pgrepos "github.com/trezcool/mahudhurio/storage/database/postgres"
)

// Store holds the repositories of one storage backend.
type Store struct {
	Driver   string
	Users    user.Repository
	Profiles profile.Repository

	close func() error
}

func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Open opens the storage selected by conf.Storage.Driver.
// The postgres database is created and migrated if needed.
func Open(conf *core.Config) (*Store, error) {
	switch conf.Storage.Driver {
	case core.StorageMemory:
		db := inmemdb.Open()
		return &Store{
			Driver:   core.StorageMemory,
			Users:    inmemdb.NewUserRepository(db),
			Profiles: inmemdb.NewProfileRepository(db),
		}, nil

	case core.StorageBolt:
		db, err := boltdb.Open(conf.Storage.BoltPath)
		if err != nil {
			return nil, err
		}
		return &Store{
			Driver:   core.StorageBolt,
			Users:    boltdb.NewUserRepository(db),
			Profiles: boltdb.NewProfileRepository(db),
			close:    db.Close,
		}, nil

	case core.StoragePostgres:
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}
		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}
		if err = database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &Store{
			Driver:   core.StoragePostgres,
			Users:    pgrepos.NewUserRepository(db),
			Profiles: pgrepos.NewProfileRepository(db),
			close:    db.Close,
		}, nil
	}
	return nil, errors.Errorf("unknown storage driver %q", conf.Storage.Driver)
}
