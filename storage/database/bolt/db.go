package boltdb

import (
	"encoding/binary"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/trezcool/mahudhurio/core"
)

const (
	usersBucket      = "users"
	usernamesBucket  = "users_by_username"
	googleIDsBucket  = "users_by_google_id"
	userEmailsBucket = "users_by_email"
	profilesBucket   = "profiles"
)

var buckets = []string{usersBucket, usernamesBucket, googleIDsBucket, userEmailsBucket, profilesBucket}

// Open opens (or creates) the bolt database file at `path`.
func Open(path string) (*bbolt.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("bolt database path is required")
	}
	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "opening bolt database")
	}
	if err = ensureBuckets(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func ensureBuckets(db *bbolt.DB) error {
	return db.Update(func(tx *bbolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return errors.Wrapf(err, "creating %s bucket", name)
			}
		}
		return nil
	})
}

// itob returns the big-endian representation of `id`, so that keys sort numerically.
func itob(id int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

func view(db *bbolt.DB, fn func(tx *bbolt.Tx) error) error {
	return txError(db.View(fn))
}

func update(db *bbolt.DB, fn func(tx *bbolt.Tx) error) error {
	return txError(db.Update(fn))
}

// txError turns the failures of a closed database into a shutdown error, the app cannot go on without it.
func txError(err error) error {
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return core.NewShutdownError("bolt database is not open")
	}
	return err
}
