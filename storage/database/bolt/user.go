package boltdb

import (
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/trezcool/mahudhurio/core/user"
)

// userRecord is the stored form of a user.User, keeping the fields hidden from JSON responses.
type userRecord struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	GoogleID     string    `json:"google_id"`
	IsActive     bool      `json:"is_active"`
	PasswordHash []byte    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	LastLogin    time.Time `json:"last_login"`
}

func (r userRecord) toUser() user.User {
	return user.User(r)
}

type userRepository struct {
	db *bbolt.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *bbolt.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CreateUser(usr user.User) (user.User, error) {
	err := update(repo.db, func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(usernamesBucket)).Get([]byte(usr.Username)) != nil {
			return user.ErrUsernameExists
		}
		users := tx.Bucket([]byte(usersBucket))
		seq, err := users.NextSequence()
		if err != nil {
			return errors.Wrap(err, "generating user id")
		}
		usr.ID = int(seq)
		return putUser(tx, usr, nil)
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

// putUser stores `usr` and refreshes its indexes, dropping the ones of `prev` if any.
func putUser(tx *bbolt.Tx, usr user.User, prev *user.User) error {
	payload, err := json.Marshal(userRecord(usr))
	if err != nil {
		return errors.Wrap(err, "encoding user")
	}
	key := itob(usr.ID)
	if err = tx.Bucket([]byte(usersBucket)).Put(key, payload); err != nil {
		return errors.Wrap(err, "storing user")
	}

	indexes := []struct {
		bucket    string
		old, curr string
	}{
		{bucket: usernamesBucket, curr: usr.Username},
		{bucket: userEmailsBucket, curr: usr.Email},
		{bucket: googleIDsBucket, curr: usr.GoogleID},
	}
	if prev != nil {
		indexes[0].old, indexes[1].old, indexes[2].old = prev.Username, prev.Email, prev.GoogleID
	}
	for _, idx := range indexes {
		b := tx.Bucket([]byte(idx.bucket))
		if idx.old != "" && idx.old != idx.curr {
			if err = b.Delete([]byte(idx.old)); err != nil {
				return errors.Wrapf(err, "updating %s index", idx.bucket)
			}
		}
		if idx.curr != "" {
			if err = b.Put([]byte(idx.curr), key); err != nil {
				return errors.Wrapf(err, "updating %s index", idx.bucket)
			}
		}
	}
	return nil
}

func getUser(tx *bbolt.Tx, key []byte) (user.User, error) {
	payload := tx.Bucket([]byte(usersBucket)).Get(key)
	if payload == nil {
		return user.User{}, user.ErrNotFound
	}
	var rec userRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return user.User{}, errors.Wrap(err, "decoding user")
	}
	return rec.toUser(), nil
}

func (repo *userRepository) getBy(bucket, value string) (usr user.User, err error) {
	if value == "" {
		return user.User{}, user.ErrNotFound
	}
	err = view(repo.db, func(tx *bbolt.Tx) error {
		key := tx.Bucket([]byte(bucket)).Get([]byte(value))
		if key == nil {
			return user.ErrNotFound
		}
		usr, err = getUser(tx, key)
		return err
	})
	return usr, err
}

func (repo *userRepository) GetUserByID(id int) (usr user.User, err error) {
	err = view(repo.db, func(tx *bbolt.Tx) error {
		usr, err = getUser(tx, itob(id))
		return err
	})
	return usr, err
}

func (repo *userRepository) GetUserByUsername(username string) (user.User, error) {
	return repo.getBy(usernamesBucket, username)
}

func (repo *userRepository) GetUserByUsernameOrEmail(username string) (user.User, error) {
	usr, err := repo.getBy(usernamesBucket, username)
	if errors.Cause(err) == user.ErrNotFound {
		return repo.getBy(userEmailsBucket, username)
	}
	return usr, err
}

func (repo *userRepository) GetUserByGoogleID(googleID string) (user.User, error) {
	return repo.getBy(googleIDsBucket, googleID)
}

func (repo *userRepository) UpdateUser(usr user.User) (user.User, error) {
	err := update(repo.db, func(tx *bbolt.Tx) error {
		prev, err := getUser(tx, itob(usr.ID))
		if err != nil {
			return err
		}
		if usr.Username != prev.Username {
			if key := tx.Bucket([]byte(usernamesBucket)).Get([]byte(usr.Username)); key != nil && int(binary.BigEndian.Uint64(key)) != usr.ID {
				return user.ErrUsernameExists
			}
		}
		return putUser(tx, usr, &prev)
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}
