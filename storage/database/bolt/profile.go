package boltdb

import (
	"encoding/json"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/trezcool/mahudhurio/core/profile"
)

type profileRepository struct {
	db *bbolt.DB
}

var _ profile.Repository = (*profileRepository)(nil)

func NewProfileRepository(db *bbolt.DB) profile.Repository {
	return &profileRepository{db: db}
}

func (repo *profileRepository) GetData(userID int) (profile.Data, error) {
	var data profile.Data
	err := view(repo.db, func(tx *bbolt.Tx) error {
		payload := tx.Bucket([]byte(profilesBucket)).Get(itob(userID))
		if payload == nil {
			return profile.ErrNotFound
		}
		return errors.Wrap(json.Unmarshal(payload, &data), "decoding user data")
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (repo *profileRepository) SaveData(userID int, data profile.Data) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "encoding user data")
	}
	return update(repo.db, func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(profilesBucket)).Put(itob(userID), payload)
	})
}
