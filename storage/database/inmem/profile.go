package inmemdb

import (
	"encoding/json"

	"github.com/trezcool/mahudhurio/core/profile"
)

type profileRepository struct {
	db *profileTable
}

var _ profile.Repository = (*profileRepository)(nil)

func NewProfileRepository(db *DB) profile.Repository {
	return &profileRepository{db: db.profile}
}

func (repo *profileRepository) GetData(userID int) (profile.Data, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	data, ok := repo.db.table[userID]
	if !ok {
		return nil, profile.ErrNotFound
	}
	return clone(data), nil
}

func (repo *profileRepository) SaveData(userID int, data profile.Data) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.table[userID] = clone(data)
	return nil
}

// clone copies `data` so that callers never share the stored values.
func clone(data profile.Data) profile.Data {
	out := make(profile.Data, len(data))
	for k, v := range data {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}
