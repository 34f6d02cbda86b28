package pgrepos

import (
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/profile"
)

type profileRepository struct {
	db *sqlx.DB
}

var _ profile.Repository = (*profileRepository)(nil)

func NewProfileRepository(db *sqlx.DB) profile.Repository {
	return &profileRepository{db: db}
}

func (repo *profileRepository) GetData(userID int) (profile.Data, error) {
	var payload []byte
	if err := repo.db.Get(&payload, "SELECT data FROM profiles WHERE user_id = $1", userID); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return nil, profile.ErrNotFound
		}
		return nil, errors.Wrap(err, "selecting user data")
	}
	var data profile.Data
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, errors.Wrap(err, "decoding user data")
	}
	return data, nil
}

func (repo *profileRepository) SaveData(userID int, data profile.Data) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "encoding user data")
	}
	q := `INSERT INTO profiles (user_id, data, updated_at) VALUES ($1, $2::jsonb, now())
		ON CONFLICT (user_id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`
	_, err = repo.db.Exec(q, userID, string(payload))
	return errors.Wrap(err, "upserting user data")
}
