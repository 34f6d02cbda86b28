// Package dbtest holds the behaviour shared by every repository implementation, run by each backend's tests.
package dbtest

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/core/profile"
	"github.com/trezcool/mahudhurio/core/user"
)

func newUser(t *testing.T, uname, email, googleID string) user.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Millisecond)
	usr := user.User{
		Name:      "Test " + uname,
		Username:  uname,
		Email:     email,
		GoogleID:  googleID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, usr.SetPassword("s3cret-pass"))
	return usr
}

// CreateUser stores a new active user, failing the test on error.
func CreateUser(t *testing.T, repo user.Repository, uname, email string) user.User {
	t.Helper()
	usr, err := repo.CreateUser(newUser(t, uname, email, ""))
	require.NoError(t, err)
	return usr
}

func UserRepository(t *testing.T, repo user.Repository) {
	alice, err := repo.CreateUser(newUser(t, "alice", "alice@test.cd", ""))
	require.NoError(t, err)
	bob, err := repo.CreateUser(newUser(t, "bob", "", "g-bob"))
	require.NoError(t, err)
	assert.NotZero(t, alice.ID)
	assert.NotEqual(t, alice.ID, bob.ID)

	t.Run("duplicate username", func(t *testing.T) {
		_, err := repo.CreateUser(newUser(t, "alice", "other@test.cd", ""))
		assert.Equal(t, user.ErrUsernameExists, err)
	})

	t.Run("lookups", func(t *testing.T) {
		tests := []struct {
			name    string
			get     func() (user.User, error)
			wantID  int
			wantErr error
		}{
			{name: "by id", get: func() (user.User, error) { return repo.GetUserByID(alice.ID) }, wantID: alice.ID},
			{name: "by unknown id", get: func() (user.User, error) { return repo.GetUserByID(9999) }, wantErr: user.ErrNotFound},
			{name: "by username", get: func() (user.User, error) { return repo.GetUserByUsername("bob") }, wantID: bob.ID},
			{name: "by unknown username", get: func() (user.User, error) { return repo.GetUserByUsername("carol") }, wantErr: user.ErrNotFound},
			{name: "by username or email (username)", get: func() (user.User, error) { return repo.GetUserByUsernameOrEmail("alice") }, wantID: alice.ID},
			{name: "by username or email (email)", get: func() (user.User, error) { return repo.GetUserByUsernameOrEmail("alice@test.cd") }, wantID: alice.ID},
			{name: "by empty email", get: func() (user.User, error) { return repo.GetUserByUsernameOrEmail("") }, wantErr: user.ErrNotFound},
			{name: "by google id", get: func() (user.User, error) { return repo.GetUserByGoogleID("g-bob") }, wantID: bob.ID},
			{name: "by empty google id", get: func() (user.User, error) { return repo.GetUserByGoogleID("") }, wantErr: user.ErrNotFound},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				usr, err := tt.get()
				if tt.wantErr != nil {
					assert.Equal(t, tt.wantErr, err)
					return
				}
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, usr.ID)
			})
		}
	})

	t.Run("round trip", func(t *testing.T) {
		got, err := repo.GetUserByID(bob.ID)
		require.NoError(t, err)
		assert.Equal(t, "g-bob", got.GoogleID)
		assert.NoError(t, got.CheckPassword("s3cret-pass"))
		assert.True(t, got.CreatedAt.Equal(bob.CreatedAt))
		assert.True(t, got.LastLogin.IsZero())
	})

	t.Run("update", func(t *testing.T) {
		upd := alice
		upd.Username = "alicia"
		upd.GoogleID = "g-alice"
		upd.LastLogin = time.Now().UTC().Truncate(time.Millisecond)
		_, err := repo.UpdateUser(upd)
		require.NoError(t, err)

		_, err = repo.GetUserByUsername("alice")
		assert.Equal(t, user.ErrNotFound, err)
		got, err := repo.GetUserByGoogleID("g-alice")
		require.NoError(t, err)
		assert.Equal(t, "alicia", got.Username)
		assert.True(t, got.LastLogin.Equal(upd.LastLogin))

		upd.Username = "bob"
		_, err = repo.UpdateUser(upd)
		assert.Equal(t, user.ErrUsernameExists, err)

		_, err = repo.UpdateUser(user.User{ID: 9999, Username: "ghost"})
		assert.Equal(t, user.ErrNotFound, err)
	})
}

func ProfileRepository(t *testing.T, users user.Repository, repo profile.Repository) {
	usr := CreateUser(t, users, "profiled", "")

	_, err := repo.GetData(usr.ID)
	assert.Equal(t, profile.ErrNotFound, err)

	data := profile.Data{
		profile.KeySubjects: json.RawMessage(`[{"id":1,"name":"Math"}]`),
		"studentName":       json.RawMessage(`"Ada"`),
	}
	require.NoError(t, repo.SaveData(usr.ID, data))

	got, err := repo.GetData(usr.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.JSONEq(t, `[{"id":1,"name":"Math"}]`, string(got[profile.KeySubjects]))
	assert.JSONEq(t, `"Ada"`, string(got["studentName"]))

	require.NoError(t, repo.SaveData(usr.ID, profile.Data{}))
	got, err = repo.GetData(usr.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}
