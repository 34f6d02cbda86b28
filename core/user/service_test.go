package user_test

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/user"
	inmemdb "github.com/trezcool/mahudhurio/storage/database/inmem"
)

func newService(google user.TokenVerifier) (*user.Service, user.Repository) {
	repo := inmemdb.NewUserRepository(inmemdb.Open())
	return user.NewServiceMock(repo, google), repo
}

func validationTags(t *testing.T, err error) map[string]string {
	t.Helper()
	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs), "expected validation errors, got %v", err)
	tags := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		tags[fe.Field()] = fe.Tag()
	}
	return tags
}

func TestService_Signup(t *testing.T) {
	svc, _ := newService(nil)

	usr, err := svc.Signup(user.NewUser{Name: " Ada Lovelace ", Username: " Ada_L ", Email: "ADA@test.cd", Password: "analytical-engine"})
	require.NoError(t, err)
	assert.NotZero(t, usr.ID)
	assert.Equal(t, "Ada Lovelace", usr.Name)
	assert.Equal(t, "ada_l", usr.Username)
	assert.Equal(t, "ada@test.cd", usr.Email)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword("analytical-engine"))

	_, err = svc.Signup(user.NewUser{Username: "ADA_L", Password: "another-pass-42"})
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "username", verr.Fields[0].Field)
	assert.Equal(t, user.ErrUsernameExists, verr.Err)
}

func TestService_Signup_validation(t *testing.T) {
	svc, _ := newService(nil)

	tests := []struct {
		name string
		nu   user.NewUser
		want map[string]string
	}{
		{
			name: "missing fields",
			nu:   user.NewUser{},
			want: map[string]string{"username": "required", "password": "required"},
		},
		{
			name: "bad username and email",
			nu:   user.NewUser{Username: "a b", Email: "nope", Password: "valid-pass-99"},
			want: map[string]string{"username": "alphanum_", "email": "email"},
		},
		{
			name: "short username",
			nu:   user.NewUser{Username: "ab", Password: "valid-pass-99"},
			want: map[string]string{"username": "min"},
		},
		{
			name: "short password",
			nu:   user.NewUser{Username: "grace", Password: "short"},
			want: map[string]string{"password": "pwdminlen"},
		},
		{
			name: "password with whitespace",
			nu:   user.NewUser{Username: "grace", Password: "has some spaces"},
			want: map[string]string{"password": "pwdnospace"},
		},
		{
			name: "numeric password",
			nu:   user.NewUser{Username: "grace", Password: "1234567890"},
			want: map[string]string{"password": "pwdnotallnum"},
		},
		{
			name: "password similar to username",
			nu:   user.NewUser{Username: "gracehopper", Password: "GraceHopper1"},
			want: map[string]string{"password": "pwdtoosim"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Signup(tt.nu)
			assert.Equal(t, tt.want, validationTags(t, err))
		})
	}
}

func TestService_Authenticate(t *testing.T) {
	svc, repo := newService(nil)
	_, err := svc.Signup(user.NewUser{Username: "grace", Email: "grace@test.cd", Password: "cobol-rules-59"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		creds   user.Credentials
		wantErr error
	}{
		{name: "username", creds: user.Credentials{Username: "Grace", Password: "cobol-rules-59"}},
		{name: "email", creds: user.Credentials{Username: "grace@test.cd", Password: "cobol-rules-59"}},
		{name: "wrong password", creds: user.Credentials{Username: "grace", Password: "fortran"}, wantErr: user.ErrAuthenticationFailed},
		{name: "unknown user", creds: user.Credentials{Username: "linus", Password: "cobol-rules-59"}, wantErr: user.ErrAuthenticationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr, err := svc.Authenticate(tt.creds)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "grace", usr.Username)
			assert.False(t, usr.LastLogin.IsZero())
		})
	}

	t.Run("missing credentials", func(t *testing.T) {
		_, err := svc.Authenticate(user.Credentials{})
		assert.Equal(t, map[string]string{"username": "required", "password": "required"}, validationTags(t, err))
	})

	t.Run("deactivated", func(t *testing.T) {
		usr, err := repo.GetUserByUsername("grace")
		require.NoError(t, err)
		usr.IsActive = false
		_, err = repo.UpdateUser(usr)
		require.NoError(t, err)

		_, err = svc.Authenticate(user.Credentials{Username: "grace", Password: "cobol-rules-59"})
		assert.Equal(t, user.ErrAccountDeactivated, err)
	})
}

func TestService_SignInWithGoogle(t *testing.T) {
	profiles := map[string]user.GoogleProfile{
		"tok-new":    {GoogleID: "g-1", Email: "Katherine.J@nasa.gov", Name: "Katherine Johnson"},
		"tok-link":   {GoogleID: "g-2", Email: "dorothy@test.cd", Name: "Dorothy Vaughan"},
		"tok-clash":  {GoogleID: "g-3", Email: "katherine.j@other.org", Name: "Another Katherine"},
		"tok-noname": {GoogleID: "g-4"},
	}
	verifier := user.TokenVerifierFunc(func(idToken string) (user.GoogleProfile, error) {
		if p, ok := profiles[idToken]; ok {
			return p, nil
		}
		return user.GoogleProfile{}, errors.New("bad signature")
	})
	svc, _ := newService(verifier)

	dorothy, err := svc.Signup(user.NewUser{Username: "dorothy", Email: "dorothy@test.cd", Password: "fortran-expert"})
	require.NoError(t, err)

	t.Run("first sign-in creates the user", func(t *testing.T) {
		usr, err := svc.SignInWithGoogle("tok-new")
		require.NoError(t, err)
		assert.Equal(t, "katherine_j", usr.Username)
		assert.Equal(t, "katherine.j@nasa.gov", usr.Email)
		assert.Equal(t, "Katherine Johnson", usr.Name)
		assert.Equal(t, "g-1", usr.GoogleID)
		assert.False(t, usr.LastLogin.IsZero())
	})

	t.Run("next sign-in finds the same user", func(t *testing.T) {
		first, err := svc.GetByUsername("katherine_j")
		require.NoError(t, err)
		usr, err := svc.SignInWithGoogle("tok-new")
		require.NoError(t, err)
		assert.Equal(t, first.ID, usr.ID)
	})

	t.Run("existing email is linked", func(t *testing.T) {
		usr, err := svc.SignInWithGoogle("tok-link")
		require.NoError(t, err)
		assert.Equal(t, dorothy.ID, usr.ID)
		assert.Equal(t, "g-2", usr.GoogleID)
	})

	t.Run("username collision gets a suffix", func(t *testing.T) {
		usr, err := svc.SignInWithGoogle("tok-clash")
		require.NoError(t, err)
		assert.Equal(t, "katherine_j1", usr.Username)
	})

	t.Run("no email", func(t *testing.T) {
		usr, err := svc.SignInWithGoogle("tok-noname")
		require.NoError(t, err)
		assert.Equal(t, "user", usr.Username)
	})

	t.Run("invalid token", func(t *testing.T) {
		_, err := svc.SignInWithGoogle("forged")
		var verr *core.ValidationError
		assert.True(t, errors.As(err, &verr))
	})

	t.Run("not configured", func(t *testing.T) {
		svc, _ := newService(nil)
		_, err := svc.SignInWithGoogle("tok-new")
		assert.Equal(t, user.ErrGoogleDisabled, err)
	})
}

func TestService_ResetPassword(t *testing.T) {
	svc, _ := newService(nil)
	_, err := svc.Signup(user.NewUser{Username: "margaret", Password: "apollo-eleven"})
	require.NoError(t, err)

	_, err = svc.ResetPassword(user.ResetUserPassword{Username: "margaret", Password: "new-pass-2024", PasswordConfirm: "mismatch"})
	assert.Equal(t, map[string]string{"password_confirm": "eqfield"}, validationTags(t, err))

	_, err = svc.ResetPassword(user.ResetUserPassword{Username: "nobody", Password: "new-pass-2024", PasswordConfirm: "new-pass-2024"})
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))

	usr, err := svc.ResetPassword(user.ResetUserPassword{Username: " Margaret ", Password: "new-pass-2024", PasswordConfirm: "new-pass-2024"})
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword("new-pass-2024"))

	_, err = svc.Authenticate(user.Credentials{Username: "margaret", Password: "new-pass-2024"})
	assert.NoError(t, err)
}
