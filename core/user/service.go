package user

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
)

var (
	// errors
	ErrNotFound             = errors.New("user not found")
	ErrUsernameExists       = errors.New("a user with this username already exists")
	ErrAuthenticationFailed = errors.New("invalid username or password")
	ErrAccountDeactivated   = errors.New("account deactivated")
	ErrGoogleDisabled       = errors.New("google sign-in is not configured")

	nonWordRegex = regexp.MustCompile(`\W+`)
)

type (
	Repository interface {
		CreateUser(user User) (User, error)
		GetUserByID(id int) (User, error)
		GetUserByUsername(username string) (User, error)
		GetUserByUsernameOrEmail(username string) (User, error)
		GetUserByGoogleID(googleID string) (User, error)
		UpdateUser(user User) (User, error)
	}

	// TokenVerifier verifies Google ID tokens.
	TokenVerifier interface {
		Verify(idToken string) (GoogleProfile, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
		google   TokenVerifier
	}
)

// NewService returns a user Service. `google` may be nil, disabling Google sign-in.
func NewService(repo Repository, validate *validator.Validate, google TokenVerifier) *Service {
	return &Service{repo: repo, validate: validate, google: google}
}

func (svc *Service) Signup(nu NewUser) (User, error) {
	nu.Clean()
	if err := svc.validate.Struct(nu); err != nil {
		return User{}, err
	}
	if _, err := svc.repo.GetUserByUsername(nu.Username); err == nil {
		return User{}, core.NewValidationError(ErrUsernameExists, core.FieldError{Field: "username", Error: ErrUsernameExists.Error()})
	} else if errors.Cause(err) != ErrNotFound {
		return User{}, errors.Wrap(err, "checking username uniqueness")
	}

	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(usr)
}

// Authenticate checks the credentials and records the login.
func (svc *Service) Authenticate(creds Credentials) (User, error) {
	if err := svc.validate.Struct(creds); err != nil {
		return User{}, err
	}
	usr, err := svc.repo.GetUserByUsernameOrEmail(core.CleanString(creds.Username, true /* lower */))
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrAuthenticationFailed
		}
		return User{}, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(creds.Password); err != nil {
		return User{}, ErrAuthenticationFailed
	}
	return svc.login(usr)
}

func (svc *Service) login(usr User) (User, error) {
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}
	usr.LastLogin = time.Now().UTC()
	usr, err := svc.repo.UpdateUser(usr)
	return usr, errors.Wrap(err, "setting last login")
}

// SignInWithGoogle logs in the owner of a Google ID token, signing them up on first use.
func (svc *Service) SignInWithGoogle(idToken string) (User, error) {
	if svc.google == nil {
		return User{}, ErrGoogleDisabled
	}
	profile, err := svc.google.Verify(idToken)
	if err != nil {
		return User{}, core.NewValidationError(errors.Wrap(err, "invalid google token"))
	}

	usr, err := svc.repo.GetUserByGoogleID(profile.GoogleID)
	switch errors.Cause(err) {
	case nil:
		return svc.login(usr)
	case ErrNotFound:
	default:
		return User{}, errors.Wrap(err, "finding user by google id")
	}

	email := core.CleanString(profile.Email, true /* lower */)
	if email != "" {
		usr, err = svc.repo.GetUserByUsernameOrEmail(email)
		switch errors.Cause(err) {
		case nil: // link the existing account
			usr.GoogleID = profile.GoogleID
			return svc.login(usr)
		case ErrNotFound:
		default:
			return User{}, errors.Wrap(err, "finding user by email")
		}
	}

	uname, err := svc.availableUsername(email)
	if err != nil {
		return User{}, err
	}
	now := time.Now().UTC()
	usr = User{
		Name:      core.CleanString(profile.Name),
		Username:  uname,
		Email:     email,
		GoogleID:  profile.GoogleID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: now,
	}
	if err = usr.SetPassword(uuid.NewString()); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(usr)
}

// availableUsername derives a free username from the local part of `email`, suffixing a counter on collision.
func (svc *Service) availableUsername(email string) (string, error) {
	base := strings.Trim(nonWordRegex.ReplaceAllString(strings.SplitN(email, "@", 2)[0], "_"), "_")
	if base == "" {
		base = "user"
	}
	uname := base
	for i := 1; ; i++ {
		_, err := svc.repo.GetUserByUsername(uname)
		if errors.Cause(err) == ErrNotFound {
			return uname, nil
		}
		if err != nil {
			return "", errors.Wrap(err, "checking username uniqueness")
		}
		uname = fmt.Sprintf("%s%d", base, i)
	}
}

func (svc *Service) GetByID(id int) (User, error) {
	return svc.repo.GetUserByID(id)
}

func (svc *Service) GetByUsername(uname string) (User, error) {
	return svc.repo.GetUserByUsername(core.CleanString(uname, true /* lower */))
}

// ResetPassword sets a new password, enforcing the password policy.
func (svc *Service) ResetPassword(rp ResetUserPassword) (User, error) {
	rp.Username = core.CleanString(rp.Username, true /* lower */)
	if err := svc.validate.Struct(rp); err != nil {
		return User{}, err
	}
	usr, err := svc.repo.GetUserByUsername(rp.Username)
	if err != nil {
		return User{}, err
	}
	if err = usr.SetPassword(rp.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(usr)
}
