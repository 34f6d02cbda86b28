package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/user"
)

const (
	contextTokenKey = "userToken"
	contextUserKey  = "user"
	tokenCookie     = "token"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// UserID returns the ID of the user the token was issued to.
func (c Claims) UserID() (int, error) {
	return strconv.Atoi(c.Subject)
}

// authenticator issues and verifies the HS256 tokens of the API.
type authenticator struct {
	key    []byte
	issuer string
	ttl    time.Duration
}

func newAuthenticator(secret, issuer string, ttl time.Duration) *authenticator {
	return &authenticator{key: []byte(secret), issuer: issuer, ttl: ttl}
}

func (a *authenticator) claimsFor(usr user.User) *Claims {
	now := time.Now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   strconv.Itoa(usr.ID),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Username: usr.Username,
		Email:    usr.Email,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func (a *authenticator) GenerateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(a.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// middleware verifies the bearer token (or the token cookie).
// When `optional`, requests without a valid token go through unauthenticated.
func (a *authenticator) middleware(optional bool) echo.MiddlewareFunc {
	conf := echojwt.Config{
		SigningKey:    a.key,
		SigningMethod: echojwt.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		TokenLookup:   "header:Authorization:Bearer ,cookie:" + tokenCookie,
		NewClaimsFunc: func(echo.Context) jwt.Claims { return new(Claims) },
	}
	if optional {
		conf.ErrorHandler = func(echo.Context, error) error { return nil }
		conf.ContinueOnIgnoredError = true
	}
	return echojwt.WithConfig(conf)
}

// login issues a token for `usr`, also setting it as an http-only cookie.
func (a *authenticator) login(ctx echo.Context, usr user.User) (string, error) {
	claims := a.claimsFor(usr)
	token, err := a.GenerateToken(claims)
	if err != nil {
		return "", err
	}
	ctx.SetCookie(&http.Cookie{
		Name:     tokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  claims.ExpiresAt.Time,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

func (a *authenticator) logout(ctx echo.Context) {
	ctx.SetCookie(&http.Cookie{
		Name:     tokenCookie,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok && token.Valid {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUnauthorized
}
