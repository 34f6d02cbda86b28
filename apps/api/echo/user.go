package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/user"
)

type (
	userApi struct {
		svc  *user.Service
		auth *authenticator
	}

	googleLoginRequest struct {
		Credential string `json:"credential"`
	}

	loginResponse struct {
		Success bool      `json:"success"`
		Token   string    `json:"token"`
		User    user.User `json:"user"`
	}

	authStatus struct {
		Authenticated bool   `json:"authenticated"`
		Username      string `json:"username,omitempty"`
	}
)

func registerUserAPI(g *echo.Group, auth *authenticator, svc *user.Service) {
	api := userApi{svc: svc, auth: auth}

	g.POST("/signup", api.signup)
	g.POST("/login", api.login)
	g.POST("/google_login", api.googleLogin)
	g.POST("/logout", api.logout)
	g.GET("/check_auth", api.checkAuth, auth.middleware(true))
}

// Handlers

func (api *userApi) signup(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	usr, err := api.svc.Signup(data)
	if err != nil {
		return errors.Wrap(err, "signing up")
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"success": true, "user": usr})
}

func (api *userApi) login(ctx echo.Context) error {
	var data user.Credentials
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Credentials")
	}
	usr, err := api.svc.Authenticate(data)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	return api.respondWithToken(ctx, usr)
}

func (api *userApi) googleLogin(ctx echo.Context) error {
	var data googleLoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to googleLoginRequest")
	}
	usr, err := api.svc.SignInWithGoogle(data.Credential)
	if err != nil {
		return errors.Wrap(err, "signing in with google")
	}
	return api.respondWithToken(ctx, usr)
}

func (api *userApi) respondWithToken(ctx echo.Context, usr user.User) error {
	token, err := api.auth.login(ctx, usr)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, loginResponse{Success: true, Token: token, User: usr})
}

// logout drops the token cookie, bearer tokens simply expire.
func (api *userApi) logout(ctx echo.Context) error {
	api.auth.logout(ctx)
	return ctx.JSON(http.StatusOK, echo.Map{"success": true})
}

func (api *userApi) checkAuth(ctx echo.Context) error {
	usr, err := loadContextUser(ctx, api.svc)
	if err != nil {
		if errors.Cause(err) == errUnauthorized {
			return ctx.JSON(http.StatusOK, authStatus{})
		}
		return err
	}
	if !usr.IsActive {
		return ctx.JSON(http.StatusOK, authStatus{})
	}
	return ctx.JSON(http.StatusOK, authStatus{Authenticated: true, Username: usr.Username})
}
