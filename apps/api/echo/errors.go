package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/profile"
	"github.com/trezcool/mahudhurio/core/user"
	"github.com/trezcool/mahudhurio/services/spreadsheet"
)

var (
	errUnauthorized       = echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
	errAccountDeactivated = echo.NewHTTPError(http.StatusForbidden, "Account deactivated")
	errNoFile             = echo.NewHTTPError(http.StatusBadRequest, "No file selected")
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		resp := errorResponse{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			code = origErr.Code
			if code == http.StatusUnauthorized {
				resp.Message = errUnauthorized.Message.(string)
				break
			}
			resp.Message = httpErrorMessage(origErr)
		case *echo.BindingError:
			code = http.StatusBadRequest
			resp.Message = "invalid value for " + origErr.Field
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			resp.Errors = make(map[string]string, len(origErr))
			for i, vErr := range origErr {
				msg := vErr.Error()
				if translator != nil {
					msg = vErr.Translate(translator)
				}
				resp.Errors[vErr.Field()] = msg
				if i == 0 {
					resp.Message = vErr.Field() + ": " + msg
				}
			}
		case *core.ValidationError:
			code = http.StatusBadRequest
			resp.Message = origErr.Error()
			if len(origErr.Fields) > 0 {
				resp.Errors = make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					resp.Errors[fErr.Field] = fErr.Error
				}
			}
		case *attendance.DataError, *spreadsheet.MissingColumnsError:
			code = http.StatusBadRequest
			resp.Message = origErr.Error()
		default:
			code, resp.Message = sentinelStatus(origErr)
			if code != 0 {
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			resp.Message = msg
			if ctx.Echo().Debug {
				resp.Message = err.Error()
			}

			if logger != nil {
				extras := []interface{}{errors.Wrap(err, msg), map[string]interface{}{
					"method":     ctx.Request().Method,
					"path":       ctx.Path(),
					"request_id": ctx.Response().Header().Get(echo.HeaderXRequestID),
				}}
				if usr, uErr := getContextUser(ctx); uErr == nil {
					extras = append(extras, usr)
				}
				logger.Error(msg, extras...)
			}

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, resp)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// sentinelStatus maps the domain sentinel errors to their HTTP status & message, code is 0 for unknown errors.
func sentinelStatus(err error) (code int, message string) {
	switch err {
	case user.ErrAuthenticationFailed:
		return http.StatusBadRequest, err.Error()
	case user.ErrAccountDeactivated:
		return http.StatusForbidden, errAccountDeactivated.Message.(string)
	case user.ErrGoogleDisabled:
		return http.StatusNotImplemented, "Google sign-in is not available."
	case user.ErrNotFound:
		return http.StatusNotFound, "User not found."
	case profile.ErrNotFound:
		return http.StatusNotFound, "No data found for user."
	case profile.ErrNoAttendance:
		return http.StatusNotFound, "No attendance data to plot."
	case spreadsheet.ErrUnsupportedFormat:
		return http.StatusBadRequest, err.Error()
	}
	return 0, ""
}

func httpErrorMessage(herr *echo.HTTPError) string {
	if msg, ok := herr.Message.(string); ok {
		return msg
	}
	return http.StatusText(herr.Code)
}
