package echoapi

import (
	"fmt"
	"math"
	"net/http"

	"github.com/labstack/echo/v4"
)

// horizon binds the integer query param `name` (at least `least` days), falling back to `def` when absent.
func horizon(ctx echo.Context, name string, def, least int) (int, error) {
	days := def
	if err := echo.QueryParamsBinder(ctx).Int(name, &days).BindError(); err != nil {
		return 0, err
	}
	if days < least {
		return 0, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s must be at least %d", name, least))
	}
	return days, nil
}

// round rounds `v` half away from zero to `places` decimals.
func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
