package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/keilos1/harvestplan/app"
	"github.com/keilos1/harvestplan/core/lp"
	"github.com/keilos1/harvestplan/core/model"
	coremon "github.com/keilos1/harvestplan/core/monitoring"
	"github.com/keilos1/harvestplan/core/optimizer"
)

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	var verr validator.ValidationErrors
	switch {
	case errors.As(err, &verr), errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrExists):
		return http.StatusConflict
	case errors.Is(err, optimizer.ErrInsufficientData),
		errors.Is(err, optimizer.ErrNoObjectiveTerms),
		errors.Is(err, app.ErrIncompleteData),
		errors.Is(err, lp.ErrInfeasible),
		errors.Is(err, lp.ErrUnbounded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// errorHandler renders every error as {"error": message}.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := statusOf(err)
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
	}
	if code == http.StatusInternalServerError {
		coremon.CaptureException(err, map[string]string{"module": "api", "path": c.Path()})
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, echo.Map{"error": msg})
}

func badRequest(msg string) error { return echo.NewHTTPError(http.StatusBadRequest, msg) }
