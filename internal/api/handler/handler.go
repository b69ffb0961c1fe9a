// Package handler provides HTTP handlers for the AirView API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/breatheroute/airview/internal/airquality"
	"github.com/breatheroute/airview/internal/api/models"
	"github.com/breatheroute/airview/internal/api/response"
	"github.com/breatheroute/airview/internal/dashboard"
	"github.com/breatheroute/airview/internal/view"
)

const maxBodyBytes = 1 << 16

// Dashboard is the controller surface driven by the HTTP API.
type Dashboard interface {
	SetLocation(ctx context.Context, coord airquality.Coordinate) error
	SearchCity(ctx context.Context, name string) error
	SetPosition(ctx context.Context, value int) error
	Snapshot(ctx context.Context) (dashboard.Snapshot, error)
}

// Board holds the rendered view and streams its changes.
type Board interface {
	View() view.View
	Subscribe() (<-chan view.Event, func())
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads and validates a request body. On failure it writes a
// 400 problem and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			response.BadRequest(w, r, "request validation failed", fieldErrors(verrs))
			return false
		}
		response.BadRequest(w, r, err.Error(), nil)
		return false
	}
	return true
}

func fieldErrors(verrs validator.ValidationErrors) []models.FieldError {
	out := make([]models.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, models.FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
			Code:    fe.Tag(),
		})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}
