package pipeline

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/MeKo-Tech/congestionmap/internal/types"
	"github.com/go-playground/validator/v10"
)

// Request is one analysis query: a point and a radius in meters.
type Request struct {
	Lat    float64 `json:"latitude" validate:"latitude"`
	Lng    float64 `json:"longitude" validate:"longitude"`
	Radius float64 `json:"radius" validate:"gt=0"`
}

// Center returns the query point.
func (r Request) Center() types.GeoPoint {
	return types.GeoPoint{Lat: r.Lat, Lon: r.Lng}
}

func (r Request) String() string {
	return fmt.Sprintf("(%.6f, %.6f) r=%gm", r.Lat, r.Lng, r.Radius)
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

// Validate checks the request before any network activity. Failures are
// reported as *types.InvalidInputError.
func (r Request) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("failed to validate request: %w", err)
	}
	fe := fieldErrs[0]
	return &types.InvalidInputError{
		Field:      fe.Field(),
		Value:      fe.Value(),
		Constraint: constraintText(fe),
	}
}

func constraintText(fe validator.FieldError) string {
	switch fe.Tag() {
	case "latitude":
		return "within [-90, 90]"
	case "longitude":
		return "within [-180, 180]"
	case "gt":
		return "greater than " + fe.Param()
	default:
		return "valid (" + fe.Tag() + ")"
	}
}
