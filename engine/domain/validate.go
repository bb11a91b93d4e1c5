package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// MaxK bounds both result sizes a caller may ask for.
const MaxK = 100

// Request is an inbound recommendation request. Nil coordinates and zero
// sizes mean "use the service default".
type Request struct {
	Item     string   `json:"item" validate:"required,max=200"`
	Lat      *float64 `json:"lat,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Lon      *float64 `json:"lon,omitempty" validate:"omitempty,gte=-180,lte=180"`
	KSimilar int      `json:"k_similar,omitempty" validate:"omitempty,gte=1,lte=100"`
	KWeather int      `json:"k_weather,omitempty" validate:"omitempty,gte=1,lte=100"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ValidateRequest checks field bounds. The first failing field is reported as
// a *ValidationError wrapping ErrInvalidRequest.
func ValidateRequest(r Request) error {
	err := requestValidator().Struct(r)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return NewValidationError(fe.Field(), valueString(fe.Value()), fmt.Errorf("%w: failed %q", ErrInvalidRequest, fe.Tag()))
	}
	return NewValidationError("request", "", fmt.Errorf("%w: %v", ErrInvalidRequest, err))
}

func valueString(v any) string {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return ""
	}
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return ""
		}
		rv = rv.Elem()
	}
	return fmt.Sprint(rv.Interface())
}
