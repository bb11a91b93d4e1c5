package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every typed error below matches one of these with errors.Is.
var (
	ErrCatalogLoad        = errors.New("catalog load failed")
	ErrItemNotFound       = errors.New("item not found")
	ErrWeatherUnavailable = errors.New("weather unavailable")
	ErrInvalidRequest     = errors.New("invalid request")
)

// CatalogLoadError reports a missing, empty or unparseable catalog. Row is the
// 1-based data row when the failure is tied to one, otherwise 0.
type CatalogLoadError struct {
	Source string
	Row    int
	Err    error
}

func (e *CatalogLoadError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("catalog: load %s: row %d: %v", e.Source, e.Row, e.Err)
	}
	return fmt.Sprintf("catalog: load %s: %v", e.Source, e.Err)
}

func (e *CatalogLoadError) Unwrap() error { return e.Err }

func (e *CatalogLoadError) Is(target error) bool { return target == ErrCatalogLoad }

// NewCatalogLoadError creates a CatalogLoadError.
func NewCatalogLoadError(source string, row int, err error) *CatalogLoadError {
	return &CatalogLoadError{Source: source, Row: row, Err: err}
}

// ItemNotFoundError reports a recipe name with no catalog row.
type ItemNotFoundError struct {
	Name string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("%q not found in catalog", e.Name)
}

func (e *ItemNotFoundError) Is(target error) bool { return target == ErrItemNotFound }

// WeatherUnavailableError reports a failed, timed out or malformed weather lookup.
type WeatherUnavailableError struct {
	Reason string
	Err    error
}

func (e *WeatherUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("weather unavailable: %s: %v", e.Reason, e.Err)
	}
	return "weather unavailable: " + e.Reason
}

func (e *WeatherUnavailableError) Unwrap() error { return e.Err }

func (e *WeatherUnavailableError) Is(target error) bool { return target == ErrWeatherUnavailable }

// NewWeatherUnavailableError creates a WeatherUnavailableError.
func NewWeatherUnavailableError(reason string, err error) *WeatherUnavailableError {
	return &WeatherUnavailableError{Reason: reason, Err: err}
}

// ValidationError wraps a sentinel with the offending field.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
