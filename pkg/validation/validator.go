package validation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// Validate is the global validator instance
	Validate *validator.Validate

	uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
)

func init() {
	Validate = validator.New()

	// Register custom validators
	_ = Validate.RegisterValidation("latitude", validateLatitude)
	_ = Validate.RegisterValidation("longitude", validateLongitude)
	_ = Validate.RegisterValidation("radius_meters", validateRadiusMeters)
	_ = Validate.RegisterValidation("zoom", validateZoom)
	_ = Validate.RegisterValidation("layer_kind", validateLayerKind)
}

// ValidationError aggregates per-field validation failures
type ValidationError struct {
	Errors map[string]string
}

// Error returns a human-readable summary of all field errors
func (ve *ValidationError) Error() string {
	if len(ve.Errors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(ve.Errors))
	for field := range ve.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, ve.Errors[field]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AddError records a validation failure for a field
func (ve *ValidationError) AddError(field, message string) {
	if ve.Errors == nil {
		ve.Errors = make(map[string]string)
	}
	ve.Errors[field] = message
}

// HasErrors reports whether any field failed validation
func (ve *ValidationError) HasErrors() bool {
	return len(ve.Errors) > 0
}

// GetFieldError returns the recorded message for a field, if any
func (ve *ValidationError) GetFieldError(field string) (string, bool) {
	msg, ok := ve.Errors[field]
	return msg, ok
}

// NewValidationError converts validator.ValidationErrors into a ValidationError
func NewValidationError(errs validator.ValidationErrors) *ValidationError {
	ve := &ValidationError{Errors: make(map[string]string)}
	for _, fieldErr := range errs {
		ve.Errors[strings.ToLower(fieldErr.Field())] = messageForTag(fieldErr)
	}
	return ve
}

func messageForTag(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "this field is required"
	case "latitude":
		return "latitude must be between -90 and 90"
	case "longitude":
		return "longitude must be between -180 and 180"
	case "radius_meters":
		return "radius must be between 1 and 50000 meters"
	case "zoom":
		return "zoom must be between 0 and 22"
	case "layer_kind":
		return "layer must be one of: flow, incidents"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fieldErr.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fieldErr.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fieldErr.Param())
	default:
		return fmt.Sprintf("failed validation on '%s'", fieldErr.Tag())
	}
}

// ValidateStruct validates a struct and returns a ValidationError if validation fails
func ValidateStruct(s interface{}) error {
	err := Validate.Struct(s)
	if err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return NewValidationError(validationErrors)
		}
		return err
	}
	return nil
}

// validateLatitude checks if latitude is within valid range (-90 to 90)
func validateLatitude(fl validator.FieldLevel) bool {
	latitude := fl.Field().Float()
	return latitude >= -90.0 && latitude <= 90.0
}

// validateLongitude checks if longitude is within valid range (-180 to 180)
func validateLongitude(fl validator.FieldLevel) bool {
	longitude := fl.Field().Float()
	return longitude >= -180.0 && longitude <= 180.0
}

// validateRadiusMeters checks if a query radius is sane
func validateRadiusMeters(fl validator.FieldLevel) bool {
	radius := fl.Field().Int()
	return radius >= 1 && radius <= 50000
}

// validateZoom checks if a map zoom level is within the web tile range
func validateZoom(fl validator.FieldLevel) bool {
	zoom := fl.Field().Float()
	return zoom >= 0 && zoom <= 22
}

// validateLayerKind checks if a layer name is one we render
func validateLayerKind(fl validator.FieldLevel) bool {
	kind := strings.ToLower(strings.TrimSpace(fl.Field().String()))
	return kind == "flow" || kind == "incidents"
}

// ValidateCoordinates validates latitude and longitude
func ValidateCoordinates(latitude, longitude float64) error {
	if latitude < -90.0 || latitude > 90.0 {
		return fmt.Errorf("latitude must be between -90 and 90, got: %f", latitude)
	}
	if longitude < -180.0 || longitude > 180.0 {
		return fmt.Errorf("longitude must be between -180 and 180, got: %f", longitude)
	}
	return nil
}

// ValidateUUID validates UUID format
func ValidateUUID(uuid string) bool {
	return uuidRegex.MatchString(uuid)
}
