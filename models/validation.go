package models

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator"
)

var (
	validate *validator.Validate

	phoneDigitsRegex = regexp.MustCompile(`^\+?[0-9]{10,15}$`)
	whitespaceRegex  = regexp.MustCompile(`\s`)
)

// ValidationError is returned for caller-side input problems, always before any
// store call is made.
type ValidationError struct {
	Errors []string
}

func NewValidationError(msgs ...string) *ValidationError {
	return &ValidationError{Errors: msgs}
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Errors, "; ")
}

func IsValidationError(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := registerValidators(validate); err != nil {
		panic(err)
	}
}

// Validate runs struct validation on a DTO and converts failures into a
// *ValidationError.
func Validate(dto interface{}) error {
	err := validate.Struct(dto)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	msgs := []string{}
	for _, fieldErr := range fieldErrs {
		msgs = append(msgs, fieldErrorMessage(fieldErr))
	}
	return NewValidationError(msgs...)
}

// IsValidPhoneDigits reports whether raw, once whitespace is removed, holds
// 10 to 15 digits with an optional leading '+'.
func IsValidPhoneDigits(raw string) bool {
	return phoneDigitsRegex.MatchString(whitespaceRegex.ReplaceAllString(raw, ""))
}

func registerValidators(validate *validator.Validate) error {
	err := validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("phone_digits", func(fl validator.FieldLevel) bool {
		return IsValidPhoneDigits(fl.Field().String())
	})
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("essential_item", func(fl validator.FieldLevel) bool {
		return EssentialItem(fl.Field().String()).Valid()
	})
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("support_status", func(fl validator.FieldLevel) bool {
		return SupportStatus(fl.Field().String()).Persisted()
	})
	if err != nil {
		return err
	}

	validate.RegisterStructValidation(helpRecordLocationValidation, CreateHelpRecordDto{})
	return nil
}

// helpRecordLocationValidation enforces the location convention: coordinates for
// requests made for oneself, an address or map link otherwise.
func helpRecordLocationValidation(sl validator.StructLevel) {
	dto := sl.Current().Interface().(CreateHelpRecordDto)

	if dto.AdultCount+dto.ChildCount <= 0 {
		sl.ReportError(dto.AdultCount, "adultCount", "AdultCount", "headcount", "")
	}

	if dto.IsForSelf {
		if dto.Latitude == nil || dto.Longitude == nil {
			sl.ReportError(dto.Latitude, "latitude", "Latitude", "self_location", "")
		}
		return
	}

	if strings.TrimSpace(dto.Address) == "" && strings.TrimSpace(dto.MapLink) == "" {
		sl.ReportError(dto.Address, "address", "Address", "other_location", "")
	}
}

func fieldErrorMessage(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "phone_digits":
		return fmt.Sprintf("'%v' must be a phone number of 10-15 digits", fieldErr.Field())
	case "essential_item":
		return fmt.Sprintf("'%v' must be one of Medical, Food, Clothes, Tools", fieldErr.Field())
	case "headcount":
		return "at least one adult or child is required"
	case "self_location":
		return "latitude and longitude are required when the request is for yourself"
	case "other_location":
		return "an address or map link is required when the request is for someone else"
	case "notblank", "required":
		return fmt.Sprintf("'%v' is required", fieldErr.Field())
	}

	return fmt.Sprintf("'%v' failed on the '%v' rule", fieldErr.Field(), fieldErr.Tag())
}
