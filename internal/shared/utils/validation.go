package utils

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/worldvpn/broker/internal/shared/errors"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Use JSON tag names for validation errors
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidators(validate)

	// gin's binding validator needs the same custom tags for `binding:"..."`
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		registerCustomValidators(v)
	}
}

func registerCustomValidators(v *validator.Validate) {
	_ = v.RegisterValidation("countrycode", validateCountryCode)
}

// validateCountryCode accepts ISO 3166-1 alpha-2 region codes.
func validateCountryCode(fl validator.FieldLevel) bool {
	return IsValidCountryCode(fl.Field().String())
}

// IsValidCountryCode reports whether the value parses as an ISO 3166-1
// alpha-2 region code ("FR", "us"). The wildcard "*" is not a country code.
func IsValidCountryCode(code string) bool {
	if len(code) != 2 {
		return false
	}
	region, err := language.ParseRegion(code)
	if err != nil {
		return false
	}
	return region.IsCountry()
}

// NormalizeCountryCode upper-cases a validated country code for storage.
func NormalizeCountryCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CountryName renders a country code as its English display name ("DE" ->
// "Germany"). Unknown codes come back unchanged.
func CountryName(code string) string {
	region, err := language.ParseRegion(code)
	if err != nil {
		return code
	}
	if name := display.English.Regions().Name(region); name != "" {
		return name
	}
	return code
}

// ValidateStruct validates a struct and returns a user-friendly error
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok || len(validationErrors) == 0 {
		return errors.NewValidationError("validation failed")
	}

	first := validationErrors[0]
	return errors.NewValidationError(
		fmt.Sprintf("field %s failed on the %s rule", first.Field(), first.Tag()),
	)
}
