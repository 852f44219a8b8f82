package validation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrInvalidCountryCodes is returned for malformed country filter lists.
	ErrInvalidCountryCodes = errors.New("country codes must be a comma-separated list of 2-letter codes")
	// ErrInvalidViewbox is returned for malformed viewbox filters.
	ErrInvalidViewbox = errors.New("viewbox must be four comma-separated numbers: left,top,right,bottom")
)

// ValidateCountryCodes checks a comma-separated list of ISO 3166-1 alpha-2
// codes such as "de,at". Empty is valid.
func ValidateCountryCodes(list string) error {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	for _, code := range strings.Split(list, ",") {
		code = strings.TrimSpace(code)
		if len(code) != 2 {
			return fmt.Errorf("%w: %q", ErrInvalidCountryCodes, code)
		}
		for _, r := range code {
			if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
				return fmt.Errorf("%w: %q", ErrInvalidCountryCodes, code)
			}
		}
	}
	return nil
}

// ValidateViewbox checks a "left,top,right,bottom" box in degrees. Empty is valid.
func ValidateViewbox(box string) error {
	if strings.TrimSpace(box) == "" {
		return nil
	}
	parts := strings.Split(box, ",")
	if len(parts) != 4 {
		return ErrInvalidViewbox
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidViewbox, p)
		}
		limit := 180.0
		if i%2 == 1 {
			limit = 90.0
		}
		if v < -limit || v > limit {
			return fmt.Errorf("%w: %q out of range", ErrInvalidViewbox, p)
		}
	}
	return nil
}

// New returns a validator with the geo tags registered:
//
//	countrycodes  comma-separated alpha-2 codes
//	viewbox       left,top,right,bottom
//	tileurl       tile URL template with {z}, {x} and {y}
//	serviceurl    http(s) endpoint without query or fragment
func New() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("countrycodes", func(fl validator.FieldLevel) bool {
		return ValidateCountryCodes(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("viewbox", func(fl validator.FieldLevel) bool {
		return ValidateViewbox(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("tileurl", func(fl validator.FieldLevel) bool {
		return ValidateTileURL(fl.Field().String(), fl.FieldName()) == nil
	})
	_ = v.RegisterValidation("serviceurl", func(fl validator.FieldLevel) bool {
		return ValidateServiceURL(fl.Field().String(), fl.FieldName()) == nil
	})
	return v
}
