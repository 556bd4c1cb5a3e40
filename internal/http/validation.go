package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/logicinvent/project-portfolio-api/internal/domain"
)

const maxBodyBytes = 1 << 20

var (
	validate     *validator.Validate
	validateOnce sync.Once
	errValidate  error
	nowFunc      = time.Now
)

func initValidator() (*validator.Validate, error) {
	vld := validator.New(validator.WithRequiredStructEnabled())
	vld.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})

	if err := vld.RegisterValidation("nonnegative_decimal", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(decimal.Decimal)
		if !ok {
			return false
		}
		return !value.IsNegative()
	}); err != nil {
		return nil, fmt.Errorf("register nonnegative_decimal: %w", err)
	}

	if err := vld.RegisterValidation("notfuture", func(fl validator.FieldLevel) bool {
		parsed, err := time.Parse(time.DateOnly, fl.Field().String())
		if err != nil {
			// format errors are reported by the datetime tag
			return true
		}
		y, m, d := nowFunc().UTC().Date()
		return !parsed.After(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
	}); err != nil {
		return nil, fmt.Errorf("register notfuture: %w", err)
	}

	if err := vld.RegisterValidation("project_status", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseProjectStatus(fl.Field().String())
		return err == nil
	}); err != nil {
		return nil, fmt.Errorf("register project_status: %w", err)
	}
	return vld, nil
}

func getValidator() (*validator.Validate, error) {
	validateOnce.Do(func() {
		validate, errValidate = initValidator()
	})
	return validate, errValidate
}

var validationMessages = map[string]func(field, param string) string{
	"required":            func(f, _ string) string { return fmt.Sprintf("%s is required", f) },
	"gt":                  func(f, p string) string { return fmt.Sprintf("%s must be greater than %s", f, p) },
	"max":                 func(f, p string) string { return fmt.Sprintf("%s must be at most %s characters", f, p) },
	"datetime":            func(f, _ string) string { return fmt.Sprintf("%s must be a date formatted as YYYY-MM-DD", f) },
	"nonnegative_decimal": func(f, _ string) string { return fmt.Sprintf("%s must not be negative", f) },
	"notfuture":           func(f, _ string) string { return fmt.Sprintf("%s must not be in the future", f) },
	"project_status":      func(f, _ string) string { return fmt.Sprintf("%s is not a known project status", f) },
	"uuid":                func(f, _ string) string { return fmt.Sprintf("%s must be a valid UUID", f) },
}

// validateStruct checks validate tags and reports the first violation as a
// domain validation error.
func validateStruct(payload any) error {
	vld, err := getValidator()
	if err != nil {
		return err
	}
	if err := vld.Struct(payload); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			if format, ok := validationMessages[fe.Tag()]; ok {
				return domain.ValidationError(format(fe.Field(), fe.Param()))
			}
			return domain.ValidationError(fmt.Sprintf("%s is invalid", fe.Field()))
		}
		return domain.ValidationError(err.Error())
	}
	return nil
}

// decodeJSON reads a JSON body into dst and validates it.
func decodeJSON(req *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(req.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return domain.ValidationError("invalid JSON body")
	}
	return validateStruct(dst)
}

func parseDate(raw string) time.Time {
	t, _ := time.Parse(time.DateOnly, raw)
	return t
}

func parseOptionalDate(raw *string) *time.Time {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil
	}
	t := parseDate(*raw)
	return &t
}
