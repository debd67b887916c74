package backend

import (
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	validate.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		return ValidClock(fl.Field().String())
	})
	validate.RegisterValidation("day", func(fl validator.FieldLevel) bool {
		return ValidDay(fl.Field().String())
	})
	validate.RegisterValidation("datetime_iso", func(fl validator.FieldLevel) bool {
		_, err := ParseTimestamp(fl.Field().String())
		return err == nil
	})
}

// Validator exposes the shared instance so domain packages register their
// input rules against the same tags.
func Validator() *validator.Validate {
	return validate
}

// checkSchema runs struct validation on a decoded payload, walking slices
// of structs element by element.
func checkSchema(out any) error {
	v := reflect.ValueOf(out)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Struct:
		return validate.Struct(v.Addr().Interface())
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			elem := v.Index(i)
			for elem.Kind() == reflect.Pointer {
				if elem.IsNil() {
					return fmt.Errorf("element %d is null", i)
				}
				elem = elem.Elem()
			}
			if elem.Kind() != reflect.Struct {
				continue
			}
			if err := validate.Struct(elem.Addr().Interface()); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
	}
	return nil
}
