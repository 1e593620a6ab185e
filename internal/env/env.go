// Package env populates configuration structs from environment variables.
// Fields opt in with an `env:"VAR_NAME"` tag; nested structs are walked
// recursively and validated through the Validator interface after loading.
package env

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"
)

// Validator is implemented by config structs that check their own invariants.
// Load calls Validate on every nested struct that implements it, then on the
// root struct.
type Validator interface {
	Validate() error
}

// InvalidValueError reports an environment variable whose value could not be
// parsed into the target field.
type InvalidValueError struct {
	Field  string
	EnvVar string
	Value  string
	Err    error
}

func (e InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value for %s=%q (field: %s): %v", e.EnvVar, e.Value, e.Field, e.Err)
}

func (e InvalidValueError) Unwrap() error {
	return e.Err
}

// NotStructPointerError is returned when Load receives anything other than a
// pointer to a struct.
type NotStructPointerError struct {
	Type string
}

func (e NotStructPointerError) Error() string {
	return fmt.Sprintf("env.Load: argument must be a pointer to struct, got %s", e.Type)
}

// UnsupportedTypeError is returned for tagged fields of a kind the loader
// does not handle.
type UnsupportedTypeError struct {
	Kind string
}

func (e UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported type: %s", e.Kind)
}

// Load fills v from the process environment.
//
// Supported field types: string, bool, the int family, uint family, and
// time.Duration (Go duration strings such as "30s" or "2h45m"). Unset
// variables leave the field untouched, so callers seed defaults before
// calling Load and validate afterwards through Validator.
func Load(v any) error {
	ptrVal := reflect.ValueOf(v)
	if ptrVal.Kind() != reflect.Pointer || ptrVal.Elem().Kind() != reflect.Struct {
		return NotStructPointerError{Type: fmt.Sprintf("%T", v)}
	}

	if err := parseStruct(ptrVal.Elem()); err != nil {
		return err
	}

	if validator, ok := v.(Validator); ok {
		if err := validator.Validate(); err != nil {
			return err
		}
	}

	return nil
}

func parseStruct(val reflect.Value) error {
	typ := val.Type()

	for i := range val.NumField() {
		field := val.Field(i)
		structField := typ.Field(i)

		if !field.CanSet() {
			continue
		}

		// Recurse into nested config structs. time.Time is a struct but
		// never a config section.
		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Time{}) {
			if err := parseStruct(field); err != nil {
				return err
			}

			if field.CanAddr() {
				if validator, ok := field.Addr().Interface().(Validator); ok {
					if err := validator.Validate(); err != nil {
						return err
					}
				}
			}
			continue
		}

		envKey := structField.Tag.Get("env")
		if envKey == "" {
			continue
		}

		envVal, exists := os.LookupEnv(envKey)
		if !exists {
			continue
		}

		if err := setField(field, envVal); err != nil {
			return InvalidValueError{
				Field:  structField.Name,
				EnvVar: envKey,
				Value:  envVal,
				Err:    err,
			}
		}
	}

	return nil
}

func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
		return nil

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
		return nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}

		i, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(i)
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetUint(u)
		return nil

	default:
		return UnsupportedTypeError{Kind: field.Kind().String()}
	}
}
