package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/xerrors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

/*
Validate checks a configuration section,
the first failed field becomes an *Error keyed by its YAML path
*/
func Validate(s interface{}, prefix string) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !xerrors.As(err, &ve) || len(ve) == 0 {
		return &Error{Key: prefix, Err: err}
	}
	fe := ve[0]
	key := fe.Namespace()
	if i := strings.IndexByte(key, '.'); i >= 0 {
		key = key[i+1:]
	}
	if prefix != "" {
		key = prefix + "." + key
	}
	return &Error{Key: key, Err: xerrors.New(describe(fe))}
}

func describe(fe validator.FieldError) string {
	param := fe.Param()
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must have at least %s elements", param)
	case "len":
		return fmt.Sprintf("must have length %s, got %v", param, fe.Value())
	case "oneof":
		return fmt.Sprintf("must be one of: %s, got %v", strings.Replace(param, " ", ", ", -1), fe.Value())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s, got %v", param, fe.Value())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s, got %v", param, fe.Value())
	case "gt":
		return fmt.Sprintf("must be greater than %s, got %v", param, fe.Value())
	case "lt":
		return fmt.Sprintf("must be less than %s, got %v", param, fe.Value())
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}
