package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, "region", func(fl validator.FieldLevel) bool {
		return Region(fl.Field().String()).IsValid()
	})
	return v
}

// mustRegister adds a custom rule and panics if the validator rejects it.
func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("model: registering %q validation: %v", tag, err))
	}
}

// validateStruct runs the struct tags and converts failures to FieldErrors.
func validateStruct(s interface{}) []FieldError {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "", Message: err.Error()}}
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return fields
}

func fieldMessage(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "max":
		return fmt.Sprintf("%s must be %s characters or less", name, fe.Param())
	case "min":
		if fe.Param() == "1" {
			return name + " cannot be empty"
		}
		return fmt.Sprintf("%s must be at least %s characters", name, fe.Param())
	case "email":
		return name + " must be a valid email address"
	case "url":
		return name + " must be a valid URL"
	case "region":
		return fmt.Sprintf("%s must be one of: %s", name, regionList())
	default:
		return fmt.Sprintf("%s failed %s validation", name, fe.Tag())
	}
}

func regionList() string {
	names := make([]string, len(Regions))
	for i, r := range Regions {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}
