package handler

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/makerforge/print-api/internal/domain/customer"
	"github.com/makerforge/print-api/internal/domain/order"
	"github.com/makerforge/print-api/internal/domain/stl"
)

var validate = newValidator()

// newValidator builds the request validator. Field names in error detail
// come from json tags, enum checks reuse the domain allow-lists.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "material", func(fl validator.FieldLevel) bool {
		return stl.ValidMaterial(fl.Field().String())
	})
	mustRegister(v, "colour", func(fl validator.FieldLevel) bool {
		return stl.ValidColour(fl.Field().String())
	})
	mustRegister(v, "quality_tier", func(fl validator.FieldLevel) bool {
		return stl.ValidQuality(fl.Field().String())
	})
	mustRegister(v, "shipping_tier", func(fl validator.FieldLevel) bool {
		return stl.ValidShipping(fl.Field().String())
	})
	mustRegister(v, "phone_digits", func(fl validator.FieldLevel) bool {
		return customer.NormalizePhone(fl.Field().String()) != ""
	})

	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

// checkValid runs the validator and converts failures into the field-level
// error list the envelope carries. Every violation is reported, not just the
// first.
func checkValid(req any) *order.ValidationError {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	vErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return &order.ValidationError{Fields: []order.FieldError{
			{Field: "request", Message: err.Error()},
		}}
	}

	fields := make([]order.FieldError, len(vErrs))
	for i, fe := range vErrs {
		fields[i] = order.FieldError{
			Field:   fieldPath(fe.Namespace()),
			Message: fieldMessage(fe),
		}
	}
	return &order.ValidationError{Fields: fields}
}

// fieldPath strips the root struct name from a validator namespace, leaving
// the json path including slice indexes, e.g. "stlFiles[1].material".
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be %s or greater", fe.Param())
	case "material":
		return "must be one of " + strings.Join(stl.Materials, ", ")
	case "colour":
		return "must be one of " + strings.Join(stl.Colours, ", ")
	case "quality_tier":
		return "must be one of " + strings.Join(stl.Qualities, ", ")
	case "shipping_tier":
		return "must be one of " + strings.Join(stl.Shippings, ", ")
	case "phone_digits":
		return "must contain at least one digit"
	default:
		return "is invalid"
	}
}
