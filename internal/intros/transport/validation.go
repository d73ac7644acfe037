package transport

import (
	"intro_sales_backend/internal/intros/domain"
	"intro_sales_backend/platform/validator"

	playground "github.com/go-playground/validator/v10"
)

// StaffNameTag rejects blank, placeholder and timestamp-looking staff values.
const StaffNameTag = "staffname"

// RegisterValidations adds the intro-specific tags to val.
func RegisterValidations(val *validator.Validator) error {
	return val.RegisterValidation(StaffNameTag, func(fl playground.FieldLevel) bool {
		return domain.IsUsableStaffValue(fl.Field().String())
	})
}
