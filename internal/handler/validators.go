package handler

import (
	"regexp"

	"phcportal/internal/model"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var psnPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9/\-]{0,49}$`)

// RegisterValidators adds the domain binding tags used by the request DTOs:
// psn (personnel service number) and lga (a Kwara State LGA).
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	if err := v.RegisterValidation("psn", func(fl validator.FieldLevel) bool {
		return psnPattern.MatchString(fl.Field().String())
	}); err != nil {
		return err
	}
	return v.RegisterValidation("lga", func(fl validator.FieldLevel) bool {
		return model.IsKwaraLGA(fl.Field().String())
	})
}
