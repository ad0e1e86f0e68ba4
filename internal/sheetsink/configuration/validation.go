package configuration

import (
	"github.com/go-playground/validator/v10"
)

func (c SheetSinkConfiguration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	return c.Logging.Validate()
}

func (c SinkConfiguration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}
