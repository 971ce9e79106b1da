package proto

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct tags of a decoded payload.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

// Decode unmarshals and validates the payload of an envelope.
func Decode(in Inbound, v any) error {
	if err := DecodeData(in, v); err != nil {
		return err
	}
	return Validate(v)
}
