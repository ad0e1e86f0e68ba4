package config

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type exampleConfig struct {
	Name    string `validate:"required"`
	Workers int    `validate:"gt=0"`
}

func TestLogValidationErrors(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	err := validator.New().Struct(exampleConfig{Workers: -1})
	require.Error(t, err)
	LogValidationErrors(errors.WithMessage(err, "invalid config"))

	require.Len(t, hook.Entries, 2)
	messages := []string{hook.Entries[0].Message, hook.Entries[1].Message}
	assert.Contains(t, messages, "ConfigError: Field Name is required but was not found")
	assert.Contains(t, messages, "ConfigError: Field Workers has invalid value -1: gt")
	for _, e := range hook.Entries {
		assert.Equal(t, log.ErrorLevel, e.Level)
	}
}

func TestLogValidationErrors_OtherError(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	LogValidationErrors(errors.New("unknown log format"))
	LogValidationErrors(nil)

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "ConfigError: unknown log format", hook.LastEntry().Message)
}
