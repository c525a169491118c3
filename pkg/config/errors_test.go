package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorFormatting(t *testing.T) {
	withField := NewValidationError("stage", "stage1", "provider", ErrMissingRequiredField)
	assert.Contains(t, withField.Error(), "stage 'stage1'")
	assert.Contains(t, withField.Error(), "field 'provider'")
	assert.True(t, errors.Is(withField, ErrMissingRequiredField))

	withoutField := NewValidationError("domain", "immigration", "", ErrInvalidReference)
	assert.NotContains(t, withoutField.Error(), "field")
}

func TestLoadErrorFormatting(t *testing.T) {
	err := NewLoadError("ingest.yaml", ErrConfigNotFound)
	assert.Contains(t, err.Error(), "ingest.yaml")
	assert.True(t, errors.Is(err, ErrConfigNotFound))
}
