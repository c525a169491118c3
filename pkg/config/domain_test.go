package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainRegistryGetAndLen(t *testing.T) {
	domains := map[string]*DomainConfig{
		"immigration": {Slug: "immigration", Name: "Immigration Enforcement"},
	}
	r := NewDomainRegistry(domains)

	assert.Equal(t, 1, r.Len())

	d, err := r.Get("immigration")
	require.NoError(t, err)
	assert.Equal(t, "Immigration Enforcement", d.Name)

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, ErrDomainNotFound)
}

func TestDomainRegistryGetAllReturnsCopy(t *testing.T) {
	domains := map[string]*DomainConfig{
		"immigration": {Slug: "immigration", Name: "Immigration Enforcement"},
	}
	r := NewDomainRegistry(domains)

	all := r.GetAll()
	delete(all, "immigration")

	// Mutating the returned map must not affect the registry.
	assert.Equal(t, 1, r.Len())
}
