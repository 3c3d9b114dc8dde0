package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := resolveURL("")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoDatabaseURL)

	url, err := resolveURL("postgres://localhost/planloop")
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/planloop", url)

	// Environment fallback when the config is silent.
	t.Setenv("DATABASE_URL", "postgres://fallback/planloop")
	url, err = resolveURL("  ")
	require.NoError(t, err)
	assert.Equal(t, "postgres://fallback/planloop", url)

	// Config wins over environment.
	url, err = resolveURL("postgres://configured/planloop")
	require.NoError(t, err)
	assert.Equal(t, "postgres://configured/planloop", url)
}
