package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassword_RoundTrip(t *testing.T) {
	hashed, err := HashPassword("s3cret", 4)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hashed, "s3cret"))
	assert.Error(t, ComparePassword(hashed, "wrong"))
}

func TestPassword_InvalidCostFallsBack(t *testing.T) {
	hashed, err := HashPassword("s3cret", 99)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hashed, "s3cret"))

	hashed, err = HashPassword("s3cret", 0)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hashed, "s3cret"))
}
