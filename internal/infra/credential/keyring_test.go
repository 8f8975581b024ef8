package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RoundTrip(t *testing.T) {
	s := NewStore(keyring.NewArrayKeyring(nil))

	_, err := s.Get("me@uni.edu")
	assert.ErrorIs(t, err, keyring.ErrKeyNotFound)

	require.NoError(t, s.Set("me@uni.edu", "app-password"))
	pw, err := s.Get("me@uni.edu")
	require.NoError(t, err)
	assert.Equal(t, "app-password", pw)

	require.NoError(t, s.Delete("me@uni.edu"))
	_, err = s.Get("me@uni.edu")
	assert.Error(t, err)
}
