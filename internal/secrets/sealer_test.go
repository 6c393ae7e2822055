package secrets

import (
	"testing"

	"filippo.io/age"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jar = `[{"name":"li_at","value":"abc","domain":".linkedin.com"}]`

func newIdentity(t *testing.T) string {
	t.Helper()
	id, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	return id.String()
}

func TestSealRoundTrip(t *testing.T) {
	s, err := NewSealer(newIdentity(t))
	require.NoError(t, err)
	require.True(t, s.Enabled())
	assert.Contains(t, s.Recipient(), "age1")

	sealed, err := s.Seal(jar)
	require.NoError(t, err)
	assert.True(t, IsSealed(sealed))
	assert.NotContains(t, sealed, "li_at")

	again, err := s.Seal(sealed)
	require.NoError(t, err)
	assert.Equal(t, sealed, again)

	opened, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, jar, opened)
}

func TestOpenPassesPlaintextThrough(t *testing.T) {
	s, err := NewSealer(newIdentity(t))
	require.NoError(t, err)
	out, err := s.Open(jar)
	require.NoError(t, err)
	assert.Equal(t, jar, out)
}

func TestDisabledSealer(t *testing.T) {
	s, err := NewSealer("  ")
	require.NoError(t, err)
	assert.False(t, s.Enabled())
	assert.Empty(t, s.Recipient())

	out, err := s.Seal(jar)
	require.NoError(t, err)
	assert.Equal(t, jar, out)

	enabled, err := NewSealer(newIdentity(t))
	require.NoError(t, err)
	sealed, err := enabled.Seal(jar)
	require.NoError(t, err)

	_, err = s.Open(sealed)
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestOpenWithWrongIdentity(t *testing.T) {
	a, err := NewSealer(newIdentity(t))
	require.NoError(t, err)
	b, err := NewSealer(newIdentity(t))
	require.NoError(t, err)

	sealed, err := a.Seal(jar)
	require.NoError(t, err)
	_, err = b.Open(sealed)
	assert.Error(t, err)
}

func TestNewSealerRejectsGarbage(t *testing.T) {
	_, err := NewSealer("not-a-key")
	assert.Error(t, err)
}
