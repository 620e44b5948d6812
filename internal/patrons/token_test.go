package patrons

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParseToken(t *testing.T) {
	secret := []byte("test-secret")
	patronID := uuid.New()
	now := time.Now().UTC()

	token, err := IssueToken(secret, patronID, now)
	require.NoError(t, err)

	claims, err := ParseToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, patronID, claims.PatronID)
	assert.Equal(t, patronID.String(), claims.Subject)
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := IssueToken([]byte("one secret"), uuid.New(), time.Now().UTC())
	require.NoError(t, err)

	_, err = ParseToken([]byte("another secret"), token)
	assert.Error(t, err)
}

func TestParseTokenExpired(t *testing.T) {
	secret := []byte("test-secret")
	issuedAt := time.Now().UTC().Add(-48 * time.Hour)

	token, err := IssueToken(secret, uuid.New(), issuedAt)
	require.NoError(t, err)

	_, err = ParseToken(secret, token)
	assert.Error(t, err)
}

func TestParseTokenGarbage(t *testing.T) {
	_, err := ParseToken([]byte("secret"), "not.a.token")
	assert.Error(t, err)
}
