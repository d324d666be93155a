package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)

	token, expiresAt, err := signer.Generate("TXN1715000000000", "2024-25/TXN1715000000000.pdf")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	receiptID, relPath, parsedExpiry, err := signer.Parse(token, false)
	require.NoError(t, err)
	assert.Equal(t, "TXN1715000000000", receiptID)
	assert.Equal(t, "2024-25/TXN1715000000000.pdf", relPath)
	assert.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestSignedURLTamperedSignature(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)

	token, _, err := signer.Generate("TXN1", "a.pdf")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token+"ff", false)
	assert.Error(t, err)
}

func TestSignedURLWrongSecret(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	other := NewSignedURLSigner("other", time.Minute)

	token, _, err := signer.Generate("TXN1", "a.pdf")
	require.NoError(t, err)

	_, _, _, err = other.Parse(token, false)
	assert.Error(t, err)
}

func TestSignedURLExpired(t *testing.T) {
	signer := &SignedURLSigner{secret: []byte("secret"), ttl: -time.Minute}

	token, _, err := signer.Generate("TXN1", "a.pdf")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token, false)
	assert.Error(t, err)

	_, relPath, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", relPath)
}
