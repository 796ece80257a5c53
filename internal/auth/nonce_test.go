package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonce_RoundTrip(t *testing.T) {
	m := NewNonceManager("secret", time.Hour)

	nonce, err := m.Create(7, ActionREST)
	require.NoError(t, err)

	assert.NoError(t, m.Verify(nonce, 7, ActionREST))
}

func TestNonce_RejectsMismatches(t *testing.T) {
	m := NewNonceManager("secret", time.Hour)
	nonce, err := m.Create(7, ActionREST)
	require.NoError(t, err)

	assert.ErrorIs(t, m.Verify(nonce, 8, ActionREST), ErrInvalidNonce)
	assert.ErrorIs(t, m.Verify(nonce, 7, "other_action"), ErrInvalidNonce)
	assert.ErrorIs(t, m.Verify("", 7, ActionREST), ErrInvalidNonce)
	assert.ErrorIs(t, m.Verify("not-a-token", 7, ActionREST), ErrInvalidNonce)

	other := NewNonceManager("different", time.Hour)
	assert.ErrorIs(t, other.Verify(nonce, 7, ActionREST), ErrInvalidNonce)
}

func TestNonce_Expires(t *testing.T) {
	issued := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	m := NewNonceManager("secret", time.Hour)
	m.now = func() time.Time { return issued }

	nonce, err := m.Create(1, ActionREST)
	require.NoError(t, err)

	m.now = func() time.Time { return issued.Add(59 * time.Minute) }
	assert.NoError(t, m.Verify(nonce, 1, ActionREST))

	m.now = func() time.Time { return issued.Add(2 * time.Hour) }
	assert.ErrorIs(t, m.Verify(nonce, 1, ActionREST), ErrInvalidNonce)
}
