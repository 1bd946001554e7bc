package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "flightclaim/pkg/domain-errors"
)

func TestIssueAndValidate(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)

	sessionID, token, err := svc.Issue("Chrome on Mac OS X")
	require.NoError(t, err)
	require.NotEmpty(t, sessionID)
	require.NotEmpty(t, token)

	got, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, sessionID, got)
}

func TestValidateRejectsWrongKey(t *testing.T) {
	issuer := NewTokenService("secret-a", time.Hour)
	verifier := NewTokenService("secret-b", time.Hour)

	_, token, err := issuer.Issue("")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeUnauthorized))
}

func TestValidateRejectsExpired(t *testing.T) {
	svc := NewTokenService("secret", -time.Minute)

	_, token, err := svc.Issue("")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeUnauthorized))
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)
	_, err := svc.ValidateToken("not-a-jwt")
	require.Error(t, err)
}

func TestParseUserAgent(t *testing.T) {
	desktop := ParseUserAgent("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	assert.Contains(t, desktop, "Chrome")
	assert.Contains(t, desktop, " on ")
	assert.NotContains(t, desktop, "Mobile")

	assert.Equal(t, "Unknown Device", ParseUserAgent(""))
}
