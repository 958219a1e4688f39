package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccount_PublicHidesPassword(t *testing.T) {
	a := Account{Phone: "5551234567", HashedPassword: "abc", Checks: []string{"c1"}}

	p := a.Public()
	assert.Empty(t, p.HashedPassword)
	assert.Equal(t, "abc", a.HashedPassword, "original must not change")

	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "hashedPassword")

	p.Checks[0] = "mutated"
	assert.Equal(t, "c1", a.Checks[0], "public copy must not alias checks")
}

func TestAccount_PublicNeverNilChecks(t *testing.T) {
	p := Account{Phone: "5551234567"}.Public()
	assert.NotNil(t, p.Checks)
	assert.Len(t, p.Checks, 0)
}

func TestAccount_RemoveCheck(t *testing.T) {
	a := Account{Checks: []string{"a", "b", "c"}}

	assert.True(t, a.HasCheck("b"))
	assert.True(t, a.RemoveCheck("b"))
	assert.Equal(t, []string{"a", "c"}, a.Checks)
	assert.False(t, a.HasCheck("b"))
	assert.False(t, a.RemoveCheck("b"))
}

func TestAccount_AbsentChecksDecodeAsEmpty(t *testing.T) {
	var a Account
	require.NoError(t, json.Unmarshal([]byte(`{"phone":"5551234567"}`), &a))
	assert.Len(t, a.Checks, 0)
	assert.False(t, a.HasCheck("x"))
}

func TestToken_Expired(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)

	assert.False(t, Token{Expires: now.Add(time.Millisecond).UnixMilli()}.Expired(now))
	assert.True(t, Token{Expires: now.UnixMilli()}.Expired(now))
	assert.True(t, Token{Expires: now.Add(-time.Hour).UnixMilli()}.Expired(now))
	assert.Equal(t, now, Token{Expires: now.UnixMilli()}.ExpiresAt())
}
