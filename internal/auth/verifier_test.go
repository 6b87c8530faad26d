package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func hs256Token(t *testing.T, secret string, claims map[string]any) string {
	t.Helper()
	enc := func(v any) string {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		return base64.RawURLEncoding.EncodeToString(b)
	}
	signing := enc(map[string]any{"alg": "HS256", "typ": "JWT"}) + "." + enc(claims)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signing))
	return signing + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func TestDevMode(t *testing.T) {
	v := NewVerifier(Config{Mode: "dev"})

	p, err := v.Verify("r1:staff:u42")
	require.NoError(t, err)
	require.Equal(t, Principal{RestaurantID: "r1", Role: "staff", StaffID: "u42"}, p)

	_, err = v.Verify("garbage")
	require.Error(t, err)
}

func TestHMACMode(t *testing.T) {
	v := NewVerifier(Config{Mode: "hmac", HMACSecret: "sekrit", RestaurantClaim: "restaurant", RoleClaim: "role", StaffClaim: "sub"})

	tok := hs256Token(t, "sekrit", map[string]any{"restaurant": "r1", "role": "Manager", "sub": "u1"})
	p, err := v.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, "r1", p.RestaurantID)
	require.Equal(t, "manager", p.Role, "role is normalized to lower case")
	require.Equal(t, "u1", p.StaffID)
}

func TestHMACBadSignature(t *testing.T) {
	v := NewVerifier(Config{Mode: "hmac", HMACSecret: "right", RestaurantClaim: "restaurant", RoleClaim: "role"})
	tok := hs256Token(t, "wrong", map[string]any{"restaurant": "r1", "role": "staff"})
	_, err := v.Verify(tok)
	require.Error(t, err)
}

func TestHMACMissingRestaurantClaim(t *testing.T) {
	v := NewVerifier(Config{Mode: "hmac", HMACSecret: "sekrit", RestaurantClaim: "restaurant", RoleClaim: "role"})
	tok := hs256Token(t, "sekrit", map[string]any{"role": "staff"})
	_, err := v.Verify(tok)
	require.ErrorContains(t, err, "restaurant claim")
}

func TestExpiredToken(t *testing.T) {
	v := NewVerifier(Config{Mode: "hmac", HMACSecret: "sekrit", RestaurantClaim: "restaurant", RoleClaim: "role"})
	tok := hs256Token(t, "sekrit", map[string]any{"restaurant": "r1", "role": "staff", "exp": 1000})
	_, err := v.Verify(tok)
	require.ErrorContains(t, err, "expired")
}
