// auth/verifier_test.go
package auth_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedhealth/gatekeeper/auth"
	"github.com/fedhealth/gatekeeper/config"
	gw_errors "github.com/fedhealth/gatekeeper/errors"
	logger "github.com/fedhealth/gatekeeper/logging"
)

func TestMain(m *testing.M) {
	logger.InitLogger("../logging")
	code := m.Run()
	logger.Sync()
	os.Exit(code)
}

const testIssuer = "http://idp.test/realms/capstone"

func generateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

// jwksHandler serves a JWKS document for the given keys
func jwksHandler(keys map[string]*rsa.PublicKey) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc := auth.Jwks{}
		for kid, pub := range keys {
			doc.Keys = append(doc.Keys, auth.JSONWebKey{
				Kty: "RSA",
				Kid: kid,
				Alg: "RS256",
				Use: "sig",
				N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(doc)
	}
}

func signToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func baseClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":                testIssuer,
		"sub":                "user-bob",
		"preferred_username": "bob",
		"aud":                "webapp",
		"exp":                now.Add(5 * time.Minute).Unix(),
		"iat":                now.Add(-time.Minute).Unix(),
		"realm_access": map[string]interface{}{
			"roles": []interface{}{"study_A", "offline_access"},
		},
	}
}

func newVerifier(t *testing.T, jwksURL string) *auth.TokenVerifier {
	t.Helper()
	cfg := &config.AuthConfiguration{
		Issuer:         testIssuer,
		JwksURI:        jwksURL,
		ExpectedClient: "webapp",
		Audiences:      []string{"webapp", "account"},
		ClockSkew:      30 * time.Second,
		JwksTimeout:    2 * time.Second,
	}
	resolver := auth.NewKeyResolver(jwksURL, cfg.JwksTimeout)
	return auth.NewTokenVerifier(cfg, resolver)
}

func TestVerify_ValidToken(t *testing.T) {
	key := generateKey(t)
	server := httptest.NewServer(jwksHandler(map[string]*rsa.PublicKey{"key-1": &key.PublicKey}))
	defer server.Close()
	verifier := newVerifier(t, server.URL)

	identity, err := verifier.Verify(context.Background(), signToken(t, key, "key-1", baseClaims()))
	require.NoError(t, err)

	assert.Equal(t, "user-bob", identity.Subject)
	assert.Equal(t, testIssuer, identity.Issuer)
	assert.Equal(t, "bob", identity.Username)
	assert.Contains(t, identity.Roles, "study_A")
}

func TestVerify_UnknownKey(t *testing.T) {
	key := generateKey(t)
	server := httptest.NewServer(jwksHandler(map[string]*rsa.PublicKey{"key-1": &key.PublicKey}))
	defer server.Close()
	verifier := newVerifier(t, server.URL)

	_, err := verifier.Verify(context.Background(), signToken(t, key, "rotated-away", baseClaims()))
	require.Error(t, err)
	authErr, ok := gw_errors.AsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, gw_errors.AuthKeyUnavailable, authErr.Kind)
}

func TestVerify_KeySetUnreachable(t *testing.T) {
	key := generateKey(t)
	server := httptest.NewServer(jwksHandler(map[string]*rsa.PublicKey{"key-1": &key.PublicKey}))
	server.Close() // resolver will fail to fetch
	verifier := newVerifier(t, server.URL)

	_, err := verifier.Verify(context.Background(), signToken(t, key, "key-1", baseClaims()))
	require.Error(t, err)
	authErr, ok := gw_errors.AsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, gw_errors.AuthKeyUnavailable, authErr.Kind)
}

func TestVerify_BadSignature(t *testing.T) {
	key := generateKey(t)
	impostor := generateKey(t)
	server := httptest.NewServer(jwksHandler(map[string]*rsa.PublicKey{"key-1": &key.PublicKey}))
	defer server.Close()
	verifier := newVerifier(t, server.URL)

	// Signed by a different key but claiming the registered kid
	_, err := verifier.Verify(context.Background(), signToken(t, impostor, "key-1", baseClaims()))
	require.Error(t, err)
	authErr, ok := gw_errors.AsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, gw_errors.AuthBadSignature, authErr.Kind)
}

func TestVerify_AlgorithmSubstitutionRejected(t *testing.T) {
	key := generateKey(t)
	server := httptest.NewServer(jwksHandler(map[string]*rsa.PublicKey{"key-1": &key.PublicKey}))
	defer server.Close()
	verifier := newVerifier(t, server.URL)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, baseClaims())
	token.Header["kid"] = "key-1"
	signed, err := token.SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), signed)
	require.Error(t, err)
	authErr, ok := gw_errors.AsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, gw_errors.AuthBadSignature, authErr.Kind)
}

func TestVerify_Expired(t *testing.T) {
	key := generateKey(t)
	server := httptest.NewServer(jwksHandler(map[string]*rsa.PublicKey{"key-1": &key.PublicKey}))
	defer server.Close()
	verifier := newVerifier(t, server.URL)

	claims := baseClaims()
	claims["exp"] = time.Now().Add(-5 * time.Minute).Unix() // well past the skew tolerance

	_, err := verifier.Verify(context.Background(), signToken(t, key, "key-1", claims))
	require.Error(t, err)
	authErr, ok := gw_errors.AsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, gw_errors.AuthExpired, authErr.Kind)
}

func TestVerify_NotYetValid(t *testing.T) {
	key := generateKey(t)
	server := httptest.NewServer(jwksHandler(map[string]*rsa.PublicKey{"key-1": &key.PublicKey}))
	defer server.Close()
	verifier := newVerifier(t, server.URL)

	claims := baseClaims()
	claims["nbf"] = time.Now().Add(5 * time.Minute).Unix()

	_, err := verifier.Verify(context.Background(), signToken(t, key, "key-1", claims))
	require.Error(t, err)
	authErr, ok := gw_errors.AsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, gw_errors.AuthNotYetValid, authErr.Kind)
}

func TestVerify_BadIssuer(t *testing.T) {
	key := generateKey(t)
	server := httptest.NewServer(jwksHandler(map[string]*rsa.PublicKey{"key-1": &key.PublicKey}))
	defer server.Close()
	verifier := newVerifier(t, server.URL)

	claims := baseClaims()
	claims["iss"] = "http://idp.test/realms/other"

	_, err := verifier.Verify(context.Background(), signToken(t, key, "key-1", claims))
	require.Error(t, err)
	authErr, ok := gw_errors.AsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, gw_errors.AuthBadIssuer, authErr.Kind)
}

func TestVerify_AudienceMatrix(t *testing.T) {
	key := generateKey(t)
	server := httptest.NewServer(jwksHandler(map[string]*rsa.PublicKey{"key-1": &key.PublicKey}))
	defer server.Close()
	verifier := newVerifier(t, server.URL)

	t.Run("AzpPathPermitsForeignAudience", func(t *testing.T) {
		claims := baseClaims()
		claims["aud"] = []interface{}{"other"}
		claims["azp"] = "webapp"

		identity, err := verifier.Verify(context.Background(), signToken(t, key, "key-1", claims))
		require.NoError(t, err)
		assert.Equal(t, "webapp", identity.AuthorizedParty)
	})

	t.Run("AudPathPermitsWithoutAzp", func(t *testing.T) {
		claims := baseClaims()
		claims["aud"] = []interface{}{"webapp"}
		delete(claims, "azp")

		_, err := verifier.Verify(context.Background(), signToken(t, key, "key-1", claims))
		require.NoError(t, err)
	})

	t.Run("DenyWhenNeitherMatches", func(t *testing.T) {
		claims := baseClaims()
		claims["aud"] = []interface{}{"other"}
		claims["azp"] = "other"

		_, err := verifier.Verify(context.Background(), signToken(t, key, "key-1", claims))
		require.Error(t, err)
		authErr, ok := gw_errors.AsAuthError(err)
		require.True(t, ok)
		assert.Equal(t, gw_errors.AuthBadAudience, authErr.Kind)
		// Observed values are the documented diagnostic detail
		assert.Contains(t, authErr.Detail, "aud=other")
		assert.Contains(t, authErr.Detail, "azp=other")
	})
}

func TestVerify_MissingRolesPathYieldsEmptySet(t *testing.T) {
	key := generateKey(t)
	server := httptest.NewServer(jwksHandler(map[string]*rsa.PublicKey{"key-1": &key.PublicKey}))
	defer server.Close()
	verifier := newVerifier(t, server.URL)

	claims := baseClaims()
	delete(claims, "realm_access")

	identity, err := verifier.Verify(context.Background(), signToken(t, key, "key-1", claims))
	require.NoError(t, err)
	assert.Empty(t, identity.Roles)
}

func TestVerify_MalformedToken(t *testing.T) {
	key := generateKey(t)
	server := httptest.NewServer(jwksHandler(map[string]*rsa.PublicKey{"key-1": &key.PublicKey}))
	defer server.Close()
	verifier := newVerifier(t, server.URL)

	_, err := verifier.Verify(context.Background(), "not-a-token")
	require.Error(t, err)
	authErr, ok := gw_errors.AsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, gw_errors.AuthMalformed, authErr.Kind)
}
