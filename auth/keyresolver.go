// auth/keyresolver.go
package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	gw_errors "github.com/fedhealth/gatekeeper/errors"
	logger "github.com/fedhealth/gatekeeper/logging"
	"github.com/fedhealth/gatekeeper/model"
)

// JSONWebKey is one entry of the identity provider's JWKS document
type JSONWebKey struct {
	Kty string `json:"kty"`
	E   string `json:"e"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n"`
}

// Jwks is the JSON Web Key Set document shape
type Jwks struct {
	Keys []JSONWebKey `json:"keys"`
}

// KeyResolver maps a key identifier to its public key material, populated
// lazily from the remote key set. Rotation is handled by refresh-on-miss, not
// proactive polling: a freshly rotated key costs one extra round-trip on
// first use.
type KeyResolver struct {
	jwksURI    string
	httpClient *http.Client

	mu   sync.RWMutex
	keys map[string]*model.SigningKey
}

// NewKeyResolver creates a KeyResolver against the given JWKS endpoint
func NewKeyResolver(jwksURI string, timeout time.Duration) *KeyResolver {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &KeyResolver{
		jwksURI:    jwksURI,
		httpClient: &http.Client{Timeout: timeout},
		keys:       make(map[string]*model.SigningKey),
	}
}

// Resolve returns the signing key for kid. On a cache miss it refetches the
// full key set once and retries the lookup; a key still absent after refresh
// is ErrUnknownKey, an unreachable key set is ErrKeyFetch. Concurrent misses
// may both trigger a refetch; refreshes are idempotent so the race is
// harmless.
func (r *KeyResolver) Resolve(ctx context.Context, kid string) (*model.SigningKey, error) {
	r.mu.RLock()
	key, ok := r.keys[kid]
	r.mu.RUnlock()
	if ok {
		return key, nil
	}

	if err := r.refresh(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	key, ok = r.keys[kid]
	r.mu.RUnlock()
	if !ok {
		logger.Warn("Requested key absent after key set refresh", zap.String("kid", kid))
		return nil, fmt.Errorf("%w: kid %q", gw_errors.ErrUnknownKey, kid)
	}
	return key, nil
}

// refresh fetches the key set and replaces the cache contents
func (r *KeyResolver) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.jwksURI, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", gw_errors.ErrKeyFetch, err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		logger.Error("Failed to fetch key set", zap.Error(err), zap.String("uri", r.jwksURI))
		return fmt.Errorf("%w: %v", gw_errors.ErrKeyFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Error("Key set endpoint returned non-OK status",
			zap.Int("status", resp.StatusCode),
			zap.String("uri", r.jwksURI))
		return fmt.Errorf("%w: status %d", gw_errors.ErrKeyFetch, resp.StatusCode)
	}

	var jwks Jwks
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return fmt.Errorf("%w: %v", gw_errors.ErrKeyFetch, err)
	}

	keys := make(map[string]*model.SigningKey, len(jwks.Keys))
	for _, jwk := range jwks.Keys {
		if jwk.Kty != "RSA" {
			continue
		}
		pub, err := parseRSAPublicKey(jwk)
		if err != nil {
			logger.Warn("Skipping unparseable key in key set", zap.String("kid", jwk.Kid), zap.Error(err))
			continue
		}
		keys[jwk.Kid] = &model.SigningKey{
			Kid:       jwk.Kid,
			Algorithm: jwk.Alg,
			PublicKey: pub,
		}
	}

	r.mu.Lock()
	r.keys = keys
	r.mu.Unlock()

	logger.Debug("Key set refreshed", zap.Int("keys", len(keys)))
	return nil
}

// parseRSAPublicKey builds an rsa.PublicKey from the JWK modulus and exponent
func parseRSAPublicKey(jwk JSONWebKey) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}

	n := new(big.Int).SetBytes(nBytes)
	e := 0
	for _, b := range eBytes {
		e = e<<8 + int(b)
	}

	return &rsa.PublicKey{N: n, E: e}, nil
}
