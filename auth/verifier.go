// auth/verifier.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/fedhealth/gatekeeper/config"
	gw_errors "github.com/fedhealth/gatekeeper/errors"
	logger "github.com/fedhealth/gatekeeper/logging"
	"github.com/fedhealth/gatekeeper/model"
)

// allowedAlgorithm is the single accepted signing algorithm. Tokens declaring
// anything else are rejected before signature verification, closing the
// algorithm-substitution hole.
const allowedAlgorithm = "RS256"

// TokenVerifier validates bearer tokens against the identity provider's
// rotating key set and the configured issuer/audience expectations.
type TokenVerifier struct {
	cfg      *config.AuthConfiguration
	resolver *KeyResolver
	parser   *jwt.Parser
}

// NewTokenVerifier creates a TokenVerifier using resolver for key lookups
func NewTokenVerifier(cfg *config.AuthConfiguration, resolver *KeyResolver) *TokenVerifier {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{allowedAlgorithm}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithLeeway(cfg.ClockSkew),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)
	return &TokenVerifier{
		cfg:      cfg,
		resolver: resolver,
		parser:   parser,
	}
}

// Verify validates rawToken and returns the caller identity. Failures are
// always a typed *errors.AuthError; the verifier never retries, a bad
// signature can never become valid.
func (v *TokenVerifier) Verify(ctx context.Context, rawToken string) (*model.VerifiedIdentity, error) {
	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: token header has no kid", gw_errors.ErrUnknownKey)
		}
		key, err := v.resolver.Resolve(ctx, kid)
		if err != nil {
			return nil, err
		}
		return key.PublicKey, nil
	})
	if err != nil {
		authErr := mapParseError(err)
		logger.Warn("Token verification failed",
			zap.String("kind", authErr.Code()),
			zap.Error(err))
		return nil, authErr
	}

	// Audience check: accept when the normalized aud set intersects the
	// configured allow-list, or azp names the expected client. Identity
	// provider configurations populate one or the other.
	audiences := normalizeAudience(claims["aud"])
	azp, _ := claims["azp"].(string)
	if !v.audienceAccepted(audiences, azp) {
		detail := fmt.Sprintf("aud=%s | azp=%s", strings.Join(audiences, ","), azp)
		logger.Warn("Token audience rejected", zap.String("detail", detail))
		return nil, gw_errors.NewAuthError(gw_errors.AuthBadAudience, detail)
	}

	subject, _ := claims.GetSubject()
	issuer, _ := claims.GetIssuer()
	username, _ := claims["preferred_username"].(string)

	identity := &model.VerifiedIdentity{
		Subject:         subject,
		Issuer:          issuer,
		Audiences:       audiences,
		AuthorizedParty: azp,
		Username:        username,
		Roles:           extractRealmRoles(claims),
		RawClaims:       claims,
	}

	logger.Debug("Token verified",
		zap.String("sub", identity.Subject),
		zap.String("azp", identity.AuthorizedParty),
		zap.Strings("roles", identity.Roles))
	return identity, nil
}

func (v *TokenVerifier) audienceAccepted(audiences []string, azp string) bool {
	for _, aud := range audiences {
		for _, accepted := range v.cfg.Audiences {
			if aud == accepted {
				return true
			}
		}
	}
	return azp != "" && azp == v.cfg.ExpectedClient
}

// mapParseError translates golang-jwt failures into the stable AuthError
// taxonomy. The original error text is logged but never returned to callers.
func mapParseError(err error) *gw_errors.AuthError {
	switch {
	case errors.Is(err, gw_errors.ErrKeyFetch), errors.Is(err, gw_errors.ErrUnknownKey):
		return gw_errors.NewAuthError(gw_errors.AuthKeyUnavailable, "")
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return gw_errors.NewAuthError(gw_errors.AuthBadSignature, "")
	case errors.Is(err, jwt.ErrTokenExpired):
		return gw_errors.NewAuthError(gw_errors.AuthExpired, "")
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return gw_errors.NewAuthError(gw_errors.AuthNotYetValid, "")
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return gw_errors.NewAuthError(gw_errors.AuthBadIssuer, "")
	default:
		return gw_errors.NewAuthError(gw_errors.AuthMalformed, "")
	}
}

// normalizeAudience maps the aud claim to a set: absent becomes empty,
// a scalar becomes a singleton, an array stays as-is
func normalizeAudience(raw interface{}) []string {
	switch aud := raw.(type) {
	case nil:
		return []string{}
	case string:
		return []string{aud}
	case []string:
		return aud
	case []interface{}:
		out := make([]string, 0, len(aud))
		for _, item := range aud {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}

// extractRealmRoles reads the realm-level role collection from the nested
// realm_access.roles path. An absent path yields an empty set, not an error.
func extractRealmRoles(claims jwt.MapClaims) []string {
	realmAccess, ok := claims["realm_access"].(map[string]interface{})
	if !ok {
		return []string{}
	}
	rawRoles, ok := realmAccess["roles"].([]interface{})
	if !ok {
		return []string{}
	}
	roles := make([]string, 0, len(rawRoles))
	for _, r := range rawRoles {
		if s, ok := r.(string); ok {
			roles = append(roles, s)
		}
	}
	return roles
}
