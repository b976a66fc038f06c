// model/identity.go
package model

import "crypto/rsa"

// SigningKey is one public key from the identity provider's key set.
// Immutable once cached; rotation replaces the cache entry, never mutates it.
type SigningKey struct {
	Kid       string
	Algorithm string
	PublicKey *rsa.PublicKey
}

// VerifiedIdentity is the caller identity derived from a verified bearer
// token. It lives for a single request and is never persisted.
type VerifiedIdentity struct {
	Subject         string
	Issuer          string
	Audiences       []string
	AuthorizedParty string
	Username        string
	Roles           []string
	RawClaims       map[string]interface{}
}

// HasRole reports whether the identity carries the given role
func (id *VerifiedIdentity) HasRole(role string) bool {
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IdentitySummary is the public projection of a VerifiedIdentity returned to
// callers. Raw claims are deliberately excluded.
type IdentitySummary struct {
	Subject  string   `json:"sub"`
	Username string   `json:"username,omitempty"`
	Studies  []string `json:"studies"`
}

// PublicSummary returns the identity fields safe to echo back in responses.
// The role set doubles as the caller's study memberships under the static
// attribute-membership rule.
func (id *VerifiedIdentity) PublicSummary() IdentitySummary {
	studies := id.Roles
	if studies == nil {
		studies = []string{}
	}
	return IdentitySummary{
		Subject:  id.Subject,
		Username: id.Username,
		Studies:  studies,
	}
}
