// pdp/model/decision.go
package model

// Decision effects
const (
	EffectAllow = "allow"
	EffectDeny  = "deny"
)

// Denial reasons, stable and machine-readable
const (
	ReasonInsufficientRole = "insufficient_role"
	ReasonDenyByPolicy     = "deny_by_policy"
	ReasonNotFound         = "not_found"
)

// AccessDecision is the outcome of one policy evaluation. Decisions are
// computed fresh for every request and record; they are never cached or
// reused across identities.
type AccessDecision struct {
	Effect string
	Reason string
}

// Allowed reports whether the decision is a permit
func (d *AccessDecision) Allowed() bool {
	return d.Effect == EffectAllow
}

// Permit builds an allow decision
func Permit() *AccessDecision {
	return &AccessDecision{Effect: EffectAllow}
}

// Deny builds a deny decision carrying its reason
func Deny(reason string) *AccessDecision {
	return &AccessDecision{Effect: EffectDeny, Reason: reason}
}
