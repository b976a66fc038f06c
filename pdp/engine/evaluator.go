// pdp/engine/evaluator.go
package engine

import (
	"github.com/fedhealth/gatekeeper/model"
	pdp_model "github.com/fedhealth/gatekeeper/pdp/model"
)

// PolicyEvaluator computes permit/deny decisions from caller and resource
// attributes. Both modes are pure functions of their inputs: no hidden state,
// no decision caching.
type PolicyEvaluator struct{}

func NewPolicyEvaluator() *PolicyEvaluator {
	return &PolicyEvaluator{}
}

// AuthorizeRole gates an entire route: permit iff requiredRole is among the
// identity's roles.
func (pe *PolicyEvaluator) AuthorizeRole(identity *model.VerifiedIdentity, requiredRole string) *pdp_model.AccessDecision {
	if identity != nil && identity.HasRole(requiredRole) {
		return pdp_model.Permit()
	}
	return pdp_model.Deny(pdp_model.ReasonInsufficientRole)
}

// AuthorizeAttributes is the per-record ABAC check: permit iff the caller's
// attribute set intersects the resource's. An empty resource attribute set
// denies; there is no vacuous permit.
func (pe *PolicyEvaluator) AuthorizeAttributes(callerAttributes, resourceAttributes []string) *pdp_model.AccessDecision {
	for _, resourceAttr := range resourceAttributes {
		for _, callerAttr := range callerAttributes {
			if resourceAttr == callerAttr {
				return pdp_model.Permit()
			}
		}
	}
	return pdp_model.Deny(pdp_model.ReasonDenyByPolicy)
}

// FilterRecords applies AuthorizeAttributes to every record and returns the
// permitted ones in a new slice, preserving order. Input records are never
// mutated.
func (pe *PolicyEvaluator) FilterRecords(identity *model.VerifiedIdentity, records []model.ResourceRecord) []model.ResourceRecord {
	permitted := make([]model.ResourceRecord, 0, len(records))
	for _, record := range records {
		if pe.AuthorizeAttributes(identity.Roles, record.Attributes).Allowed() {
			permitted = append(permitted, record)
		}
	}
	return permitted
}
