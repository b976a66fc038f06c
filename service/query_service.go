// service/query_service.go
package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fedhealth/gatekeeper/config"
	gw_errors "github.com/fedhealth/gatekeeper/errors"
	"github.com/fedhealth/gatekeeper/federation"
	logger "github.com/fedhealth/gatekeeper/logging"
	"github.com/fedhealth/gatekeeper/model"
	"github.com/fedhealth/gatekeeper/pdp/engine"
	pdp_model "github.com/fedhealth/gatekeeper/pdp/model"
	"github.com/fedhealth/gatekeeper/util"
)

// EventAccessDecision is published for every access decision the gateway
// computes. Subscribers log it; nothing is persisted.
const EventAccessDecision = "access.decision"

// AccessDecisionEvent is the payload of an access.decision event
type AccessDecisionEvent struct {
	Subject  string
	Resource string
	Effect   string
	Reason   string
}

// QueryExecutor is the federation surface the service depends on
type QueryExecutor interface {
	Execute(ctx context.Context, query string) ([]model.ResourceRecord, error)
	ExecuteByID(ctx context.Context, entityIRI string) (*model.ResourceRecord, error)
}

// IQueryService defines the query orchestration operations
type IQueryService interface {
	CohortQuery(ctx context.Context, identity *model.VerifiedIdentity, maxAge int) ([]model.ResourceRecord, error)
	LookupRecord(ctx context.Context, identity *model.VerifiedIdentity, entityID string) (*model.ResourceRecord, *pdp_model.AccessDecision, error)
}

// QueryService orchestrates federated queries and per-record authorization
type QueryService struct {
	router     QueryExecutor
	evaluator  *engine.PolicyEvaluator
	eventBus   *util.EventBus
	entityBase string
}

// NewQueryService creates a new instance of QueryService
func NewQueryService(router QueryExecutor, evaluator *engine.PolicyEvaluator, eventBus *util.EventBus, cfg *config.FederationConfiguration) *QueryService {
	service := &QueryService{
		router:     router,
		evaluator:  evaluator,
		eventBus:   eventBus,
		entityBase: cfg.EntityBase,
	}

	eventBus.Subscribe(EventAccessDecision, service.handleAccessDecision)

	return service
}

func (s *QueryService) handleAccessDecision(ctx context.Context, event util.Event) error {
	decision, ok := event.Payload.(AccessDecisionEvent)
	if !ok {
		return errors.New("invalid access decision event payload")
	}
	logger.Info("Access decision",
		zap.String("subject", decision.Subject),
		zap.String("resource", decision.Resource),
		zap.String("effect", decision.Effect),
		zap.String("reason", decision.Reason))
	return nil
}

// CohortQuery runs the cohort query across all endpoints and returns only the
// records the identity may see. The policy runs after federation and merge:
// a record's attributes are only known post-query.
func (s *QueryService) CohortQuery(ctx context.Context, identity *model.VerifiedIdentity, maxAge int) ([]model.ResourceRecord, error) {
	records, err := s.router.Execute(ctx, federation.CohortQuery(maxAge))
	if err != nil {
		return nil, err
	}

	permitted := s.evaluator.FilterRecords(identity, records)

	s.eventBus.Publish(ctx, EventAccessDecision, AccessDecisionEvent{
		Subject:  identity.Subject,
		Resource: "cohort",
		Effect:   pdp_model.EffectAllow,
		Reason:   "",
	})
	logger.Debug("Cohort query filtered",
		zap.String("subject", identity.Subject),
		zap.Int("total", len(records)),
		zap.Int("permitted", len(permitted)))
	return permitted, nil
}

// LookupRecord resolves a single entity across the endpoints and authorizes
// it against the identity. A record found but denied is returned alongside
// its deny decision so the caller can report where and why; a record absent
// everywhere yields a not_found decision, not an error.
func (s *QueryService) LookupRecord(ctx context.Context, identity *model.VerifiedIdentity, entityID string) (*model.ResourceRecord, *pdp_model.AccessDecision, error) {
	entityIRI := s.entityBase + entityID

	record, err := s.router.ExecuteByID(ctx, entityIRI)
	if err != nil {
		if errors.Is(err, gw_errors.ErrRecordNotFound) {
			s.publishDecision(ctx, identity.Subject, entityIRI, pdp_model.Deny(pdp_model.ReasonNotFound))
			return nil, pdp_model.Deny(pdp_model.ReasonNotFound), nil
		}
		return nil, nil, err
	}

	decision := s.evaluator.AuthorizeAttributes(identity.Roles, record.Attributes)
	s.publishDecision(ctx, identity.Subject, entityIRI, decision)

	return record, decision, nil
}

func (s *QueryService) publishDecision(ctx context.Context, subject, resource string, decision *pdp_model.AccessDecision) {
	s.eventBus.Publish(ctx, EventAccessDecision, AccessDecisionEvent{
		Subject:  subject,
		Resource: resource,
		Effect:   decision.Effect,
		Reason:   decision.Reason,
	})
}
