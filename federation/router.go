// federation/router.go
package federation

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fedhealth/gatekeeper/config"
	gw_errors "github.com/fedhealth/gatekeeper/errors"
	logger "github.com/fedhealth/gatekeeper/logging"
	"github.com/fedhealth/gatekeeper/model"
)

// Router fans a logical query out to every configured endpoint and merges
// the normalized results. Endpoint order is configuration order; for point
// lookups it is the probe priority.
type Router struct {
	clients []*Client
}

// NewRouter builds a Router from the federation configuration
func NewRouter(cfg *config.FederationConfiguration) *Router {
	clients := make([]*Client, 0, len(cfg.Endpoints))
	for _, ep := range cfg.Endpoints {
		clients = append(clients, NewClient(model.Endpoint{Name: ep.Name, URL: ep.URL}, cfg.QueryTimeout))
	}
	return &Router{clients: clients}
}

// NewRouterWithClients builds a Router over pre-built clients
func NewRouterWithClients(clients []*Client) *Router {
	return &Router{clients: clients}
}

// Execute dispatches query to all endpoints concurrently and concatenates
// their normalized records. All endpoints must succeed: a partial answer
// would misrepresent completeness, so any failure fails the whole call with
// zero records. Per-endpoint ordering is preserved; cross-endpoint order
// follows configuration order.
func (r *Router) Execute(ctx context.Context, query string) ([]model.ResourceRecord, error) {
	start := time.Now()
	results := make([][]model.ResourceRecord, len(r.clients))

	g, gctx := errgroup.WithContext(ctx)
	for i, client := range r.clients {
		i, client := i, client
		g.Go(func() error {
			bindings, err := client.Select(gctx, query)
			if err != nil {
				return err
			}
			results[i] = normalizeCohortRows(bindings, client.Name())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []model.ResourceRecord
	for _, rows := range results {
		merged = append(merged, rows...)
	}

	logger.Debug("Federated query completed",
		zap.Int("endpoints", len(r.clients)),
		zap.Int("records", len(merged)),
		zap.Duration("elapsed", time.Since(start)))
	return merged, nil
}

// ExecuteByID probes the endpoints in priority order for the entity's study
// memberships, stopping at the first endpoint that knows it. An entity is
// assumed to live at exactly one site; absence everywhere is ErrRecordNotFound,
// not a federation failure.
func (r *Router) ExecuteByID(ctx context.Context, entityIRI string) (*model.ResourceRecord, error) {
	for _, client := range r.clients {
		bindings, err := client.Select(ctx, StudiesQuery(entityIRI))
		if err != nil {
			return nil, err
		}
		if len(bindings) == 0 {
			continue
		}

		attributes := make([]string, 0, len(bindings))
		for _, b := range bindings {
			attributes = append(attributes, b["st"].Value)
		}
		return &model.ResourceRecord{
			EntityID:   entityIRI,
			Attributes: attributes,
			Site:       client.Name(),
		}, nil
	}

	logger.Debug("Entity not found at any endpoint", zap.String("entity", entityIRI))
	return nil, gw_errors.ErrRecordNotFound
}
