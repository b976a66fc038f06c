// federation/endpoint.go
package federation

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	gw_errors "github.com/fedhealth/gatekeeper/errors"
	logger "github.com/fedhealth/gatekeeper/logging"
	"github.com/fedhealth/gatekeeper/model"
)

const (
	contentTypeSparqlQuery = "application/sparql-query"
	acceptSparqlResults    = "application/sparql-results+json"

	// attributeSeparator joins the attribute list in aggregate query results
	// (SPARQL GROUP_CONCAT), decoded back into a set at the federation
	// boundary.
	attributeSeparator = "|"
)

// BindingValue is one cell of a SPARQL result row
type BindingValue struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Binding is one named-binding result row
type Binding map[string]BindingValue

// resultsDocument is the SPARQL JSON results envelope
type resultsDocument struct {
	Results struct {
		Bindings []Binding `json:"bindings"`
	} `json:"results"`
}

// Client executes queries against a single backend endpoint. Endpoint-specific
// parsing stays here so the merge and policy layers never see raw result
// shapes.
type Client struct {
	endpoint   model.Endpoint
	httpClient *http.Client
}

// NewClient creates a query client for one endpoint with a bounded timeout
func NewClient(endpoint model.Endpoint, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name returns the endpoint's site name
func (c *Client) Name() string {
	return c.endpoint.Name
}

// Select posts the query text to the endpoint and returns its result rows in
// the endpoint's native order. Failures are typed FederationErrors.
func (c *Client) Select(ctx context.Context, query string) ([]Binding, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.URL, strings.NewReader(query))
	if err != nil {
		return nil, gw_errors.NewFederationError(c.endpoint.Name, gw_errors.FederationUnreachable, err)
	}
	req.Header.Set("Content-Type", contentTypeSparqlQuery)
	req.Header.Set("Accept", acceptSparqlResults)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		kind := gw_errors.FederationUnreachable
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			kind = gw_errors.FederationTimeout
		} else if errors.Is(err, context.DeadlineExceeded) {
			kind = gw_errors.FederationTimeout
		}
		logger.Error("Endpoint query failed",
			zap.String("endpoint", c.endpoint.Name),
			zap.Error(err))
		return nil, gw_errors.NewFederationError(c.endpoint.Name, kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Error("Endpoint returned non-OK status",
			zap.String("endpoint", c.endpoint.Name),
			zap.Int("status", resp.StatusCode))
		return nil, gw_errors.NewFederationError(c.endpoint.Name, gw_errors.FederationBadStatus,
			errors.New(resp.Status))
	}

	var doc resultsDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, gw_errors.NewFederationError(c.endpoint.Name, gw_errors.FederationBadResults, err)
	}

	return doc.Results.Bindings, nil
}

// normalizeCohortRows maps raw cohort-query bindings into ResourceRecords
// tagged with the source site. The studies cell is a separator-joined string
// produced by GROUP_CONCAT.
func normalizeCohortRows(bindings []Binding, site string) []model.ResourceRecord {
	records := make([]model.ResourceRecord, 0, len(bindings))
	for _, b := range bindings {
		record := model.ResourceRecord{
			EntityID:   b["patient"].Value,
			Attributes: splitAttributes(b["studies"].Value),
			Site:       site,
			Display:    map[string]string{},
		}
		if age, ok := b["age"]; ok {
			record.Display["age"] = age.Value
		}
		if img, ok := b["img"]; ok {
			record.Display["image"] = img.Value
		}
		records = append(records, record)
	}
	return records
}

// splitAttributes decodes the separator-joined attribute list into a set
func splitAttributes(joined string) []string {
	if joined == "" {
		return []string{}
	}
	return strings.Split(joined, attributeSeparator)
}
