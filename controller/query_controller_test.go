// controller/query_controller_test.go
package controller_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedhealth/gatekeeper/controller"
	gw_errors "github.com/fedhealth/gatekeeper/errors"
	logger "github.com/fedhealth/gatekeeper/logging"
	"github.com/fedhealth/gatekeeper/model"
	pdp_model "github.com/fedhealth/gatekeeper/pdp/model"
	"github.com/fedhealth/gatekeeper/util"
)

func TestMain(m *testing.M) {
	logger.InitLogger("../logging")
	code := m.Run()
	logger.Sync()
	os.Exit(code)
}

// fakeQueryService implements service.IQueryService for handler tests
type fakeQueryService struct {
	records  []model.ResourceRecord
	record   *model.ResourceRecord
	decision *pdp_model.AccessDecision
	err      error
}

func (f *fakeQueryService) CohortQuery(ctx context.Context, identity *model.VerifiedIdentity, maxAge int) ([]model.ResourceRecord, error) {
	return f.records, f.err
}

func (f *fakeQueryService) LookupRecord(ctx context.Context, identity *model.VerifiedIdentity, entityID string) (*model.ResourceRecord, *pdp_model.AccessDecision, error) {
	return f.record, f.decision, f.err
}

func withIdentity(identity *model.VerifiedIdentity) gin.HandlerFunc {
	return func(c *gin.Context) {
		if identity != nil {
			c.Set(util.IdentityContextKey, identity)
		}
		c.Next()
	}
}

func setupRouter(svc *fakeQueryService, identity *model.VerifiedIdentity) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(withIdentity(identity))
	controller.NewQueryController(svc).RegisterRoutes(api)
	return r
}

func testIdentity() *model.VerifiedIdentity {
	return &model.VerifiedIdentity{Subject: "user-bob", Username: "bob", Roles: []string{"study_A"}}
}

func TestCohortQuery_Success(t *testing.T) {
	svc := &fakeQueryService{records: []model.ResourceRecord{
		{EntityID: "http://example.org/patient1", Attributes: []string{"study_A"}, Site: "H1"},
	}}
	router := setupRouter(svc, testIdentity())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/query", strings.NewReader(`{"maxAge":40}`))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		User   model.IdentitySummary  `json:"user"`
		Result []model.ResourceRecord `json:"result"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "user-bob", body.User.Subject)
	assert.Equal(t, []string{"study_A"}, body.User.Studies)
	require.Len(t, body.Result, 1)
	assert.Equal(t, "H1", body.Result[0].Site)
}

func TestCohortQuery_NoIdentity(t *testing.T) {
	router := setupRouter(&fakeQueryService{}, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/query", strings.NewReader(`{"maxAge":40}`))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCohortQuery_FederationFailure(t *testing.T) {
	svc := &fakeQueryService{err: gw_errors.NewFederationError("H2", gw_errors.FederationUnreachable, errors.New("dial refused"))}
	router := setupRouter(svc, testIdentity())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/query", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "endpoint_unreachable", body["error"])
	assert.Equal(t, "H2", body["endpoint"])
}

func TestCohortQuery_FederationTimeout(t *testing.T) {
	svc := &fakeQueryService{err: gw_errors.NewFederationError("H1", gw_errors.FederationTimeout, errors.New("deadline exceeded"))}
	router := setupRouter(svc, testIdentity())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/query", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestLookupRecord_NotFoundIsOK(t *testing.T) {
	svc := &fakeQueryService{decision: pdp_model.Deny(pdp_model.ReasonNotFound)}
	router := setupRouter(svc, testIdentity())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/records/ghost", nil)
	router.ServeHTTP(w, req)

	// Absence is a 200, not a 404: the status code must not leak existence
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "not_found", body["reason"])
	assert.Nil(t, body["result"])
}

func TestLookupRecord_DeniedNamesSiteAndAttributes(t *testing.T) {
	svc := &fakeQueryService{
		record: &model.ResourceRecord{
			EntityID:   "http://example.org/patient3",
			Attributes: []string{"study_B"},
			Site:       "H2",
		},
		decision: pdp_model.Deny(pdp_model.ReasonDenyByPolicy),
	}
	router := setupRouter(svc, testIdentity())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/records/patient3", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "deny_by_policy", body["reason"])
	assert.Equal(t, "H2", body["site"])
	assert.Equal(t, "http://example.org/patient3", body["entity"])
	assert.Nil(t, body["result"])
}

func TestLookupRecord_Permitted(t *testing.T) {
	svc := &fakeQueryService{
		record: &model.ResourceRecord{
			EntityID:   "http://example.org/patient3",
			Attributes: []string{"study_A"},
			Site:       "H1",
		},
		decision: pdp_model.Permit(),
	}
	router := setupRouter(svc, testIdentity())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/records/patient3", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Result model.ResourceRecord `json:"result"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "http://example.org/patient3", body.Result.EntityID)
	assert.Equal(t, "H1", body.Result.Site)
}
