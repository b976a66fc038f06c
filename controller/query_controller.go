// controller/query_controller.go
package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	gw_errors "github.com/fedhealth/gatekeeper/errors"
	pdp_model "github.com/fedhealth/gatekeeper/pdp/model"
	"github.com/fedhealth/gatekeeper/service"
	"github.com/fedhealth/gatekeeper/util"
)

type QueryController struct {
	queryService service.IQueryService
}

func NewQueryController(queryService service.IQueryService) *QueryController {
	return &QueryController{
		queryService: queryService,
	}
}

// RegisterRoutes registers the API routes
func (qc *QueryController) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/query", qc.CohortQuery)
	r.GET("/records/:id", qc.LookupRecord)
}

// CohortQueryRequest is the logical query body
type CohortQueryRequest struct {
	MaxAge int `json:"maxAge"`
}

// CohortQuery endpoint: fan the cohort query out to all sites and return the
// records the caller's study memberships permit.
func (qc *QueryController) CohortQuery(c *gin.Context) {
	identity := util.GetIdentityFromContext(c)
	if identity == nil {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", gw_errors.ErrUnauthorized)
		return
	}

	request := CohortQueryRequest{MaxAge: 50}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			util.RespondWithError(c, http.StatusBadRequest, "Invalid query data", gw_errors.ErrInvalidQueryData)
			return
		}
	}

	records, err := qc.queryService.CohortQuery(c.Request.Context(), identity, request.MaxAge)
	if err != nil {
		respondFederationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":   identity.PublicSummary(),
		"result": records,
	})
}

// LookupRecord endpoint: resolve one entity across sites. Absence is a 200
// with reason not_found so the status code never reveals existence; a denial
// is a 403 that names the site and attributes, not a silent 404.
func (qc *QueryController) LookupRecord(c *gin.Context) {
	identity := util.GetIdentityFromContext(c)
	if identity == nil {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", gw_errors.ErrUnauthorized)
		return
	}

	entityID := c.Param("id")
	record, decision, err := qc.queryService.LookupRecord(c.Request.Context(), identity, entityID)
	if err != nil {
		respondFederationError(c, err)
		return
	}

	if decision.Reason == pdp_model.ReasonNotFound {
		c.JSON(http.StatusOK, gin.H{
			"user":   identity.PublicSummary(),
			"result": nil,
			"reason": pdp_model.ReasonNotFound,
		})
		return
	}

	if !decision.Allowed() {
		c.JSON(http.StatusForbidden, gin.H{
			"user":       identity.PublicSummary(),
			"result":     nil,
			"reason":     decision.Reason,
			"entity":     record.EntityID,
			"site":       record.Site,
			"attributes": record.Attributes,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":   identity.PublicSummary(),
		"result": record,
	})
}

// respondFederationError maps backend failures onto 502/504. Federation
// detail is operationally useful and not security-sensitive, so the endpoint
// and kind are included.
func respondFederationError(c *gin.Context, err error) {
	if fedErr, ok := gw_errors.AsFederationError(err); ok {
		status := http.StatusBadGateway
		if fedErr.Kind == gw_errors.FederationTimeout {
			status = http.StatusGatewayTimeout
		}
		c.JSON(status, gin.H{
			"error":    fedErr.Code(),
			"endpoint": fedErr.Endpoint,
			"detail":   fedErr.Error(),
		})
		return
	}
	util.RespondWithError(c, http.StatusInternalServerError, "Internal server error", gw_errors.ErrInternalServer)
}
