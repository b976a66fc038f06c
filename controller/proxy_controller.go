// controller/proxy_controller.go
package controller

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/fedhealth/gatekeeper/logging"
	"github.com/fedhealth/gatekeeper/pdp/engine"
	pdp_model "github.com/fedhealth/gatekeeper/pdp/model"
	"github.com/fedhealth/gatekeeper/util"
)

// MountPrefix is where the pass-through proxy is mounted; it is stripped
// before forwarding.
const MountPrefix = "/sparql"

// ProxyController forwards verified requests byte-for-byte to a single
// upstream. Authorization is coarse-grained: one required role, no per-record
// filtering.
type ProxyController struct {
	evaluator    *engine.PolicyEvaluator
	requiredRole string
	proxy        *httputil.ReverseProxy
}

func NewProxyController(upstream string, requiredRole string, evaluator *engine.PolicyEvaluator) (*ProxyController, error) {
	target, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy upstream %q: %w", upstream, err)
	}

	proxy := &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = target.Scheme
			req.URL.Host = target.Host
			req.URL.Path = target.Path + strings.TrimPrefix(req.URL.Path, MountPrefix)
			req.Host = target.Host
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("Proxy upstream request failed", zap.Error(err), zap.String("upstream", upstream))
			w.WriteHeader(http.StatusBadGateway)
		},
	}

	return &ProxyController{
		evaluator:    evaluator,
		requiredRole: requiredRole,
		proxy:        proxy,
	}, nil
}

// RegisterRoutes mounts the proxy under the prefix for any method and path
func (pc *ProxyController) RegisterRoutes(r *gin.RouterGroup) {
	r.Any("/*upstreamPath", pc.Forward)
}

// Forward gates the request on the required role, then streams it to the
// upstream with the mount prefix stripped.
func (pc *ProxyController) Forward(c *gin.Context) {
	identity := util.GetIdentityFromContext(c)
	decision := pc.evaluator.AuthorizeRole(identity, pc.requiredRole)
	if !decision.Allowed() {
		c.JSON(http.StatusForbidden, gin.H{"error": pdp_model.ReasonInsufficientRole})
		return
	}

	pc.proxy.ServeHTTP(c.Writer, c.Request)
}
