// Package gateway fronts the four GraphQL services: it forwards the
// /api/<service> prefixes upstream and executes the merged schema locally.
package gateway

import (
	"fmt"
	"net/http"
	stdhttputil "net/http/httputil"
	"net/url"
	"strings"

	"github.com/gorilla/mux"

	"github.com/threadsclone/backend/internal/config"
	"github.com/threadsclone/backend/internal/httputil"
	"github.com/threadsclone/backend/internal/logging"
)

// gatewayHeaders are set by the gateway's own middleware chain and dropped
// from upstream responses so they are not sent twice.
var gatewayHeaders = []string{
	"Access-Control-Allow-Origin",
	"Access-Control-Allow-Credentials",
	"Access-Control-Allow-Methods",
	"Access-Control-Allow-Headers",
	"Access-Control-Expose-Headers",
	"Access-Control-Max-Age",
	"Content-Security-Policy",
	"Cross-Origin-Resource-Policy",
	"Cross-Origin-Opener-Policy",
	"X-Content-Type-Options",
	"X-Frame-Options",
	"X-XSS-Protection",
	"Referrer-Policy",
	"Permissions-Policy",
	"Vary",
	"X-Trace-ID",
}

// Route is one prefix forwarded to an upstream service.
type Route struct {
	Name   string
	Prefix string
	Target *url.URL
	proxy  *stdhttputil.ReverseProxy
}

// Proxy forwards requests by path prefix.
type Proxy struct {
	routes []*Route
	logger *logging.Logger
}

// NewProxy builds the forwarding table for upstreams.
func NewProxy(upstreams []config.Upstream, logger *logging.Logger) (*Proxy, error) {
	if logger == nil {
		logger = logging.Default()
	}
	p := &Proxy{logger: logger}
	for _, u := range upstreams {
		target, err := url.Parse(u.URL)
		if err != nil || target.Scheme == "" || target.Host == "" {
			return nil, fmt.Errorf("upstream %s: invalid url %q", u.Name, u.URL)
		}
		route := &Route{
			Name:   u.Name,
			Prefix: strings.TrimRight(u.Prefix, "/"),
			Target: target,
		}
		route.proxy = p.reverseProxy(route)
		p.routes = append(p.routes, route)
	}
	return p, nil
}

// Routes lists the forwarding table in registration order.
func (p *Proxy) Routes() []*Route {
	return p.routes
}

// Register mounts every prefix on r. Method, headers and body are passed
// through unchanged; only the prefix is removed from the path.
func (p *Proxy) Register(r *mux.Router) {
	for _, route := range p.routes {
		r.PathPrefix(route.Prefix).Handler(http.StripPrefix(route.Prefix, route.proxy))
	}
}

func (p *Proxy) reverseProxy(route *Route) *stdhttputil.ReverseProxy {
	rp := stdhttputil.NewSingleHostReverseProxy(route.Target)
	director := rp.Director
	rp.Director = func(req *http.Request) {
		if req.URL.Path == "" {
			req.URL.Path = "/"
		}
		director(req)
		req.Host = route.Target.Host
		if traceID := logging.GetTraceID(req.Context()); traceID != "" {
			req.Header.Set("X-Trace-ID", traceID)
		}
	}
	rp.ModifyResponse = func(resp *http.Response) error {
		for _, h := range gatewayHeaders {
			resp.Header.Del(h)
		}
		return nil
	}
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		p.logger.WithContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
			"service": route.Name,
			"path":    r.URL.Path,
		}).Warn("Upstream request failed")
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": fmt.Sprintf("Service %s unavailable", route.Name),
		})
	}
	return rp
}
