// Package proxy forwards /api/<resource> requests to the service that owns
// the resource.
package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const apiPrefix = "/api"

// Route binds a public resource (e.g. "users") to the base URL of its owner.
type Route struct {
	Resource string
	Target   string
}

// New builds a reverse proxy that strips the /api prefix and sends the rest
// of the path to target. Responses that take longer than timeout to start,
// and unreachable targets, are answered with 503.
func New(target string, timeout time.Duration, logger *zap.Logger) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream %q: %w", target, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream %q: scheme and host are required", target)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout

	return &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(u)
			r.Out.URL.Path = strings.TrimSuffix(u.Path, "/") + strings.TrimPrefix(r.In.URL.Path, apiPrefix)
			r.Out.URL.RawPath = ""
			r.Out.Host = u.Host
			r.SetXForwarded()
		},
		Transport: otelhttp.NewTransport(transport),
		ErrorHandler: func(w http.ResponseWriter, req *http.Request, err error) {
			logger.Error("Upstream request failed",
				zap.String("upstream", u.Host),
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Error(err),
			)
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Service unavailable: " + err.Error()})
		},
	}, nil
}

// Register mounts one proxy per route at /api/<resource> and every sub-path.
func Register(r gin.IRouter, routes []Route, timeout time.Duration, logger *zap.Logger) error {
	for _, route := range routes {
		rp, err := New(route.Target, timeout, logger)
		if err != nil {
			return err
		}
		h := gin.WrapH(rp)
		base := apiPrefix + "/" + route.Resource
		r.Any(base, h)
		r.Any(base+"/*path", h)
	}
	return nil
}
