package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/training-ledger-api/internal/service"
)

const (
	routeGroupOps       = "ops"
	routeGroupUnmatched = "unmatched"
)

// Metrics records every request under its ledger route group (batches, fees, reports, ...) and
// route template. Requests outside the API prefix count as ops; unrouted paths collapse into a
// single unmatched series so scanners cannot inflate label cardinality.
func Metrics(metricsSvc *service.MetricsService, apiPrefix string) gin.HandlerFunc {
	prefix := strings.TrimRight(apiPrefix, "/")
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		group := routeGroup(prefix, route)
		if route == "" {
			route = routeGroupUnmatched
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, group, route, c.Writer.Status(), time.Since(start))
	}
}

func routeGroup(prefix, route string) string {
	if route == "" {
		return routeGroupUnmatched
	}
	rest := route
	if prefix != "" {
		if !strings.HasPrefix(route, prefix+"/") {
			return routeGroupOps
		}
		rest = strings.TrimPrefix(route, prefix)
	}
	segment := strings.SplitN(strings.TrimPrefix(rest, "/"), "/", 2)[0]
	if segment == "" {
		return routeGroupOps
	}
	return segment
}
