// Package maintenance implements the path classifier that sends selected
// routes to a holding page while upstream work is in progress. The rule set
// is static configuration: loaded once, immutable at runtime.
package maintenance

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// HoldingRoute is where matched navigations are rewritten to. The original
// path travels along in the "from" query parameter for display and debugging.
const HoldingRoute = "/maintenance"

// Gate decides whether a navigation path should be redirected.
type Gate struct {
	enabled    bool
	production bool
	targets    []string
	exclusions []string
}

// NewGate builds a gate from the static rule set. The gate only ever fires
// when both the feature flag is on and the deployment is production-like.
func NewGate(enabled, production bool, targets, exclusions []string) *Gate {
	return &Gate{
		enabled:    enabled,
		production: production,
		targets:    targets,
		exclusions: exclusions,
	}
}

// ShouldRedirect reports whether path must be rewritten to the holding page.
// Exclusion prefixes win over targets; a target matches on equality or the
// prefix followed by "/".
func (g *Gate) ShouldRedirect(path string) bool {
	if !g.enabled || !g.production {
		return false
	}
	for _, prefix := range g.exclusions {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	for _, target := range g.targets {
		if path == target || strings.HasPrefix(path, target+"/") {
			return true
		}
	}
	return false
}

// Middleware applies the gate ahead of page routing. Asset requests and the
// holding page itself pass through untouched.
func Middleware(gate *Gate) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if path == HoldingRoute || strings.Contains(path, ".") {
				return next(c)
			}
			if !gate.ShouldRedirect(path) {
				return next(c)
			}
			log.Debug().Str("path", path).Msg("maintenance gate redirect")
			target := HoldingRoute + "?from=" + url.QueryEscape(path)
			return c.Redirect(http.StatusTemporaryRedirect, target)
		}
	}
}
