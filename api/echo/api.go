// Package echo exposes the storefront gateway over HTTP.
package echo

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/atlasgg/storefront/atlas"
	"github.com/atlasgg/storefront/cart"
	"github.com/atlasgg/storefront/checkout"
	"github.com/atlasgg/storefront/domain"
	"github.com/atlasgg/storefront/linking"
	"github.com/atlasgg/storefront/maintenance"
	"github.com/atlasgg/storefront/paynow"
	"github.com/atlasgg/storefront/session"
)

// StorefrontAPI struct to hold dependencies.
type StorefrontAPI struct {
	sessions  *session.Store
	cart      *cart.Store
	processor *linking.Processor
	providers map[string]linking.Provider
	checkouts *checkout.Service
	atlas     *atlas.Client
	payments  *paynow.Client
}

// NewStorefrontAPI initializes the storefront API.
func NewStorefrontAPI(
	sessions *session.Store,
	cartStore *cart.Store,
	processor *linking.Processor,
	atlasClient *atlas.Client,
	payments *paynow.Client,
	checkouts *checkout.Service,
	providers ...linking.Provider,
) *StorefrontAPI {
	byName := make(map[string]linking.Provider, len(providers))
	for _, prov := range providers {
		byName[prov.Name] = prov
	}
	return &StorefrontAPI{
		sessions:  sessions,
		cart:      cartStore,
		processor: processor,
		providers: byName,
		checkouts: checkouts,
		atlas:     atlasClient,
		payments:  payments,
	}
}

// RegisterRoutes registers the storefront routes.
func (a *StorefrontAPI) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", a.HealthzHandler)
	e.GET(maintenance.HoldingRoute, a.MaintenanceHandler)

	e.GET("/auth/steam/callback", a.callbackHandler("steam"))
	e.GET("/auth/discord/callback", a.callbackHandler("discord"))
	e.GET("/auth/google/callback", a.callbackHandler("google"))

	e.GET("/session", a.SessionHandler)
	e.DELETE("/session", a.SignOutHandler)
	e.GET("/account/me", a.MeHandler)
	e.GET("/account/linking", a.LinkingSummaryHandler)
	e.DELETE("/account/link/discord", a.UnlinkDiscordHandler)
	e.GET("/players/search", a.PlayerSearchHandler)

	e.GET("/store/products", a.ProductsHandler)

	e.GET("/cart", a.CartHandler)
	e.POST("/cart/items", a.CartAddHandler)
	e.DELETE("/cart/items/:lineID", a.CartRemoveHandler)
	e.DELETE("/cart", a.CartClearHandler)
	e.PUT("/cart/items/:lineID/gift", a.CartGiftHandler)
	e.PUT("/cart/items/:lineID/subscription", a.CartSubscriptionHandler)
	e.GET("/cart/presence", a.CartPresenceHandler)

	e.POST("/checkout", a.CheckoutHandler)
	e.GET("/checkout/complete", a.CheckoutCompleteHandler)
	e.GET("/checkout/cancel", a.CheckoutCancelHandler)
}

// HealthzHandler reports liveness.
func (a *StorefrontAPI) HealthzHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// MaintenanceHandler is the holding page matched navigations are rewritten
// to. The original path arrives in the "from" parameter.
func (a *StorefrontAPI) MaintenanceHandler(c echo.Context) error {
	return c.JSON(http.StatusServiceUnavailable, map[string]string{
		"status": "maintenance",
		"from":   c.QueryParam("from"),
	})
}

// pageNavigator renders the linking navigation side effects into a page
// model: an immediate navigation becomes a redirect, a scheduled one becomes
// fields the client honors after the delay.
type pageNavigator struct {
	immediateURL string
	route        string
	delay        time.Duration
}

func (n *pageNavigator) Navigate(url string) {
	n.immediateURL = url
}

func (n *pageNavigator) NavigateAfter(route string, delay time.Duration) {
	n.route = route
	n.delay = delay
}

type callbackPage struct {
	Status   linking.Status `json:"status"`
	Message  string         `json:"message,omitempty"`
	Redirect string         `json:"redirect,omitempty"`
	DelayMS  int64          `json:"delay_ms,omitempty"`
	Back     string         `json:"back,omitempty"`
}

// callbackHandler drives the provider exchange for one callback route.
func (a *StorefrontAPI) callbackHandler(providerName string) echo.HandlerFunc {
	return func(c echo.Context) error {
		prov, ok := a.providers[providerName]
		if !ok {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown provider"})
		}

		nav := &pageNavigator{}
		result := a.processor.Handle(c.Request().Context(), prov, c.Request().URL.RawQuery, nav)

		if nav.immediateURL != "" {
			return c.Redirect(http.StatusFound, nav.immediateURL)
		}

		page := callbackPage{
			Status:   result.Status,
			Message:  result.Message,
			Redirect: nav.route,
			DelayMS:  nav.delay.Milliseconds(),
		}
		if result.Status == linking.StatusError {
			// Error panel: message plus a manual way back to a safe route.
			page.Back = linking.RouteHome
			return c.JSON(http.StatusBadGateway, page)
		}
		return c.JSON(http.StatusOK, page)
	}
}

// SessionHandler returns the stored identity, or 401 when signed out.
func (a *StorefrontAPI) SessionHandler(c echo.Context) error {
	identity := a.sessions.Get(c.Request().Context())
	if identity == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
	}
	return c.JSON(http.StatusOK, identity)
}

// SignOutHandler destroys the stored identity.
func (a *StorefrontAPI) SignOutHandler(c echo.Context) error {
	if err := a.sessions.Set(c.Request().Context(), nil); err != nil {
		log.Error().Err(err).Msg("failed to clear session")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to sign out"})
	}
	return c.NoContent(http.StatusNoContent)
}

// MeHandler proxies the ingress profile endpoint.
func (a *StorefrontAPI) MeHandler(c echo.Context) error {
	profile, err := a.atlas.Me(c.Request().Context())
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, profile)
}

// LinkingSummaryHandler reports which secondary accounts are linked.
func (a *StorefrontAPI) LinkingSummaryHandler(c echo.Context) error {
	identity := a.sessions.Get(c.Request().Context())
	if identity == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"discord_linked": identity.DiscordID != "",
		"discord_name":   identity.DiscordName,
		"google_linked":  identity.GoogleEmail != "",
		"google_email":   identity.GoogleEmail,
	})
}

// UnlinkDiscordHandler removes the Discord link upstream and locally.
func (a *StorefrontAPI) UnlinkDiscordHandler(c echo.Context) error {
	ctx := c.Request().Context()
	if err := a.atlas.UnlinkDiscord(ctx); err != nil {
		return apiError(c, err)
	}
	err := a.sessions.Update(ctx, func(identity *domain.Identity) {
		identity.DiscordID = ""
		identity.DiscordName = ""
		identity.Linked = identity.GoogleEmail != ""
	})
	if err != nil {
		return apiError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// PlayerSearchHandler proxies the gift-recipient lookup.
func (a *StorefrontAPI) PlayerSearchHandler(c echo.Context) error {
	players, err := a.atlas.SearchPlayers(c.Request().Context(), c.QueryParam("name"), 0)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, players)
}
