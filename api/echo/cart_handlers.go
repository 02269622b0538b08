package echo

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/atlasgg/storefront/cart"
	"github.com/atlasgg/storefront/domain"
	errs "github.com/atlasgg/storefront/errors"
)

// apiError maps client and precondition failures onto HTTP responses.
// Upstream errors keep their status line and raw body; local precondition
// errors become 401/409/422 as appropriate.
func apiError(c echo.Context, err error) error {
	if apiErr, ok := errs.IsAPIError(err); ok {
		return c.JSON(http.StatusBadGateway, apiErr)
	}
	switch {
	case errors.Is(err, errs.ErrNotAuthenticated), errors.Is(err, errs.ErrMissingIngressToken):
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	case errors.Is(err, errs.ErrEmptyCart):
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	default:
		log.Error().Err(err).Msg("request failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

type cartView struct {
	Items []domain.LineItem `json:"items"`
	Total int64             `json:"total"`
}

func (a *StorefrontAPI) cartView() cartView {
	items := a.cart.Items()
	if items == nil {
		items = []domain.LineItem{}
	}
	return cartView{Items: items, Total: a.cart.Total()}
}

// CartHandler returns the current cart collection and total.
func (a *StorefrontAPI) CartHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, a.cartView())
}

// CartAddHandler appends a new line. The line id and quantity in the request
// are ignored: the store mints its own id and pins quantity to 1.
func (a *StorefrontAPI) CartAddHandler(c echo.Context) error {
	var item domain.LineItem
	if err := c.Bind(&item); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid line item"})
	}
	if item.ProductID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "product_id is required"})
	}

	stored, err := a.cart.AddItem(c.Request().Context(), item)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusCreated, stored)
}

// CartRemoveHandler deletes a line; removing an unknown line succeeds.
func (a *StorefrontAPI) CartRemoveHandler(c echo.Context) error {
	if err := a.cart.RemoveItem(c.Request().Context(), c.Param("lineID")); err != nil {
		return apiError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CartClearHandler empties the cart.
func (a *StorefrontAPI) CartClearHandler(c echo.Context) error {
	if err := a.cart.Clear(c.Request().Context()); err != nil {
		return apiError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CartGiftHandler sets or clears the gift recipient on a line. A null body
// clears it.
func (a *StorefrontAPI) CartGiftHandler(c echo.Context) error {
	var gift *domain.GiftTarget
	if err := c.Bind(&gift); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid gift target"})
	}
	if err := a.cart.UpdateItemGift(c.Request().Context(), c.Param("lineID"), gift); err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, a.cartView())
}

// CartSubscriptionHandler sets the subscription flag on a line. The store
// keeps gift lines pinned to false.
func (a *StorefrontAPI) CartSubscriptionHandler(c echo.Context) error {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if err := a.cart.UpdateItemSubscription(c.Request().Context(), c.Param("lineID"), body.Enabled); err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, a.cartView())
}

// CartPresenceHandler answers the advisory "already in cart?" queries the
// product pages use before offering an add button.
func (a *StorefrontAPI) CartPresenceHandler(c echo.Context) error {
	productID := c.QueryParam("product_id")
	if productID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "product_id is required"})
	}

	var presence cart.Presence
	switch domain.ItemKind(c.QueryParam("kind")) {
	case domain.ItemKindBundle:
		presence = a.cart.BundleInCartInfo(productID)
	default:
		presence = a.cart.RankInCartInfo(productID)
	}
	return c.JSON(http.StatusOK, presence)
}

// ProductsHandler proxies the commerce catalog.
func (a *StorefrontAPI) ProductsHandler(c echo.Context) error {
	products, err := a.payments.Products(c.Request().Context())
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, products)
}

// CheckoutHandler creates a hosted checkout from the current cart.
func (a *StorefrontAPI) CheckoutHandler(c echo.Context) error {
	created, err := a.checkouts.Create(c.Request().Context())
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

// CheckoutCompleteHandler is the payment-result landing for finished flows.
// The cart is cleared here, once the purchase actually went through.
func (a *StorefrontAPI) CheckoutCompleteHandler(c echo.Context) error {
	if err := a.checkouts.Complete(c.Request().Context()); err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "complete"})
}

// CheckoutCancelHandler is the payment-result landing for abandoned flows.
// The cart is left as it was.
func (a *StorefrontAPI) CheckoutCancelHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "cancelled"})
}
