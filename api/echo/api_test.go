package echo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasgg/storefront/atlas"
	"github.com/atlasgg/storefront/cart"
	"github.com/atlasgg/storefront/checkout"
	"github.com/atlasgg/storefront/domain"
	"github.com/atlasgg/storefront/linking"
	"github.com/atlasgg/storefront/paynow"
	"github.com/atlasgg/storefront/referral"
	"github.com/atlasgg/storefront/session"
	"github.com/atlasgg/storefront/storage"
)

type testFixture struct {
	e        *echo.Echo
	sessions *session.Store
	cart     *cart.Store
	upstream *httptest.Server
}

// newFixture wires a full API over in-memory storage with a scriptable
// upstream standing in for both remote services.
func newFixture(t *testing.T, upstream http.HandlerFunc) *testFixture {
	t.Helper()

	ctx := context.Background()
	blobs := storage.NewMemoryStore()
	sessions := session.NewStore(blobs)
	cartStore := cart.NewStore(ctx, blobs)
	referrals := referral.NewRecorder(blobs)

	server := httptest.NewServer(upstream)
	t.Cleanup(server.Close)

	atlasClient, err := atlas.New(atlas.Config{
		BaseURL:    server.URL,
		IngressURL: server.URL + "/ingress",
	}, sessions)
	require.NoError(t, err)
	payments, err := paynow.New(paynow.Config{BaseURL: server.URL, APIKey: "k"}, sessions)
	require.NoError(t, err)

	processor := linking.NewProcessor(sessions)
	t.Cleanup(processor.Close)

	checkouts := checkout.NewService(cartStore, payments, referrals, "/checkout/complete", "/checkout/cancel")

	api := NewStorefrontAPI(
		sessions, cartStore, processor, atlasClient, payments, checkouts,
		linking.NewSteamProvider(atlasClient),
		linking.NewDiscordProvider(atlasClient),
		linking.NewGoogleProvider(atlasClient),
	)

	e := echo.New()
	api.RegisterRoutes(e)
	return &testFixture{e: e, sessions: sessions, cart: cartStore, upstream: server}
}

func (f *testFixture) request(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func TestSteamCallbackRoute(t *testing.T) {
	t.Run("success stores the session and schedules the home redirect", func(t *testing.T) {
		f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(atlas.SteamCallbackResult{
				Result:  atlas.ResultSuccess,
				Session: &domain.Identity{AccessToken: "tok", PlayerID: "1"},
			})
		})

		rec := f.request(t, http.MethodGet, "/auth/steam/callback?openid.mode=id_res", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var page callbackPage
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
		assert.Equal(t, linking.StatusSuccess, page.Status)
		assert.Equal(t, "/", page.Redirect)
		assert.Equal(t, int64(1500), page.DelayMS)
		assert.True(t, f.sessions.IsAuthenticated(context.Background()))
	})

	t.Run("two_factor responds with an immediate redirect", func(t *testing.T) {
		f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(atlas.SteamCallbackResult{
				Result: atlas.ResultTwoFactor,
				URL:    "https://atlas.test/2fa",
			})
		})

		rec := f.request(t, http.MethodGet, "/auth/steam/callback?openid.mode=id_res", "")
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "https://atlas.test/2fa", rec.Header().Get(echo.HeaderLocation))
	})

	t.Run("unexpected shape renders the error panel", func(t *testing.T) {
		f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(atlas.SteamCallbackResult{Result: "weird"})
		})

		rec := f.request(t, http.MethodGet, "/auth/steam/callback?openid.mode=id_res", "")
		assert.Equal(t, http.StatusBadGateway, rec.Code)

		var page callbackPage
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
		assert.Equal(t, linking.StatusError, page.Status)
		assert.Equal(t, "no access token received", page.Message)
		assert.Equal(t, "/", page.Back)
	})
}

func TestDiscordCallbackRoute(t *testing.T) {
	t.Run("requires a primary session", func(t *testing.T) {
		upstreamCalled := false
		f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
			upstreamCalled = true
		})

		rec := f.request(t, http.MethodGet, "/auth/discord/callback?code=abc", "")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.False(t, upstreamCalled)
	})

	t.Run("merges the link into the session", func(t *testing.T) {
		f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(atlas.LinkResult{
				Linked: true, PlatformID: "1234", Username: "player#1",
			})
		})
		ctx := context.Background()
		require.NoError(t, f.sessions.Set(ctx, &domain.Identity{AccessToken: "tok", PlayerID: "1"}))

		rec := f.request(t, http.MethodGet, "/auth/discord/callback?code=abc", "")
		require.Equal(t, http.StatusOK, rec.Code)

		identity := f.sessions.Get(ctx)
		require.NotNil(t, identity)
		assert.Equal(t, "1234", identity.DiscordID)
		assert.Equal(t, "player#1", identity.DiscordName)
		assert.True(t, identity.Linked)
	})
}

func TestCartRoutes(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {})

	t.Run("add", func(t *testing.T) {
		rec := f.request(t, http.MethodPost, "/cart/items",
			`{"product_id":"vip","name":"VIP","kind":"rank","unit_price":500,"quantity":9}`)
		require.Equal(t, http.StatusCreated, rec.Code)

		var item domain.LineItem
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
		assert.Equal(t, 1, item.Quantity)
		assert.NotEmpty(t, item.LineID)
	})

	t.Run("view", func(t *testing.T) {
		rec := f.request(t, http.MethodGet, "/cart", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var view cartView
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
		require.Len(t, view.Items, 1)
		assert.Equal(t, int64(500), view.Total)
	})

	t.Run("gift then subscription stays pinned off", func(t *testing.T) {
		lineID := f.cart.Items()[0].LineID

		rec := f.request(t, http.MethodPut, "/cart/items/"+lineID+"/gift",
			`{"platform":"steam","platform_id":"76561198000000002"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = f.request(t, http.MethodPut, "/cart/items/"+lineID+"/subscription", `{"enabled":true}`)
		require.Equal(t, http.StatusOK, rec.Code)

		got := f.cart.Items()[0]
		assert.NotNil(t, got.Gift)
		assert.False(t, got.Subscription)
	})

	t.Run("presence", func(t *testing.T) {
		rec := f.request(t, http.MethodGet, "/cart/presence?kind=rank&product_id=vip", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var presence cart.Presence
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &presence))
		assert.False(t, presence.ForSelf)
		assert.True(t, presence.AsGift)
	})

	t.Run("clear", func(t *testing.T) {
		rec := f.request(t, http.MethodDelete, "/cart", "")
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, f.cart.Items())
	})
}

func TestCheckoutRoutes(t *testing.T) {
	t.Run("empty cart is unprocessable", func(t *testing.T) {
		f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {})
		rec := f.request(t, http.MethodPost, "/checkout", "")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("complete clears the cart", func(t *testing.T) {
		f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {})
		ctx := context.Background()
		_, err := f.cart.AddItem(ctx, domain.LineItem{ProductID: "vip", Kind: domain.ItemKindRank, UnitPrice: 500})
		require.NoError(t, err)

		rec := f.request(t, http.MethodGet, "/checkout/complete", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, f.cart.Items())
	})
}

func TestSessionRoutes(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {})
	ctx := context.Background()

	t.Run("signed out", func(t *testing.T) {
		rec := f.request(t, http.MethodGet, "/session", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("signed in then out", func(t *testing.T) {
		require.NoError(t, f.sessions.Set(ctx, &domain.Identity{AccessToken: "tok", PlayerID: "1"}))

		rec := f.request(t, http.MethodGet, "/session", "")
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = f.request(t, http.MethodDelete, "/session", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.False(t, f.sessions.IsAuthenticated(ctx))
	})
}

func TestMaintenanceHandler(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {})

	rec := f.request(t, http.MethodGet, "/maintenance?from=%2Fsupport", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "/support")
}
