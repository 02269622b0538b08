package maintenance

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_ShouldRedirect(t *testing.T) {
	targets := []string{"/support"}
	exclusions := []string{"/support/discord"}

	t.Run("production with the flag on", func(t *testing.T) {
		gate := NewGate(true, true, targets, exclusions)

		assert.True(t, gate.ShouldRedirect("/support"))
		assert.True(t, gate.ShouldRedirect("/support/faq"))
		assert.False(t, gate.ShouldRedirect("/support/discord"))
		assert.False(t, gate.ShouldRedirect("/other"))
		// A shared prefix without the separator is not a match.
		assert.False(t, gate.ShouldRedirect("/supporters"))
	})

	t.Run("outside production the gate never fires", func(t *testing.T) {
		gate := NewGate(true, false, targets, exclusions)
		assert.False(t, gate.ShouldRedirect("/support"))
	})

	t.Run("flag off", func(t *testing.T) {
		gate := NewGate(false, true, targets, exclusions)
		assert.False(t, gate.ShouldRedirect("/support"))
	})
}

func TestMiddleware(t *testing.T) {
	gate := NewGate(true, true, []string{"/support"}, []string{"/support/discord"})

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "page")
	}

	run := func(path string) *httptest.ResponseRecorder {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		require.NoError(t, Middleware(gate)(handler)(c))
		return rec
	}

	t.Run("matched navigation is rewritten to the holding page", func(t *testing.T) {
		rec := run("/support/faq")
		assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
		assert.Equal(t, "/maintenance?from=%2Fsupport%2Ffaq", rec.Header().Get(echo.HeaderLocation))
	})

	t.Run("excluded navigation passes", func(t *testing.T) {
		rec := run("/support/discord")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("asset requests pass", func(t *testing.T) {
		rec := run("/support/logo.png")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("the holding page itself passes", func(t *testing.T) {
		rec := run(HoldingRoute)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
