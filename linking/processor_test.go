package linking

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasgg/storefront/domain"
	"github.com/atlasgg/storefront/session"
	"github.com/atlasgg/storefront/storage"
)

// fakeNavigator records the navigation side effects of a processed callback.
type fakeNavigator struct {
	immediateURL string
	route        string
	delay        time.Duration
}

func (n *fakeNavigator) Navigate(url string) {
	n.immediateURL = url
}

func (n *fakeNavigator) NavigateAfter(route string, delay time.Duration) {
	n.route = route
	n.delay = delay
}

func newTestProcessor(t *testing.T, identity *domain.Identity) (*Processor, *session.Store) {
	t.Helper()

	sessions := session.NewStore(storage.NewMemoryStore())
	if identity != nil {
		require.NoError(t, sessions.Set(context.Background(), identity))
	}
	processor := NewProcessor(sessions)
	t.Cleanup(processor.Close)
	return processor, sessions
}

func steamLikeProvider(exchanges *int, outcome *Outcome, exchangeErr error) Provider {
	return Provider{
		Name:         "steam",
		SuccessRoute: RouteHome,
		Delay:        RedirectDelay,
		Exchange: func(ctx context.Context, query url.Values) (*Outcome, error) {
			*exchanges++
			if exchangeErr != nil {
				return nil, exchangeErr
			}
			return outcome, nil
		},
	}
}

const steamQuery = "openid.mode=id_res&openid.identity=76561198000000001"

func TestProcessor_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("success stores the session and schedules navigation", func(t *testing.T) {
		processor, sessions := newTestProcessor(t, nil)
		exchanges := 0
		prov := steamLikeProvider(&exchanges, &Outcome{
			Session: &domain.Identity{AccessToken: "tok", PlayerID: "1"},
		}, nil)

		nav := &fakeNavigator{}
		result := processor.Handle(ctx, prov, steamQuery, nav)

		assert.Equal(t, StatusSuccess, result.Status)
		assert.Equal(t, 1, exchanges)
		assert.Equal(t, RouteHome, nav.route)
		assert.Equal(t, RedirectDelay, nav.delay)
		assert.Empty(t, nav.immediateURL)
		assert.True(t, sessions.IsAuthenticated(ctx))
	})

	t.Run("duplicate invocation exchanges exactly once", func(t *testing.T) {
		processor, _ := newTestProcessor(t, nil)
		exchanges := 0
		prov := steamLikeProvider(&exchanges, &Outcome{
			Session: &domain.Identity{AccessToken: "tok", PlayerID: "1"},
		}, nil)

		first := processor.Handle(ctx, prov, steamQuery, &fakeNavigator{})
		second := processor.Handle(ctx, prov, steamQuery, &fakeNavigator{})

		assert.Equal(t, 1, exchanges)
		assert.Equal(t, StatusSuccess, first.Status)
		assert.Equal(t, StatusSuccess, second.Status)
	})

	t.Run("two_factor navigates immediately and schedules nothing", func(t *testing.T) {
		processor, sessions := newTestProcessor(t, nil)
		exchanges := 0
		prov := steamLikeProvider(&exchanges, &Outcome{
			TwoFactorURL: "https://atlas.test/2fa/continue",
		}, nil)

		nav := &fakeNavigator{}
		result := processor.Handle(ctx, prov, steamQuery, nav)

		assert.Equal(t, StatusSuccess, result.Status)
		assert.Equal(t, "https://atlas.test/2fa/continue", nav.immediateURL)
		assert.Empty(t, nav.route)
		assert.Zero(t, nav.delay)
		assert.False(t, sessions.IsAuthenticated(ctx))
	})

	t.Run("empty query does nothing", func(t *testing.T) {
		processor, _ := newTestProcessor(t, nil)
		exchanges := 0
		prov := steamLikeProvider(&exchanges, nil, nil)

		nav := &fakeNavigator{}
		result := processor.Handle(ctx, prov, "", nav)

		assert.Equal(t, StatusLoading, result.Status)
		assert.Zero(t, exchanges)
		assert.Empty(t, nav.immediateURL)
		assert.Empty(t, nav.route)
	})

	t.Run("exchange failure surfaces as error and permits a retry", func(t *testing.T) {
		processor, _ := newTestProcessor(t, nil)
		exchanges := 0
		failing := steamLikeProvider(&exchanges, nil, errors.New("provider unavailable"))

		result := processor.Handle(ctx, failing, steamQuery, &fakeNavigator{})
		assert.Equal(t, StatusError, result.Status)
		assert.Contains(t, result.Message, "provider unavailable")

		// The completed latch is only set on success, so the identical
		// parameters may be exchanged again.
		working := steamLikeProvider(&exchanges, &Outcome{
			Session: &domain.Identity{AccessToken: "tok", PlayerID: "1"},
		}, nil)
		retry := processor.Handle(ctx, working, steamQuery, &fakeNavigator{})
		assert.Equal(t, StatusSuccess, retry.Status)
		assert.Equal(t, 2, exchanges)
	})

	t.Run("link provider requires a session", func(t *testing.T) {
		processor, _ := newTestProcessor(t, nil)
		exchanges := 0
		prov := Provider{
			Name:            "discord",
			RequiresSession: true,
			SuccessRoute:    RouteLinkManage,
			Delay:           RedirectDelay,
			Exchange: func(ctx context.Context, query url.Values) (*Outcome, error) {
				exchanges++
				return &Outcome{Patch: func(*domain.Identity) {}}, nil
			},
		}

		result := processor.Handle(ctx, prov, "code=abc&state=xyz", &fakeNavigator{})

		assert.Equal(t, StatusError, result.Status)
		assert.Zero(t, exchanges, "precondition failure must not reach the network")
	})

	t.Run("link patch merges into the stored identity", func(t *testing.T) {
		processor, sessions := newTestProcessor(t, &domain.Identity{
			AccessToken: "tok",
			PlayerID:    "76561198000000001",
		})
		prov := Provider{
			Name:            "discord",
			RequiresSession: true,
			SuccessRoute:    RouteLinkManage,
			Delay:           RedirectDelay,
			Exchange: func(ctx context.Context, query url.Values) (*Outcome, error) {
				return &Outcome{Patch: func(identity *domain.Identity) {
					identity.DiscordID = "1234"
					identity.Linked = true
				}}, nil
			},
		}

		nav := &fakeNavigator{}
		result := processor.Handle(ctx, prov, "code=abc&state=xyz", nav)

		assert.Equal(t, StatusSuccess, result.Status)
		assert.Equal(t, RouteLinkManage, nav.route)

		identity := sessions.Get(ctx)
		require.NotNil(t, identity)
		assert.Equal(t, "1234", identity.DiscordID)
		assert.Equal(t, "76561198000000001", identity.PlayerID)
	})

	t.Run("distinct queries are processed independently", func(t *testing.T) {
		processor, _ := newTestProcessor(t, nil)
		exchanges := 0
		prov := steamLikeProvider(&exchanges, &Outcome{
			Session: &domain.Identity{AccessToken: "tok", PlayerID: "1"},
		}, nil)

		processor.Handle(ctx, prov, "openid.mode=id_res&nonce=1", &fakeNavigator{})
		processor.Handle(ctx, prov, "openid.mode=id_res&nonce=2", &fakeNavigator{})

		assert.Equal(t, 2, exchanges)
	})
}

func TestProviders_Interpretation(t *testing.T) {
	// Provider descriptors are built against the Atlas client; their
	// interpretation rules are covered through the client tests and the
	// HTTP handler tests. Here we only pin the descriptor wiring.
	t.Run("steam descriptor", func(t *testing.T) {
		prov := NewSteamProvider(nil)
		assert.Equal(t, "steam", prov.Name)
		assert.False(t, prov.RequiresSession)
		assert.Equal(t, RouteHome, prov.SuccessRoute)
	})

	t.Run("discord and google require a session", func(t *testing.T) {
		discord := NewDiscordProvider(nil)
		google := NewGoogleProvider(nil)
		assert.True(t, discord.RequiresSession)
		assert.True(t, google.RequiresSession)
		assert.Equal(t, RouteLinkManage, discord.SuccessRoute)
		assert.Equal(t, RouteLinkManage, google.SuccessRoute)
	})
}
