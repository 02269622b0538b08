// Package linking runs the OAuth callback exchanges. One generic processor
// handles all providers; the per-provider differences (exchange call,
// response interpretation, session precondition, post-success route) live in
// a Provider descriptor instead of three duplicated controllers.
package linking

import (
	"context"
	"net/url"
	"time"

	"github.com/atlasgg/storefront/atlas"
	"github.com/atlasgg/storefront/domain"
	errs "github.com/atlasgg/storefront/errors"
)

// Routes navigated to after a successful exchange.
const (
	RouteHome       = "/"
	RouteLinkManage = "/account/linking"
	RedirectDelay   = 1500 * time.Millisecond
)

// Outcome is the interpreted result of a provider exchange. Exactly one of
// the fields is set.
type Outcome struct {
	// Session replaces the stored identity (primary sign-in).
	Session *domain.Identity
	// Patch merges linked-account fields into the existing identity.
	Patch func(*domain.Identity)
	// TwoFactorURL triggers an immediate navigation to the provider's
	// continuation page instead of the delayed success navigation.
	TwoFactorURL string
}

// Provider describes one identity provider to the processor.
type Provider struct {
	Name string
	// RequiresSession providers fail locally when no primary session is
	// stored, before any network call.
	RequiresSession bool
	SuccessRoute    string
	Delay           time.Duration
	Exchange        func(ctx context.Context, query url.Values) (*Outcome, error)
}

// NewSteamProvider builds the primary sign-in provider.
func NewSteamProvider(client *atlas.Client) Provider {
	return Provider{
		Name:         "steam",
		SuccessRoute: RouteHome,
		Delay:        RedirectDelay,
		Exchange: func(ctx context.Context, query url.Values) (*Outcome, error) {
			result, err := client.ExchangeSteamCallback(ctx, query)
			if err != nil {
				return nil, err
			}
			switch {
			case result.Result == atlas.ResultTwoFactor && result.URL != "":
				return &Outcome{TwoFactorURL: result.URL}, nil
			case result.Result == atlas.ResultSuccess && result.Session != nil:
				return &Outcome{Session: result.Session}, nil
			default:
				return nil, errs.ErrNoAccessToken
			}
		},
	}
}

// NewDiscordProvider builds the Discord link provider.
func NewDiscordProvider(client *atlas.Client) Provider {
	return Provider{
		Name:            "discord",
		RequiresSession: true,
		SuccessRoute:    RouteLinkManage,
		Delay:           RedirectDelay,
		Exchange: func(ctx context.Context, query url.Values) (*Outcome, error) {
			result, err := client.ExchangeDiscordCallback(ctx, query)
			if err != nil {
				return nil, err
			}
			if result == nil || !result.Linked {
				return nil, errs.ErrLinkFailed
			}
			return &Outcome{Patch: func(identity *domain.Identity) {
				identity.DiscordID = result.PlatformID
				identity.DiscordName = result.Username
				identity.Linked = true
			}}, nil
		},
	}
}

// NewGoogleProvider builds the Google link provider.
func NewGoogleProvider(client *atlas.Client) Provider {
	return Provider{
		Name:            "google",
		RequiresSession: true,
		SuccessRoute:    RouteLinkManage,
		Delay:           RedirectDelay,
		Exchange: func(ctx context.Context, query url.Values) (*Outcome, error) {
			result, err := client.ExchangeGoogleCallback(ctx, query)
			if err != nil {
				return nil, err
			}
			if result == nil || !result.Linked {
				return nil, errs.ErrLinkFailed
			}
			return &Outcome{Patch: func(identity *domain.Identity) {
				identity.GoogleEmail = result.Email
				identity.Linked = true
			}}, nil
		},
	}
}
