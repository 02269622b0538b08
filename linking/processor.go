package linking

import (
	"context"
	"net/url"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog/log"

	"github.com/atlasgg/storefront/session"
)

// Status is the callback page state. Loading is the entry state; success and
// error are terminal for one attempt.
type Status string

const (
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// How long a completed exchange suppresses re-processing of the identical
// callback parameters, and how long an in-flight hold lasts if its owner
// never finishes.
const (
	completedTTL = 5 * time.Minute
	inflightTTL  = 1 * time.Minute
)

// Navigator receives the navigation side effects of a processed callback.
// The HTTP layer renders them as redirects; tests record them.
type Navigator interface {
	// Navigate performs an immediate navigation to an absolute URL.
	Navigate(url string)
	// NavigateAfter schedules a navigation to an internal route after the
	// given delay.
	NavigateAfter(route string, delay time.Duration)
}

// Result is the observable outcome of one Handle call.
type Result struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	// Route is the scheduled follow-up route on success.
	Route string `json:"route,omitempty"`
}

// Processor runs provider exchanges at most once per distinct callback
// parameter set. De-duplication is keyed on the raw query string against two
// TTL caches, so it holds across however many times the surrounding page
// re-invokes the handler. A failed attempt only releases the in-flight hold;
// the identical parameters may then be retried, which allows recovery from
// transient provider errors.
type Processor struct {
	sessions  *session.Store
	inflight  *ttlcache.Cache[string, struct{}]
	completed *ttlcache.Cache[string, Result]
}

// NewProcessor creates a processor with automatic cache expiry running.
func NewProcessor(sessions *session.Store) *Processor {
	inflight := ttlcache.New(
		ttlcache.WithTTL[string, struct{}](inflightTTL),
		ttlcache.WithDisableTouchOnHit[string, struct{}](),
	)
	completed := ttlcache.New(
		ttlcache.WithTTL[string, Result](completedTTL),
		ttlcache.WithDisableTouchOnHit[string, Result](),
	)

	go inflight.Start()
	go completed.Start()

	return &Processor{
		sessions:  sessions,
		inflight:  inflight,
		completed: completed,
	}
}

// Close stops the cache cleanup goroutines.
func (p *Processor) Close() {
	p.inflight.Stop()
	p.completed.Stop()
}

// Handle processes one callback invocation. An empty query performs no work
// and leaves the page loading; a query already exchanged successfully returns
// the prior result without calling upstream.
func (p *Processor) Handle(ctx context.Context, prov Provider, rawQuery string, nav Navigator) Result {
	if rawQuery == "" {
		return Result{Status: StatusLoading}
	}

	key := prov.Name + "|" + rawQuery

	if item := p.completed.Get(key); item != nil {
		log.Debug().Str("provider", prov.Name).Msg("callback already processed, skipping exchange")
		return item.Value()
	}
	if p.inflight.Has(key) {
		return Result{Status: StatusLoading}
	}
	p.inflight.Set(key, struct{}{}, ttlcache.DefaultTTL)
	defer p.inflight.Delete(key)

	result := p.process(ctx, prov, rawQuery, nav)
	if result.Status == StatusSuccess {
		p.completed.Set(key, result, ttlcache.DefaultTTL)
	}
	return result
}

func (p *Processor) process(ctx context.Context, prov Provider, rawQuery string, nav Navigator) Result {
	if prov.RequiresSession && !p.sessions.IsAuthenticated(ctx) {
		log.Warn().Str("provider", prov.Name).Msg("link callback without a primary session")
		return Result{Status: StatusError, Message: "you must be signed in before linking an account"}
	}

	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return Result{Status: StatusError, Message: "malformed callback parameters"}
	}

	outcome, err := prov.Exchange(ctx, query)
	if err != nil {
		log.Error().Err(err).Str("provider", prov.Name).Msg("callback exchange failed")
		return Result{Status: StatusError, Message: err.Error()}
	}

	if outcome.TwoFactorURL != "" {
		// Immediate full navigation to the continuation page; no delayed
		// navigation is scheduled on this path.
		nav.Navigate(outcome.TwoFactorURL)
		return Result{Status: StatusSuccess, Route: outcome.TwoFactorURL}
	}

	if outcome.Session != nil {
		if err := p.sessions.Set(ctx, outcome.Session); err != nil {
			log.Error().Err(err).Str("provider", prov.Name).Msg("failed to store session")
			return Result{Status: StatusError, Message: "failed to store session"}
		}
	}
	if outcome.Patch != nil {
		if err := p.sessions.Update(ctx, outcome.Patch); err != nil {
			log.Error().Err(err).Str("provider", prov.Name).Msg("failed to update session")
			return Result{Status: StatusError, Message: err.Error()}
		}
	}

	nav.NavigateAfter(prov.SuccessRoute, prov.Delay)
	log.Info().Str("provider", prov.Name).Str("route", prov.SuccessRoute).Msg("callback processed")
	return Result{Status: StatusSuccess, Route: prov.SuccessRoute}
}
