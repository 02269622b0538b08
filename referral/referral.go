// Package referral captures referral codes arriving as navigation query
// parameters and persists them for checkout attribution.
package referral

import (
	"context"
	"errors"
	"regexp"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/atlasgg/storefront/storage"
)

// QueryParam is the navigation parameter carrying a referral code.
const QueryParam = "ref"

// A referral code is a 17-digit platform id; anything else is rejected.
var codePattern = regexp.MustCompile(`^\d{17}$`)

// Valid reports whether code is a well-formed referral code.
func Valid(code string) bool {
	return codePattern.MatchString(code)
}

// Recorder persists the most recent valid referral code.
type Recorder struct {
	blobs storage.BlobStore
}

// NewRecorder creates a recorder over the profile blob store.
func NewRecorder(blobs storage.BlobStore) *Recorder {
	return &Recorder{blobs: blobs}
}

// Capture validates and persists code. Invalid codes are dropped without
// touching storage; only persistence failures are reported.
func (r *Recorder) Capture(ctx context.Context, code string) error {
	if !Valid(code) {
		log.Debug().Str("code", code).Msg("ignoring malformed referral code")
		return nil
	}
	return r.blobs.Set(ctx, storage.KeyReferral, []byte(code))
}

// Get returns the stored referral code, or "" when none is stored.
func (r *Recorder) Get(ctx context.Context) string {
	raw, err := r.blobs.Get(ctx, storage.KeyReferral)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warn().Err(err).Msg("failed to read referral code")
		}
		return ""
	}
	return string(raw)
}

// Middleware captures the referral parameter on every navigation that
// carries one.
func Middleware(recorder *Recorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if code := c.QueryParam(QueryParam); code != "" {
				if err := recorder.Capture(c.Request().Context(), code); err != nil {
					log.Warn().Err(err).Msg("failed to persist referral code")
				}
			}
			return next(c)
		}
	}
}
