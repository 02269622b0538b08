// Package session holds the single per-profile identity record. There is no
// in-memory cache on purpose: reads are UI-driven, not hot-path, and
// re-parsing storage on every call keeps two processes over the same profile
// from serving stale records.
package session

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/atlasgg/storefront/domain"
	errs "github.com/atlasgg/storefront/errors"
	"github.com/atlasgg/storefront/storage"
)

// Store is the process-wide accessor over the serialized identity record.
type Store struct {
	blobs storage.BlobStore
}

// NewStore creates a session store over the given blob store.
func NewStore(blobs storage.BlobStore) *Store {
	return &Store{blobs: blobs}
}

// Get returns the stored identity, or nil when none is stored. A blob that
// fails to parse is treated the same as an absent one; the failure is logged
// but never surfaced.
func (s *Store) Get(ctx context.Context) *domain.Identity {
	raw, err := s.blobs.Get(ctx, storage.KeySession)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warn().Err(err).Msg("failed to read session blob")
		}
		return nil
	}

	var identity domain.Identity
	if err := json.Unmarshal(raw, &identity); err != nil {
		log.Warn().Err(err).Msg("stored session blob is unparseable, treating as signed out")
		return nil
	}
	return &identity
}

// Set serializes and stores the identity. A nil identity removes the stored
// record (sign-out).
func (s *Store) Set(ctx context.Context, identity *domain.Identity) error {
	if identity == nil {
		return s.blobs.Delete(ctx, storage.KeySession)
	}
	raw, err := json.Marshal(identity)
	if err != nil {
		return err
	}
	return s.blobs.Set(ctx, storage.KeySession, raw)
}

// Update applies mutate to the current identity and stores the result. It
// fails when no session exists, which is the precondition the link flows
// check before calling upstream.
func (s *Store) Update(ctx context.Context, mutate func(*domain.Identity)) error {
	identity := s.Get(ctx)
	if identity == nil {
		return errs.ErrNotAuthenticated
	}
	mutate(identity)
	return s.Set(ctx, identity)
}

// IsAuthenticated reports whether an identity record is stored.
func (s *Store) IsAuthenticated(ctx context.Context) bool {
	return s.Get(ctx) != nil
}

// AccessToken returns the stored bearer token, or "" when signed out.
func (s *Store) AccessToken(ctx context.Context) string {
	if identity := s.Get(ctx); identity != nil {
		return identity.AccessToken
	}
	return ""
}

// CustomerToken returns the stored commerce customer token, or "".
func (s *Store) CustomerToken(ctx context.Context) string {
	if identity := s.Get(ctx); identity != nil {
		return identity.CustomerToken
	}
	return ""
}
