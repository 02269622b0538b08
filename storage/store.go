// Package storage provides the per-profile blob store the session, cart and
// referral state live in. Values are opaque JSON blobs addressed by a fixed
// set of keys, readable and writable independently of the process that wrote
// them: a restart must rehydrate identical state.
package storage

import (
	"context"
	"errors"
)

// Well-known blob keys. These double as the on-disk / Redis / MongoDB names,
// so changing one is a breaking format change.
const (
	KeySession  = "atlas_session"
	KeyCart     = "atlas_cart"
	KeyReferral = "atlas_referral"
)

// ErrNotFound is returned by Get when no value is stored under the key.
var ErrNotFound = errors.New("storage: key not found")

//go:generate mockgen -source=$GOFILE -destination=../mocks/mock_$GOPACKAGE/mock_$GOFILE -package=mock_$GOPACKAGE
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
