// Package cart implements the observable cart store. The whole collection is
// persisted to the profile blob store on every mutation and rehydrated once
// at construction, so a process restart reproduces the identical cart.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/atlasgg/storefront/domain"
	"github.com/atlasgg/storefront/storage"
)

// Presence summarizes how a product currently appears in the cart.
type Presence struct {
	ForSelf   bool `json:"for_self"`
	AsGift    bool `json:"as_gift"`
	GiftCount int  `json:"gift_count"`
}

// Store holds the cart line items. All mutations go through its mutex, are
// persisted before returning, and fan out a snapshot to subscribers.
type Store struct {
	mu    sync.Mutex
	blobs storage.BlobStore
	items []domain.LineItem

	subMu       sync.Mutex
	subscribers map[int]func([]domain.LineItem)
	nextSubID   int
}

// NewStore creates a cart store and rehydrates it from storage. A missing
// blob starts an empty cart; an unparseable one is logged and also starts an
// empty cart rather than failing startup.
func NewStore(ctx context.Context, blobs storage.BlobStore) *Store {
	s := &Store{
		blobs:       blobs,
		subscribers: make(map[int]func([]domain.LineItem)),
	}

	raw, err := blobs.Get(ctx, storage.KeyCart)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		// First run for this profile.
	case err != nil:
		log.Warn().Err(err).Msg("failed to rehydrate cart, starting empty")
	default:
		if err := json.Unmarshal(raw, &s.items); err != nil {
			log.Warn().Err(err).Msg("stored cart blob is unparseable, starting empty")
			s.items = nil
		}
	}
	return s
}

// newLineID mints a unique line identifier. The product id stays recoverable
// as the prefix; the timestamp and random suffix keep two lines for the same
// product distinct.
func newLineID(productID string) string {
	suffix := uuid.NewString()[:8]
	return fmt.Sprintf("%s-%d-%s", productID, time.Now().UnixMilli(), suffix)
}

// AddItem appends item as a new line. It always mints a fresh line id and
// forces quantity to 1; it never merges with an existing line for the same
// product, since two lines may represent different gift recipients. The
// stored line is returned.
func (s *Store) AddItem(ctx context.Context, item domain.LineItem) (domain.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item.LineID = newLineID(item.ProductID)
	item.Quantity = 1
	if item.Gift != nil {
		// Gifting and recurring billing are mutually exclusive.
		item.Subscription = false
	}
	s.items = append(s.items, item)

	if err := s.persistLocked(ctx); err != nil {
		return domain.LineItem{}, err
	}
	s.notify()
	return item, nil
}

// RemoveItem deletes the line with the given id. Removing an unknown line is
// a no-op.
func (s *Store) RemoveItem(ctx context.Context, lineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.items[:0]
	for _, item := range s.items {
		if item.LineID != lineID {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(s.items) {
		return nil
	}
	s.items = kept

	if err := s.persistLocked(ctx); err != nil {
		return err
	}
	s.notify()
	return nil
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	if err := s.persistLocked(ctx); err != nil {
		return err
	}
	s.notify()
	return nil
}

// UpdateItemGift sets or clears the gift recipient on a line. Setting a
// recipient forces the subscription flag off; clearing one leaves the flag
// untouched.
func (s *Store) UpdateItemGift(ctx context.Context, lineID string, gift *domain.GiftTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].LineID != lineID {
			continue
		}
		s.items[i].Gift = gift
		if gift != nil {
			s.items[i].Subscription = false
		}
		if err := s.persistLocked(ctx); err != nil {
			return err
		}
		s.notify()
		return nil
	}
	return nil
}

// UpdateItemSubscription sets the subscription flag on a line. Gift lines are
// pinned to false regardless of the requested value.
func (s *Store) UpdateItemSubscription(ctx context.Context, lineID string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].LineID != lineID {
			continue
		}
		if s.items[i].Gift != nil {
			return nil
		}
		s.items[i].Subscription = enabled
		if err := s.persistLocked(ctx); err != nil {
			return err
		}
		s.notify()
		return nil
	}
	return nil
}

// Items returns a copy of the current collection, in insertion order.
func (s *Store) Items() []domain.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Total is the sum of line unit prices in cents. Quantity is always 1, so no
// multiplier applies.
func (s *Store) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, item := range s.items {
		total += item.UnitPrice
	}
	return total
}

// HasRankInCartForSelf reports whether a rank with the given product id is in
// the cart as a personal purchase. Gift copies do not count.
func (s *Store) HasRankInCartForSelf(productID string) bool {
	return s.hasForSelf(domain.ItemKindRank, productID)
}

// HasBundleInCartForSelf is HasRankInCartForSelf for bundles.
func (s *Store) HasBundleInCartForSelf(productID string) bool {
	return s.hasForSelf(domain.ItemKindBundle, productID)
}

func (s *Store) hasForSelf(kind domain.ItemKind, productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.items {
		if item.Kind == kind && item.ProductID == productID && item.Gift == nil {
			return true
		}
	}
	return false
}

// RankInCartInfo summarizes how a rank product appears in the cart,
// distinguishing the personal copy from gift copies. Callers use it to block
// re-adding a product the user is already buying for themselves while still
// allowing additional gift copies.
func (s *Store) RankInCartInfo(productID string) Presence {
	return s.presence(domain.ItemKindRank, productID)
}

// BundleInCartInfo is RankInCartInfo for bundles.
func (s *Store) BundleInCartInfo(productID string) Presence {
	return s.presence(domain.ItemKindBundle, productID)
}

func (s *Store) presence(kind domain.ItemKind, productID string) Presence {
	s.mu.Lock()
	defer s.mu.Unlock()

	var p Presence
	for _, item := range s.items {
		if item.Kind != kind || item.ProductID != productID {
			continue
		}
		if item.Gift == nil {
			p.ForSelf = true
		} else {
			p.AsGift = true
			p.GiftCount++
		}
	}
	return p
}

// Subscribe registers fn to receive a snapshot of the collection after every
// mutation. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(items []domain.LineItem)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subscribers, id)
	}
}

func (s *Store) snapshotLocked() []domain.LineItem {
	out := make([]domain.LineItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) persistLocked(ctx context.Context) error {
	raw, err := json.Marshal(s.items)
	if err != nil {
		return err
	}
	if err := s.blobs.Set(ctx, storage.KeyCart, raw); err != nil {
		return fmt.Errorf("failed to persist cart: %w", err)
	}
	return nil
}

func (s *Store) notify() {
	snapshot := s.snapshotLocked()

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, fn := range s.subscribers {
		fn(snapshot)
	}
}
