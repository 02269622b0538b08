// Package checkout turns the current cart into a hosted PayNow checkout.
package checkout

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/atlasgg/storefront/cart"
	errs "github.com/atlasgg/storefront/errors"
	"github.com/atlasgg/storefront/paynow"
	"github.com/atlasgg/storefront/referral"
)

// Service creates checkouts from cart state.
type Service struct {
	cart      *cart.Store
	payments  *paynow.Client
	referrals *referral.Recorder
	returnURL string
	cancelURL string
}

// NewService wires the checkout dependencies. returnURL and cancelURL are
// where PayNow sends the customer back after the hosted flow.
func NewService(cartStore *cart.Store, payments *paynow.Client, referrals *referral.Recorder, returnURL, cancelURL string) *Service {
	return &Service{
		cart:      cartStore,
		payments:  payments,
		referrals: referrals,
		returnURL: returnURL,
		cancelURL: cancelURL,
	}
}

// Create builds a checkout from every line currently in the cart. The cart
// is left untouched: it is only cleared once the upstream flow completes and
// the customer lands on the completion page.
func (s *Service) Create(ctx context.Context) (*paynow.Checkout, error) {
	items := s.cart.Items()
	if len(items) == 0 {
		return nil, errs.ErrEmptyCart
	}

	req := paynow.CheckoutRequest{
		Lines:      make([]paynow.CheckoutLine, 0, len(items)),
		ReturnURL:  s.returnURL,
		CancelURL:  s.cancelURL,
		ReferralID: s.referrals.Get(ctx),
	}
	for _, item := range items {
		req.Lines = append(req.Lines, paynow.LineFromCartItem(item))
	}

	created, err := s.payments.CreateCheckout(ctx, req)
	if err != nil {
		return nil, err
	}
	log.Info().Str("checkout_id", created.ID).Int("lines", len(req.Lines)).Msg("checkout created")
	return created, nil
}

// Complete clears the cart after a finished payment flow.
func (s *Service) Complete(ctx context.Context) error {
	return s.cart.Clear(ctx)
}
